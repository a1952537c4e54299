package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ProjectAnni/anni-go/internal/track"
)

// Remote fetches audio from another annil server over its wire protocol.
type Remote struct {
	base    string
	auth    string
	quality track.Quality
	client  *http.Client
}

// RemoteOption tweaks a Remote at construction.
type RemoteOption func(*Remote)

// WithQuality sets the quality requested from the mirror. Defaults to
// lossless so cached bytes stay byte-identical to the upstream originals.
func WithQuality(q track.Quality) RemoteOption {
	return func(r *Remote) { r.quality = q }
}

// WithTimeout bounds each upstream request. Upstream requests carry no
// intrinsic timeout, so deployments set this from configuration.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) { r.client.Timeout = d }
}

// NewRemote builds a mirror client for the annil server at base.
func NewRemote(base, auth string, opts ...RemoteOption) *Remote {
	r := &Remote{
		base:    strings.TrimSuffix(base, "/"),
		auth:    auth,
		quality: track.QualityLossless,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Remote) get(ctx context.Context, path string, rng track.Range) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", r.auth)
	if !rng.IsFull() {
		req.Header.Set("Range", rng.RangeHeader())
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, &StatusError{Code: resp.StatusCode})
		}
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return resp, nil
}

func (r *Remote) Albums(ctx context.Context) (map[string]struct{}, error) {
	resp, err := r.get(ctx, "/albums", track.FullRange())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("%w: decode album list: %v", ErrRequest, err)
	}
	albums := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		albums[id] = struct{}{}
	}
	return albums, nil
}

func (r *Remote) HasAlbum(ctx context.Context, albumID string) bool {
	return HasAlbum(ctx, r, albumID)
}

func (r *Remote) audioPath(id track.Identifier) string {
	return fmt.Sprintf("/%s?auth=%s&quality=%s",
		id, url.QueryEscape(r.auth), r.quality)
}

func (r *Remote) GetAudio(ctx context.Context, id track.Identifier, rng track.Range) (*AudioStream, error) {
	resp, err := r.get(ctx, r.audioPath(id), rng)
	if err != nil {
		return nil, err
	}

	info := AudioInfo{Extension: "flac"}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "audio/") {
		info.Extension = strings.TrimPrefix(ct, "audio/")
	}
	if s := resp.Header.Get("X-Origin-Size"); s != "" {
		info.Size, _ = strconv.ParseInt(s, 10, 64)
	}
	if s := resp.Header.Get("X-Duration-Seconds"); s != "" {
		info.Duration, _ = strconv.ParseUint(s, 10, 64)
	}

	resolved := rng
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if parsed, err := track.ParseContentRange(cr); err == nil {
			resolved = parsed
		}
	}
	if info.Size > 0 {
		resolved = track.Range{Start: resolved.Start, End: resolved.End, Total: info.Size}
		if resolved.End < 0 {
			resolved.End = info.Size - 1
		}
	}

	return &AudioStream{Info: info, Range: resolved, Body: resp.Body}, nil
}

func (r *Remote) GetAudioInfo(ctx context.Context, id track.Identifier) (AudioInfo, error) {
	stream, err := r.GetAudio(ctx, id, track.FullRange())
	if err != nil {
		return AudioInfo{}, err
	}
	stream.Close()
	return stream.Info, nil
}

func (r *Remote) GetCover(ctx context.Context, albumID string, discID uint8) (io.ReadCloser, error) {
	path := fmt.Sprintf("/%s/cover", albumID)
	if discID > 0 {
		path = fmt.Sprintf("/%s/%d/cover", albumID, discID)
	}
	resp, err := r.get(ctx, path+"?auth="+url.QueryEscape(r.auth), track.FullRange())
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (r *Remote) Reload(_ context.Context) error {
	// The mirror owns its own state; nothing to refresh locally.
	return nil
}

var _ Provider = (*Remote)(nil)
