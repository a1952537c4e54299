// Package provider abstracts the sources an album's audio and cover bytes
// can come from: sharded local trees, convention-named directories, a remote
// mirror, a read-through cache, or a priority-ordered composite of those.
package provider

import (
	"context"
	"io"

	"github.com/ProjectAnni/anni-go/internal/track"
)

// AudioInfo describes a track's stored form.
type AudioInfo struct {
	// Extension is the lowercase file suffix without the dot, e.g. "flac".
	Extension string `json:"extension"`
	// Size is the full stream length in bytes.
	Size int64 `json:"size"`
	// Duration is the track length in seconds; 0 means unknown.
	Duration uint64 `json:"duration"`
}

// AudioStream is a one-shot, forward-only audio body with its metadata.
// Range is always resolved: End and Total are set.
type AudioStream struct {
	Info  AudioInfo
	Range track.Range
	Body  io.ReadCloser
}

func (s *AudioStream) Close() error {
	return s.Body.Close()
}

// Provider is the contract every audio source implements.
type Provider interface {
	// Albums returns the set of album ids this provider owns. Strict and
	// Convention cache the set until Reload; NoCacheStrict re-walks its
	// tree and Remote re-fetches the list on every call.
	Albums(ctx context.Context) (map[string]struct{}, error)

	// HasAlbum reports membership. Implementations with O(1) indexes
	// override the Albums-based default (see HasAlbum helper).
	HasAlbum(ctx context.Context, albumID string) bool

	// GetAudioInfo resolves a track without opening its body.
	GetAudioInfo(ctx context.Context, id track.Identifier) (AudioInfo, error)

	// GetAudio opens a track. The returned stream's Range is resolved
	// against the file size.
	GetAudio(ctx context.Context, id track.Identifier, rng track.Range) (*AudioStream, error)

	// GetCover opens an album cover. discID 0 means the album-level cover.
	GetCover(ctx context.Context, albumID string, discID uint8) (io.ReadCloser, error)

	// Reload re-scans the source. Albums observed after Reload returns
	// reflect the new state; the swap is atomic per provider.
	Reload(ctx context.Context) error
}

// HasAlbum is the default membership check for providers without a faster
// index: look the id up in Albums.
func HasAlbum(ctx context.Context, p Provider, albumID string) bool {
	albums, err := p.Albums(ctx)
	if err != nil {
		return false
	}
	_, ok := albums[albumID]
	return ok
}
