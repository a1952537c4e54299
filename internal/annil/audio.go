package annil

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ProjectAnni/anni-go/internal/flacutil"
	"github.com/ProjectAnni/anni-go/internal/provider"
	"github.com/ProjectAnni/anni-go/internal/track"
)

// identifierFromRequest parses the {album_id}/{disc_id}/{track_id} path.
func identifierFromRequest(r *http.Request) (track.Identifier, error) {
	albumID, err := uuid.Parse(chi.URLParam(r, "album_id"))
	if err != nil {
		return track.Identifier{}, track.ErrInvalidFormat
	}
	discID, err := strconv.ParseUint(chi.URLParam(r, "disc_id"), 10, 8)
	if err != nil || discID == 0 {
		return track.Identifier{}, track.ErrInvalidFormat
	}
	trackID, err := strconv.ParseUint(chi.URLParam(r, "track_id"), 10, 8)
	if err != nil || trackID == 0 {
		return track.Identifier{}, track.ErrInvalidFormat
	}
	return track.Identifier{AlbumID: albumID, DiscID: uint8(discID), TrackID: uint8(trackID)}, nil
}

// qualityFromRequest reads the requested quality. "quality" is canonical;
// "prefer_bitrate" is the legacy proxy spelling.
func qualityFromRequest(r *http.Request) (track.Quality, error) {
	raw := r.URL.Query().Get("quality")
	if raw == "" {
		raw = r.URL.Query().Get("prefer_bitrate")
	}
	if raw == "" {
		return track.QualityLossless, nil
	}
	return track.ParseQuality(raw)
}

// handleAudio streams one track: token coverage check, range resolution,
// header splice for mid-file starts, and transcoding for lossy qualities.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id, err := identifierFromRequest(r)
	if err != nil {
		// Route shape matched but the segments do not name a track.
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	claims := claimsFromCtx(r.Context())
	if !claims.CanAccess(id) {
		writeError(w, ErrForbidden)
		return
	}

	quality, err := qualityFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var chosen provider.Provider
	for _, p := range s.snapshot() {
		if p.HasAlbum(r.Context(), id.AlbumID.String()) {
			chosen = p
			break
		}
	}
	if chosen == nil {
		writeError(w, provider.ErrNotFound)
		return
	}

	// Transcoded streams are not range-addressable, so Range requests
	// always serve the original encoding.
	if quality.NeedsTranscode() && r.Header.Get("Range") == "" {
		s.serveTranscoded(w, r, chosen, id, quality)
		return
	}
	s.serveLossless(w, r, chosen, id)
}

func (s *Server) serveTranscoded(w http.ResponseWriter, r *http.Request, p provider.Provider, id track.Identifier, quality track.Quality) {
	transcoder, err := NewTranscoder(quality, s.transcodeCodec)
	if err != nil {
		writeError(w, err)
		return
	}

	stream, err := p.GetAudio(r.Context(), id, track.FullRange())
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()

	cmd := transcoder.Command()
	cmd.Stdin = stream.Body
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := cmd.Start(); err != nil {
		writeError(w, fmt.Errorf("start transcoder: %w", err))
		return
	}

	setAudioHeaders(w, stream.Info, quality)
	w.Header().Set("Content-Type", transcoder.ContentType())
	if cl := transcoder.ContentLength(stream.Info); cl >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(cl, 10))
	}

	_, copyErr := io.Copy(w, stdout)
	if err := cmd.Wait(); err != nil {
		slog.Error("transcoder exited with error", "track", id.String(), "err", err)
	} else if copyErr != nil {
		slog.Warn("transcode stream interrupted", "track", id.String(), "err", copyErr)
	}
}

func (s *Server) serveLossless(w http.ResponseWriter, r *http.Request, p provider.Provider, id track.Identifier) {
	rng := track.FullRange()
	ranged := r.Header.Get("Range") != ""
	if header := r.Header.Get("Range"); header != "" {
		info, err := p.GetAudioInfo(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		rng, err = track.ParseRangeHeader(header, uint64(info.Size))
		if err != nil {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size))
			http.Error(w, "invalid range", http.StatusRequestedRangeNotSatisfiable)
			return
		}
	}

	stream, err := p.GetAudio(r.Context(), id, rng)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()

	setAudioHeaders(w, stream.Info, track.QualityLossless)
	w.Header().Set("Content-Type", "audio/"+stream.Info.Extension)
	w.Header().Set("Accept-Ranges", "bytes")

	resolved := stream.Range
	if !ranged {
		w.Header().Set("Content-Length", strconv.FormatInt(resolved.Total, 10))
		_, _ = io.Copy(w, stream.Body)
		return
	}

	body := io.Reader(stream.Body)
	bodyLen := resolved.End - int64(resolved.Start) + 1

	// A range that skips the stream head would hand the client frames it
	// cannot decode; splice the fabricated head in front.
	if !rng.ContainsFlacHeader() && stream.Info.Extension == "flac" {
		info, err := s.fetchStreamInfo(r, p, id)
		if err != nil {
			writeError(w, err)
			return
		}
		body = flacutil.SpliceHeader(info, stream.Body)
		bodyLen += flacutil.HeaderLen
	}

	w.Header().Set("Content-Range", resolved.ContentRange())
	w.Header().Set("Content-Length", strconv.FormatInt(bodyLen, 10))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = io.Copy(w, body)
}

// fetchStreamInfo reads the first 42 bytes of the track to rebuild its
// STREAMINFO for splicing.
func (s *Server) fetchStreamInfo(r *http.Request, p provider.Provider, id track.Identifier) (flacutil.StreamInfo, error) {
	head, err := p.GetAudio(r.Context(), id, track.Range{Start: 0, End: flacutil.HeaderLen - 1, Total: -1})
	if err != nil {
		return flacutil.StreamInfo{}, err
	}
	defer head.Close()
	return flacutil.ReadStreamInfo(head.Body)
}

func setAudioHeaders(w http.ResponseWriter, info provider.AudioInfo, quality track.Quality) {
	w.Header().Set("X-Origin-Size", strconv.FormatInt(info.Size, 10))
	w.Header().Set("X-Duration-Seconds", strconv.FormatUint(info.Duration, 10))
	w.Header().Set("X-Audio-Quality", quality.String())
}
