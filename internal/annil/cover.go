package annil

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const coverMaxAge = 31536000 // one year; covers are immutable per album

// handleCover streams an album or disc cover. Hits are publicly cacheable
// for a year; misses are marked private so intermediaries never pin a 404.
func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	albumID, err := uuid.Parse(chi.URLParam(r, "album_id"))
	if err != nil {
		coverNotFound(w)
		return
	}

	var discID uint8
	if raw := chi.URLParam(r, "disc_id"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 8)
		if err != nil || n == 0 {
			coverNotFound(w)
			return
		}
		discID = uint8(n)
	}

	for _, p := range s.snapshot() {
		if !p.HasAlbum(r.Context(), albumID.String()) {
			continue
		}
		body, err := p.GetCover(r.Context(), albumID.String(), discID)
		if err != nil {
			coverNotFound(w)
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(coverMaxAge))
		_, _ = io.Copy(w, body)
		return
	}
	coverNotFound(w)
}

func coverNotFound(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "private")
	w.WriteHeader(http.StatusNotFound)
}
