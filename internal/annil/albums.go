package annil

import (
	"net/http"
)

// handleAlbums serves the album list. User tokens see the union of all
// provider album sets, gated by the XOR ETag; share tokens see only the
// albums their ACL names.
func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromCtx(r.Context())

	if !claims.IsUser() {
		albums := make([]string, 0, len(claims.Audios))
		for album := range claims.Audios {
			albums = append(albums, album)
		}
		writeJSON(w, http.StatusOK, albums)
		return
	}

	etag := s.ETag()
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	set := make(map[string]struct{})
	for _, p := range s.snapshot() {
		albums, err := p.Albums(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		for album := range albums {
			set[album] = struct{}{}
		}
	}

	albums := make([]string, 0, len(set))
	for album := range set {
		albums = append(albums, album)
	}

	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, albums)
}
