package annil

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleAdminReload refreshes the metadata repo and every provider, then
// recomputes the album-set ETag and the last-update stamp.
func (s *Server) handleAdminReload(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAdmin(r); err != nil {
		writeError(w, err)
		return
	}
	s.reload(r.Context())
	w.WriteHeader(http.StatusOK)
}

type signPayload struct {
	UserID string `json:"user_id"`
	Share  bool   `json:"share"`
}

// handleAdminSign mints a user token, optionally embedding the share
// signing key so the holder can mint share tokens.
func (s *Server) handleAdminSign(w http.ResponseWriter, r *http.Request) {
	if err := s.requireAdmin(r); err != nil {
		writeError(w, err)
		return
	}

	var payload signPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if payload.UserID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	token, err := s.keys.SignUser(payload.UserID, payload.Share, time.Now().Unix())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(token))
}
