package annil

import (
	"encoding/json"
	"net/http"
	"time"
)

type sharePayload struct {
	Audios map[string]map[string][]uint8 `json:"audios"`
	// ExpireHours of zero mints a token with no expiry. The bare "expire"
	// spelling is what older proxy clients send.
	ExpireHours  uint64 `json:"expire_hours"`
	LegacyExpire uint64 `json:"expire"`
}

func (p sharePayload) expire() uint64 {
	if p.ExpireHours > 0 {
		return p.ExpireHours
	}
	return p.LegacyExpire
}

// handleShare mints a share token. Only user tokens carrying the share key
// may create them; the resulting token grants exactly the triples listed
// in the payload, for the requested number of hours (0 = no expiry).
func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromCtx(r.Context())
	if !claims.IsUser() {
		writeError(w, ErrUnauthorized)
		return
	}
	if !claims.AllowShare() {
		writeError(w, ErrForbidden)
		return
	}

	var payload sharePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(payload.Audios) == 0 {
		http.Error(w, "audios required", http.StatusBadRequest)
		return
	}

	token, err := s.keys.SignShare(claims.UserID, payload.Audios, time.Now().Unix(), payload.expire())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(token))
}
