package annil

import "net/http"

type infoResponse struct {
	Version         string `json:"version"`
	ProtocolVersion string `json:"protocol_version"`
	LastUpdate      int64  `json:"last_update"`
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	lastUpdate := s.lastUpdate
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, infoResponse{
		Version:         s.version,
		ProtocolVersion: ProtocolVersion,
		LastUpdate:      lastUpdate,
	})
}
