package httpapi

import "net/http"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.store.Health(s.dbPath)
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusOK
	if !h.Connected {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, h)
}
