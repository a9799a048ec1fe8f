package httpapi

import "net/http"

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.registry.GetOpenAITools())
}

type executeToolRequest struct {
	Name   string                 `json:"name"`
	Actor  string                 `json:"actor"`
	Params map[string]interface{} `json:"params"`
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	limitRequestSize(r, MaxPayloadSize)
	var req executeToolRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Actor == "" {
		req.Actor = "agent"
	}
	result := s.registry.Execute(req.Name, req.Actor, req.Params)
	respondJSON(w, http.StatusOK, result)
}
