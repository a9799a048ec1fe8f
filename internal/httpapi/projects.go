package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/draftengine"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := s.store.GetProject(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// projectActionRequest is the envelope every project-mutating endpoint
// accepts; it's translated into a single-action draft, submitted, and
// immediately applied so the REST surface can be used without a human
// reviewing the draft first (the draft still goes through SubmitDraft's
// validation and warnings are echoed back in the response).
type projectActionRequest struct {
	Actor  domain.Actor           `json:"actor"`
	Reason *string                `json:"reason,omitempty"`
	After  map[string]interface{} `json:"after,omitempty"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	limitRequestSize(r, MaxPayloadSize)
	var req projectActionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	s.submitAndApplySingle(w, domain.DraftAction{
		EntityType: domain.EntityProject,
		Action:     domain.ActionCreate,
		After:      req.After,
	}, req.Actor, req.Reason, nil)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	limitRequestSize(r, MaxPayloadSize)
	id := mux.Vars(r)["id"]
	var req projectActionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	s.submitAndApplySingle(w, domain.DraftAction{
		EntityType: domain.EntityProject,
		Action:     domain.ActionUpdate,
		EntityID:   &id,
		After:      req.After,
	}, req.Actor, req.Reason, &id)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req projectActionRequest
	req.Actor = domain.ActorUser
	_ = decodeJSON(r, &req)
	s.submitAndApplySingle(w, domain.DraftAction{
		EntityType: domain.EntityProject,
		Action:     domain.ActionDelete,
		EntityID:   &id,
	}, req.Actor, req.Reason, &id)
}

// submitAndApplySingle wraps a single DraftAction through submit-then-apply
// and writes the resulting applied Draft, or a VALIDATION/CONFLICT error.
func (s *Server) submitAndApplySingle(w http.ResponseWriter, action domain.DraftAction, actor domain.Actor, reason *string, projectID *string) {
	if actor == "" {
		actor = domain.ActorUser
	}
	result, err := s.draftEngine.SubmitDraft(draftengine.SubmitRequest{
		ProjectID: projectID,
		CreatedBy: actor,
		Reason:    reason,
		Actions:   []domain.DraftAction{action},
	})
	if err != nil {
		respondError(w, err)
		return
	}
	applied, err := s.auditEngine.ApplyDraft(result.Draft.ID, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, applied)
}
