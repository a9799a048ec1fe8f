package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/draftengine"
)

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.draftEngine.ListDrafts()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, drafts)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, err := s.draftEngine.GetDraft(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

type submitDraftRequest struct {
	ProjectID *string              `json:"projectId,omitempty"`
	CreatedBy domain.Actor         `json:"createdBy"`
	Reason    *string              `json:"reason,omitempty"`
	Actions   []domain.DraftAction `json:"actions"`
}

func (s *Server) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	limitRequestSize(r, MaxPayloadSize)
	var req submitDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = domain.ActorUser
	}
	result, err := s.draftEngine.SubmitDraft(draftengine.SubmitRequest{
		ProjectID: req.ProjectID,
		CreatedBy: req.CreatedBy,
		Reason:    req.Reason,
		Actions:   req.Actions,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type applyDraftRequest struct {
	Actor domain.Actor `json:"actor"`
}

func (s *Server) handleApplyDraft(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req applyDraftRequest
	_ = decodeJSON(r, &req)
	if req.Actor == "" {
		req.Actor = domain.ActorUser
	}
	applied, err := s.auditEngine.ApplyDraft(id, req.Actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, applied)
}

func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	discarded, err := s.draftEngine.DiscardDraft(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, discarded)
}
