package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/projectcore/changecontrol/internal/domain"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	filter := domain.TaskFilter{
		ProjectID: q.Get("projectId"),
		Status:    q.Get("status"),
		Assignee:  q.Get("assignee"),
		Q:         q.Get("q"),
		Page:      page,
		PageSize:  pageSize,
	}
	result, err := s.store.ListTasks(filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, err := s.store.GetTask(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	limitRequestSize(r, MaxPayloadSize)
	var req projectActionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	var projectID *string
	if v, ok := req.After["projectId"]; ok {
		if sv, ok := v.(string); ok && sv != "" {
			projectID = &sv
		}
	}
	s.submitAndApplySingle(w, domain.DraftAction{
		EntityType: domain.EntityTask,
		Action:     domain.ActionCreate,
		After:      req.After,
	}, req.Actor, req.Reason, projectID)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	limitRequestSize(r, MaxPayloadSize)
	id := mux.Vars(r)["id"]
	var req projectActionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	s.submitAndApplySingle(w, domain.DraftAction{
		EntityType: domain.EntityTask,
		Action:     domain.ActionUpdate,
		EntityID:   &id,
		After:      req.After,
	}, req.Actor, req.Reason, nil)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req projectActionRequest
	req.Actor = domain.ActorUser
	_ = decodeJSON(r, &req)
	s.submitAndApplySingle(w, domain.DraftAction{
		EntityType: domain.EntityTask,
		Action:     domain.ActionDelete,
		EntityID:   &id,
	}, req.Actor, req.Reason, nil)
}
