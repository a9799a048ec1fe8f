package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/projectcore/changecontrol/internal/domain"
)

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	var from, to int64
	if v := q.Get("from"); v != "" {
		from, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("to"); v != "" {
		to, _ = strconv.ParseInt(v, 10, 64)
	}
	filter := domain.AuditFilter{
		ProjectID:  q.Get("projectId"),
		TaskID:     q.Get("taskId"),
		Actor:      q.Get("actor"),
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		Q:          q.Get("q"),
		From:       from,
		To:         to,
		Page:       page,
		PageSize:   pageSize,
	}
	result, err := s.auditEngine.ListAuditLogs(filter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entry, err := s.auditEngine.GetAuditLog(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDiffAudit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rows, err := s.auditEngine.DiffForAudit(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

type rollbackRequest struct {
	Actor domain.Actor `json:"actor"`
}

func (s *Server) handleRollbackAudit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req rollbackRequest
	_ = decodeJSON(r, &req)
	if req.Actor == "" {
		req.Actor = domain.ActorUser
	}
	rollback, err := s.auditEngine.RollbackAudit(id, req.Actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rollback)
}
