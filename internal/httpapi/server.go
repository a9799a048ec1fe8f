// Package httpapi is the thin REST mapping over the draft/apply/audit
// engines and the store's read paths. Every response wears the
// {success, data?, error?} envelope; 4xx maps VALIDATION/NOT_FOUND/CONFLICT,
// 5xx maps INTERNAL.
package httpapi

import (
	"github.com/gorilla/mux"

	"github.com/projectcore/changecontrol/internal/auditengine"
	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/draftengine"
	"github.com/projectcore/changecontrol/internal/notify"
	"github.com/projectcore/changecontrol/internal/store"
	"github.com/projectcore/changecontrol/internal/toolregistry"
)

// Server wires every collaborator handlers need and owns the audit
// websocket hub.
type Server struct {
	store       *store.Store
	draftEngine *draftengine.Engine
	auditEngine *auditengine.Engine
	registry    *toolregistry.Registry
	bus         *notify.Bus
	hub         *auditHub
	now         func() int64
	dbPath      string
}

// New builds a Server. bus may be nil (notifications disabled). It wires
// the audit engine's OnCommit hook to the websocket hub so every applied
// or rolled-back entry is pushed to stream subscribers as it commits.
func New(s *store.Store, de *draftengine.Engine, ae *auditengine.Engine, reg *toolregistry.Registry, bus *notify.Bus, now func() int64, dbPath string) *Server {
	srv := &Server{
		store: s, draftEngine: de, auditEngine: ae, registry: reg, bus: bus,
		hub: newAuditHub(), now: now, dbPath: dbPath,
	}
	ae.OnCommit = srv.PublishAudit
	return srv
}

// Router builds the mux.Router exposing the full REST surface, wrapped in
// the security-headers middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(SecurityHeadersMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/projects", s.handleListProjects).Methods("GET")
	api.HandleFunc("/projects/{id}", s.handleGetProject).Methods("GET")
	api.HandleFunc("/projects", s.handleCreateProject).Methods("POST")
	api.HandleFunc("/projects/{id}", s.handleUpdateProject).Methods("PATCH")
	api.HandleFunc("/projects/{id}", s.handleDeleteProject).Methods("DELETE")

	api.HandleFunc("/tasks", s.handleListTasks).Methods("GET")
	api.HandleFunc("/tasks/{id}", s.handleGetTask).Methods("GET")
	api.HandleFunc("/tasks", s.handleCreateTask).Methods("POST")
	api.HandleFunc("/tasks/{id}", s.handleUpdateTask).Methods("PATCH")
	api.HandleFunc("/tasks/{id}", s.handleDeleteTask).Methods("DELETE")

	api.HandleFunc("/drafts", s.handleListDrafts).Methods("GET")
	api.HandleFunc("/drafts/{id}", s.handleGetDraft).Methods("GET")
	api.HandleFunc("/drafts", s.handleSubmitDraft).Methods("POST")
	api.HandleFunc("/drafts/{id}/apply", s.handleApplyDraft).Methods("POST")
	api.HandleFunc("/drafts/{id}/discard", s.handleDiscardDraft).Methods("POST")

	api.HandleFunc("/audit", s.handleListAudit).Methods("GET")
	api.HandleFunc("/audit/stream", s.handleAuditStream).Methods("GET")
	api.HandleFunc("/audit/{id}", s.handleGetAudit).Methods("GET")
	api.HandleFunc("/audit/{id}/diff", s.handleDiffAudit).Methods("GET")
	api.HandleFunc("/audit/{id}/rollback", s.handleRollbackAudit).Methods("POST")

	api.HandleFunc("/ai/tools", s.handleListTools).Methods("GET")
	api.HandleFunc("/ai/execute", s.handleExecuteTool).Methods("POST")

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	return r
}

// PublishAudit fans an applied/rolled-back audit entry out to the
// websocket hub. Wired as the audit engine's OnCommit hook in New.
func (s *Server) PublishAudit(entry *domain.AuditLog) {
	s.hub.broadcastJSON(entry)
}
