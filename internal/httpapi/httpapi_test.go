package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/projectcore/changecontrol/internal/auditengine"
	"github.com/projectcore/changecontrol/internal/draftengine"
	"github.com/projectcore/changecontrol/internal/store"
	"github.com/projectcore/changecontrol/internal/toolregistry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := int64(1000)
	now := func() int64 { return clock }
	de := draftengine.New(s, now)
	ae := auditengine.New(s, nil, nil, now)
	reg := toolregistry.New()
	toolregistry.RegisterBuiltins(reg, toolregistry.Deps{Store: s, AuditEngine: ae})

	return New(s, de, ae, reg, nil, now, dbPath)
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v, body=%s", err, rec.Body.String())
	}
	return env
}

func TestCreateAndGetProject(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/projects", map[string]interface{}{
		"actor": "user",
		"after": map[string]interface{}{"name": "Launch"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("create not successful: %+v", env)
	}

	listRec := doRequest(t, srv, http.MethodGet, "/api/projects", nil)
	listEnv := decodeEnvelope(t, listRec)
	if !listEnv.Success {
		t.Fatalf("list not successful: %+v", listEnv)
	}
	projects, ok := listEnv.Data.([]interface{})
	if !ok || len(projects) != 1 {
		t.Fatalf("expected 1 project, got %+v", listEnv.Data)
	}
}

func TestGetMissingProjectReturnsNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/projects/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatal("expected Success = false")
	}
	if env.Error.Code != "NOT_FOUND" {
		t.Errorf("error code = %s, want NOT_FOUND", env.Error.Code)
	}
}

func TestSubmitDraftThenApplyThenRollback(t *testing.T) {
	srv := newTestServer(t)

	submitRec := doRequest(t, srv, http.MethodPost, "/api/drafts", map[string]interface{}{
		"createdBy": "user",
		"actions": []map[string]interface{}{
			{"entityType": "project", "action": "create", "after": map[string]interface{}{"name": "Rollout"}},
		},
	})
	if submitRec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", submitRec.Code, submitRec.Body.String())
	}
	submitEnv := decodeEnvelope(t, submitRec)
	data := submitEnv.Data.(map[string]interface{})
	draft := data["draft"].(map[string]interface{})
	draftID := draft["id"].(string)

	applyRec := doRequest(t, srv, http.MethodPost, "/api/drafts/"+draftID+"/apply", map[string]interface{}{"actor": "user"})
	if applyRec.Code != http.StatusOK {
		t.Fatalf("apply status = %d, body = %s", applyRec.Code, applyRec.Body.String())
	}

	auditRec := doRequest(t, srv, http.MethodGet, "/api/audit?entityType=project", nil)
	auditEnv := decodeEnvelope(t, auditRec)
	page := auditEnv.Data.(map[string]interface{})
	rows := page["data"].([]interface{})
	if len(rows) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(rows))
	}
	auditID := rows[0].(map[string]interface{})["id"].(string)

	rollbackRec := doRequest(t, srv, http.MethodPost, "/api/audit/"+auditID+"/rollback", map[string]interface{}{"actor": "user"})
	if rollbackRec.Code != http.StatusOK {
		t.Fatalf("rollback status = %d, body = %s", rollbackRec.Code, rollbackRec.Body.String())
	}

	projectsRec := doRequest(t, srv, http.MethodGet, "/api/projects", nil)
	projectsEnv := decodeEnvelope(t, projectsRec)
	if projectsEnv.Data != nil {
		if projects, ok := projectsEnv.Data.([]interface{}); ok && len(projects) != 0 {
			t.Errorf("expected project list empty after rollback of its create, got %+v", projects)
		}
	}
}

func TestListToolsAndExecute(t *testing.T) {
	srv := newTestServer(t)

	toolsRec := doRequest(t, srv, http.MethodGet, "/api/ai/tools", nil)
	toolsEnv := decodeEnvelope(t, toolsRec)
	tools, ok := toolsEnv.Data.([]interface{})
	if !ok || len(tools) == 0 {
		t.Fatalf("expected non-empty tool list, got %+v", toolsEnv.Data)
	}

	execRec := doRequest(t, srv, http.MethodPost, "/api/ai/execute", map[string]interface{}{
		"name":   "createProject",
		"actor":  "agent",
		"params": map[string]interface{}{"name": "Agent Project"},
	})
	execEnv := decodeEnvelope(t, execRec)
	result, ok := execEnv.Data.(map[string]interface{})
	if !ok || result["success"] != true {
		t.Fatalf("expected successful execution result, got %+v", execEnv.Data)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	health := env.Data.(map[string]interface{})
	if health["connected"] != true {
		t.Errorf("expected connected = true, got %+v", health)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	if rec.Header().Get("Server") != "changecontrold" {
		t.Errorf("Server header = %q, want changecontrold", rec.Header().Get("Server"))
	}
}
