package toolregistry

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/projectcore/changecontrol/internal/auditengine"
	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := int64(1000)
	ae := auditengine.New(s, nil, nil, func() int64 { return clock })

	r := New()
	RegisterBuiltins(r, Deps{Store: s, AuditEngine: ae})
	return r, s
}

func TestRegisterBuiltinsCoversEveryNamedTool(t *testing.T) {
	r, _ := newTestRegistry(t)
	want := []string{
		"listProjects", "getProject", "listTasks", "searchTasks", "getTask",
		"createProject", "updateProject", "deleteProject", "createTask", "updateTask", "deleteTask", "planChanges",
		"applyChanges",
	}
	for _, name := range want {
		if _, ok := r.Get(name); !ok {
			t.Errorf("missing tool %q", name)
		}
	}
}

func TestGetOpenAIToolsProjection(t *testing.T) {
	r, _ := newTestRegistry(t)
	tools := r.GetOpenAITools()
	if len(tools) == 0 {
		t.Fatal("expected at least one tool")
	}
	for _, tool := range tools {
		if tool["type"] != "function" {
			t.Errorf("type = %v, want function", tool["type"])
		}
		fn, ok := tool["function"].(map[string]interface{})
		if !ok {
			t.Fatalf("function field missing or wrong shape: %+v", tool)
		}
		if fn["name"] == "" || fn["name"] == nil {
			t.Errorf("function.name missing: %+v", fn)
		}
	}
}

func TestExecuteUnknownToolReturnsStructuredFailure(t *testing.T) {
	r, _ := newTestRegistry(t)
	result := r.Execute("doesNotExist", "agent", nil)
	if result.Success {
		t.Fatal("expected Success = false for unknown tool")
	}
	if !strings.Contains(result.Error, "unknown tool") {
		t.Errorf("Error = %q, want mention of unknown tool", result.Error)
	}
}

func TestCreateProjectToolSynthesizesDraftAction(t *testing.T) {
	r, s := newTestRegistry(t)
	result := r.Execute("createProject", "agent", map[string]interface{}{"name": "Launch"})
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}
	action, ok := result.Data.(domain.DraftAction)
	if !ok {
		t.Fatalf("Data is %T, want domain.DraftAction", result.Data)
	}
	if action.EntityType != domain.EntityProject || action.Action != domain.ActionCreate {
		t.Errorf("action = %+v, want project create", action)
	}

	projects, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 0 {
		t.Error("write tools must never mutate the store directly")
	}
}

func TestGetProjectToolReturnsJSONString(t *testing.T) {
	r, s := newTestRegistry(t)

	createResult := r.Execute("createProject", "agent", map[string]interface{}{"name": "Launch"})
	action := createResult.Data.(domain.DraftAction)

	draft := &domain.Draft{
		ID: "d1", CreatedBy: domain.ActorAgent, Status: domain.DraftPending,
		Actions: []domain.DraftAction{action}, Warnings: []string{}, CreatedAt: 1,
	}
	if err := s.InsertDraft(draft); err != nil {
		t.Fatalf("InsertDraft() error = %v", err)
	}

	applyResult := r.Execute("applyChanges", "agent", map[string]interface{}{"draftId": "d1"})
	if !applyResult.Success {
		t.Fatalf("applyChanges failed: %s", applyResult.Error)
	}

	projects, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("len(projects) = %d, want 1", len(projects))
	}

	getResult := r.Execute("getProject", "agent", map[string]interface{}{"id": projects[0].ID})
	if !getResult.Success {
		t.Fatalf("getProject failed: %s", getResult.Error)
	}
	jsonStr, ok := getResult.Data.(string)
	if !ok {
		t.Fatalf("Data is %T, want string", getResult.Data)
	}
	if !strings.Contains(jsonStr, "Launch") {
		t.Errorf("json = %q, want it to contain project name", jsonStr)
	}
}

func TestPlanChangesPassesThroughPreBuiltActions(t *testing.T) {
	r, _ := newTestRegistry(t)
	result := r.Execute("planChanges", "agent", map[string]interface{}{
		"actions": []interface{}{
			map[string]interface{}{"id": "a1", "entityType": "project", "action": "create", "after": map[string]interface{}{"name": "X"}},
		},
	})
	if !result.Success {
		t.Fatalf("Execute() failed: %s", result.Error)
	}
	actions, ok := result.Data.([]domain.DraftAction)
	if !ok {
		t.Fatalf("Data is %T, want []domain.DraftAction", result.Data)
	}
	if len(actions) != 1 || actions[0].ID != "a1" {
		t.Errorf("actions = %+v, want one action with id a1", actions)
	}
}
