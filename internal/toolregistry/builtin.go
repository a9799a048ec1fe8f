package toolregistry

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/projectcore/changecontrol/internal/apierr"
	"github.com/projectcore/changecontrol/internal/auditengine"
	"github.com/projectcore/changecontrol/internal/domain"
	"github.com/projectcore/changecontrol/internal/store"
)

// Deps are the collaborators builtin tool handlers call into. Read tools
// talk to Store directly; write tools never touch it, only synthesizing
// DraftActions; the one action tool (applyChanges) goes through
// AuditEngine, the only subsystem allowed to mutate state.
type Deps struct {
	Store       *store.Store
	AuditEngine *auditengine.Engine
}

// RegisterBuiltins registers every tool named in the tool registry design:
// five read tools, seven write tools, and one action tool.
func RegisterBuiltins(r *Registry, deps Deps) {
	registerReadTools(r, deps)
	registerWriteTools(r, deps)
	registerActionTools(r, deps)
}

func toJSONString(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", apierr.Internalf(err, "failed to marshal tool result")
	}
	return string(b), nil
}

func registerReadTools(r *Registry, deps Deps) {
	r.Register(ToolDefinition{
		Name: "listProjects", Description: "List all projects.", Category: CategoryRead,
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			projects, err := deps.Store.ListProjects()
			if err != nil {
				return nil, err
			}
			return toJSONString(projects)
		},
	})

	r.Register(ToolDefinition{
		Name: "getProject", Description: "Fetch one project by id.", Category: CategoryRead,
		Parameters: map[string]ParameterDef{
			"id": {Type: "string", Description: "project id", Required: true},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			id, _ := params["id"].(string)
			p, err := deps.Store.GetProject(id)
			if err != nil {
				return nil, err
			}
			return toJSONString(p)
		},
	})

	r.Register(ToolDefinition{
		Name: "listTasks", Description: "Paginated, filtered task listing.", Category: CategoryRead,
		Parameters: map[string]ParameterDef{
			"projectId": {Type: "string", Description: "filter by project id"},
			"status":    {Type: "string", Description: "filter by status"},
			"assignee":  {Type: "string", Description: "filter by assignee"},
			"page":      {Type: "number", Description: "page number"},
			"pageSize":  {Type: "number", Description: "page size"},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			page, err := deps.Store.ListTasks(taskFilterFromParams(params))
			if err != nil {
				return nil, err
			}
			return toJSONString(page)
		},
	})

	r.Register(ToolDefinition{
		Name: "searchTasks", Description: "Case-insensitive substring search over task title/description.", Category: CategoryRead,
		Parameters: map[string]ParameterDef{
			"q":         {Type: "string", Description: "search text", Required: true},
			"projectId": {Type: "string", Description: "filter by project id"},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			filter := taskFilterFromParams(params)
			filter.Q, _ = params["q"].(string)
			page, err := deps.Store.ListTasks(filter)
			if err != nil {
				return nil, err
			}
			return toJSONString(page)
		},
	})

	r.Register(ToolDefinition{
		Name: "getTask", Description: "Fetch one task by id.", Category: CategoryRead,
		Parameters: map[string]ParameterDef{
			"id": {Type: "string", Description: "task id", Required: true},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			id, _ := params["id"].(string)
			t, err := deps.Store.GetTask(id)
			if err != nil {
				return nil, err
			}
			return toJSONString(t)
		},
	})
}

func taskFilterFromParams(params map[string]interface{}) domain.TaskFilter {
	filter := domain.TaskFilter{}
	filter.ProjectID, _ = params["projectId"].(string)
	filter.Status, _ = params["status"].(string)
	filter.Assignee, _ = params["assignee"].(string)
	if v, ok := params["page"]; ok {
		if n, ok := v.(float64); ok {
			filter.Page = int(n)
		}
	}
	if v, ok := params["pageSize"]; ok {
		if n, ok := v.(float64); ok {
			filter.PageSize = int(n)
		}
	}
	return filter
}

// registerWriteTools registers the tools that synthesize DraftActions
// without ever touching Store. Each returns either a single DraftAction
// or (for planChanges) the action array passed straight through after
// minimal shape validation.
func registerWriteTools(r *Registry, deps Deps) {
	r.Register(ToolDefinition{
		Name: "createProject", Description: "Propose creating a new project.", Category: CategoryWrite,
		Parameters: map[string]ParameterDef{
			"name":        {Type: "string", Description: "project name", Required: true},
			"description": {Type: "string", Description: "project description"},
			"icon":        {Type: "string", Description: "project icon"},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			name, _ := params["name"].(string)
			if name == "" {
				return nil, apierr.Validationf("name is required")
			}
			after := map[string]interface{}{"name": name}
			copyIfPresent(params, after, "description", "icon")
			return draftAction(domain.EntityProject, domain.ActionCreate, nil, after), nil
		},
	})

	r.Register(ToolDefinition{
		Name: "updateProject", Description: "Propose updating a project.", Category: CategoryWrite,
		Parameters: map[string]ParameterDef{
			"id":          {Type: "string", Description: "project id", Required: true},
			"name":        {Type: "string", Description: "new name"},
			"description": {Type: "string", Description: "new description"},
			"icon":        {Type: "string", Description: "new icon"},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			id, _ := params["id"].(string)
			if id == "" {
				return nil, apierr.Validationf("id is required")
			}
			after := map[string]interface{}{}
			copyIfPresent(params, after, "name", "description", "icon")
			return draftAction(domain.EntityProject, domain.ActionUpdate, &id, after), nil
		},
	})

	r.Register(ToolDefinition{
		Name: "deleteProject", Description: "Propose deleting a project and its tasks.", Category: CategoryWrite,
		Parameters: map[string]ParameterDef{
			"id": {Type: "string", Description: "project id", Required: true},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			id, _ := params["id"].(string)
			if id == "" {
				return nil, apierr.Validationf("id is required")
			}
			return draftAction(domain.EntityProject, domain.ActionDelete, &id, nil), nil
		},
	})

	r.Register(ToolDefinition{
		Name: "createTask", Description: "Propose creating a new task.", Category: CategoryWrite,
		Parameters: map[string]ParameterDef{
			"title":       {Type: "string", Description: "task title", Required: true},
			"projectId":   {Type: "string", Description: "owning project id"},
			"description": {Type: "string", Description: "task description"},
			"status":      {Type: "string", Description: "TODO | IN_PROGRESS | DONE"},
			"priority":    {Type: "string", Description: "LOW | MEDIUM | HIGH"},
			"assignee":    {Type: "string", Description: "assignee"},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			title, _ := params["title"].(string)
			if title == "" {
				return nil, apierr.Validationf("title is required")
			}
			after := map[string]interface{}{"title": title}
			copyIfPresent(params, after, "projectId", "description", "status", "priority", "assignee", "wbs", "predecessors", "startDate", "dueDate", "isMilestone")
			return draftAction(domain.EntityTask, domain.ActionCreate, nil, after), nil
		},
	})

	r.Register(ToolDefinition{
		Name: "updateTask", Description: "Propose updating a task.", Category: CategoryWrite,
		Parameters: map[string]ParameterDef{
			"id": {Type: "string", Description: "task id", Required: true},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			id, _ := params["id"].(string)
			if id == "" {
				return nil, apierr.Validationf("id is required")
			}
			after := map[string]interface{}{}
			copyIfPresent(params, after, "title", "projectId", "description", "status", "priority", "assignee", "wbs", "predecessors", "startDate", "dueDate", "isMilestone", "completion")
			return draftAction(domain.EntityTask, domain.ActionUpdate, &id, after), nil
		},
	})

	r.Register(ToolDefinition{
		Name: "deleteTask", Description: "Propose deleting a task.", Category: CategoryWrite,
		Parameters: map[string]ParameterDef{
			"id": {Type: "string", Description: "task id", Required: true},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			id, _ := params["id"].(string)
			if id == "" {
				return nil, apierr.Validationf("id is required")
			}
			return draftAction(domain.EntityTask, domain.ActionDelete, &id, nil), nil
		},
	})

	r.Register(ToolDefinition{
		Name: "planChanges", Description: "Accept a pre-built action array as one composite proposal.", Category: CategoryWrite,
		Parameters: map[string]ParameterDef{
			"actions": {Type: "array", Description: "pre-built DraftAction array", Required: true},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			raw, ok := params["actions"].([]interface{})
			if !ok {
				return nil, apierr.Validationf("actions must be an array")
			}
			actions := make([]domain.DraftAction, 0, len(raw))
			for i, item := range raw {
				m, ok := item.(map[string]interface{})
				if !ok {
					return nil, apierr.Validationf("action %d is not an object", i)
				}
				b, err := json.Marshal(m)
				if err != nil {
					return nil, apierr.Internalf(err, "failed to re-encode action %d", i)
				}
				var a domain.DraftAction
				if err := json.Unmarshal(b, &a); err != nil {
					return nil, apierr.Validationf("action %d is malformed: %v", i, err)
				}
				actions = append(actions, a)
			}
			return actions, nil
		},
	})
}

func copyIfPresent(params, after map[string]interface{}, keys ...string) {
	for _, k := range keys {
		if v, ok := params[k]; ok {
			after[k] = v
		}
	}
}

func draftAction(entityType domain.EntityType, action domain.ActionKind, entityID *string, after map[string]interface{}) domain.DraftAction {
	return domain.DraftAction{
		ID:         uuid.NewString(),
		EntityType: entityType,
		Action:     action,
		EntityID:   entityID,
		After:      after,
	}
}

// registerActionTools registers operations that cannot be expressed as a
// draft: applying a draft that already exists.
func registerActionTools(r *Registry, deps Deps) {
	r.Register(ToolDefinition{
		Name: "applyChanges", Description: "Apply an already-submitted draft.", Category: CategoryAction,
		Parameters: map[string]ParameterDef{
			"draftId": {Type: "string", Description: "id of a pending draft", Required: true},
		},
		Handler: func(actor string, params map[string]interface{}) (interface{}, error) {
			draftID, _ := params["draftId"].(string)
			if draftID == "" {
				return nil, apierr.Validationf("draftId is required")
			}
			applied, err := deps.AuditEngine.ApplyDraft(draftID, domain.Actor(orDefault(actor, string(domain.ActorAgent))))
			if err != nil {
				return nil, err
			}
			return toJSONString(applied)
		},
	})
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
