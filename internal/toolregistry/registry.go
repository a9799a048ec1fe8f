// Package toolregistry is a domain-agnostic, configuration-driven catalog
// of named operations an external agent can invoke, with a stable
// JSON-schema-ish descriptor suitable for function-calling LLM APIs.
package toolregistry

import "fmt"

// Category enforces the read/write/action policy split: read tools hit
// the store directly, write tools only synthesize DraftActions, action
// tools perform operations no draft can express.
type Category string

const (
	CategoryRead   Category = "read"
	CategoryWrite  Category = "write"
	CategoryAction Category = "action"
)

// Handler processes a tool call and returns a result or error. actor
// identifies who is invoking the tool (agent, user, system).
type Handler func(actor string, params map[string]interface{}) (interface{}, error)

// ToolDefinition describes one callable tool.
type ToolDefinition struct {
	Name        string
	Description string
	Category    Category
	Parameters  map[string]ParameterDef
	Handler     Handler
}

// ParameterDef describes a single tool parameter.
type ParameterDef struct {
	Type        string
	Description string
	Required    bool
}

// Registry holds the catalog of registered tools.
type Registry struct {
	tools map[string]ToolDefinition
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{tools: make(map[string]ToolDefinition)}
}

// Register adds or replaces a tool definition.
func (r *Registry) Register(tool ToolDefinition) {
	r.tools[tool.Name] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (ToolDefinition, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns every registered tool definition, for introspection
// endpoints that want more than the OpenAI projection.
func (r *Registry) List() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	return out
}

// GetOpenAITools projects the catalog into the {type:"function",
// function:{...}} shape expected by function-calling LLM APIs.
func (r *Registry) GetOpenAITools() []map[string]interface{} {
	var tools []map[string]interface{}
	for _, tool := range r.tools {
		properties := make(map[string]interface{})
		var required []string

		for name, def := range tool.Parameters {
			properties[name] = map[string]interface{}{
				"type":        def.Type,
				"description": def.Description,
			}
			if def.Required {
				required = append(required, name)
			}
		}

		tools = append(tools, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters": map[string]interface{}{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return tools
}

// ExecutionResult is the {success, data|error} envelope every tool call
// returns, so a caller never needs to distinguish a Go error from a
// structured tool failure.
type ExecutionResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Execute dispatches name with the given actor and params, wrapping any
// handler error in {success:false, error} so agent retries see a
// structured failure instead of a panic or raw Go error.
func (r *Registry) Execute(name string, actor string, params map[string]interface{}) ExecutionResult {
	tool, ok := r.tools[name]
	if !ok {
		return ExecutionResult{Success: false, Error: fmt.Sprintf("unknown tool: %s", name)}
	}

	data, err := tool.Handler(actor, params)
	if err != nil {
		return ExecutionResult{Success: false, Error: err.Error()}
	}
	return ExecutionResult{Success: true, Data: data}
}
