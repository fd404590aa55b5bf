package dialogue

import (
	"context"
	"fmt"
)

// ToolFunc executes a tool with parsed arguments and returns a text result
// for the model.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool is one callable the model may invoke mid-reply.
type Tool struct {
	Name        string
	Description string
	// Say is the pre-authored filler phrase spoken immediately when the model
	// decides to call this tool, so the caller hears acknowledgement while the
	// tool runs.
	Say string
	// Parameters is the JSON schema forwarded to the provider.
	Parameters map[string]any
	Fn         ToolFunc
}

// Registry maps tool names to their implementations.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Tools returns all registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Say returns the announcement phrase for a tool, empty if unknown.
func (r *Registry) Say(name string) string {
	return r.tools[name].Say
}

// Invoke runs the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return t.Fn(ctx, args)
}
