package tools

import (
	"sync"

	"github.com/forgewing/agentcore/pkg/models"
)

// Registry maps tool name to Tool with thread-safe registration and
// lookup, in the style of an internal/agent.ToolRegistry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool's name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// Without returns a derived registry with name removed, leaving the
// receiver untouched. Used to strip "delegate" from a sub-agent's
// tool set so it cannot recursively delegate.
func (r *Registry) Without(name string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewRegistry()
	for n, t := range r.tools {
		if n == name {
			continue
		}
		clone.Register(t)
	}
	return clone
}

// AsSchemas returns every registered tool's LLM-facing schema.
func (r *Registry) AsSchemas() []models.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, AsToolSchema(t))
	}
	return out
}
