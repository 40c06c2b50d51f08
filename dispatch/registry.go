package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/tempoai/tempo/oracle"
)

// Handler is a callable obeying the dispatch contract. Sub-agents and local
// tools both implement it; the orchestrator resolves invocation names against
// a Registry and treats every handler identically. Handle must encode its own
// failures into the envelope rather than panicking.
type Handler interface {
	// Name returns the unique invocation name (snake_case recommended).
	Name() string
	// Description is surfaced to the decision oracle.
	Description() string
	// Parameters returns a JSON schema describing the accepted arguments.
	Parameters() map[string]any
	// Handle executes the call synchronously.
	Handle(ctx context.Context, req Request) Envelope
}

// Registry maps invocation names to handlers. New agents or tools are added
// by registering a name and conforming to the envelope shape; no other
// coupling is required. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register adds a handler. Registering a duplicate name is an error.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := h.Name()
	if name == "" {
		return fmt.Errorf("dispatch: handler with empty name")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("dispatch: handler %q already registered", name)
	}
	r.handlers[name] = h
	r.order = append(r.order, name)
	return nil
}

// Lookup resolves an invocation name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered invocation names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions exposes the registry to a decision oracle as tool definitions,
// in registration order.
func (r *Registry) Definitions() []oracle.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]oracle.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		h := r.handlers[name]
		defs = append(defs, oracle.ToolDefinition{
			Name:        h.Name(),
			Description: h.Description(),
			Parameters:  h.Parameters(),
		})
	}
	return defs
}
