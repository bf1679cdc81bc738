package bridge

import (
	"sort"
	"sync"

	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/pkg/schema"
)

// EngineRegistry resolves flow executors by binding name.
type EngineRegistry interface {
	Resolve(name string) (engine.Executor, error)
}

// MapRegistry is an in-memory EngineRegistry.
type MapRegistry struct {
	mu      sync.RWMutex
	engines map[string]engine.Executor
}

// NewMapRegistry creates an empty MapRegistry.
func NewMapRegistry() *MapRegistry {
	return &MapRegistry{engines: make(map[string]engine.Executor)}
}

// Bind registers exec under name. Rebinding a name is a conflict.
func (r *MapRegistry) Bind(name string, exec engine.Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.engines[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "engine binding %q already registered", name)
	}
	r.engines[name] = exec
	return nil
}

// Resolve returns the executor bound to name. A missing binding is a
// configuration error.
func (r *MapRegistry) Resolve(name string) (engine.Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration, "engine binding %q not found", name).
			WithDetails(map[string]any{"binding": name})
	}
	return exec, nil
}

// Names returns the bound names, sorted.
func (r *MapRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var _ EngineRegistry = (*MapRegistry)(nil)
