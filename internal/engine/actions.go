package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/rendis/flowbridge/pkg/schema"
)

// StateAction executes the work of an action state. The returned outcome is
// the event used to pick the state's next transition.
type StateAction interface {
	Execute(ctx context.Context, rc *RequestContext) (string, error)
}

// StateActionFunc adapts a function to StateAction.
type StateActionFunc func(ctx context.Context, rc *RequestContext) (string, error)

func (f StateActionFunc) Execute(ctx context.Context, rc *RequestContext) (string, error) {
	return f(ctx, rc)
}

// ActionRegistry is a thread-safe name -> StateAction map.
type ActionRegistry struct {
	mu      sync.RWMutex
	actions map[string]StateAction
}

// NewActionRegistry creates an empty ActionRegistry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]StateAction)}
}

// Register adds an action. Returns error on duplicate name.
func (r *ActionRegistry) Register(name string, action StateAction) error {
	if action == nil {
		return schema.NewError(schema.ErrCodeValidation, "state action is nil")
	}
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "state action name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "state action %q already registered", name)
	}
	r.actions[name] = action
	return nil
}

// Get retrieves an action by name.
func (r *ActionRegistry) Get(name string) (StateAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.actions[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "state action %q not registered", name)
	}
	return action, nil
}

// Has checks if an action is registered.
func (r *ActionRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

// Names returns the registered names, sorted.
func (r *ActionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
