package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rendis/flowbridge/pkg/schema"
)

// ExecutionRepository stores paused executions between requests.
//
// Get must return the same *Execution for the same live execution within one
// process, so that a scope obtained through a lookup is the object the
// executor mutates. A token that does not name a paused execution at its
// current snapshot is a LOOKUP_ERROR.
type ExecutionRepository interface {
	ParseKey(token string) (ExecutionKey, error)
	Get(ctx context.Context, key ExecutionKey) (*Execution, error)
	Put(ctx context.Context, exec *Execution) error
	Remove(ctx context.Context, exec *Execution) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// LookupError builds the error returned for tokens that name no live execution.
func LookupError(key ExecutionKey) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeLookup, "no paused execution for token %q", key.String()).
		WithDetails(map[string]any{"execution_id": key.ID, "snapshot": key.Snapshot})
}

// MemoryRepository keeps executions in process memory.
type MemoryRepository struct {
	mu         sync.RWMutex
	executions map[string]*Execution
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{executions: make(map[string]*Execution)}
}

func (r *MemoryRepository) ParseKey(token string) (ExecutionKey, error) {
	return ParseKey(token)
}

func (r *MemoryRepository) Get(_ context.Context, key ExecutionKey) (*Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executions[key.ID]
	if !ok || !exec.Matches(key) {
		return nil, LookupError(key)
	}
	return exec, nil
}

func (r *MemoryRepository) Put(_ context.Context, exec *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[exec.ID()] = exec
	return nil
}

func (r *MemoryRepository) Remove(_ context.Context, exec *Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executions, exec.ID())
	return nil
}

// PurgeBefore removes paused executions last touched before cutoff.
func (r *MemoryRepository) PurgeBefore(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for id, exec := range r.executions {
		if exec.Status() == schema.ExecutionStatusPaused && exec.UpdatedAt().Before(cutoff) {
			delete(r.executions, id)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of stored executions.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executions)
}

var _ ExecutionRepository = (*MemoryRepository)(nil)
