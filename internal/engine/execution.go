package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rendis/flowbridge/pkg/schema"
)

// ExecutionKey identifies one paused snapshot of an execution.
type ExecutionKey struct {
	ID       string
	Snapshot int
}

// String renders the key as a resume token: "<id>_s<snapshot>".
func (k ExecutionKey) String() string {
	return FormatKey(k.ID, k.Snapshot)
}

// FormatKey renders a resume token.
func FormatKey(id string, snapshot int) string {
	return fmt.Sprintf("%s_s%d", id, snapshot)
}

// ParseKey splits a resume token on its last "_s" separator.
// Malformed tokens are lookup errors: they never resolve to a continuation.
func ParseKey(token string) (ExecutionKey, error) {
	idx := strings.LastIndex(token, "_s")
	if idx <= 0 || idx+2 >= len(token) {
		return ExecutionKey{}, schema.NewErrorf(schema.ErrCodeLookup, "malformed resume token %q", token).
			WithDetails(map[string]any{"token": token})
	}
	snapshot, err := strconv.Atoi(token[idx+2:])
	if err != nil || snapshot < 0 {
		return ExecutionKey{}, schema.NewErrorf(schema.ErrCodeLookup, "malformed resume token %q", token).
			WithDetails(map[string]any{"token": token})
	}
	return ExecutionKey{ID: token[:idx], Snapshot: snapshot}, nil
}

// Execution is a long-lived, pausable run of a flow definition.
// The scope pointer never changes for the lifetime of the execution.
type Execution struct {
	id     string
	flowID string
	scope  *Scope

	mu        sync.RWMutex
	state     string
	status    schema.ExecutionStatus
	snapshot  int
	output    any
	createdAt time.Time
	updatedAt time.Time

	// run serializes launch/resume processing of one execution.
	run sync.Mutex
}

// NewExecution creates a pending execution seeded with input.
func NewExecution(id, flowID string, input map[string]any) *Execution {
	now := time.Now().UTC()
	return &Execution{
		id:        id,
		flowID:    flowID,
		scope:     NewScope(input),
		status:    schema.ExecutionStatusPending,
		createdAt: now,
		updatedAt: now,
	}
}

// ExecutionRecord is the persisted form of an execution.
type ExecutionRecord struct {
	ID        string
	FlowID    string
	State     string
	Status    schema.ExecutionStatus
	Snapshot  int
	Scope     map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RestoreExecution rebuilds an execution from its persisted form.
func RestoreExecution(s ExecutionRecord) *Execution {
	return &Execution{
		id:        s.ID,
		flowID:    s.FlowID,
		scope:     NewScope(s.Scope),
		state:     s.State,
		status:    s.Status,
		snapshot:  s.Snapshot,
		createdAt: s.CreatedAt,
		updatedAt: s.UpdatedAt,
	}
}

// Record captures the persisted form of the execution.
func (e *Execution) Record() ExecutionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ExecutionRecord{
		ID:        e.id,
		FlowID:    e.flowID,
		State:     e.state,
		Status:    e.status,
		Snapshot:  e.snapshot,
		Scope:     e.scope.AsMap(),
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
}

func (e *Execution) ID() string     { return e.id }
func (e *Execution) FlowID() string { return e.flowID }
func (e *Execution) Scope() *Scope  { return e.scope }

// Key returns the resume token for the current snapshot.
func (e *Execution) Key() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return FormatKey(e.id, e.snapshot)
}

func (e *Execution) State() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Execution) Status() schema.ExecutionStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Snapshot returns the pause counter; it grows by one on every pause.
func (e *Execution) Snapshot() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

func (e *Execution) Output() any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.output
}

func (e *Execution) UpdatedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.updatedAt
}

// Touch refreshes the idle timer.
func (e *Execution) Touch() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updatedAt = time.Now().UTC()
}

func (e *Execution) setState(state string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.updatedAt = time.Now().UTC()
}

func (e *Execution) setStatus(status schema.ExecutionStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	e.updatedAt = time.Now().UTC()
}

func (e *Execution) setOutput(output any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.output = output
}

// nextSnapshot bumps the snapshot so previously issued tokens go stale.
func (e *Execution) nextSnapshot() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshot++
	e.updatedAt = time.Now().UTC()
}

// Matches reports whether the execution is paused at the snapshot named by key.
func (e *Execution) Matches(key ExecutionKey) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.id == key.ID && e.snapshot == key.Snapshot && e.status == schema.ExecutionStatusPaused
}
