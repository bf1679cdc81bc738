package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rendis/flowbridge/internal/logging"
	"github.com/rendis/flowbridge/pkg/schema"
)

// TransitionHook is called before or after a status transition.
type TransitionHook func(from, to string) error

type hookKey struct {
	from, to schema.ExecutionStatus
}

// ExecutionFSM manages execution lifecycle status transitions.
type ExecutionFSM struct {
	mu     sync.Mutex
	logger *slog.Logger
	before map[hookKey][]TransitionHook
	after  map[hookKey][]TransitionHook
}

// NewExecutionFSM creates a new ExecutionFSM. A nil logger discards.
func NewExecutionFSM(logger *slog.Logger) *ExecutionFSM {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ExecutionFSM{
		logger: logger,
		before: make(map[hookKey][]TransitionHook),
		after:  make(map[hookKey][]TransitionHook),
	}
}

// OnBefore registers a hook called before a transition.
func (f *ExecutionFSM) OnBefore(from, to schema.ExecutionStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := hookKey{from, to}
	f.before[key] = append(f.before[key], hook)
}

// OnAfter registers a hook called after a transition.
func (f *ExecutionFSM) OnAfter(from, to schema.ExecutionStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := hookKey{from, to}
	f.after[key] = append(f.after[key], hook)
}

// Transition validates the move and applies it to exec. A failing before
// hook aborts the transition; exec keeps its status.
func (f *ExecutionFSM) Transition(ctx context.Context, exec *Execution, to schema.ExecutionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	from := exec.Status()
	if !isValidExecutionTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid execution transition: %s -> %s", from, to).
			WithDetails(map[string]any{"execution_id": exec.ID(), "from": string(from), "to": string(to)})
	}

	key := hookKey{from, to}
	for _, hook := range f.before[key] {
		if err := hook(string(from), string(to)); err != nil {
			return err
		}
	}

	exec.setStatus(to)
	logging.LogWith(ctx, f.logger).DebugContext(ctx, "execution status changed",
		slog.String("execution_id", exec.ID()),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	for _, hook := range f.after[key] {
		if err := hook(string(from), string(to)); err != nil {
			return err
		}
	}
	return nil
}

func isValidExecutionTransition(from, to schema.ExecutionStatus) bool {
	for _, a := range ValidExecutionTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

// ValidExecutionTransitions defines the allowed status transitions for executions.
var ValidExecutionTransitions = map[schema.ExecutionStatus][]schema.ExecutionStatus{
	schema.ExecutionStatusPending: {schema.ExecutionStatusActive},
	schema.ExecutionStatusActive:  {schema.ExecutionStatusPaused, schema.ExecutionStatusEnded, schema.ExecutionStatusFailed},
	schema.ExecutionStatusPaused:  {schema.ExecutionStatusActive, schema.ExecutionStatusFailed},
	schema.ExecutionStatusEnded:   {},
	schema.ExecutionStatusFailed:  {},
}
