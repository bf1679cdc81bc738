package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/rendis/flowbridge/internal/expressions"
	"github.com/rendis/flowbridge/internal/logging"
	"github.com/rendis/flowbridge/pkg/schema"
)

// EventParameter is the request parameter carrying the event on resume.
const EventParameter = "_eventId"

// DefaultMaxTransitions caps state entries processed by one launch or resume.
const DefaultMaxTransitions = 64

// Executor launches and resumes flow executions.
type Executor interface {
	Launch(ctx context.Context, flowID string, input map[string]any, ext ExternalContext) (*ExecutionResult, error)
	Resume(ctx context.Context, token string, ext ExternalContext) (*ExecutionResult, error)
	Repository() ExecutionRepository
}

// ExecutionResult describes where a launch or resume left the execution.
type ExecutionResult struct {
	Ended       bool   `json:"ended"`
	PausedKey   string `json:"paused_key,omitempty"`
	FlowID      string `json:"flow_id"`
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	Output      any    `json:"output,omitempty"`
}

// ExecutorConfig configures a FlowExecutor.
type ExecutorConfig struct {
	Flows          *FlowRegistry
	Repository     ExecutionRepository // default: in-memory
	Actions        *ActionRegistry     // default: empty
	ViewResolver   ViewResolver        // default: no-op views
	FSM            *ExecutionFSM       // default: fresh FSM
	DefaultHandler string              // handler for action states that name none
	MaxTransitions int                 // default: DefaultMaxTransitions
	Logger         *slog.Logger
}

// FlowExecutor is the default Executor: a state machine over FlowDefinitions
// with expr on-entry assignments, CEL guards and jq end outputs.
type FlowExecutor struct {
	flows          *FlowRegistry
	repo           ExecutionRepository
	actions        *ActionRegistry
	views          ViewResolver
	fsm            *ExecutionFSM
	defaultHandler string
	maxTransitions int
	logger         *slog.Logger

	cel *expressions.CELEngine
	ex  *expressions.ExprEngine
	jq  *expressions.GoJQEngine
}

// NewFlowExecutor creates a FlowExecutor.
func NewFlowExecutor(cfg ExecutorConfig) (*FlowExecutor, error) {
	if cfg.Flows == nil {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "executor requires a flow registry")
	}
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	e := &FlowExecutor{
		flows:          cfg.Flows,
		repo:           cfg.Repository,
		actions:        cfg.Actions,
		views:          cfg.ViewResolver,
		fsm:            cfg.FSM,
		defaultHandler: cfg.DefaultHandler,
		maxTransitions: cfg.MaxTransitions,
		logger:         cfg.Logger,
		cel:            celEngine,
		ex:             expressions.NewExprEngine(),
		jq:             expressions.NewGoJQEngine(),
	}
	if e.repo == nil {
		e.repo = NewMemoryRepository()
	}
	if e.actions == nil {
		e.actions = NewActionRegistry()
	}
	if e.views == nil {
		e.views = ViewResolverFunc(func(context.Context, string, *RequestContext) (View, error) {
			return NopView{}, nil
		})
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	if e.fsm == nil {
		e.fsm = NewExecutionFSM(e.logger)
	}
	if e.maxTransitions <= 0 {
		e.maxTransitions = DefaultMaxTransitions
	}
	return e, nil
}

// Repository returns the execution repository.
func (e *FlowExecutor) Repository() ExecutionRepository { return e.repo }

// Actions returns the state action registry.
func (e *FlowExecutor) Actions() *ActionRegistry { return e.actions }

// Launch starts a new execution of flowID seeded with input and runs it until
// it pauses at a view state or ends.
func (e *FlowExecutor) Launch(ctx context.Context, flowID string, input map[string]any, ext ExternalContext) (*ExecutionResult, error) {
	def, err := e.flows.Get(flowID)
	if err != nil {
		return nil, err
	}

	exec := NewExecution(uuid.New().String(), flowID, input)
	exec.run.Lock()
	defer exec.run.Unlock()

	ctx = logging.WithExecutionID(logging.WithFlowID(ctx, flowID), exec.ID())
	logging.LogWith(ctx, e.logger).InfoContext(ctx, "launching flow")

	if err := e.fsm.Transition(ctx, exec, schema.ExecutionStatusActive); err != nil {
		return nil, err
	}
	return e.run(ctx, def, exec, def.StartState, "", true, ext)
}

// Resume continues the paused execution named by token. The event is read
// from the EventParameter request parameter.
//
// With no event and no matching transition the current view is rendered again
// under a fresh token. An event no transition accepts is an INVALID_TRANSITION
// error and leaves the execution paused under its current token.
func (e *FlowExecutor) Resume(ctx context.Context, token string, ext ExternalContext) (*ExecutionResult, error) {
	key, err := e.repo.ParseKey(token)
	if err != nil {
		return nil, err
	}
	exec, err := e.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	exec.run.Lock()
	defer exec.run.Unlock()

	// Another request may have consumed the token while we waited.
	if !exec.Matches(key) {
		return nil, LookupError(key)
	}

	ctx = logging.WithExecutionID(logging.WithFlowID(ctx, exec.FlowID()), exec.ID())
	log := logging.LogWith(ctx, e.logger)

	def, err := e.flows.Get(exec.FlowID())
	if err != nil {
		return nil, err
	}
	state := def.State(exec.State())
	if state == nil {
		return nil, e.fail(ctx, exec, schema.NewErrorf(schema.ErrCodeExecution,
			"paused state %q no longer exists in flow %q", exec.State(), def.ID))
	}

	var event string
	if ext != nil {
		event = ext.Parameter(EventParameter)
	}

	tr, err := e.selectTransition(ctx, exec, state, event, ext)
	if err != nil {
		return nil, err
	}
	if tr == nil && event != "" {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"state %q has no transition for event %q", state.ID, event).
			WithState(state.ID).
			WithDetails(map[string]any{"event": event, "flow_id": def.ID})
	}

	log.InfoContext(ctx, "resuming flow", slog.String("state", state.ID), slog.String("event", event))

	if err := e.fsm.Transition(ctx, exec, schema.ExecutionStatusActive); err != nil {
		return nil, err
	}
	if tr == nil {
		// Refresh: render the same view again without re-running on-entry.
		return e.run(ctx, def, exec, state.ID, event, false, ext)
	}
	return e.run(ctx, def, exec, tr.To, event, true, ext)
}

// run processes states starting at stateID until the execution pauses or ends.
func (e *FlowExecutor) run(ctx context.Context, def *schema.FlowDefinition, exec *Execution, stateID, event string, enter bool, ext ExternalContext) (*ExecutionResult, error) {
	for i := 0; ; i++ {
		if i >= e.maxTransitions {
			return nil, e.fail(ctx, exec, schema.NewErrorf(schema.ErrCodeExecution,
				"flow %q exceeded %d transitions in one request", def.ID, e.maxTransitions).WithState(stateID))
		}

		state := def.State(stateID)
		if state == nil {
			return nil, e.fail(ctx, exec, schema.NewErrorf(schema.ErrCodeExecution,
				"state %q is not defined in flow %q", stateID, def.ID))
		}
		exec.setState(state.ID)

		if enter {
			if err := e.enter(ctx, exec, state, ext); err != nil {
				return nil, e.fail(ctx, exec, err)
			}
		}
		enter = true

		rc := NewRequestContext(def, state, exec, ext, event)

		switch state.Type {
		case schema.StateTypeView:
			return e.pause(ctx, exec, state, rc)

		case schema.StateTypeEnd:
			return e.end(ctx, def, exec, state)

		case schema.StateTypeAction:
			outcome, err := e.execute(ctx, state, rc)
			if err != nil {
				return nil, e.fail(ctx, exec, err)
			}
			next, err := e.selectTransition(ctx, exec, state, outcome, ext)
			if err != nil {
				return nil, e.fail(ctx, exec, err)
			}
			if next == nil {
				return nil, e.fail(ctx, exec, schema.NewErrorf(schema.ErrCodeInvalidTransition,
					"action state %q has no transition for outcome %q", state.ID, outcome).
					WithState(state.ID).
					WithDetails(map[string]any{"event": outcome, "flow_id": def.ID}))
			}
			stateID, event = next.To, outcome

		case schema.StateTypeDecision:
			next, err := e.selectTransition(ctx, exec, state, "", ext)
			if err != nil {
				return nil, e.fail(ctx, exec, err)
			}
			if next == nil {
				return nil, e.fail(ctx, exec, schema.NewErrorf(schema.ErrCodeInvalidTransition,
					"decision state %q matched no transition", state.ID).WithState(state.ID))
			}
			stateID = next.To

		default:
			return nil, e.fail(ctx, exec, schema.NewErrorf(schema.ErrCodeExecution,
				"unknown state type %q", state.Type).WithState(state.ID))
		}
	}
}

// enter applies the state's on-entry assignments in key order.
func (e *FlowExecutor) enter(ctx context.Context, exec *Execution, state *schema.StateDefinition, ext ExternalContext) error {
	if len(state.OnEntry) == 0 {
		return nil
	}
	keys := make([]string, 0, len(state.OnEntry))
	for k := range state.OnEntry {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scope := exec.Scope()
	for _, k := range keys {
		val, err := e.ex.Evaluate(ctx, state.OnEntry[k], map[string]any{
			"flow":   scope.AsMap(),
			"params": params(ext),
		})
		if err != nil {
			return withState(err, state.ID)
		}
		scope.Put(k, val)
	}
	return nil
}

// execute runs the state action bound to an action state.
func (e *FlowExecutor) execute(ctx context.Context, state *schema.StateDefinition, rc *RequestContext) (string, error) {
	name := state.Handler
	if name == "" {
		name = e.defaultHandler
	}
	if name == "" {
		return "", schema.NewErrorf(schema.ErrCodeConfiguration,
			"action state %q names no handler and no default is configured", state.ID).WithState(state.ID)
	}
	action, err := e.actions.Get(name)
	if err != nil {
		return "", withState(err, state.ID)
	}
	outcome, err := action.Execute(ctx, rc)
	if err != nil {
		return "", withState(err, state.ID)
	}
	return outcome, nil
}

// pause renders the view, bumps the snapshot and stores the execution.
func (e *FlowExecutor) pause(ctx context.Context, exec *Execution, state *schema.StateDefinition, rc *RequestContext) (*ExecutionResult, error) {
	viewID := state.View
	if viewID == "" {
		viewID = state.ID
	}

	view, err := e.views.ResolveView(ctx, viewID, rc)
	if err != nil {
		return nil, e.fail(ctx, exec, withState(err, state.ID))
	}
	if err := view.Render(ctx, exec.Scope().AsMap(), rc.External()); err != nil {
		return nil, e.fail(ctx, exec, withState(err, state.ID))
	}

	if err := e.fsm.Transition(ctx, exec, schema.ExecutionStatusPaused); err != nil {
		return nil, e.fail(ctx, exec, err)
	}
	exec.nextSnapshot()
	if err := e.repo.Put(ctx, exec); err != nil {
		return nil, e.fail(ctx, exec, err)
	}

	key := exec.Key()
	logging.LogWith(ctx, e.logger).InfoContext(ctx, "flow paused",
		slog.String("state", state.ID), slog.String("view", viewID))

	return &ExecutionResult{
		PausedKey:   key,
		FlowID:      exec.FlowID(),
		ExecutionID: exec.ID(),
		State:       state.ID,
	}, nil
}

// end computes the output, marks the execution ended and forgets it.
func (e *FlowExecutor) end(ctx context.Context, def *schema.FlowDefinition, exec *Execution, state *schema.StateDefinition) (*ExecutionResult, error) {
	filter := state.Output
	if filter == "" {
		filter = def.Output
	}

	var output any
	if filter != "" {
		var err error
		output, err = e.jq.Evaluate(ctx, filter, exec.Scope().AsMap())
		if err != nil {
			return nil, e.fail(ctx, exec, withState(err, state.ID))
		}
	}
	exec.setOutput(output)

	if err := e.fsm.Transition(ctx, exec, schema.ExecutionStatusEnded); err != nil {
		return nil, e.fail(ctx, exec, err)
	}
	if err := e.repo.Remove(ctx, exec); err != nil {
		return nil, err
	}

	logging.LogWith(ctx, e.logger).InfoContext(ctx, "flow ended", slog.String("state", state.ID))

	return &ExecutionResult{
		Ended:       true,
		FlowID:      exec.FlowID(),
		ExecutionID: exec.ID(),
		State:       state.ID,
		Output:      output,
	}, nil
}

// fail marks the execution failed, removes it from the repository and
// returns cause.
func (e *FlowExecutor) fail(ctx context.Context, exec *Execution, cause error) error {
	log := logging.LogWith(ctx, e.logger)
	if err := e.fsm.Transition(ctx, exec, schema.ExecutionStatusFailed); err != nil {
		log.WarnContext(ctx, "could not mark execution failed", slog.String("error", err.Error()))
	}
	if err := e.repo.Remove(ctx, exec); err != nil {
		log.WarnContext(ctx, "could not remove failed execution", slog.String("error", err.Error()))
	}
	log.ErrorContext(ctx, "flow failed", slog.String("state", exec.State()), slog.String("error", cause.Error()))
	return cause
}

// selectTransition returns the first transition of state whose event matches
// and whose guard holds, or nil.
func (e *FlowExecutor) selectTransition(ctx context.Context, exec *Execution, state *schema.StateDefinition, event string, ext ExternalContext) (*schema.Transition, error) {
	var data map[string]any
	for i := range state.Transitions {
		tr := &state.Transitions[i]
		if tr.On != schema.WildcardEvent && tr.On != event {
			continue
		}
		if tr.When == "" {
			return tr, nil
		}
		if data == nil {
			data = map[string]any{
				"flow":   exec.Scope().AsMap(),
				"params": params(ext),
				"event":  event,
			}
		}
		ok, err := e.cel.EvaluateBool(ctx, tr.When, data)
		if err != nil {
			return nil, withState(err, state.ID)
		}
		if ok {
			return tr, nil
		}
	}
	return nil, nil
}

// withState tags a FlowError with the state it came from, wrapping other errors.
func withState(err error, stateID string) error {
	var fe *schema.FlowError
	if errors.As(err, &fe) {
		if fe.State == "" {
			fe.State = stateID
		}
		return err
	}
	return schema.NewError(schema.ErrCodeExecution, err.Error()).WithState(stateID).WithCause(err)
}

var _ Executor = (*FlowExecutor)(nil)
