package bridge

import (
	"context"
	"log/slog"

	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/internal/logging"
	"github.com/rendis/flowbridge/pkg/schema"
)

// HandoffResult is the outcome of one launch or resume.
type HandoffResult struct {
	Ended          bool
	SuccessorToken string // "" once ended
	SelectedView   string // "" when no view was resolved
	FlowID         string
	Output         any
}

// HandoffObserver is notified after every launch and resume. op is
// schema.OperationLaunch or schema.OperationResume.
type HandoffObserver interface {
	ObserveHandoff(op, flowID string, result *HandoffResult, err error)
}

// Gateway launches and resumes flow executions through the executor bound
// in the engine registry. The binding is resolved on every call.
type Gateway struct {
	registry  EngineRegistry
	binding   string
	observers []HandoffObserver
	logger    *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithObserver adds a handoff observer. Observers run in the order added.
func WithObserver(o HandoffObserver) GatewayOption {
	return func(g *Gateway) { g.observers = append(g.observers, o) }
}

// WithGatewayLogger sets the gateway logger.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway creates a Gateway resolving cfg.EngineBinding() in registry.
func NewGateway(cfg Configuration, registry EngineRegistry, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		registry: registry,
		binding:  cfg.EngineBinding(),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Launch starts flowID under env.
func (g *Gateway) Launch(ctx context.Context, flowID string, env *Environment) (*HandoffResult, error) {
	res, err := g.call(ctx, env, func(ctx context.Context, exec engine.Executor) (*engine.ExecutionResult, error) {
		return exec.Launch(ctx, flowID, nil, env)
	})
	g.observe(schema.OperationLaunch, flowID, res, err)
	return res, err
}

// Resume continues the execution named by token under env.
func (g *Gateway) Resume(ctx context.Context, token string, env *Environment) (*HandoffResult, error) {
	res, err := g.call(ctx, env, func(ctx context.Context, exec engine.Executor) (*engine.ExecutionResult, error) {
		return exec.Resume(ctx, token, env)
	})
	flowID := ""
	if res != nil {
		flowID = res.FlowID
	}
	g.observe(schema.OperationResume, flowID, res, err)
	return res, err
}

func (g *Gateway) call(ctx context.Context, env *Environment, fn func(context.Context, engine.Executor) (*engine.ExecutionResult, error)) (*HandoffResult, error) {
	exec, err := g.registry.Resolve(g.binding)
	if err != nil {
		return nil, err
	}

	out, err := fn(engine.WithExternalContext(ctx, env), exec)
	if err != nil {
		return nil, err
	}

	res := &HandoffResult{
		Ended:        out.Ended,
		SelectedView: env.SelectedView(),
		FlowID:       out.FlowID,
		Output:       out.Output,
	}
	if !out.Ended {
		res.SuccessorToken = out.PausedKey
	}
	logging.LogWith(ctx, g.logger).Debug("handoff",
		slog.String("flow_id", out.FlowID),
		slog.Bool("ended", res.Ended),
		slog.String("view", res.SelectedView),
	)
	return res, nil
}

func (g *Gateway) observe(op, flowID string, res *HandoffResult, err error) {
	for _, o := range g.observers {
		o.ObserveHandoff(op, flowID, res, err)
	}
}
