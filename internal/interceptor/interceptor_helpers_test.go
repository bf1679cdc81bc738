package interceptor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rendis/flowbridge/internal/bridge"
	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/internal/session"
	"github.com/rendis/flowbridge/internal/validation"
	"github.com/rendis/flowbridge/pkg/schema"
)

type fixture struct {
	bridge     *bridge.ScopeBridge
	gateway    *bridge.Gateway
	executor   *engine.FlowExecutor
	dispatcher *dispatch.Dispatcher
	session    *session.Session
}

func wizardFlow() *schema.FlowDefinition {
	return &schema.FlowDefinition{
		ID:         "wizard",
		StartState: "form",
		States: []schema.StateDefinition{
			{
				ID:      "form",
				Type:    schema.StateTypeView,
				OnEntry: map[string]string{"name": `flow.name ?? "anon"`, "step": "(flow.step ?? 0) + 1"},
				Transitions: []schema.Transition{
					{On: "next", To: "form"},
					{On: "done", To: "end"},
				},
			},
			{ID: "end", Type: schema.StateTypeEnd},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v, err := validation.NewFlowValidator(nil)
	require.NoError(t, err)
	flows := engine.NewFlowRegistry(v)
	require.NoError(t, flows.Register(wizardFlow()))

	exec, err := engine.NewFlowExecutor(engine.ExecutorConfig{
		Flows:        flows,
		ViewResolver: bridge.ViewTrampoline{},
	})
	require.NoError(t, err)

	registry := bridge.NewMapRegistry()
	require.NoError(t, registry.Bind(bridge.DefaultEngineBinding, exec))
	cfg := bridge.NewConfiguration()

	f := &fixture{
		bridge:     bridge.NewScopeBridge(cfg, registry, nil),
		gateway:    bridge.NewGateway(cfg, registry),
		executor:   exec,
		dispatcher: dispatch.NewDispatcher(),
		session:    session.New("s1"),
	}
	require.NoError(t, f.dispatcher.Register(dispatch.ActionConfig{
		Namespace: "/flow",
		Name:      "wizard",
		Factory: func() dispatch.Action {
			return &bridge.FlowAction{FlowID: "wizard", Gateway: f.gateway, EndView: "ended"}
		},
		Interceptors: []dispatch.Interceptor{NewTokenInterceptor(f.bridge, nil)},
	}))
	return f
}

// register adds an action under the root namespace.
func (f *fixture) register(t *testing.T, name string, action dispatch.Action, ics ...dispatch.Interceptor) {
	t.Helper()
	require.NoError(t, f.dispatcher.Register(dispatch.ActionConfig{
		Name:         name,
		Factory:      func() dispatch.Action { return action },
		Interceptors: ics,
	}))
}

func (f *fixture) dispatch(t *testing.T, namespace, name string, stack *dispatch.ValueStack, params map[string][]string) (string, error) {
	t.Helper()
	if stack == nil {
		stack = dispatch.NewValueStack()
	}
	return f.dispatcher.Dispatch(context.Background(), dispatch.ProxyRequest{
		Namespace: namespace,
		Name:      name,
		Stack:     stack,
		Params:    params,
		Session:   f.session,
	})
}

func (f *fixture) token() string {
	v, _ := f.session.Get(bridge.DefaultTokenSessionKey)
	s, _ := v.(string)
	return s
}

// scope returns a copy of the scope of the execution named by the session token.
func (f *fixture) scope(t *testing.T) map[string]any {
	t.Helper()
	inv, err := f.dispatcher.NewInvocation(dispatch.ProxyRequest{Namespace: "/flow", Name: "wizard", Session: f.session})
	require.NoError(t, err)
	s, err := f.bridge.Scope(context.Background(), inv)
	require.NoError(t, err)
	return s.AsMap()
}
