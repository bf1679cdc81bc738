package bridge

import (
	"context"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/internal/session"
	"github.com/rendis/flowbridge/internal/validation"
	"github.com/rendis/flowbridge/pkg/schema"
)

// countingRepo records repository traffic.
type countingRepo struct {
	engine.ExecutionRepository
	gets atomic.Int32
	puts atomic.Int32
}

func (r *countingRepo) Get(ctx context.Context, key engine.ExecutionKey) (*engine.Execution, error) {
	r.gets.Add(1)
	return r.ExecutionRepository.Get(ctx, key)
}

func (r *countingRepo) Put(ctx context.Context, exec *engine.Execution) error {
	r.puts.Add(1)
	return r.ExecutionRepository.Put(ctx, exec)
}

func checkoutFlow() *schema.FlowDefinition {
	return &schema.FlowDefinition{
		ID:         "checkout",
		StartState: "step1",
		Output:     "{items: (.cart | length)}",
		States: []schema.StateDefinition{
			{
				ID:      "step1",
				Type:    schema.StateTypeView,
				OnEntry: map[string]string{"cart": "flow.cart ?? []", "total": "flow.total ?? 0", "mode": `"fast"`},
				Transitions: []schema.Transition{
					{On: "add", To: "addItem"},
					{On: "review", To: "review"},
					{On: "finish", To: "done"},
				},
			},
			{
				ID:          "addItem",
				Type:        schema.StateTypeAction,
				Handler:     DispatchActionName,
				Transitions: []schema.Transition{{On: "success", To: "step1"}},
			},
			{
				ID:          "review",
				Type:        schema.StateTypeAction,
				Handler:     DispatchActionName,
				Namespace:   "/shop",
				Action:      "${flow.mode}Review",
				Transitions: []schema.Transition{{On: "ok", To: "step2"}},
			},
			{
				ID:          "step2",
				Type:        schema.StateTypeView,
				Transitions: []schema.Transition{{On: "finish", To: "done"}},
			},
			{ID: "done", Type: schema.StateTypeEnd},
		},
	}
}

// harness wires a flow executor, the bridge and a dispatcher the way the
// serve command does.
type harness struct {
	repo       *countingRepo
	executor   *engine.FlowExecutor
	registry   *MapRegistry
	bridge     *ScopeBridge
	gateway    *Gateway
	dispatcher *dispatch.Dispatcher
	session    *session.Session
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	v, err := validation.NewFlowValidator(nil)
	require.NoError(t, err)
	flows := engine.NewFlowRegistry(v)
	require.NoError(t, flows.Register(checkoutFlow()))

	repo := &countingRepo{ExecutionRepository: engine.NewMemoryRepository()}
	actions := engine.NewActionRegistry()
	require.NoError(t, actions.Register(DispatchActionName, NewDispatchAction(nil)))

	exec, err := engine.NewFlowExecutor(engine.ExecutorConfig{
		Flows:        flows,
		Repository:   repo,
		Actions:      actions,
		ViewResolver: ViewTrampoline{},
	})
	require.NoError(t, err)

	registry := NewMapRegistry()
	require.NoError(t, registry.Bind(DefaultEngineBinding, exec))

	cfg := NewConfiguration(opts...)
	h := &harness{
		repo:       repo,
		executor:   exec,
		registry:   registry,
		bridge:     NewScopeBridge(cfg, registry, nil),
		gateway:    NewGateway(cfg, registry),
		dispatcher: dispatch.NewDispatcher(),
		session:    session.New("s1"),
	}

	require.NoError(t, h.dispatcher.Register(dispatch.ActionConfig{
		Namespace: "/flow",
		Name:      "checkout",
		Factory: func() dispatch.Action {
			return &FlowAction{FlowID: "checkout", Gateway: h.gateway, EndView: "ended"}
		},
		Interceptors: []dispatch.Interceptor{syncToken(h.bridge)},
	}))
	require.NoError(t, h.dispatcher.Register(dispatch.ActionConfig{
		Namespace: "/flow",
		Name:      "addItem",
		Factory: func() dispatch.Action {
			return dispatch.ActionFunc(func(ctx context.Context, inv *dispatch.Invocation) (string, error) {
				scope, err := h.bridge.Scope(ctx, inv)
				if err != nil {
					return "", err
				}
				cart, _ := scope.Get("cart")
				items, _ := cart.([]any)
				scope.Put("cart", append(items, inv.Parameter("item")))
				return "success", nil
			})
		},
	}))
	require.NoError(t, h.dispatcher.Register(dispatch.ActionConfig{
		Namespace: "/shop",
		Name:      "fastReview",
		Factory: func() dispatch.Action {
			return dispatch.ActionFunc(func(_ context.Context, inv *dispatch.Invocation) (string, error) {
				inv.Stack.Set("reviewed", true)
				return "ok", nil
			})
		},
	}))
	return h
}

// syncToken is a minimal stand-in for the token interceptor, which lives in
// a package importing this one.
func syncToken(b *ScopeBridge) dispatch.Interceptor {
	return dispatch.InterceptorFunc(func(ctx context.Context, inv *dispatch.Invocation) (string, error) {
		tokens := b.Tokens()
		if tok := tokens.Find(inv); tok != "" {
			inv.Stack.Set(TokenKey, tok)
		}
		inv.AddPreResultListener(dispatch.PreResultListenerFunc(func(_ context.Context, inv *dispatch.Invocation, _ string) error {
			return tokens.Store(inv, inv.Stack.FindString(TokenKey))
		}))
		return inv.Invoke(ctx)
	})
}

// request dispatches the checkout flow action with params.
func (h *harness) request(t *testing.T, kv ...string) (string, *dispatch.ValueStack, error) {
	t.Helper()
	params := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		params.Set(kv[i], kv[i+1])
	}
	stack := dispatch.NewValueStack()
	code, err := h.dispatcher.Dispatch(context.Background(), dispatch.ProxyRequest{
		Namespace: "/flow",
		Name:      "checkout",
		Stack:     stack,
		Params:    params,
		Session:   h.session,
	})
	return code, stack, err
}

func (h *harness) sessionToken() string {
	return NewTokenStore(DefaultTokenSessionKey).Load(&dispatch.Invocation{Session: h.session})
}

// invocation builds a bare invocation of the checkout action.
func (h *harness) invocation(t *testing.T, kv ...string) *dispatch.Invocation {
	t.Helper()
	params := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		params.Set(kv[i], kv[i+1])
	}
	inv, err := h.dispatcher.NewInvocation(dispatch.ProxyRequest{
		Namespace: "/flow",
		Name:      "checkout",
		Params:    params,
		Session:   h.session,
	})
	require.NoError(t, err)
	return inv
}
