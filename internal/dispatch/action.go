package dispatch

import "context"

// Action is the unit of work an invocation executes. The returned code picks
// the result.
type Action interface {
	Execute(ctx context.Context, inv *Invocation) (string, error)
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, inv *Invocation) (string, error)

func (f ActionFunc) Execute(ctx context.Context, inv *Invocation) (string, error) {
	return f(ctx, inv)
}

// MethodAction is implemented by actions exposing named methods besides
// Execute ("save", "cancel" and the like).
type MethodAction interface {
	Action
	Invoke(ctx context.Context, inv *Invocation, method string) (string, error)
}

// Interceptor wraps an invocation. Implementations call inv.Invoke to
// continue the chain, or return a code to short-circuit it.
type Interceptor interface {
	Intercept(ctx context.Context, inv *Invocation) (string, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, inv *Invocation) (string, error)

func (f InterceptorFunc) Intercept(ctx context.Context, inv *Invocation) (string, error) {
	return f(ctx, inv)
}

// PreResultListener runs after the action returns and before its result
// is dispatched.
type PreResultListener interface {
	BeforeResult(ctx context.Context, inv *Invocation, resultCode string) error
}

// PreResultListenerFunc adapts a function to PreResultListener.
type PreResultListenerFunc func(ctx context.Context, inv *Invocation, resultCode string) error

func (f PreResultListenerFunc) BeforeResult(ctx context.Context, inv *Invocation, resultCode string) error {
	return f(ctx, inv, resultCode)
}

// SessionMap is the durable per-client store visible to an invocation.
type SessionMap interface {
	Get(key string) (any, bool)
	Put(key string, value any)
}
