package dispatch

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rendis/flowbridge/pkg/schema"
)

// Proxy names the action an invocation runs.
type Proxy struct {
	Namespace  string
	ActionName string
	Method     string
}

// Invocation is one run of an action through its interceptor chain.
type Invocation struct {
	Proxy    Proxy
	Action   Action
	Stack    *ValueStack
	Params   url.Values
	Session  SessionMap // nil when the request carries no session
	Request  *http.Request
	Response http.ResponseWriter
	Extra    map[string]any

	dispatcher    *Dispatcher
	config        *ActionConfig
	index         int
	listeners     []PreResultListener
	executed      bool
	resultCode    string
	executeResult bool
}

// Dispatcher returns the dispatcher that created the invocation.
func (inv *Invocation) Dispatcher() *Dispatcher { return inv.dispatcher }

// Config returns the action configuration.
func (inv *Invocation) Config() *ActionConfig { return inv.config }

// Executed reports whether the action ran and its listeners fired.
func (inv *Invocation) Executed() bool { return inv.executed }

// ResultCode returns the code of the executed action, "" before execution.
func (inv *Invocation) ResultCode() string { return inv.resultCode }

// Parameter returns the first value of a request parameter.
func (inv *Invocation) Parameter(name string) string {
	return inv.Params.Get(name)
}

// AddPreResultListener registers l to run once the action has returned.
func (inv *Invocation) AddPreResultListener(l PreResultListener) {
	inv.listeners = append(inv.listeners, l)
}

// Invoke runs the next interceptor, or the action once the chain is
// exhausted. The first call to finish the action fires the pre-result
// listeners and, when enabled, dispatches the result.
func (inv *Invocation) Invoke(ctx context.Context) (string, error) {
	if inv.executed {
		return "", schema.NewErrorf(schema.ErrCodeConfiguration,
			"action %s already executed", inv.Proxy.ActionName)
	}

	var (
		code string
		err  error
	)
	if inv.index < len(inv.config.Interceptors) {
		ic := inv.config.Interceptors[inv.index]
		inv.index++
		code, err = ic.Intercept(ctx, inv)
	} else {
		code, err = inv.invokeAction(ctx)
	}
	if err != nil {
		return "", err
	}

	if !inv.executed {
		inv.executed = true
		inv.resultCode = code
		for _, l := range inv.listeners {
			if err := l.BeforeResult(ctx, inv, code); err != nil {
				return "", err
			}
		}
		if inv.executeResult {
			if err := inv.config.executeResult(ctx, inv, code); err != nil {
				return "", err
			}
		}
	}
	return code, nil
}

func (inv *Invocation) invokeAction(ctx context.Context) (string, error) {
	method := inv.Proxy.Method
	if method == "" || method == "execute" {
		return inv.Action.Execute(ctx, inv)
	}
	ma, ok := inv.Action.(MethodAction)
	if !ok {
		return "", schema.NewErrorf(schema.ErrCodeConfiguration,
			"action %s has no method %q", inv.Proxy.ActionName, method)
	}
	return ma.Invoke(ctx, inv, method)
}
