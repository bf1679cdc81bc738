package bridge

import (
	"context"

	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/internal/expressions"
	"github.com/rendis/flowbridge/pkg/schema"
)

// DispatchActionName is the state action name DispatchAction registers under.
const DispatchActionName = "dispatch"

// DispatchAction runs a flow action state by dispatching back into the
// invocation that started the flow. The state's namespace, action and
// method attributes choose the target and may contain ${expr} markers
// evaluated against the value stack. The nested invocation shares the
// parent's stack and parameters, and carries the in-request flow context
// under RequestContextKey. Its result code is the flow event.
type DispatchAction struct {
	interp *expressions.Interpolator
}

// NewDispatchAction creates a DispatchAction. A nil interpolator gets a
// private one.
func NewDispatchAction(interp *expressions.Interpolator) *DispatchAction {
	if interp == nil {
		interp = expressions.NewInterpolator(nil)
	}
	return &DispatchAction{interp: interp}
}

func (a *DispatchAction) Execute(ctx context.Context, rc *engine.RequestContext) (string, error) {
	inv := InvocationFrom(rc.External())
	if inv == nil {
		return "", schema.NewError(schema.ErrCodeConfiguration,
			"dispatch state runs outside an action invocation").WithState(rc.CurrentState().ID)
	}

	attrs := rc.Attributes()
	namespace := attrs["namespace"]
	if namespace == "" {
		namespace = inv.Proxy.Namespace
	}
	name := attrs["action"]
	if name == "" {
		name = rc.CurrentState().ID
	}
	method := attrs["method"]

	data := inv.Stack.Snapshot()
	if _, ok := data["flow"]; !ok {
		data["flow"] = rc.FlowScope().AsMap()
	}

	var err error
	if namespace, err = a.interp.Translate(ctx, namespace, data); err != nil {
		return "", err
	}
	if name, err = a.interp.Translate(ctx, name, data); err != nil {
		return "", err
	}
	if method != "" {
		if method, err = a.interp.Translate(ctx, method, data); err != nil {
			return "", err
		}
	}

	return inv.Dispatcher().Dispatch(ctx, dispatch.ProxyRequest{
		Namespace: namespace,
		Name:      name,
		Method:    method,
		Stack:     inv.Stack,
		Params:    inv.Params,
		Session:   inv.Session,
		Request:   inv.Request,
		Response:  inv.Response,
		Extra:     map[string]any{RequestContextKey: rc},
	})
}

var _ engine.StateAction = (*DispatchAction)(nil)
