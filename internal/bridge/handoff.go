package bridge

import (
	"context"

	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/pkg/schema"
)

// LaunchMethod forces a fresh launch, discarding any resume token.
const LaunchMethod = schema.OperationLaunch

// FlowAction hands a request over to the flow executor. It launches FlowID
// when the value stack holds no resume token and resumes otherwise. The
// successor token is left on the stack under TokenKey for the token
// interceptor to persist, and the view picked by the trampoline becomes the
// result code.
type FlowAction struct {
	FlowID  string
	Gateway *Gateway

	// EndView is returned when the flow ends without selecting a view.
	EndView string
}

func (a *FlowAction) Execute(ctx context.Context, inv *dispatch.Invocation) (string, error) {
	env := NewEnvironment(inv)
	defer env.Release()

	var (
		res *HandoffResult
		err error
	)
	if token := inv.Stack.FindString(TokenKey); token == "" {
		res, err = a.Gateway.Launch(ctx, a.FlowID, env)
	} else {
		res, err = a.Gateway.Resume(ctx, token, env)
	}
	if err != nil {
		return "", err
	}

	if res.Ended {
		inv.Stack.Delete(TokenKey)
		inv.Stack.Set(OutputKey, res.Output)
		if res.SelectedView == "" {
			return a.EndView, nil
		}
	} else {
		inv.Stack.Set(TokenKey, res.SuccessorToken)
	}
	return res.SelectedView, nil
}

// Invoke supports LaunchMethod, which abandons the current token and starts
// the flow over.
func (a *FlowAction) Invoke(ctx context.Context, inv *dispatch.Invocation, method string) (string, error) {
	if method != LaunchMethod {
		return "", schema.NewErrorf(schema.ErrCodeConfiguration, "flow action has no method %q", method)
	}
	inv.Stack.Delete(TokenKey)
	return a.Execute(ctx, inv)
}

var _ dispatch.MethodAction = (*FlowAction)(nil)
