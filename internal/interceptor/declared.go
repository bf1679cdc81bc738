package interceptor

import (
	"context"

	"github.com/rendis/flowbridge/internal/bridge"
	"github.com/rendis/flowbridge/internal/dispatch"
)

// ScopeDeclarer is implemented by actions that declare which scope keys
// they read and which they write.
type ScopeDeclarer interface {
	// InboundKeys are copied from the scope to the value stack before the action.
	InboundKeys() []string
	// OutboundKeys are copied from the value stack to the scope afterwards.
	OutboundKeys() []string
}

// DeclaredInterceptor syncs the keys an action declares through
// ScopeDeclarer. Actions that declare nothing run untouched, as do all
// actions when there is no flow scope.
type DeclaredInterceptor struct {
	bridge *bridge.ScopeBridge
}

// NewDeclaredInterceptor creates a DeclaredInterceptor.
func NewDeclaredInterceptor(b *bridge.ScopeBridge) *DeclaredInterceptor {
	return &DeclaredInterceptor{bridge: b}
}

func (d *DeclaredInterceptor) Intercept(ctx context.Context, inv *dispatch.Invocation) (string, error) {
	decl, ok := inv.Action.(ScopeDeclarer)
	if !ok || !d.bridge.HasScope(inv) {
		return inv.Invoke(ctx)
	}
	scope, err := d.bridge.Scope(ctx, inv)
	if err != nil {
		return "", err
	}

	pullIn(scope, inv.Stack, decl.InboundKeys())
	inv.AddPreResultListener(dispatch.PreResultListenerFunc(func(ctx context.Context, inv *dispatch.Invocation, _ string) error {
		return pushOut(ctx, scope, inv.Stack, decl.OutboundKeys())
	}))
	return inv.Invoke(ctx)
}

var _ dispatch.Interceptor = (*DeclaredInterceptor)(nil)
