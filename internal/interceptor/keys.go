package interceptor

import (
	"context"

	"github.com/rendis/flowbridge/internal/bridge"
	"github.com/rendis/flowbridge/internal/dispatch"
)

// KeysInterceptor syncs a fixed list of scope keys with the value stack:
// scope to stack before the action, stack to scope before the result.
// Nil values are never copied in either direction. Without a flow scope the
// action runs untouched.
type KeysInterceptor struct {
	bridge *bridge.ScopeBridge
	keys   []string
}

// NewKeysInterceptor creates a KeysInterceptor for keys.
func NewKeysInterceptor(b *bridge.ScopeBridge, keys []string) *KeysInterceptor {
	return &KeysInterceptor{bridge: b, keys: append([]string(nil), keys...)}
}

// ParseKeysInterceptor creates a KeysInterceptor from a comma separated list.
func ParseKeysInterceptor(b *bridge.ScopeBridge, raw string) *KeysInterceptor {
	return NewKeysInterceptor(b, bridge.ParseKeys(raw))
}

// Keys returns the synced keys.
func (k *KeysInterceptor) Keys() []string { return append([]string(nil), k.keys...) }

func (k *KeysInterceptor) Intercept(ctx context.Context, inv *dispatch.Invocation) (string, error) {
	if len(k.keys) == 0 || !k.bridge.HasScope(inv) {
		return inv.Invoke(ctx)
	}
	scope, err := k.bridge.Scope(ctx, inv)
	if err != nil {
		return "", err
	}

	pullIn(scope, inv.Stack, k.keys)
	inv.AddPreResultListener(dispatch.PreResultListenerFunc(func(ctx context.Context, inv *dispatch.Invocation, _ string) error {
		return pushOut(ctx, scope, inv.Stack, k.keys)
	}))
	return inv.Invoke(ctx)
}

func pullIn(scope *bridge.FlowScope, stack *dispatch.ValueStack, keys []string) {
	for _, key := range keys {
		if v, ok := scope.GetCopy(key); ok && v != nil {
			stack.Set(key, v)
		}
	}
}

func pushOut(ctx context.Context, scope *bridge.FlowScope, stack *dispatch.ValueStack, keys []string) error {
	changed := false
	for _, key := range keys {
		if v := stack.Find(key); v != nil {
			scope.Put(key, v)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return scope.Commit(ctx)
}

var _ dispatch.Interceptor = (*KeysInterceptor)(nil)
