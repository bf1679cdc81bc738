// Package interceptor holds the dispatch interceptors that keep the resume
// token and flow scope in step with the value stack.
package interceptor

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/rendis/flowbridge/internal/bridge"
	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/logging"
)

// TokenInterceptor wraps a FlowAction. Before the action it puts the resume
// token and copies of the flow scope entries onto the value stack. Once the
// action has returned, and before its result is rendered, it writes the
// token left on the stack back to the session, and copies entries the
// action changed on the stack into the scope the token now names.
type TokenInterceptor struct {
	bridge *bridge.ScopeBridge
	logger *slog.Logger
}

// NewTokenInterceptor creates a TokenInterceptor. A nil logger discards.
func NewTokenInterceptor(b *bridge.ScopeBridge, logger *slog.Logger) *TokenInterceptor {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TokenInterceptor{bridge: b, logger: logger}
}

// copiedIn remembers what the pre-hook put on the stack.
type copiedIn struct {
	scope  *bridge.FlowScope
	values map[string]any
}

func (t *TokenInterceptor) Intercept(ctx context.Context, inv *dispatch.Invocation) (string, error) {
	tokens := t.bridge.Tokens()

	var in *copiedIn
	if inv.Proxy.Method != bridge.LaunchMethod {
		if tok := tokens.Find(inv); tok != "" {
			inv.Stack.Set(bridge.TokenKey, tok)
		}
		if t.bridge.HasScope(inv) {
			scope, err := t.bridge.Scope(ctx, inv)
			if err != nil {
				return "", err
			}
			in = &copiedIn{scope: scope, values: make(map[string]any)}
			for _, k := range scope.Keys() {
				if k == bridge.TokenKey {
					continue
				}
				if v, ok := scope.GetCopy(k); ok && v != nil {
					inv.Stack.Set(k, v)
					in.values[k], _ = scope.GetCopy(k)
				}
			}
		}
	}

	inv.AddPreResultListener(dispatch.PreResultListenerFunc(func(ctx context.Context, inv *dispatch.Invocation, _ string) error {
		tok := inv.Stack.FindString(bridge.TokenKey)
		if err := t.writeBack(ctx, inv, in, tok); err != nil {
			return err
		}
		logging.LogWith(ctx, t.logger).Debug("storing resume token",
			slog.String("action", inv.Proxy.ActionName),
			slog.Bool("cleared", tok == ""),
		)
		return tokens.Store(inv, tok)
	}))

	return inv.Invoke(ctx)
}

// writeBack copies stack entries that differ from what was copied in. The
// target is the scope of the execution token names, since the action may
// have moved the flow on. Nil entries are skipped, as are keys the flow
// itself changed meanwhile. An ended flow has nothing to write to.
func (t *TokenInterceptor) writeBack(ctx context.Context, inv *dispatch.Invocation, in *copiedIn, token string) error {
	if in == nil {
		return nil
	}
	changed := make(map[string]any)
	for k, before := range in.values {
		after := inv.Stack.Find(k)
		if after == nil || reflect.DeepEqual(after, before) {
			continue
		}
		changed[k] = after
	}
	if len(changed) == 0 {
		return nil
	}

	target := in.scope
	if target.Detached() {
		if token == "" {
			return nil
		}
		var err error
		if target, err = t.bridge.ScopeForToken(ctx, inv, token); err != nil {
			return err
		}
	}
	for k, v := range changed {
		if cur, _ := target.GetCopy(k); !reflect.DeepEqual(cur, in.values[k]) {
			continue
		}
		target.Put(k, v)
	}
	return target.Commit(ctx)
}

var _ dispatch.Interceptor = (*TokenInterceptor)(nil)
