package bridge

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/internal/logging"
	"github.com/rendis/flowbridge/pkg/schema"
)

// FlowScope is a flow execution's scope as seen from an invocation.
// Detached scopes were found through the repository and need Commit for
// their changes to be persisted; in-request scopes are persisted by the
// executor itself.
type FlowScope struct {
	*engine.Scope

	exec *engine.Execution
	key  engine.ExecutionKey
	repo engine.ExecutionRepository
}

// Detached reports whether the scope came from a repository lookup.
func (s *FlowScope) Detached() bool { return s.repo != nil }

// Execution returns the execution owning the scope.
func (s *FlowScope) Execution() *engine.Execution { return s.exec }

// Commit stores a detached execution after its scope was changed. It does
// nothing for in-request scopes, or when the execution has moved past the
// token it was found with.
func (s *FlowScope) Commit(ctx context.Context) error {
	if s.repo == nil || !s.exec.Matches(s.key) {
		return nil
	}
	s.exec.Touch()
	return s.repo.Put(ctx, s.exec)
}

// ScopeBridge gives invocations access to the scope of the flow execution
// they belong to.
type ScopeBridge struct {
	cfg      Configuration
	registry EngineRegistry
	tokens   TokenStore
	logger   *slog.Logger

	detached atomic.Int32
}

// NewScopeBridge creates a ScopeBridge. A nil logger discards.
func NewScopeBridge(cfg Configuration, registry EngineRegistry, logger *slog.Logger) *ScopeBridge {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ScopeBridge{
		cfg:      cfg,
		registry: registry,
		tokens:   NewTokenStore(cfg.TokenSessionKey()),
		logger:   logger,
	}
}

// Configuration returns the bridge configuration.
func (b *ScopeBridge) Configuration() Configuration { return b.cfg }

// Tokens returns the token store bound to the configured session key.
func (b *ScopeBridge) Tokens() TokenStore { return b.tokens }

// RequestContext returns the in-request flow context carried by inv, or nil
// when inv is not running inside the flow executor.
func (b *ScopeBridge) RequestContext(inv *dispatch.Invocation) *engine.RequestContext {
	rc, _ := inv.Extra[RequestContextKey].(*engine.RequestContext)
	return rc
}

// HasScope reports whether inv runs inside a flow execution or carries a
// resume token.
func (b *ScopeBridge) HasScope(inv *dispatch.Invocation) bool {
	return b.RequestContext(inv) != nil || b.tokens.Find(inv) != ""
}

// Scope returns the flow scope for inv. The in-request context wins when
// present. Otherwise the token is looked up in the executor's repository
// under a transient environment released before returning. A token that
// names no paused execution is a LOOKUP_ERROR.
func (b *ScopeBridge) Scope(ctx context.Context, inv *dispatch.Invocation) (*FlowScope, error) {
	if rc := b.RequestContext(inv); rc != nil {
		return &FlowScope{Scope: rc.FlowScope(), exec: rc.Execution()}, nil
	}

	token := b.tokens.Find(inv)
	if token == "" {
		return nil, schema.NewErrorf(schema.ErrCodeLookup,
			"action %s has neither a flow context nor a resume token", inv.Proxy.ActionName)
	}
	return b.lookup(ctx, inv, token)
}

// ScopeForToken returns the detached scope of the paused execution token
// names, ignoring any in-request context.
func (b *ScopeBridge) ScopeForToken(ctx context.Context, inv *dispatch.Invocation, token string) (*FlowScope, error) {
	return b.lookup(ctx, inv, token)
}

func (b *ScopeBridge) lookup(ctx context.Context, inv *dispatch.Invocation, token string) (*FlowScope, error) {
	exec, err := b.registry.Resolve(b.cfg.EngineBinding())
	if err != nil {
		return nil, err
	}

	env := NewEnvironment(inv)
	b.detached.Add(1)
	env.onRelease = func() { b.detached.Add(-1) }
	defer env.Release()
	ctx = engine.WithExternalContext(ctx, env)

	repo := exec.Repository()
	key, err := repo.ParseKey(token)
	if err != nil {
		return nil, err
	}
	execution, err := repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	logging.LogWith(ctx, b.logger).Debug("detached scope lookup",
		slog.String("token", token),
		slog.String("flow_id", execution.FlowID()),
	)
	return &FlowScope{Scope: execution.Scope(), exec: execution, key: key, repo: repo}, nil
}

// DetachedInFlight returns the number of transient environments currently
// installed. It is zero whenever no Scope call is running.
func (b *ScopeBridge) DetachedInFlight() int { return int(b.detached.Load()) }
