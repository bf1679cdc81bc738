package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/flowbridge/internal/bridge"
	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/internal/expressions"
	"github.com/rendis/flowbridge/internal/interceptor"
	"github.com/rendis/flowbridge/internal/logging"
	"github.com/rendis/flowbridge/internal/metrics"
	"github.com/rendis/flowbridge/internal/scheduler"
	"github.com/rendis/flowbridge/internal/session"
	"github.com/rendis/flowbridge/internal/store"
	"github.com/rendis/flowbridge/internal/streaming"
	"github.com/rendis/flowbridge/internal/validation"
	"github.com/rendis/flowbridge/pkg/schema"
)

// flowNamespace is the dispatcher namespace holding one FlowAction per flow.
const flowNamespace = "/flow"

// app is the wired server: flows, executor, bridge, dispatcher and HTTP stack.
type app struct {
	handler    http.Handler
	sweeper    *scheduler.Sweeper
	flows      *engine.FlowRegistry
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	closers    []func() error
}

func newApp(ctx context.Context, cfg Config, logger *slog.Logger) (_ *app, err error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	var db *store.LibSQLStore
	if cfg.needsDB() {
		path := strings.TrimPrefix(cfg.DBPath, "file:")
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		db, err = store.NewLibSQLStore("file:" + path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	var repo engine.ExecutionRepository = engine.NewMemoryRepository()
	if cfg.Repository == "sql" {
		repo = store.NewSQLRepository(db)
	}

	sessions, err := a.sessionStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	actions := engine.NewActionRegistry()
	if err := actions.Register(bridge.DispatchActionName, bridge.NewDispatchAction(expressions.NewInterpolator(nil))); err != nil {
		return nil, err
	}
	validator, err := validation.NewFlowValidator(actions)
	if err != nil {
		return nil, err
	}
	a.flows = engine.NewFlowRegistry(validator)
	n, err := a.flows.LoadDir(cfg.FlowsDir)
	if err != nil {
		return nil, err
	}
	logger.Info("flows loaded", slog.Int("count", n), slog.String("dir", cfg.FlowsDir))

	collector := metrics.NewCollector("")
	fsm := engine.NewExecutionFSM(logger)
	collector.InstrumentFSM(fsm)

	executor, err := engine.NewFlowExecutor(engine.ExecutorConfig{
		Flows:          a.flows,
		Repository:     repo,
		Actions:        actions,
		ViewResolver:   bridge.ViewTrampoline{},
		FSM:            fsm,
		DefaultHandler: bridge.DispatchActionName,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	bcfg := bridge.NewConfiguration(
		bridge.WithEngineBinding(cfg.EngineBinding),
		bridge.WithTokenSessionKey(cfg.TokenSessionKey),
		bridge.WithScopeKeys(cfg.ScopeKeys),
	)
	registry := bridge.NewMapRegistry()
	if err := registry.Bind(bcfg.EngineBinding(), executor); err != nil {
		return nil, err
	}
	scopes := bridge.NewScopeBridge(bcfg, registry, logger)
	hub := streaming.NewMemoryHub()
	gateway := bridge.NewGateway(bcfg, registry,
		bridge.WithObserver(collector),
		bridge.WithObserver(streaming.NewHandoffPublisher(hub)),
		bridge.WithGatewayLogger(logger),
	)

	a.dispatcher = dispatch.NewDispatcher(
		dispatch.WithLogger(logger),
		dispatch.WithSessionResolver(sessionFromRequest),
	)
	if err := registerFlowActions(a.dispatcher, a.flows, gateway, scopes, logger); err != nil {
		return nil, err
	}
	if err := registerCartActions(a.dispatcher, scopes, bcfg.ScopeKeys()); err != nil {
		return nil, err
	}

	ttl, _ := cfg.executionTTL()
	a.sweeper, err = scheduler.NewSweeper(repo, cfg.SweepSchedule, ttl, logger)
	if err != nil {
		return nil, err
	}

	sessionTTL, _ := cfg.sessionTTL()
	manager := session.NewManager(sessions, session.WithLogger(logger), session.WithMaxAge(sessionTTL))

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "version": version, "flows": a.flows.IDs()})
	})
	mux.Handle("GET /diagram/{id}", diagramHandler(a.flows))
	mux.Handle("GET /events", streaming.Handler(hub))
	mux.Handle("/", manager.Middleware(a.dispatcher))

	a.handler = withRequestID(collector.Middleware(mux))
	return a, nil
}

func (a *app) sessionStore(ctx context.Context, cfg Config, db *store.LibSQLStore) (session.Store, error) {
	switch cfg.SessionBackend {
	case "sql":
		return store.NewSQLSessionStore(db), nil
	case "redis":
		ttl, _ := cfg.sessionTTL()
		rs, err := session.NewRedisStore(ctx, session.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TTL:      ttl,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		return rs, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

// Close releases stores in reverse order of acquisition.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// flowResultKeys lists the stack entries rendered after a request to def:
// the token, the keys the flow exposes and its output. A flow exposing
// nothing renders the whole stack.
func flowResultKeys(def *schema.FlowDefinition) []string {
	if len(def.Expose) == 0 {
		return nil
	}
	keys := make([]string, 0, len(def.Expose)+2)
	keys = append(keys, bridge.TokenKey)
	keys = append(keys, def.Expose...)
	return append(keys, bridge.OutputKey)
}

// registerFlowActions exposes every loaded flow at /flow/{id}.
func registerFlowActions(d *dispatch.Dispatcher, flows *engine.FlowRegistry, gw *bridge.Gateway, scopes *bridge.ScopeBridge, logger *slog.Logger) error {
	tokens := interceptor.NewTokenInterceptor(scopes, logger)
	for _, id := range flows.IDs() {
		flowID := id
		def, err := flows.Get(flowID)
		if err != nil {
			return err
		}
		err = d.Register(dispatch.ActionConfig{
			Namespace: flowNamespace,
			Name:      flowID,
			Factory: func() dispatch.Action {
				return &bridge.FlowAction{FlowID: flowID, Gateway: gw, EndView: "ended"}
			},
			Interceptors: []dispatch.Interceptor{tokens},
			Results: map[string]dispatch.Result{
				dispatch.WildcardResult: dispatch.JSONResult{Keys: flowResultKeys(def)},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func sessionFromRequest(r *http.Request) dispatch.SessionMap {
	if s := session.FromContext(r.Context()); s != nil {
		return s
	}
	return nil
}

// withRequestID tags the request context and response with a request id,
// reusing an inbound X-Request-ID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}
