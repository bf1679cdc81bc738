package dispatch

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/rendis/flowbridge/internal/logging"
	"github.com/rendis/flowbridge/pkg/schema"
)

// ActionConfig binds an action name to its factory, interceptor chain and
// results.
type ActionConfig struct {
	Namespace    string
	Name         string
	Factory      func() Action
	Interceptors []Interceptor
	Results      map[string]Result
}

func (c *ActionConfig) key() string { return actionKey(c.Namespace, c.Name) }

// executeResult looks up the result for code, falling back to the wildcard.
// An empty code dispatches nothing.
func (c *ActionConfig) executeResult(ctx context.Context, inv *Invocation, code string) error {
	if code == "" {
		return nil
	}
	r, ok := c.Results[code]
	if !ok {
		r, ok = c.Results[WildcardResult]
	}
	if !ok {
		return schema.NewErrorf(schema.ErrCodeConfiguration,
			"no result %q for action %s", code, c.key())
	}
	return r.Execute(ctx, inv, code)
}

// ProxyRequest describes one dispatch. A nil Stack or Extra gets a fresh
// one; passing the parent's shares it with the nested invocation.
type ProxyRequest struct {
	Namespace     string
	Name          string
	Method        string
	Stack         *ValueStack
	Params        url.Values
	Session       SessionMap
	Request       *http.Request
	Response      http.ResponseWriter
	Extra         map[string]any
	ExecuteResult bool
}

// SessionResolver extracts the session bound to an HTTP request.
type SessionResolver func(r *http.Request) SessionMap

// Dispatcher is the registry of actions and the entry point for running them.
type Dispatcher struct {
	mu       sync.RWMutex
	actions  map[string]*ActionConfig
	sessions SessionResolver
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithSessionResolver sets how ServeHTTP finds the request's session.
func WithSessionResolver(fn SessionResolver) Option {
	return func(d *Dispatcher) { d.sessions = fn }
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		actions: make(map[string]*ActionConfig),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds an action. Names must be unique within a namespace.
func (d *Dispatcher) Register(cfg ActionConfig) error {
	if cfg.Name == "" || strings.Contains(cfg.Name, "/") {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid action name %q", cfg.Name)
	}
	if cfg.Factory == nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "action %s has no factory", cfg.Name)
	}
	cfg.Namespace = normalizeNamespace(cfg.Namespace)

	d.mu.Lock()
	defer d.mu.Unlock()

	k := cfg.key()
	if _, exists := d.actions[k]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "action %s already registered", k)
	}
	d.actions[k] = &cfg
	return nil
}

// Lookup returns the configuration for namespace/name.
func (d *Dispatcher) Lookup(namespace, name string) (*ActionConfig, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	k := actionKey(namespace, name)
	cfg, ok := d.actions[k]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "action %s not found", k)
	}
	return cfg, nil
}

// Actions lists registered actions as "namespace/name", sorted.
func (d *Dispatcher) Actions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.actions))
	for k := range d.actions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dispatch builds an invocation for req and invokes it, returning the
// result code.
func (d *Dispatcher) Dispatch(ctx context.Context, req ProxyRequest) (string, error) {
	inv, err := d.NewInvocation(req)
	if err != nil {
		return "", err
	}
	logging.LogWith(ctx, d.logger).Debug("dispatch",
		slog.String("action", inv.config.key()),
		slog.String("method", req.Method),
	)
	return inv.Invoke(ctx)
}

// NewInvocation prepares an invocation without running it.
func (d *Dispatcher) NewInvocation(req ProxyRequest) (*Invocation, error) {
	cfg, err := d.Lookup(req.Namespace, req.Name)
	if err != nil {
		return nil, err
	}

	stack := req.Stack
	if stack == nil {
		stack = NewValueStack()
	}
	extra := req.Extra
	if extra == nil {
		extra = make(map[string]any)
	}
	params := req.Params
	if params == nil {
		params = url.Values{}
	}

	return &Invocation{
		Proxy: Proxy{
			Namespace:  cfg.Namespace,
			ActionName: cfg.Name,
			Method:     req.Method,
		},
		Action:        cfg.Factory(),
		Stack:         stack,
		Params:        params,
		Session:       req.Session,
		Request:       req.Request,
		Response:      req.Response,
		Extra:         extra,
		dispatcher:    d,
		config:        cfg,
		executeResult: req.ExecuteResult,
	}, nil
}

// ServeHTTP maps /{namespace}/{action}[!method] onto Dispatch and renders
// the result. Errors are written as JSON with a status derived from the code.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, schema.NewError(schema.ErrCodeValidation, "malformed form").WithCause(err))
		return
	}

	namespace, name := path.Split(path.Clean("/" + r.URL.Path))
	method := ""
	if i := strings.IndexByte(name, '!'); i >= 0 {
		name, method = name[:i], name[i+1:]
	}

	var sess SessionMap
	if d.sessions != nil {
		sess = d.sessions(r)
	}

	_, err := d.Dispatch(r.Context(), ProxyRequest{
		Namespace:     namespace,
		Name:          name,
		Method:        method,
		Params:        r.Form,
		Session:       sess,
		Request:       r,
		Response:      w,
		ExecuteResult: true,
	})
	if err != nil {
		logging.LogWith(r.Context(), d.logger).Warn("dispatch failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		WriteError(w, err)
	}
}

func normalizeNamespace(ns string) string {
	ns = strings.Trim(ns, "/")
	if ns == "" {
		return "/"
	}
	return "/" + ns
}

func actionKey(namespace, name string) string {
	return path.Join(normalizeNamespace(namespace), name)
}
