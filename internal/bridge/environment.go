package bridge

import (
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/engine"
)

// Environment is the request environment handed to the flow executor. It
// exposes the invocation's request, response and parameters, and carries a
// request-scoped map cross-linked to the invocation.
type Environment struct {
	inv        *dispatch.Invocation
	requestMap map[string]any
	released   atomic.Bool
	onRelease  func()
}

// NewEnvironment builds an environment for inv.
func NewEnvironment(inv *dispatch.Invocation) *Environment {
	env := &Environment{
		inv:        inv,
		requestMap: make(map[string]any),
	}
	env.requestMap[InvocationKey] = inv
	return env
}

func (e *Environment) RequestMap() map[string]any     { return e.requestMap }
func (e *Environment) Parameter(name string) string  { return e.inv.Params.Get(name) }
func (e *Environment) Parameters() url.Values        { return e.inv.Params }
func (e *Environment) Request() *http.Request        { return e.inv.Request }
func (e *Environment) Response() http.ResponseWriter { return e.inv.Response }

// Invocation returns the invocation the environment was built for.
func (e *Environment) Invocation() *dispatch.Invocation { return e.inv }

// SelectedView returns the last view the trampoline stored, "" when none.
func (e *Environment) SelectedView() string {
	v, _ := e.requestMap[ViewKey].(string)
	return v
}

// Release drops the request map and the invocation link. Safe to call twice.
func (e *Environment) Release() {
	if !e.released.CompareAndSwap(false, true) {
		return
	}
	clear(e.requestMap)
	if e.onRelease != nil {
		e.onRelease()
	}
}

// Released reports whether Release has run.
func (e *Environment) Released() bool { return e.released.Load() }

// InvocationFrom returns the invocation linked to ext, or nil.
func InvocationFrom(ext engine.ExternalContext) *dispatch.Invocation {
	if ext == nil {
		return nil
	}
	inv, _ := ext.RequestMap()[InvocationKey].(*dispatch.Invocation)
	return inv
}

var _ engine.ExternalContext = (*Environment)(nil)
