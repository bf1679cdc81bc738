package engine

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rendis/flowbridge/pkg/schema"
)

// ExternalContext is the request environment the executor runs against:
// the inbound request, the response writer and a request-scoped attribute map.
type ExternalContext interface {
	RequestMap() map[string]any
	Parameter(name string) string
	Parameters() url.Values
	Request() *http.Request
	Response() http.ResponseWriter
}

type externalKey struct{}

// WithExternalContext returns a context carrying ext.
func WithExternalContext(ctx context.Context, ext ExternalContext) context.Context {
	return context.WithValue(ctx, externalKey{}, ext)
}

// ExternalContextFrom returns the external context carried by ctx, or nil.
func ExternalContextFrom(ctx context.Context) ExternalContext {
	ext, _ := ctx.Value(externalKey{}).(ExternalContext)
	return ext
}

// RequestContext is the in-request view of an execution, handed to state
// actions and view resolvers while the executor is processing a state.
type RequestContext struct {
	flow  *schema.FlowDefinition
	state *schema.StateDefinition
	exec  *Execution
	ext   ExternalContext
	event string
}

// NewRequestContext builds a request context. Exported for collaborators that
// drive state actions outside the executor (tests, tooling).
func NewRequestContext(flow *schema.FlowDefinition, state *schema.StateDefinition, exec *Execution, ext ExternalContext, event string) *RequestContext {
	return &RequestContext{flow: flow, state: state, exec: exec, ext: ext, event: event}
}

func (rc *RequestContext) Flow() *schema.FlowDefinition          { return rc.flow }
func (rc *RequestContext) CurrentState() *schema.StateDefinition { return rc.state }
func (rc *RequestContext) Execution() *Execution                 { return rc.exec }
func (rc *RequestContext) External() ExternalContext             { return rc.ext }

// FlowScope returns the live scope of the execution.
func (rc *RequestContext) FlowScope() *Scope { return rc.exec.Scope() }

// Event returns the event that led into the current state, "" when none.
func (rc *RequestContext) Event() string { return rc.event }

// Attributes returns the dispatch attributes of the current state.
func (rc *RequestContext) Attributes() map[string]string {
	if rc.state == nil {
		return map[string]string{}
	}
	return rc.state.Attributes()
}

// params flattens request parameters for expression engines.
func params(ext ExternalContext) map[string]any {
	out := map[string]any{}
	if ext == nil {
		return out
	}
	for k, v := range ext.Parameters() {
		switch len(v) {
		case 0:
		case 1:
			out[k] = v[0]
		default:
			list := make([]any, len(v))
			for i, s := range v {
				list[i] = s
			}
			out[k] = list
		}
	}
	return out
}
