package bridge

import "strings"

const (
	// DefaultEngineBinding is the registry name the flow executor is bound under.
	DefaultEngineBinding = "flowExecutor"

	// DefaultTokenSessionKey is the session key holding the resume token
	// between requests.
	DefaultTokenSessionKey = "flowbridge.bridge.Configuration.tokenSessionKey"

	// TokenKey names the resume token both on the value stack and as a
	// request parameter.
	TokenKey = "pausedKey"

	// OutputKey is the value stack key receiving a flow's output once it ends.
	OutputKey = "flowOutput"

	// ViewKey is the request map key the view trampoline writes the
	// selected view to.
	ViewKey = "flowbridge.bridge.ViewTrampoline.view"

	// RequestContextKey is the invocation Extra key carrying the in-request
	// flow context during a dispatch re-entry.
	RequestContextKey = "flowbridge.bridge.DispatchAction.requestContext"

	// InvocationKey is the request map key linking an environment to the
	// invocation that created it.
	InvocationKey = "flowbridge.dispatch.Invocation"
)

// Configuration names the engine binding and the session key used by the
// bridge. It is immutable once built.
type Configuration struct {
	engineBinding   string
	tokenSessionKey string
	scopeKeys       []string
}

// Option customizes a Configuration.
type Option func(*Configuration)

// WithEngineBinding overrides the engine registry binding. Blank keeps the default.
func WithEngineBinding(name string) Option {
	return func(c *Configuration) {
		if name = strings.TrimSpace(name); name != "" {
			c.engineBinding = name
		}
	}
}

// WithTokenSessionKey overrides the session key. Blank keeps the default.
func WithTokenSessionKey(key string) Option {
	return func(c *Configuration) {
		if key = strings.TrimSpace(key); key != "" {
			c.tokenSessionKey = key
		}
	}
}

// WithScopeKeys sets the explicit scope keys from a comma separated list.
func WithScopeKeys(raw string) Option {
	return func(c *Configuration) { c.scopeKeys = ParseKeys(raw) }
}

// NewConfiguration builds a Configuration from the defaults and opts.
func NewConfiguration(opts ...Option) Configuration {
	c := Configuration{
		engineBinding:   DefaultEngineBinding,
		tokenSessionKey: DefaultTokenSessionKey,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Configuration) EngineBinding() string   { return c.engineBinding }
func (c Configuration) TokenSessionKey() string { return c.tokenSessionKey }

// ScopeKeys returns a copy of the explicit scope key list.
func (c Configuration) ScopeKeys() []string {
	return append([]string(nil), c.scopeKeys...)
}

// ParseKeys splits a comma separated key list, trimming whitespace and
// dropping blank entries. Order is kept.
func ParseKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
