package engine

import "context"

// View renders the model of a paused view state.
type View interface {
	Render(ctx context.Context, model map[string]any, ext ExternalContext) error
}

// ViewResolver maps a view identifier to a renderable View.
type ViewResolver interface {
	ResolveView(ctx context.Context, viewID string, rc *RequestContext) (View, error)
}

// ViewResolverFunc adapts a function to ViewResolver.
type ViewResolverFunc func(ctx context.Context, viewID string, rc *RequestContext) (View, error)

func (f ViewResolverFunc) ResolveView(ctx context.Context, viewID string, rc *RequestContext) (View, error) {
	return f(ctx, viewID, rc)
}

// NopView renders nothing.
type NopView struct{}

func (NopView) Render(context.Context, map[string]any, ExternalContext) error { return nil }
