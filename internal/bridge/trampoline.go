package bridge

import (
	"context"

	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/pkg/schema"
)

// ViewTrampoline is the flow executor's view resolver. Instead of rendering
// it records the view id in the request map so the dispatching action can
// render it. A later resolution in the same request replaces an earlier one.
type ViewTrampoline struct{}

func (ViewTrampoline) ResolveView(ctx context.Context, viewID string, rc *engine.RequestContext) (engine.View, error) {
	ext := rc.External()
	if ext == nil {
		ext = engine.ExternalContextFrom(ctx)
	}
	if ext == nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfiguration,
			"view %q resolved outside a request environment", viewID)
	}
	ext.RequestMap()[ViewKey] = viewID
	return engine.NopView{}, nil
}

var _ engine.ViewResolver = ViewTrampoline{}
