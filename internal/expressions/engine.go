package expressions

import "context"

// Engine evaluates expressions embedded in flow definitions.
// Three implementations: CEL (guards), Expr (assignments and interpolation),
// GoJQ (end-state output mapping).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
