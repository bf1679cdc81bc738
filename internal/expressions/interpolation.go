package expressions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/flowbridge/pkg/schema"
)

// Interpolator resolves ${...} references in dispatch attributes
// (namespace, action name, method) against a data map.
// The text between the markers is an expr-lang expression.
type Interpolator struct {
	engine *ExprEngine
}

// NewInterpolator creates a new Interpolator backed by the given Expr engine.
// A nil engine gets a private one.
func NewInterpolator(engine *ExprEngine) *Interpolator {
	if engine == nil {
		engine = NewExprEngine()
	}
	return &Interpolator{engine: engine}
}

// Translate replaces every ${expr} in s with the string form of its value.
// Strings without markers are returned unchanged. A nil value renders as "".
func (interp *Interpolator) Translate(ctx context.Context, s string, data map[string]any) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var result strings.Builder
	result.Grow(len(s))

	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], "${")
		if idx == -1 {
			result.WriteString(s[i:])
			break
		}

		result.WriteString(s[i : i+idx])
		start := i + idx + 2

		end := closingBrace(s, start)
		if end == -1 {
			return "", schema.NewErrorf(schema.ErrCodeValidation, "unclosed ${ expression in %q", s).
				WithDetails(map[string]any{"input": s})
		}

		expression := strings.TrimSpace(s[start:end])
		if expression == "" {
			return "", schema.NewErrorf(schema.ErrCodeValidation, "empty expression in %q", s).
				WithDetails(map[string]any{"input": s})
		}

		val, err := interp.engine.Evaluate(ctx, expression, data)
		if err != nil {
			return "", err
		}
		result.WriteString(stringify(val))

		i = end + 1
	}

	return result.String(), nil
}

// closingBrace returns the index of the "}" closing an expression body that
// starts at start, or -1. Nested braces and braces inside string literals
// do not close it.
func closingBrace(s string, start int) int {
	depth := 0
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case c == '\\' && quote != '`':
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// stringify renders a value for embedding into a plain string.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}
