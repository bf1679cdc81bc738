package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowbridge/pkg/schema"
)

func TestNewCELEngine(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)
	assert.Equal(t, "cel", engine.Name())
}

func TestCELEngine_Guards(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		expr string
		data map[string]any
		want bool
	}{
		{"int against double", "flow.total > 100.0", map[string]any{"flow": map[string]any{"total": 142}}, true},
		{"double below", "flow.total > 100.0", map[string]any{"flow": map[string]any{"total": 42.0}}, false},
		{"event match", `event == "next"`, map[string]any{"event": "next"}, true},
		{"missing event defaults to empty", `event == ""`, nil, true},
		{"params lookup", `"coupon" in params && params.coupon == "X"`, map[string]any{"params": map[string]any{"coupon": "X"}}, true},
		{"has macro", "has(flow.cart)", map[string]any{"flow": map[string]any{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.EvaluateBool(ctx, tt.expr, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELEngine_NonBoolGuard(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	_, err = engine.EvaluateBool(context.Background(), "1 + 1", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))
}

func TestCELEngine_CompileErrors(t *testing.T) {
	engine, err := NewCELEngine()
	require.NoError(t, err)

	assert.True(t, schema.IsCode(engine.Check("unknown_var > 1"), schema.ErrCodeValidation))
	assert.True(t, schema.IsCode(engine.Check("flow.total >"), schema.ErrCodeValidation))
	assert.NoError(t, engine.Check("flow.total > 1"))

	_, err = engine.Evaluate(context.Background(), "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

var _ Engine = (*CELEngine)(nil)
