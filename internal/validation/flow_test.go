package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowbridge/pkg/schema"
)

type stubLookup map[string]bool

func (s stubLookup) Has(name string) bool { return s[name] }

func checkoutDefinition() *schema.FlowDefinition {
	return &schema.FlowDefinition{
		ID:         "checkout",
		StartState: "step1",
		Output:     "{total: .total}",
		States: []schema.StateDefinition{
			{
				ID:      "step1",
				Type:    schema.StateTypeView,
				OnEntry: map[string]string{"cart": "flow.cart ?? []"},
				Transitions: []schema.Transition{
					{On: "add", To: "addItem"},
					{On: "next", To: "decide"},
				},
			},
			{
				ID:          "addItem",
				Type:        schema.StateTypeAction,
				Transitions: []schema.Transition{{On: "*", To: "step1"}},
			},
			{
				ID:   "decide",
				Type: schema.StateTypeDecision,
				Transitions: []schema.Transition{
					{When: "flow.total > 100.0", To: "review"},
					{To: "done"},
				},
			},
			{
				ID:          "review",
				Type:        schema.StateTypeView,
				View:        "step2",
				Transitions: []schema.Transition{{On: "confirm", To: "done"}},
			},
			{ID: "done", Type: schema.StateTypeEnd},
		},
	}
}

func TestNewFlowValidator(t *testing.T) {
	v, err := NewFlowValidator(nil)
	require.NoError(t, err)
	assert.NotNil(t, v.jsonSchema)
}

func TestFlowValidator_Valid(t *testing.T) {
	v, err := NewFlowValidator(nil)
	require.NoError(t, err)

	result := v.Validate(checkoutDefinition())
	assert.True(t, result.Valid(), "errors: %+v", result.Errors)
	assert.Empty(t, result.Warnings)
	assert.NoError(t, v.ValidateDefinition(checkoutDefinition()))
}

func TestFlowValidator_Nil(t *testing.T) {
	v, err := NewFlowValidator(nil)
	require.NoError(t, err)

	err = v.ValidateDefinition(nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestFlowValidator_Structural(t *testing.T) {
	v, err := NewFlowValidator(nil)
	require.NoError(t, err)

	t.Run("unknown state type", func(t *testing.T) {
		def := checkoutDefinition()
		def.States[0].Type = "subflow"
		result := v.Validate(def)
		require.False(t, result.Valid())
		assert.Contains(t, result.Errors[0].Message, "/states/0/type")
	})

	t.Run("missing id", func(t *testing.T) {
		def := checkoutDefinition()
		def.ID = ""
		assert.False(t, v.Validate(def).Valid())
	})

	t.Run("no states", func(t *testing.T) {
		def := &schema.FlowDefinition{ID: "x", StartState: "a"}
		assert.False(t, v.Validate(def).Valid())
	})
}

func TestFlowValidator_Semantic(t *testing.T) {
	v, err := NewFlowValidator(stubLookup{"dispatch": true})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(def *schema.FlowDefinition)
		path   string
	}{
		{"missing start", func(d *schema.FlowDefinition) { d.StartState = "nope" }, "start"},
		{"duplicate id", func(d *schema.FlowDefinition) { d.States[1].ID = "step1" }, "states[1].id"},
		{"dangling target", func(d *schema.FlowDefinition) { d.States[3].Transitions[0].To = "ghost" }, "states[3].transitions[0].to"},
		{"bad guard", func(d *schema.FlowDefinition) { d.States[2].Transitions[0].When = "flow.total >" }, "states[2].transitions[0].when"},
		{"bad on_entry", func(d *schema.FlowDefinition) { d.States[0].OnEntry["cart"] = "((" }, "states[0].on_entry.cart"},
		{"bad output", func(d *schema.FlowDefinition) { d.Output = ".[" }, "output"},
		{"end with transitions", func(d *schema.FlowDefinition) {
			d.States[4].Transitions = []schema.Transition{{On: "x", To: "step1"}}
		}, "states[4].transitions"},
		{"unknown handler", func(d *schema.FlowDefinition) { d.States[1].Handler = "missing" }, "states[1].handler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := checkoutDefinition()
			tt.mutate(def)
			result := v.Validate(def)
			require.False(t, result.Valid())

			paths := make([]string, 0, len(result.Errors))
			for _, e := range result.Errors {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.path)
		})
	}
}

func TestFlowValidator_Reachability(t *testing.T) {
	v, err := NewFlowValidator(nil)
	require.NoError(t, err)

	t.Run("orphan state warns", func(t *testing.T) {
		def := checkoutDefinition()
		def.States = append(def.States, schema.StateDefinition{ID: "orphan", Type: schema.StateTypeEnd})
		result := v.Validate(def)
		assert.True(t, result.Valid())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "orphan")
	})

	t.Run("no reachable end errors", func(t *testing.T) {
		def := &schema.FlowDefinition{
			ID:         "loop",
			StartState: "a",
			States: []schema.StateDefinition{
				{ID: "a", Type: schema.StateTypeView, Transitions: []schema.Transition{{On: "go", To: "a"}}},
			},
		}
		err := v.ValidateDefinition(def)
		require.Error(t, err)

		var fe *schema.FlowError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "loop", fe.Details["flow_id"])
	})
}

func TestFlowValidator_DecisionShadowWarning(t *testing.T) {
	v, err := NewFlowValidator(nil)
	require.NoError(t, err)

	def := checkoutDefinition()
	def.States[2].Transitions = []schema.Transition{{To: "done"}, {When: "true", To: "review"}}
	result := v.Validate(def)
	assert.True(t, result.Valid())
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, "states[2].transitions[0].when", result.Warnings[0].Path)
}
