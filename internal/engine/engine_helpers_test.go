package engine

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rendis/flowbridge/internal/validation"
	"github.com/rendis/flowbridge/pkg/schema"
)

// fakeExternal is a minimal ExternalContext for executor tests.
type fakeExternal struct {
	params   url.Values
	requests map[string]any
}

func newFakeExternal(kv ...string) *fakeExternal {
	params := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		params.Set(kv[i], kv[i+1])
	}
	return &fakeExternal{params: params, requests: map[string]any{}}
}

func (f *fakeExternal) RequestMap() map[string]any     { return f.requests }
func (f *fakeExternal) Parameter(name string) string  { return f.params.Get(name) }
func (f *fakeExternal) Parameters() url.Values        { return f.params }
func (f *fakeExternal) Request() *http.Request        { return nil }
func (f *fakeExternal) Response() http.ResponseWriter { return nil }

func checkoutFlow() *schema.FlowDefinition {
	return &schema.FlowDefinition{
		ID:         "checkout",
		StartState: "step1",
		Output:     "{items: (.cart | length), total: .total}",
		States: []schema.StateDefinition{
			{
				ID:      "step1",
				Type:    schema.StateTypeView,
				OnEntry: map[string]string{"cart": "flow.cart ?? []", "total": "flow.total ?? 0"},
				Transitions: []schema.Transition{
					{On: "add", To: "addItem"},
					{On: "next", To: "decide"},
					{On: "cancel", To: "cancelled"},
				},
			},
			{
				ID:          "addItem",
				Type:        schema.StateTypeAction,
				Handler:     "addItem",
				Transitions: []schema.Transition{{On: "success", To: "step1"}},
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
			{ID: "cancelled", Type: schema.StateTypeEnd, Output: `"cancelled"`},
		},
	}
}

func newTestRegistry(t *testing.T, defs ...*schema.FlowDefinition) *FlowRegistry {
	t.Helper()
	v, err := validation.NewFlowValidator(nil)
	require.NoError(t, err)
	reg := NewFlowRegistry(v)
	for _, def := range defs {
		require.NoError(t, reg.Register(def))
	}
	return reg
}
