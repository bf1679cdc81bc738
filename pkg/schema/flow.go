package schema

// FlowDefinition is the serializable flow format, loaded from YAML or JSON.
type FlowDefinition struct {
	ID         string            `json:"id" yaml:"id"`
	StartState string            `json:"start" yaml:"start"`
	States     []StateDefinition `json:"states" yaml:"states"`
	Output     string            `json:"output,omitempty" yaml:"output,omitempty"` // jq filter over the flow scope
	Expose     []string          `json:"expose,omitempty" yaml:"expose,omitempty"` // stack keys rendered after a flow request
	Metadata   map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// StateDefinition describes a single state of a flow.
type StateDefinition struct {
	ID          string            `json:"id" yaml:"id"`
	Type        StateType         `json:"type" yaml:"type"`
	View        string            `json:"view,omitempty" yaml:"view,omitempty"`           // view states; defaults to the state ID
	Handler     string            `json:"handler,omitempty" yaml:"handler,omitempty"`     // action states; defaults to the dispatch handler
	Namespace   string            `json:"namespace,omitempty" yaml:"namespace,omitempty"` // dispatch attribute
	Action      string            `json:"action,omitempty" yaml:"action,omitempty"`       // dispatch attribute
	Method      string            `json:"method,omitempty" yaml:"method,omitempty"`       // dispatch attribute
	OnEntry     map[string]string `json:"on_entry,omitempty" yaml:"on_entry,omitempty"`   // scope key -> expr expression
	Output      string            `json:"output,omitempty" yaml:"output,omitempty"`       // end states; overrides the flow output
	Transitions []Transition      `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// StateType enumerates the kinds of flow states.
type StateType string

const (
	StateTypeView     StateType = "view"
	StateTypeAction   StateType = "action"
	StateTypeDecision StateType = "decision"
	StateTypeEnd      StateType = "end"
)

// Transition moves a flow from one state to another.
// On matches the event that triggers it ("*" matches any event, including none).
// When is an optional CEL guard.
type Transition struct {
	On   string `json:"on,omitempty" yaml:"on,omitempty"`
	To   string `json:"to" yaml:"to"`
	When string `json:"when,omitempty" yaml:"when,omitempty"`
}

// WildcardEvent matches any event in a transition's On field.
const WildcardEvent = "*"

// State returns the state with the given ID, or nil.
func (d *FlowDefinition) State(id string) *StateDefinition {
	for i := range d.States {
		if d.States[i].ID == id {
			return &d.States[i]
		}
	}
	return nil
}

// Attributes returns the dispatch attributes declared on the state.
// Only non-empty values are included.
func (s *StateDefinition) Attributes() map[string]string {
	attrs := make(map[string]string, 3)
	if s.Namespace != "" {
		attrs["namespace"] = s.Namespace
	}
	if s.Action != "" {
		attrs["action"] = s.Action
	}
	if s.Method != "" {
		attrs["method"] = s.Method
	}
	return attrs
}
