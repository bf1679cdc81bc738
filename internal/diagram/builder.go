package diagram

import (
	"fmt"

	"github.com/rendis/flowbridge/pkg/schema"
)

// startID names the virtual entry node.
const startID = "__start__"

// Build constructs a DiagramModel from def. When current names a state, that
// node is marked so renderers can highlight where an execution is paused.
func Build(def *schema.FlowDefinition, current string) (*DiagramModel, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "diagram: flow definition is nil")
	}
	if def.State(def.StartState) == nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"diagram: start state %q is not defined in flow %q", def.StartState, def.ID)
	}

	nodes := make([]*Node, 0, len(def.States)+1)
	nodes = append(nodes, &Node{ID: startID, Label: "Start", Kind: NodeKindStart})
	edges := []Edge{{From: startID, To: def.StartState}}

	for i := range def.States {
		st := &def.States[i]
		nodes = append(nodes, &Node{
			ID:      st.ID,
			Label:   nodeLabel(st),
			Kind:    NodeKind(st.Type),
			Current: st.ID == current,
		})
		for _, tr := range st.Transitions {
			edges = append(edges, Edge{From: st.ID, To: tr.To, Label: edgeLabel(tr)})
		}
	}

	return &DiagramModel{Title: titleFromDef(def), Nodes: nodes, Edges: edges}, nil
}

// nodeLabel shows the rendered view or the dispatch target under the state id.
func nodeLabel(st *schema.StateDefinition) string {
	switch st.Type {
	case schema.StateTypeView:
		if st.View != "" && st.View != st.ID {
			return fmt.Sprintf("%s\n(%s)", st.ID, st.View)
		}
	case schema.StateTypeAction:
		if st.Handler != "" {
			return fmt.Sprintf("%s\n(%s)", st.ID, st.Handler)
		}
		action := st.Action
		if action == "" {
			action = st.ID
		}
		return fmt.Sprintf("%s\n(%s/%s)", st.ID, st.Namespace, action)
	}
	return st.ID
}

func edgeLabel(tr schema.Transition) string {
	switch {
	case tr.On != "" && tr.When != "":
		return fmt.Sprintf("%s [%s]", tr.On, tr.When)
	case tr.When != "":
		return "[" + tr.When + "]"
	default:
		return tr.On
	}
}

// titleFromDef prefers a metadata name over the flow id.
func titleFromDef(def *schema.FlowDefinition) string {
	if def.Metadata != nil {
		if name, ok := def.Metadata["name"].(string); ok && name != "" {
			return name
		}
	}
	return def.ID
}
