package validation

import (
	"fmt"

	"github.com/rendis/flowbridge/pkg/schema"
)

// validateReachability walks transitions from the start state (BFS) and
// warns about states that can never be entered. It also errors when no
// end state is reachable, since such a flow can never complete.
func validateReachability(def *schema.FlowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	edges := make(map[string][]string, len(def.States))
	for _, s := range def.States {
		for _, tr := range s.Transitions {
			edges[s.ID] = append(edges[s.ID], tr.To)
		}
	}

	reachable := map[string]bool{def.StartState: true}
	queue := []string{def.StartState}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range edges[node] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	endReachable := false
	for _, s := range def.States {
		if !reachable[s.ID] {
			result.AddWarning(fmt.Sprintf("states[%s]", s.ID), schema.ErrCodeValidation,
				fmt.Sprintf("state %q is unreachable from start state %q", s.ID, def.StartState))
			continue
		}
		if s.Type == schema.StateTypeEnd {
			endReachable = true
		}
	}

	if !endReachable {
		result.AddError("states", schema.ErrCodeValidation,
			fmt.Sprintf("flow %q has no end state reachable from %q", def.ID, def.StartState))
	}

	return result
}
