package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/flowbridge/internal/expressions"
	"github.com/rendis/flowbridge/pkg/schema"
)

// compilers groups the expression engines used to pre-compile the
// expressions embedded in a definition.
type compilers struct {
	cel *expressions.CELEngine
	ex  *expressions.ExprEngine
	jq  *expressions.GoJQEngine
}

// validateSemantic checks references and expressions that JSON Schema cannot:
// unique state IDs, start state, transition targets, end-state shape,
// handler registration and expression syntax.
func validateSemantic(def *schema.FlowDefinition, lookup HandlerLookup, c compilers) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	stateIDs := make(map[string]bool, len(def.States))
	for i, s := range def.States {
		if stateIDs[s.ID] {
			result.AddError(fmt.Sprintf("states[%d].id", i), schema.ErrCodeValidation,
				fmt.Sprintf("duplicate state id %q", s.ID))
		}
		stateIDs[s.ID] = true
	}

	if !stateIDs[def.StartState] {
		result.AddError("start", schema.ErrCodeValidation,
			fmt.Sprintf("start state %q is not defined", def.StartState))
	}

	if def.Output != "" {
		if err := c.jq.Check(def.Output); err != nil {
			result.AddError("output", schema.ErrCodeValidation, err.Error())
		}
	}

	for i := range def.States {
		validateState(&def.States[i], fmt.Sprintf("states[%d]", i), stateIDs, lookup, c, result)
	}

	return result
}

func validateState(state *schema.StateDefinition, path string, stateIDs map[string]bool, lookup HandlerLookup, c compilers, result *schema.ValidationResult) {
	// Sorted for deterministic output.
	keys := make([]string, 0, len(state.OnEntry))
	for k := range state.OnEntry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.ex.Check(state.OnEntry[k]); err != nil {
			result.AddError(path+".on_entry."+k, schema.ErrCodeValidation, err.Error())
		}
	}

	for j, tr := range state.Transitions {
		tpath := fmt.Sprintf("%s.transitions[%d]", path, j)
		if !stateIDs[tr.To] {
			result.AddError(tpath+".to", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent state %q", tr.To))
		}
		if tr.When != "" {
			if err := c.cel.Check(tr.When); err != nil {
				result.AddError(tpath+".when", schema.ErrCodeValidation, err.Error())
			}
		}
	}

	switch state.Type {
	case schema.StateTypeEnd:
		if len(state.Transitions) > 0 {
			result.AddError(path+".transitions", schema.ErrCodeValidation,
				fmt.Sprintf("end state %q cannot have transitions", state.ID))
		}
		if state.Output != "" {
			if err := c.jq.Check(state.Output); err != nil {
				result.AddError(path+".output", schema.ErrCodeValidation, err.Error())
			}
		}

	case schema.StateTypeDecision:
		if len(state.Transitions) == 0 {
			result.AddError(path+".transitions", schema.ErrCodeValidation,
				fmt.Sprintf("decision state %q needs at least one transition", state.ID))
		}
		for j, tr := range state.Transitions {
			if tr.When == "" && j < len(state.Transitions)-1 {
				result.AddWarning(fmt.Sprintf("%s.transitions[%d].when", path, j), schema.ErrCodeValidation,
					"unguarded decision transition shadows the ones after it")
			}
		}

	case schema.StateTypeAction:
		if state.Handler != "" && lookup != nil && !lookup.Has(state.Handler) {
			result.AddError(path+".handler", schema.ErrCodeValidation,
				fmt.Sprintf("handler %q not registered", state.Handler))
		}
		if len(state.Transitions) == 0 {
			result.AddWarning(path+".transitions", schema.ErrCodeValidation,
				fmt.Sprintf("action state %q has no transitions; every outcome fails the flow", state.ID))
		}

	case schema.StateTypeView:
		if len(state.Transitions) == 0 {
			result.AddWarning(path+".transitions", schema.ErrCodeValidation,
				fmt.Sprintf("view state %q has no transitions; the flow can only be refreshed", state.ID))
		}
	}

	if state.Type != schema.StateTypeAction && (state.Namespace != "" || state.Action != "" || state.Method != "" || state.Handler != "") {
		result.AddWarning(path, schema.ErrCodeValidation,
			fmt.Sprintf("dispatch attributes on %s state %q are ignored", state.Type, state.ID))
	}
}
