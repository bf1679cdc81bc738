package validation

import "github.com/rendis/flowbridge/pkg/schema"

// Validator checks flow definitions for correctness before they are registered.
type Validator interface {
	ValidateDefinition(def *schema.FlowDefinition) error
}

// HandlerLookup reports whether a state action handler is registered.
// Satisfied by engine.ActionRegistry.
type HandlerLookup interface {
	Has(name string) bool
}
