package validation

import (
	"errors"

	"github.com/rendis/flowbridge/internal/expressions"
	"github.com/rendis/flowbridge/pkg/schema"
)

// FlowValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (state refs, handlers, expressions)
// 3. Reachability (from the start state)
type FlowValidator struct {
	jsonSchema *JSONSchemaValidator
	handlers   HandlerLookup
	compilers  compilers
}

// NewFlowValidator creates a FlowValidator.
// lookup may be nil to skip handler existence checks.
func NewFlowValidator(lookup HandlerLookup) (*FlowValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &FlowValidator{
		jsonSchema: jsv,
		handlers:   lookup,
		compilers: compilers{
			cel: celEngine,
			ex:  expressions.NewExprEngine(),
			jq:  expressions.NewGoJQEngine(),
		},
	}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: semantic and reachability stages are skipped.
func (fv *FlowValidator) Validate(def *schema.FlowDefinition) *schema.ValidationResult {
	if def == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "flow definition is nil")
		return r
	}

	result := validateStructural(fv.jsonSchema, def)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(def, fv.handlers, fv.compilers))

	// Reachability over a broken graph only adds noise.
	if result.Valid() {
		result.Merge(validateReachability(def))
	}

	return result
}

// ValidateDefinition satisfies the Validator interface.
func (fv *FlowValidator) ValidateDefinition(def *schema.FlowDefinition) error {
	err := fv.Validate(def).ToError()
	if err == nil {
		return nil
	}
	var fe *schema.FlowError
	if errors.As(err, &fe) && fe.Details != nil && def != nil {
		fe.Details["flow_id"] = def.ID
	}
	return err
}

// validateStructural wraps JSONSchemaValidator.ValidateDefinition, converting
// its error output into ValidationResult.
func validateStructural(v *JSONSchemaValidator, def *schema.FlowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateDefinition(def)
	if err == nil {
		return result
	}

	var fe *schema.FlowError
	if !errors.As(err, &fe) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if violations, ok := fe.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.AddError("/", schema.ErrCodeValidation, v)
		}
		return result
	}
	result.AddError("/", schema.ErrCodeValidation, fe.Message)
	return result
}

var (
	_ Validator = (*FlowValidator)(nil)
	_ Validator = (*JSONSchemaValidator)(nil)
)
