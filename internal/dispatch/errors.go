package dispatch

import (
	"encoding/json"
	"net/http"

	"github.com/rendis/flowbridge/pkg/schema"
)

// StatusFor maps an error's FlowError code to an HTTP status.
func StatusFor(err error) int {
	switch schema.CodeOf(err) {
	case schema.ErrCodeLookup:
		return http.StatusGone
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeValidation:
		return http.StatusBadRequest
	case schema.ErrCodeInvalidTransition, schema.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as {"error": {...}} with the mapped status.
func WriteError(w http.ResponseWriter, err error) {
	body := map[string]any{"code": schema.CodeOf(err), "message": err.Error()}
	if body["code"] == "" {
		body["code"] = schema.ErrCodeExecution
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFor(err))
	_ = json.NewEncoder(w).Encode(map[string]any{"error": body})
}
