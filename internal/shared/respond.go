package shared

import (
	"encoding/json"
	"errors"
	"net/http"
)

// RespondJSON writes a JSON response body with the given status.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// RespondError maps domain errors to JSON error responses following the
// taxonomy: validation failures carry a field map, missing records map
// to 404, integrity violations to 409, everything else to 500.
func RespondError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		RespondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": validationErr.Fields,
		})
		return
	}
	var integrityErr *IntegrityError
	if errors.As(err, &integrityErr) {
		RespondJSON(w, http.StatusConflict, map[string]any{
			"error":      "integrity violation",
			"constraint": integrityErr.Constraint,
		})
		return
	}
	if errors.Is(err, ErrNotFound) {
		RespondJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
}
