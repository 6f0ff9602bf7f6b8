package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fedgrid-hq/triton/pkg/policy"
	"fedgrid-hq/triton/pkg/policy/store"
	"fedgrid-hq/triton/pkg/policy/template"
)

// apiError is the JSON error envelope.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

func writeAPIError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeJSON(w, status, apiError{Error: apiErrorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// writeError maps domain errors to HTTP status codes:
// not-found -> 404, version conflicts and illegal state transitions
// -> 409, validation and parameter errors -> 400, everything else
// -> 500 with a generic message.
func writeError(w http.ResponseWriter, err error) {
	var (
		notFound         *store.NotFoundError
		templateNotFound *template.NotFoundError
		conflict         *store.VersionConflictError
		transition       *policy.StateTransitionError
		validation       *policy.ValidationError
		parameter        *template.ParameterError
	)

	switch {
	case errors.As(err, &notFound):
		writeAPIError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &templateNotFound):
		writeAPIError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &conflict):
		writeAPIError(w, http.StatusConflict, "version_conflict", err.Error(), map[string]int{
			"expected": conflict.Expected,
			"actual":   conflict.Actual,
		})
	case errors.As(err, &transition):
		writeAPIError(w, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.As(err, &validation):
		writeAPIError(w, http.StatusBadRequest, "invalid_policy", err.Error(), validation.Errors)
	case errors.As(err, &parameter):
		writeAPIError(w, http.StatusBadRequest, "invalid_parameters", err.Error(), nil)
	default:
		slog.Error("request failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "internal_error",
			"An internal error occurred. Please try again later.", nil)
	}
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
