// Package transport contains the HTTP router, middleware chain, and all
// request handlers for the portal API.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/reportal/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:      http.StatusBadRequest,
	model.ErrUnauthorized:    http.StatusUnauthorized,
	model.ErrForbidden:       http.StatusForbidden,
	model.ErrNotFound:        http.StatusNotFound,
	model.ErrConflict:        http.StatusConflict,
	model.ErrValidationError: http.StatusUnprocessableEntity,
	model.ErrInternalError:   http.StatusInternalServerError,
	model.ErrConfigNotFound:  http.StatusNotFound,
	model.ErrDuplicateID:     http.StatusConflict,
	model.ErrPersistence:     http.StatusBadGateway,
	model.ErrNetwork:         http.StatusBadGateway,
	model.ErrSubmitInFlight:  http.StatusConflict,
	model.ErrReadOnly:        http.StatusForbidden,
}

// retryAfter holds the Retry-After hint, in seconds, for codes whose cause is
// transient: a submit still running for the same clerk and form, or an
// unreachable location table.
var retryAfter = map[string]string{
	model.ErrSubmitInFlight: "1",
	model.ErrNetwork:        "5",
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes an ErrorEnvelope as a JSON response with the correct
// HTTP status code. If err does not carry an *ErrorEnvelope, a generic 500 is
// returned.
func WriteError(w http.ResponseWriter, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if secs, ok := retryAfter[ee.Code]; ok {
		w.Header().Set("Retry-After", secs)
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// WriteNotFound writes a 404 error response. The router also uses it for
// paths no route matches.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

// WriteForbidden writes a 403 error response.
func WriteForbidden(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewForbiddenError(msg))
}
