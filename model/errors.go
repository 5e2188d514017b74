package model

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes.
const (
	ErrBadRequest      = "BAD_REQUEST"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrForbidden       = "FORBIDDEN"
	ErrNotFound        = "NOT_FOUND"
	ErrConflict        = "CONFLICT"
	ErrValidationError = "VALIDATION_ERROR"
	ErrInternalError   = "INTERNAL_ERROR"
)

// Form-engine error codes.
const (
	ErrConfigNotFound = "CONFIG_NOT_FOUND"
	ErrDuplicateID    = "DUPLICATE_ID"
	ErrPersistence    = "PERSISTENCE_ERROR"
	ErrNetwork        = "NETWORK_ERROR"
	ErrSubmitInFlight = "SUBMIT_IN_FLIGHT"
	ErrReadOnly       = "READ_ONLY"
)

// ErrorEnvelope is the standard error response envelope returned by the portal.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	// Backends names the stores that failed for PERSISTENCE_ERROR.
	Backends []string `json:"backends,omitempty"`
	TraceID  string   `json:"trace_id,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying backend error, if any.
func (e *ErrorEnvelope) Unwrap() error {
	return e.cause
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CodeOf returns the envelope code carried by err, or "" when err is not an
// ErrorEnvelope.
func CodeOf(err error) string {
	var env *ErrorEnvelope
	if errors.As(err, &env) {
		return env.Code
	}
	return ""
}

// IsCode reports whether err carries the given envelope code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	msg := "One or more fields are invalid"
	if len(details) == 1 {
		msg = details[0].Message
	}
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: msg,
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewConfigNotFoundError returns a CONFIG_NOT_FOUND error for the given
// category id.
func NewConfigNotFoundError(id string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrConfigNotFound,
		Message: fmt.Sprintf("no form configuration exists for %q", id),
	}
}

// NewDuplicateIDError returns a DUPLICATE_ID error.
func NewDuplicateIDError(id string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrDuplicateID,
		Message: fmt.Sprintf("a category with id %q already exists", id),
	}
}

// NewPersistenceError returns a PERSISTENCE_ERROR naming the backends that
// failed. cause is kept for errors.Is/As.
func NewPersistenceError(cause error, backends ...string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:     ErrPersistence,
		Message:  fmt.Sprintf("write failed on %s", strings.Join(backends, ", ")),
		Backends: backends,
		cause:    cause,
	}
}

// NewNetworkError returns a NETWORK_ERROR for a failed collaborator fetch.
func NewNetworkError(what string, cause error) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrNetwork,
		Message: fmt.Sprintf("failed to fetch %s", what),
		cause:   cause,
	}
}

// NewSubmitInFlightError returns a SUBMIT_IN_FLIGHT error.
func NewSubmitInFlightError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSubmitInFlight,
		Message: "a submission for this form is already in progress",
	}
}

// NewReadOnlyError returns a READ_ONLY error.
func NewReadOnlyError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrReadOnly,
		Message: "the form is read-only",
	}
}
