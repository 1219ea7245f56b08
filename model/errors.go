package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest      = "BAD_REQUEST"
	ErrNotFound        = "NOT_FOUND"
	ErrValidationError = "VALIDATION_ERROR"
	ErrSessionNotFound = "SESSION_NOT_FOUND"
	ErrNoIndexes       = "NO_INDEXES"
	ErrUpstreamFailure = "UPSTREAM_FAILURE"
	ErrUpstreamTimeout = "UPSTREAM_TIMEOUT"
	ErrInternalError   = "INTERNAL_ERROR"
)

// ErrorEnvelope is the standard error response envelope returned by the API.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewSessionNotFoundError returns a SESSION_NOT_FOUND error.
func NewSessionNotFoundError(id string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrSessionNotFound,
		Message: fmt.Sprintf("form session %q not found or expired", id),
	}
}

// NewNoIndexesError reports that no searchable indexes are known. This is a
// deployment problem, not a user-correctable one.
func NewNoIndexesError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code: ErrNoIndexes,
		Message: "No searchable indexes are available. Ensure the search service is " +
			"running and the admin key has permission to list indexes.",
	}
}

// NewUpstreamFailureError reports a non-success response from the search
// service, distinguishable from "nothing found" and from internal errors.
func NewUpstreamFailureError(msg string) *ErrorEnvelope {
	if msg == "" {
		msg = "Search request failed"
	}
	return &ErrorEnvelope{Code: ErrUpstreamFailure, Message: msg}
}

// NewUpstreamTimeoutError reports that the search service did not respond in time.
func NewUpstreamTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrUpstreamTimeout,
		Message: "The search service did not respond in time",
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}
