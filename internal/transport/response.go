// Package transport contains the HTTP router, middleware chain, and all
// request handlers for the portal API.
package transport

import (
	"encoding/json"
	"net/http"

	"github.com/shaheenweb/portal/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes. NO_INDEXES is
// deliberately a 500: an empty index list is a deployment problem, not an
// upstream outage.
var statusForCode = map[string]int{
	model.ErrBadRequest:      http.StatusBadRequest,
	model.ErrNotFound:        http.StatusNotFound,
	model.ErrSessionNotFound: http.StatusNotFound,
	model.ErrValidationError: http.StatusUnprocessableEntity,
	model.ErrNoIndexes:       http.StatusInternalServerError,
	model.ErrInternalError:   http.StatusInternalServerError,
	model.ErrUpstreamFailure: http.StatusBadGateway,
	model.ErrUpstreamTimeout: http.StatusGatewayTimeout,
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
// HTTP status code. If err is not an *ErrorEnvelope, a generic 500 is returned.
func WriteError(w http.ResponseWriter, err error) {
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}

	type errorResponse struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	WriteJSON(w, status, errorResponse{Error: ee})
}

// WriteValidationError writes a 422 error response with field-level details.
func WriteValidationError(w http.ResponseWriter, details []model.FieldError) {
	WriteError(w, model.NewValidationError(details))
}
