// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream request failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// fieldErrorer is implemented by validation errors that name their fields.
type fieldErrorer interface {
	FieldErrors() map[string]string
}

// userMessager is implemented by errors carrying text meant for the end user.
type userMessager interface {
	UserMessage() string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	problem := ProblemDetail{Detail: err.Error()}
	var fields fieldErrorer
	if errors.As(err, &fields) {
		problem.Errors = fields.FieldErrors()
	}
	var msg userMessager
	if errors.As(err, &msg) && msg.UserMessage() != "" {
		problem.Detail = msg.UserMessage()
	}

	switch {
	case errors.Is(err, ErrNotFound):
		problem.Status, problem.Title = http.StatusNotFound, "Not Found"
	case errors.Is(err, ErrDuplicate):
		problem.Status, problem.Title = http.StatusConflict, "Duplicate"
	case errors.Is(err, ErrValidation):
		problem.Status, problem.Title = http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, ErrConflict):
		problem.Status, problem.Title = http.StatusConflict, "Conflict"
	case errors.Is(err, ErrUpstream):
		problem.Status, problem.Title = http.StatusBadGateway, "Upstream Error"
	case errors.Is(err, ErrForbidden):
		problem.Status, problem.Title = http.StatusForbidden, "Forbidden"
	case errors.Is(err, ErrUnauthorized):
		problem.Status, problem.Title = http.StatusUnauthorized, "Unauthorized"
	default:
		problem = ProblemDetail{Status: http.StatusInternalServerError, Title: "Internal Error"}
	}
	JSON(w, problem.Status, problem)
}
