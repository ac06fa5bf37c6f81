// Package apperr defines the error kinds shared by the store, services and
// transport layers. Callers match kinds with errors.Is; the message carries
// the detail.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks malformed, blank or illegal input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced chat, group, category or entry that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermission marks a caller that is not allowed to perform the mutation.
	ErrPermission = errors.New("permission denied")
	// ErrConflict marks a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidOperation marks an operation that does not apply to the chat's mode.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrTransient marks a store conflict that may succeed when retried.
	ErrTransient = errors.New("transient store error")
)

func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Permission(format string, args ...any) error {
	return wrap(ErrPermission, format, args...)
}

func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func InvalidOperation(format string, args ...any) error {
	return wrap(ErrInvalidOperation, format, args...)
}

// Transient wraps cause so that it matches both ErrTransient and cause.
func Transient(cause error) error {
	return fmt.Errorf("%w: %w", ErrTransient, cause)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error kind to the status code returned by the API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
