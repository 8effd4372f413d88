// Package errs defines the error taxonomy shared by the triage domain
// services and handlers. Services wrap these sentinels with context via
// fmt.Errorf and %w; handlers translate them to HTTP statuses with Status.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for triage workflow operations.
var (
	// ErrValidation marks malformed input: empty symptoms, blank opinion
	// at validation time, out-of-range list indices.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState marks an operation that is not legal in the report's
	// current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrForbidden marks an authenticated caller without authorization for
	// the requested action.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a missing record, or one hidden from the caller by
	// the ownership policy.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a lost optimistic-concurrency race. Callers retry
	// by re-reading and reapplying their intent; services never retry.
	ErrConflict = errors.New("conflict")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// InvalidStatef wraps ErrInvalidState with a formatted message.
func InvalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidState}, args...)...)
}

// Status maps a workflow error to its HTTP status code. Unrecognized errors
// map to 500 so that storage failures are never disguised as client errors.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
