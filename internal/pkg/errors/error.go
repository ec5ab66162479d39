package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal server error")
	ErrRateLimited    = errors.New("too many requests")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrBadRequest     = errors.New("bad request")
	ErrUpstream       = errors.New("backend request failed")
)

// Console-specific failure classes
var (
	// ErrValidation is returned before any backend call is made.
	ErrValidation = errors.New("validation failed")

	// ErrAuthentication marks a terminal sign-in failure.
	ErrAuthentication = errors.New("authentication failed")

	// ErrCancelled is the reason of a flow whose popup closed before any signal.
	ErrCancelled = errors.New("sign-in cancelled")

	ErrCorrelationUnknown  = errors.New("unknown correlation token")
	ErrCorrelationExpired  = errors.New("correlation token expired")
	ErrCorrelationMismatch = errors.New("correlation token issued for a different provider")
)

// Validation wraps ErrValidation with a human readable reason.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
