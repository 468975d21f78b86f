// Package common defines the error taxonomy shared by the server and the
// client. Callers should match these values with errors.Is / errors.As.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized covers a bad auth code and a missing, invalid or
	// expired bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited is returned when the login limiter rejects a request.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNetwork wraps transport failures on the client side.
	ErrNetwork = errors.New("network error")

	// ErrServer wraps unexpected 5xx responses on the client side.
	ErrServer = errors.New("server error")
)

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
