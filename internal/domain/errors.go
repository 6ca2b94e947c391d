package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable means the persistence layer could not be reached or
	// timed out. A send that hits it has no partial effects.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDeliveryFailed is what the sender sees when persistence failed.
	ErrDeliveryFailed = errors.New("delivery failed")

	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError rejects a payload before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
