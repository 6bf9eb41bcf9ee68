package services

import (
	"errors"
	"fmt"

	"github.com/gamevault/apiserver/internal/store"
)

var (
	ErrDuplicateIdentity  = errors.New("username or email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyPresent     = errors.New("game already in library")
	ErrStorageDisabled    = errors.New("cover storage is not configured")

	// ErrUserNotFound marks a token whose account no longer exists.
	ErrUserNotFound = fmt.Errorf("user: %w", store.ErrNotFound)
)

// ValidationError reports a request that is missing or violates a required field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
