// Package errs contains sentinel errors shared by the repository, service and
// server layers so that HTTP status mapping stays stable.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidID indicates a malformed identifier. It still satisfies
	// errors.Is(err, ErrNotFound): a bad id is just another inaccessible record.
	ErrInvalidID = fmt.Errorf("invalid id: %w", ErrNotFound)

	// ErrUnauthorized indicates a missing, invalid or expired credential, or bad login.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (e.g. email taken).
	ErrAlreadyExists = errors.New("already exists")
)

// ValidationError carries a human-readable message about a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation builds a *ValidationError for field.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
