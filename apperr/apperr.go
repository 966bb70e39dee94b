// Package apperr defines the error categories shared by carbonboard packages.
//
// Error taxonomy
//
//	ErrInvalidInput – a numeric precondition was violated (negative elapsed time,
//	                  NaN gram quantity, malformed request body, ...). HTTP 400.
//	ErrNotFound     – a named thing does not exist (provider, session). HTTP 404.
//	ErrUnsupported  – the request is well formed but cannot be served with the
//	                  current configuration (provider without an API key). HTTP 422.
//	UserError       – invalid CLI usage; only the message is printed.
//
// Everything else is a plain Go error propagated with fmt.Errorf("context: %w", err).
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnsupported  = errors.New("unsupported")
)

// InvalidInputf returns an error wrapping ErrInvalidInput.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFoundf returns an error wrapping ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Unsupportedf returns an error wrapping ErrUnsupported.
func Unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// UserError represents an error caused by invalid or missing CLI input.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Userf creates a formatted UserError.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// IsUser reports whether err is (or wraps) a *UserError.
func IsUser(err error) bool {
	var u *UserError
	return errors.As(err, &u)
}
