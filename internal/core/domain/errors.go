package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds surfaced by the core. Adapters map these to transport codes;
// callers should test with errors.Is.
var (
	ErrInvalidInput       = errors.New("domain: invalid input")
	ErrNotFound           = errors.New("domain: not found")
	ErrServiceUnavailable = errors.New("domain: analysis service unavailable")
	ErrTimeout            = errors.New("domain: analysis timed out")
	ErrConflict           = errors.New("domain: version conflict")
	ErrInternal           = errors.New("domain: internal error")
)

// ValidationError describes a user-correctable problem with one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UnavailableError reports that the analysis collaborator could not be
// reached. RetryAfter is zero when the collaborator gave no hint.
type UnavailableError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e UnavailableError) Error() string {
	if e.Cause == nil {
		return ErrServiceUnavailable.Error()
	}
	return fmt.Sprintf("%s: %v", ErrServiceUnavailable.Error(), e.Cause)
}

func (e UnavailableError) Is(target error) bool {
	return target == ErrServiceUnavailable
}

func (e UnavailableError) Unwrap() error {
	return e.Cause
}
