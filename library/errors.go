package library

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument signals programmer or configuration misuse.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrValidation signals a business-rule violation the caller can recover from.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals an unknown id. It is always also an ErrValidation.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries the user-facing reason for a rejected operation.
type ValidationError struct {
	Reason   string
	NotFound bool
}

func (e *ValidationError) Error() string { return e.Reason }

// Is lets errors.Is match ErrValidation, and ErrNotFound for lookup failures.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	return e.NotFound && target == ErrNotFound
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...), NotFound: true}
}

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
