package model

import (
	"errors"
	"fmt"
)

// Validation failures are non-retryable and abort resolution of the whole
// suite. Callers match the class with errors.Is and report Field/Value.
var (
	ErrInvalidSelector       = errors.New("invalid test case selector")
	ErrUnknownConnectionType = errors.New("unknown connection type")
	ErrUnknownPlugin         = errors.New("unknown plugin")
	ErrInvalidDuration       = errors.New("invalid duration")
	ErrInvalidInstances      = errors.New("invalid instances")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

type ValidationError struct {
	Err     error
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %q", e.Err, e.Value)
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Message)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newInvalidSelector(value, message string) error {
	return &ValidationError{Err: ErrInvalidSelector, Field: "test_cases", Value: value, Message: message}
}

func newValidationError(class error, field, value, message string) error {
	return &ValidationError{Err: class, Field: field, Value: value, Message: message}
}
