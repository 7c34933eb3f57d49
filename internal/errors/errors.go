// Package errors provides the error definitions for perfstat.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
// - A collector for validation errors

package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Configuration errors. Fatal, detected before sampling starts.
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrMissingField     = errors.New("missing required field")
	ErrUnknownInterface = errors.New("unknown network interface")
	ErrInvalidEndpoint  = errors.New("invalid perftest endpoint")

	// Data errors
	ErrNoData = errors.New("no measurement data")

	// Invariant violations. Fatal, indicate a counter source bug.
	ErrKeySetMismatch     = errors.New("sample key set mismatch")
	ErrInvariantViolation = errors.New("invariant violation")

	// State errors
	ErrNotRunning     = errors.New("sampler is not running")
	ErrAlreadyStarted = errors.New("sampler already started")

	// Source errors
	ErrSourceUnavailable = errors.New("counter source unavailable")

	// Transport errors
	ErrUpload           = errors.New("upload failed")
	ErrTimeout          = errors.New("timeout")
	ErrConnectionFailed = errors.New("connection failed")
	ErrNotEnoughPoints  = errors.New("not enough points to render")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// New is a convenience wrapper for errors.New
var New = errors.New

// IsConfigError returns true if err is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrUnknownInterface) ||
		errors.Is(err, ErrInvalidEndpoint)
}

// IsInvariantViolation returns true if err means the series can no longer
// be trusted.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrKeySetMismatch) ||
		errors.Is(err, ErrInvariantViolation)
}

// IsStateError returns true if err is a state-related error.
func IsStateError(err error) bool {
	return errors.Is(err, ErrNotRunning) ||
		errors.Is(err, ErrAlreadyStarted)
}

// IsRetriable returns true if the error is potentially retriable.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewUnknownInterface creates an unknown-interface error listing what exists.
func NewUnknownInterface(name string, available []string) error {
	return fmt.Errorf("%q (available: %v): %w", name, available, ErrUnknownInterface)
}

// NewInvalidEndpoint creates an endpoint validation error.
func NewInvalidEndpoint(endpoint, reason string) error {
	return fmt.Errorf("%q %s: %w", endpoint, reason, ErrInvalidEndpoint)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
