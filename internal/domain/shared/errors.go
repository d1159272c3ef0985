// Package shared contains common domain types and errors used across all
// domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Every failure the engine reports wraps exactly one of
// these so callers can distinguish the kind with errors.Is().
var (
	// ErrNotFound - unknown learner, unknown item, or no eligible card.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState - a precondition of the cycle/day state machine failed.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidInput - malformed request data (day out of range, bad grade,
	// unrecognized level tag).
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyExists - uniqueness violation (duplicate username, duplicate
	// live cycle).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict - transient store-level failure (serialization conflict).
	// Safe to retry from outside: every mutating operation re-evaluates its
	// preconditions against current state when re-run.
	ErrConflict = errors.New("transient conflict")

	// ErrUnavailable - the store or cache cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// DomainError carries the failing domain, operation and kind alongside a
// human-readable message.
type DomainError struct {
	Domain  string // e.g. "cycle", "card", "review"
	Op      string // operation that failed, e.g. "OpenDay"
	Kind    error  // base error kind for errors.Is() checking
	Message string
	Err     error // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both kind and cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState checks if the error is a state-machine precondition failure.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsInvalidInput checks if the error is a validation failure.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsAlreadyExists checks if the error is a uniqueness violation.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsRetryable checks if the operation can be retried from outside.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable)
}
