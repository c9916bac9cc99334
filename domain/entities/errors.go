package entities

import (
	"errors"
	"fmt"
)

// The engine's error taxonomy. Validation and conflict errors are rejected
// synchronously at the call boundary and never retried; dependency errors
// are retried up to the phase grace period; invariant violations halt
// processing of the affected contest.

// ValidationError rejects a request with a bad amount, side, or timing
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NewValidationError builds a ValidationError with a formatted reason
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError rejects a request that lost to existing state: a duplicate
// stake, a contest that is no longer open, a second settlement attempt.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

// NewConflictError builds a ConflictError with a formatted reason
func NewConflictError(format string, args ...any) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// IsConflict reports whether err is (or wraps) a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// DependencyError marks an unavailable collaborator: price feed down,
// balance service unreachable. Callers retry with backoff up to the phase
// grace period, then fall back to voiding for phase transitions; payout
// application keeps retrying since funds are already owed.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// NewDependencyError wraps a collaborator failure
func NewDependencyError(dependency string, err error) *DependencyError {
	return &DependencyError{Dependency: dependency, Err: err}
}

// IsDependencyUnavailable reports whether err is (or wraps) a DependencyError
func IsDependencyUnavailable(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

// InvariantViolationError is fatal for a contest: pool totals that do not
// reconcile, a double settlement. Processing of that contest halts and the
// condition is alerted, never silently repaired.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

// NewInvariantViolation builds an InvariantViolationError
func NewInvariantViolation(reason string) *InvariantViolationError {
	return &InvariantViolationError{Reason: reason}
}

// IsInvariantViolation reports whether err is (or wraps) an InvariantViolationError
func IsInvariantViolation(err error) bool {
	var ie *InvariantViolationError
	return errors.As(err, &ie)
}
