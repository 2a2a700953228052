/*
errors.go - Centralized error types for the finance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify failures with errors.Is against the sentinels.

ERROR CATEGORIES:
  1. InvalidInput - negative deal value, malformed dates, bad policy
  2. InvalidState - illegal status transition on a commission/installment
  3. NotFound     - operation referencing an unknown record id

USAGE:
  if errors.Is(err, finance.ErrInvalidState) {
      // 409 Conflict
  }

SEE ALSO:
  - commission.go: Transition checks producing InvalidTransitionError
  - service.go: Wraps store failures with operation context
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed engine inputs: negative
	// deal values, percentages outside 0-100, split fractions that do not
	// sum to one.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidState is returned when a status transition is attempted
	// from a state that does not permit it. The failed operation leaves
	// the record unchanged.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrNotFound is returned when an operation references an unknown
	// deal, installment, or commission id.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyClosed is returned when a deal closure is processed twice.
	// Commission generation is edge-triggered: it fires once per deal.
	ErrAlreadyClosed = errors.New("deal already closed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError reports an illegal commission status transition.
type InvalidTransitionError struct {
	CommissionID CommissionID
	From         CommissionStatus
	To           CommissionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("commission %s: cannot transition %s -> %s", e.CommissionID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidState }

// NegativeValueError reports a negative monetary input.
type NegativeValueError struct {
	Field string
	Value Money
}

func (e *NegativeValueError) Error() string {
	return fmt.Sprintf("%s must be non-negative, got %s", e.Field, e.Value)
}

func (e *NegativeValueError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// or an illegal transition (HTTP 4xx territory).
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrAlreadyClosed)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
