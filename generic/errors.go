/*
errors.go - Centralized error types for the ladder engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Configuration errors - input rejected before any simulation step
  2. Invariant errors     - internal logic violations, the run is aborted
  3. Ledger errors        - misuse of instrument transitions
  4. Store errors         - catalogue lookups

A funding gap is NOT an error. It is reported as data in the forecast
result and the simulation continues past it.

USAGE:
    if errors.Is(err, generic.ErrInvariantViolation) {
        // bug or corrupt input, never retry
    }
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidConfig is returned when simulation input is malformed.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvariantViolation is returned when the engine detects an internal
	// inconsistency. The run is aborted.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrInstrumentNotFound is returned when a ledger transition names an unknown instrument.
	ErrInstrumentNotFound = errors.New("instrument not found")

	// ErrInstrumentClosed is returned when a transition targets an already closed instrument.
	ErrInstrumentClosed = errors.New("instrument already closed")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrScenarioNotFound is returned when a stored scenario doesn't exist.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrForecastNotFound is returned when a saved forecast run doesn't exist.
	ErrForecastNotFound = errors.New("forecast not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigError names the offending configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// InvariantError describes which check failed and with what value.
type InvariantError struct {
	Check string
	At    TimePoint
	Value decimal.Decimal
}

func (e *InvariantError) Error() string {
	if e.At.IsZero() {
		return fmt.Sprintf("invariant violation: %s (value %s)", e.Check, e.Value)
	}
	return fmt.Sprintf("invariant violation: %s at %s (value %s)", e.Check, e.At, e.Value)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScenarioNotFound) ||
		errors.Is(err, ErrForecastNotFound) ||
		errors.Is(err, ErrInstrumentNotFound)
}

// IsInvariant returns true if the engine aborted on an internal consistency check.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}
