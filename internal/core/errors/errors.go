// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Unexported errors (err*): Use for internal package errors
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Statistical computation errors.
var (
	// ErrInsufficientData indicates a series is too short for a statistically
	// meaningful result. Callers must treat this distinctly from a computed
	// correlation of zero.
	ErrInsufficientData = errors.New("insufficient data")
)

// Registry errors.
var (
	// ErrThemeNotFound indicates a theme id is not present in the registry.
	ErrThemeNotFound = errors.New("theme not found")

	// ErrThemeExists indicates a theme id is already registered.
	ErrThemeExists = errors.New("theme already exists")

	// ErrThemeRetired indicates a write was attempted against a retired theme.
	ErrThemeRetired = errors.New("theme is retired")

	// ErrMemberNotFound indicates a ticker has no membership in the theme.
	ErrMemberNotFound = errors.New("member not found")
)

// Narrative service errors.
var (
	// ErrNarrativeUnavailable indicates the narrative service is absent,
	// timed out, or failed. Callers fall back to the rule-based path.
	ErrNarrativeUnavailable = errors.New("narrative service unavailable")

	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid config")
)

// Ingest errors.
var (
	// ErrSnapshotMissing indicates no returns document is available yet.
	// The scheduler treats this as "nothing to do", not a failure.
	ErrSnapshotMissing = errors.New("snapshot missing")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
