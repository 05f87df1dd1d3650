// Package exception provides the error types shared across castforge.
// It standardizes failures that occur during batch generation so that
// callers can classify them: transient upstream errors are retried,
// lifecycle violations and validation failures are reported as-is.
package exception

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the service-level failure taxonomy. Handlers and the
// orchestrator match on these with errors.Is.
var (
	// ErrNotFound indicates an operation referenced an unknown job identifier.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition indicates a pause/resume/cancel request incompatible
	// with the job's current state. No state change occurs.
	ErrInvalidTransition = errors.New("invalid job state transition")
	// ErrPlanMismatch indicates the persona collaborator returned a combination
	// count or tag distribution inconsistent with the requested plan structure.
	ErrPlanMismatch = errors.New("plan structure mismatch")
	// ErrValidation indicates a malformed or missing request field. Rejected
	// before any work starts.
	ErrValidation = errors.New("invalid request")
	// ErrRateLimited marks an upstream failure carrying a rate-limit signal
	// (HTTP 429 or equivalent). Rate-limited errors are transient.
	ErrRateLimited = errors.New("upstream rate limited")
)

// BatchError is the error type produced by castforge components. It carries
// the module where the failure occurred, a concise message, the wrapped
// original error, and a flag indicating whether the failure is transient
// (and therefore worth retrying).
type BatchError struct {
	// Module indicates the component where the error occurred
	// (e.g. "upstream", "store", "orchestrator", "config").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// transient indicates whether this error is retryable.
	transient bool
}

// New creates a new BatchError.
func New(module, message string, originalErr error, transient bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		transient:   transient,
	}
}

// Newf creates a non-transient BatchError from a format string.
func Newf(module, format string, a ...interface{}) *BatchError {
	return &BatchError{
		Module:  module,
		Message: fmt.Sprintf(format, a...),
	}
}

// Transient creates a transient BatchError from a format string.
func Transient(module, format string, a ...interface{}) *BatchError {
	return &BatchError{
		Module:    module,
		Message:   fmt.Sprintf(format, a...),
		transient: true,
	}
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is / errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsTransient returns whether this error is retryable.
func (e *BatchError) IsTransient() bool {
	return e.transient
}

// IsTransient determines whether an error is temporary (network hiccup,
// upstream overload, rate limiting). Retry logic consults this.
// The transient flag of a BatchError takes precedence anywhere in the chain.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.IsTransient()
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset")
}

// ExtractMessage extracts a human-readable message from an error.
// For BatchError, it returns the cleaner Message field.
func ExtractMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
