package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies evaluation failures for retry and reporting decisions.
// Validation and circuit-open failures are never retried; execution and
// timeout failures are transient and retried per policy.
type ErrorType string

const (
	// ErrorTypeValidation indicates malformed case or output shape (non-retryable).
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeExecution indicates a failure during an evaluator call (retryable).
	ErrorTypeExecution ErrorType = "execution"

	// ErrorTypeTimeout indicates the evaluator exceeded its deadline (retryable).
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeCircuitOpen indicates the call was rejected without invoking
	// the evaluator because its breaker is open (non-retryable).
	ErrorTypeCircuitOpen ErrorType = "circuit_open"

	// ErrorTypeAggregation indicates no successful outcome was available to
	// aggregate; surfaced as a run-level warning, not a hard failure.
	ErrorTypeAggregation ErrorType = "aggregation"
)

// Common sentinel errors shared across packages.
var (
	// ErrCircuitOpen indicates the circuit breaker rejected the call.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrRetriesExhausted indicates all retry attempts failed.
	ErrRetriesExhausted = errors.New("all retries exhausted")

	// ErrNoOutcomes indicates aggregation was asked to combine zero outcomes.
	ErrNoOutcomes = errors.New("no outcomes to aggregate")

	// ErrRunAborted indicates a fail-fast run stopped on its first failure.
	ErrRunAborted = errors.New("run aborted")

	// ErrUnknownEvaluator indicates a configured evaluator name has no
	// registered constructor.
	ErrUnknownEvaluator = errors.New("unknown evaluator")
)

// EvaluationError is the typed result value for expected failure modes:
// timeouts, circuit-open rejections, validation failures, and evaluator
// execution errors. Panics remain reserved for programmer bugs.
type EvaluationError struct {
	Type      ErrorType // Classified failure type
	Evaluator string    // Evaluator name, if attributable
	Message   string    // Human-readable description
	Err       error     // Wrapped cause, if any
}

// Error returns the formatted error string.
func (e *EvaluationError) Error() string {
	if e.Evaluator != "" {
		return fmt.Sprintf("%s error in evaluator %q: %s", e.Type, e.Evaluator, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *EvaluationError) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is transient and worth retrying.
func (e *EvaluationError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeExecution, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewEvaluationError builds an EvaluationError for the given evaluator.
func NewEvaluationError(t ErrorType, evaluator, message string, cause error) *EvaluationError {
	return &EvaluationError{Type: t, Evaluator: evaluator, Message: message, Err: cause}
}

// IsRetryable classifies an arbitrary error. Typed EvaluationErrors use their
// own classification; everything else is treated as a transient execution
// failure so that unknown errors remain subject to the retry budget.
func IsRetryable(err error) bool {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr.IsRetryable()
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	return true
}
