// Package evaluator defines the plug-in contract every scorer implements,
// a typed registry that resolves configured names into a fixed ordered
// collection, and the built-in heuristic evaluators for resume rewrites.
//
// Evaluators are narrow interfaces implemented by independent types;
// cross-cutting behavior (timing, retry, circuit breaking) is composed by the
// pipeline around them, never inherited. Implementations must be safely
// callable from concurrent goroutines and must fail cleanly, never panic, on
// unexpected input shapes.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rescore/internal/domain"
)

// Evaluator categories used by the aggregation weight table.
const (
	CategoryAccuracy  = "accuracy"
	CategoryQuality   = "quality"
	CategoryRelevance = "relevance"
)

// Well-known case input keys for resume evaluation.
const (
	InputResumeContent  = "resume_content"
	InputJobDescription = "job_description"
)

var (
	// ErrInvalidActualOutput indicates the actual output has an unusable shape.
	ErrInvalidActualOutput = errors.New("invalid actual output")

	// ErrMissingInput indicates a required case input key is absent.
	ErrMissingInput = errors.New("missing case input")
)

// Capabilities describes one evaluator for configuration and reporting.
type Capabilities struct {
	// Name is the registry key for the evaluator.
	Name string `json:"name"`

	// Category assigns the evaluator to a weight class
	// (accuracy, quality, relevance).
	Category string `json:"category"`

	// SupportsBatch reports whether EvaluateBatch is meaningful for this
	// evaluator beyond the generic concurrent fan-out.
	SupportsBatch bool `json:"supports_batch"`

	// Config declares the evaluator's tunable parameters and their values.
	Config map[string]any `json:"config,omitempty"`
}

// Evaluator is the plug-in contract for one scorer.
type Evaluator interface {
	// Evaluate scores the actual output against the case. It must validate
	// the output shape and return a typed error rather than panic on
	// unexpected input. Blocking work must honor ctx.
	Evaluate(ctx context.Context, c domain.Case, actual any) (domain.EvaluatorOutcome, error)

	// Validate cheaply checks the (case, actual) shape without scoring.
	// Used by the pipeline's preprocessing stage.
	Validate(c domain.Case, actual any) error

	// Describe returns a static human-readable description.
	Describe() string

	// Capabilities returns the evaluator's capability descriptor.
	Capabilities() Capabilities
}

// actualText coerces the actual-output value into the text under evaluation.
// Accepted shapes: a plain string, a []byte, or a map carrying the rewritten
// document under "optimized_resume" or "content".
func actualText(actual any) (string, error) {
	switch v := actual.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("%w: empty string", ErrInvalidActualOutput)
		}
		return v, nil
	case []byte:
		return actualText(string(v))
	case map[string]any:
		for _, key := range []string{"optimized_resume", "content"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return s, nil
			}
		}
		return "", fmt.Errorf("%w: map carries no optimized_resume or content string", ErrInvalidActualOutput)
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidActualOutput, actual)
	}
}

// requireInput returns the named case input or a validation error.
func requireInput(c domain.Case, key string) (string, error) {
	s := c.InputString(key)
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingInput, key)
	}
	return s, nil
}

// validationError wraps err into the domain taxonomy for the named evaluator.
func validationError(name string, err error) error {
	return domain.NewEvaluationError(domain.ErrorTypeValidation, name, err.Error(), err)
}
