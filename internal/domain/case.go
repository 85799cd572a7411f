// Package domain provides the core value types for resume-rewrite evaluation:
// cases, per-evaluator outcomes, pipeline verdicts, batch reports, and the
// error taxonomy shared by every component. Types are designed for
// reproducible, auditable evaluation runs: once constructed they are treated
// as immutable and passed by value or read-only reference.
package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for domain types.
// validator.Validate is safe for concurrent use.
var validate = validator.New()

// Case is one unit of input to be scored: the original material, the
// system-under-test inputs, and optional ground truth. Cases are produced by
// dataset loading and never mutated afterwards.
type Case struct {
	// ID uniquely identifies the case within its dataset.
	ID string `json:"id" yaml:"id" validate:"required,min=1"`

	// Name is a human-readable label for reports.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Input carries the evaluation inputs. For resume optimization this is
	// typically resume_content and job_description keys, but the shape is
	// evaluator-specific and deliberately loose.
	Input map[string]any `json:"input" yaml:"input" validate:"required"`

	// Expected holds optional expected outputs keyed by field name.
	Expected map[string]any `json:"expected,omitempty" yaml:"expected,omitempty"`

	// GroundTruth holds optional reference values used by accuracy-class
	// evaluators.
	GroundTruth map[string]any `json:"ground_truth,omitempty" yaml:"ground_truth,omitempty"`

	// Category groups cases for reporting (e.g. "software_engineering").
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Difficulty is free-form metadata (e.g. "easy", "hard").
	Difficulty string `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`

	// Tags carries arbitrary labels for filtering.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Validate checks structural constraints on the case.
func (c Case) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid case %q: %w", c.ID, err)
	}
	return nil
}

// InputString returns the named input coerced to a string,
// or "" when absent or of another type.
func (c Case) InputString(key string) string {
	v, ok := c.Input[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
