package domain

import (
	"errors"
	"time"
)

// Outcome-specific errors.
var (
	// ErrInvalidOutcome indicates an outcome failed structural validation.
	ErrInvalidOutcome = errors.New("invalid evaluator outcome")
)

// EvaluatorOutcome is the result of one evaluator applied to one case.
// Exactly one outcome is produced per (case, evaluator) attempt that runs to
// completion, whether it passed or not; immutable once created.
type EvaluatorOutcome struct {
	// Evaluator is the name of the evaluator that produced this outcome.
	Evaluator string `json:"evaluator" validate:"required,min=1"`

	// Score is the overall score in [0, 1].
	Score float64 `json:"score" validate:"min=0,max=1"`

	// SubScores holds named component scores, each in [0, 1].
	SubScores map[string]float64 `json:"sub_scores,omitempty"`

	// Passed reports whether the evaluator considered the output acceptable.
	Passed bool `json:"passed"`

	// Notes carries free-text commentary from the evaluator.
	Notes string `json:"notes,omitempty"`

	// Duration is the wall-clock execution time of the evaluator call.
	Duration time.Duration `json:"duration"`

	// ExternalCalls counts outbound calls the evaluator made.
	ExternalCalls int64 `json:"external_calls"`

	// TokensUsed counts token or unit consumption for budget reporting.
	TokensUsed int64 `json:"tokens_used"`

	// Error carries a non-fatal error message when the evaluator completed
	// with a degraded result.
	Error string `json:"error,omitempty"`
}

// Validate checks structural constraints on the outcome.
func (o EvaluatorOutcome) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Join(ErrInvalidOutcome, err)
	}
	for _, v := range o.SubScores {
		if v < 0 || v > 1 {
			return ErrInvalidOutcome
		}
	}
	return nil
}
