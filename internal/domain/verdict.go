package domain

import (
	"errors"
	"time"
)

// Verdict-specific errors.
var (
	// ErrInvalidVerdict is returned when verdict validation fails.
	ErrInvalidVerdict = errors.New("invalid verdict")
)

// VerdictUsage groups resource consumption totals for one run.
type VerdictUsage struct {
	// TotalTokens aggregates token/unit consumption across all evaluators.
	TotalTokens int64 `json:"total_tokens"`

	// TotalExternalCalls counts outbound calls across all evaluators.
	TotalExternalCalls int64 `json:"total_external_calls"`

	// TotalExecutionTime sums per-evaluator execution durations. This can
	// exceed wall-clock duration under parallel execution.
	TotalExecutionTime time.Duration `json:"total_execution_time"`
}

// Analysis holds the derived findings for one verdict.
type Analysis struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	Recommendations []string `json:"recommendations"`
}

// PipelineVerdict is the aggregated, multi-evaluator result for one case.
// It is created once per run and is immutable after the run's aggregation
// stage. Every evaluator selected for the run appears in exactly one of
// Outcomes or FailedEvaluators.
type PipelineVerdict struct {
	// RunID uniquely identifies this pipeline run.
	RunID string `json:"run_id" validate:"required"`

	// CaseID identifies the evaluated case.
	CaseID string `json:"case_id" validate:"required"`

	// Mode names the evaluator subset used (quick, full, custom).
	Mode string `json:"mode"`

	// Outcomes maps evaluator name to its completed outcome.
	Outcomes map[string]EvaluatorOutcome `json:"outcomes"`

	// FailedEvaluators maps evaluator name to the failure reason for
	// evaluators that never produced an outcome. Callers must inspect this
	// map to know whether the verdict is partial.
	FailedEvaluators map[string]string `json:"failed_evaluators"`

	// OverallScore is the weighted combination of outcome scores in [0, 1].
	OverallScore float64 `json:"overall_score" validate:"min=0,max=1"`

	// Confidence measures agreement among evaluator scores in [0, 1].
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// CategoryScores averages outcomes per evaluator category.
	CategoryScores map[string]float64 `json:"category_scores"`

	// Analysis holds derived strengths, weaknesses, and recommendations.
	Analysis Analysis `json:"analysis"`

	// Usage totals resource consumption across the run.
	Usage VerdictUsage `json:"usage"`

	// StartedAt marks run initiation.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt marks run completion; stamped even on abort.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the end-to-end wall-clock time of the run.
	Duration time.Duration `json:"duration"`
}

// Validate checks structural constraints on the verdict.
func (v *PipelineVerdict) Validate() error {
	if err := validate.Struct(v); err != nil {
		return errors.Join(ErrInvalidVerdict, err)
	}
	return nil
}

// Failed reports whether the run produced no successful outcome at all.
func (v *PipelineVerdict) Failed() bool {
	return len(v.Outcomes) == 0
}

// Partial reports whether at least one evaluator failed to produce an outcome.
func (v *PipelineVerdict) Partial() bool {
	return len(v.FailedEvaluators) > 0
}
