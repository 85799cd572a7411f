package domain

import (
	"time"
)

// EvaluatorAggregate summarizes one evaluator's performance across a batch.
type EvaluatorAggregate struct {
	// AvgScore averages the scores of successful outcomes.
	AvgScore float64 `json:"avg_score"`

	// AvgDuration averages execution time across all attempts that produced
	// an outcome.
	AvgDuration time.Duration `json:"avg_duration"`

	// SuccessRate is successful outcomes / total (case, evaluator) units.
	SuccessRate float64 `json:"success_rate"`

	// Runs counts (case, evaluator) units attributed to this evaluator.
	Runs int `json:"runs"`
}

// BatchReport is the result of running the pipeline across a whole dataset.
type BatchReport struct {
	// DatasetID identifies the evaluated dataset.
	DatasetID string `json:"dataset_id"`

	// Verdicts holds one pipeline verdict per case that produced one.
	Verdicts []PipelineVerdict `json:"verdicts"`

	// FailedCases maps case ID to the reason no verdict was produced.
	FailedCases map[string]string `json:"failed_cases"`

	// EvaluatorMetrics aggregates outcomes by evaluator name.
	EvaluatorMetrics map[string]EvaluatorAggregate `json:"evaluator_metrics"`

	// StartedAt and CompletedAt bound the batch run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// SuccessCases counts verdicts with at least one successful outcome.
func (r *BatchReport) SuccessCases() int {
	n := 0
	for i := range r.Verdicts {
		if !r.Verdicts[i].Failed() {
			n++
		}
	}
	return n
}

// Duration returns the wall-clock duration of the batch run.
func (r *BatchReport) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}
