package domain

// StageState identifies the current phase of a pipeline run. Stages advance
// monotonically and are never revisited within a run.
type StageState int32

const (
	// StageInitialization selects the evaluator set and sizes tracking state.
	StageInitialization StageState = iota
	// StagePreProcessing runs cheap input-shape validation per evaluator.
	StagePreProcessing
	// StageRunning executes the selected evaluators.
	StageRunning
	// StageAggregation combines outcomes into overall and category scores.
	StageAggregation
	// StagePostProcessing derives strengths, weaknesses, and recommendations.
	StagePostProcessing
	// StageSaving persists the verdict when an output directory is configured.
	StageSaving
	// StageCompleted is the terminal stage.
	StageCompleted
)

// String returns the stage name used in logs and verdict files.
func (s StageState) String() string {
	switch s {
	case StageInitialization:
		return "initialization"
	case StagePreProcessing:
		return "preprocessing"
	case StageRunning:
		return "running"
	case StageAggregation:
		return "aggregation"
	case StagePostProcessing:
		return "postprocessing"
	case StageSaving:
		return "saving"
	case StageCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// CanAdvanceTo reports whether a transition from s to next preserves the
// monotonic stage ordering.
func (s StageState) CanAdvanceTo(next StageState) bool {
	return next > s && next <= StageCompleted
}
