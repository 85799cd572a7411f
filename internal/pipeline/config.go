// Package pipeline runs one case through the configured evaluators across
// ordered stages, applying circuit breaking, retry, and concurrency policy,
// then aggregates the outcomes into a verdict.
package pipeline

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"rescore/internal/circuitbreaker"
	"rescore/internal/evaluator"
	"rescore/internal/retry"
)

// Evaluation modes selecting fixed evaluator subsets.
const (
	// ModeQuick runs the cheap subset for fast feedback.
	ModeQuick = "quick"
	// ModeFull runs every registered evaluator.
	ModeFull = "full"
	// ModeCustom runs the caller-supplied evaluator list.
	ModeCustom = "custom"
)

// quickEvaluators is the fixed subset used by ModeQuick.
var quickEvaluators = []string{evaluator.NameKeywordCoverage, evaluator.NameStructure}

// Default configuration values.
const (
	DefaultMaxConcurrentEvaluators = 4
	DefaultEvaluationTimeout       = 30 * time.Second
	DefaultMaxRetries              = 2
	DefaultBaseDelay               = 250 * time.Millisecond
	DefaultMaxDelay                = 5 * time.Second
	DefaultFailureThreshold        = 3
	DefaultRecoveryTimeout         = 30 * time.Second
	DefaultConfidenceThreshold     = 0.5
)

// Default aggregation weights per evaluator category.
const (
	AccuracyWeight  = 0.4
	QualityWeight   = 0.3
	RelevanceWeight = 0.3
)

// Config is the explicit pipeline configuration, constructed at startup and
// passed into every component. There is no ambient global state.
type Config struct {
	// Mode selects the evaluator subset: quick, full, or custom.
	Mode string `json:"mode" validate:"oneof=quick full custom"`

	// CustomEvaluators lists evaluator names for ModeCustom.
	CustomEvaluators []string `json:"custom_evaluators,omitempty"`

	// ParallelExecution runs evaluators concurrently; otherwise strictly one
	// at a time in declared order.
	ParallelExecution bool `json:"parallel_execution"`

	// MaxConcurrentEvaluators bounds parallel execution.
	MaxConcurrentEvaluators int `json:"max_concurrent_evaluators" validate:"min=1"`

	// FailFast aborts the whole run on the first evaluator failure.
	FailFast bool `json:"fail_fast"`

	// EvaluationTimeout is the per-call deadline for one evaluator attempt.
	EvaluationTimeout time.Duration `json:"evaluation_timeout" validate:"min=1ms"`

	// Retry is the per-evaluator retry policy.
	Retry retry.Policy `json:"retry"`

	// CircuitBreaker configures per-evaluator failure isolation.
	CircuitBreaker circuitbreaker.Config `json:"circuit_breaker"`

	// CategoryWeights maps evaluator category to aggregation weight.
	CategoryWeights map[string]float64 `json:"category_weights"`

	// EvaluatorWeights overrides the category weight for named evaluators.
	EvaluatorWeights map[string]float64 `json:"evaluator_weights,omitempty"`

	// ConfidenceThreshold triggers the low-confidence recommendation.
	ConfidenceThreshold float64 `json:"confidence_threshold" validate:"min=0,max=1"`

	// OutputDir, when set, enables the Saving stage: one JSON verdict
	// document per run is written there.
	OutputDir string `json:"output_dir,omitempty"`
}

var configValidator = validator.New()

// DefaultConfig returns a production-ready configuration.
func DefaultConfig() Config {
	return Config{
		Mode:                    ModeFull,
		ParallelExecution:       true,
		MaxConcurrentEvaluators: DefaultMaxConcurrentEvaluators,
		EvaluationTimeout:       DefaultEvaluationTimeout,
		Retry: retry.Policy{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  DefaultBaseDelay,
			MaxDelay:   DefaultMaxDelay,
			Jitter:     true,
		},
		CircuitBreaker: circuitbreaker.Config{
			FailureThreshold: DefaultFailureThreshold,
			RecoveryTimeout:  DefaultRecoveryTimeout,
		},
		CategoryWeights: map[string]float64{
			evaluator.CategoryAccuracy:  AccuracyWeight,
			evaluator.CategoryQuality:   QualityWeight,
			evaluator.CategoryRelevance: RelevanceWeight,
		},
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// Validate checks the configuration. Configuration errors are fatal before
// any evaluator executes.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}
	if c.CircuitBreaker.FailureThreshold < 1 {
		return fmt.Errorf("invalid circuit breaker config: failure threshold %d", c.CircuitBreaker.FailureThreshold)
	}
	if c.Mode == ModeCustom && len(c.CustomEvaluators) == 0 {
		return fmt.Errorf("custom mode requires at least one evaluator name")
	}
	return nil
}

// evaluatorNames returns the evaluator set for the configured mode.
func (c Config) evaluatorNames(registry *evaluator.Registry) []string {
	switch c.Mode {
	case ModeQuick:
		return quickEvaluators
	case ModeCustom:
		return c.CustomEvaluators
	default:
		return registry.Names()
	}
}
