// Package batch runs the evaluation pipeline across a whole dataset. The
// runner owns the scheduling strategy and the batch deadline; each case is
// delegated to the pipeline, which owns per-case retry and breaker behavior.
// Breaker state is shared across the batch through the pipeline's registry,
// so an evaluator that melts down on early cases is skipped for later ones.
// The pipeline's evaluator semaphore is shared the same way: simultaneous
// evaluator executions stay bounded across the whole dataset, not per case.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"rescore/internal/domain"
	"rescore/internal/progress"
)

// Strategy selects how cases are scheduled.
type Strategy string

const (
	// StrategyNone runs cases strictly one at a time.
	StrategyNone Strategy = "none"

	// StrategyBounded runs up to MaxConcurrentCases cases at once.
	StrategyBounded Strategy = "bounded"

	// StrategyAdaptive is accepted and currently scheduled as bounded.
	// TODO: drive the bound from the recent-duration window once the
	// tracker exposes per-case throughput.
	StrategyAdaptive Strategy = "adaptive"
)

// DefaultMaxConcurrentCases bounds case parallelism when unset.
const DefaultMaxConcurrentCases = 4

// Config controls batch scheduling.
type Config struct {
	// Strategy selects the case scheduling mode.
	Strategy Strategy `json:"strategy" validate:"oneof=none bounded adaptive"`

	// MaxConcurrentCases bounds in-flight cases for bounded and adaptive
	// strategies.
	MaxConcurrentCases int `json:"max_concurrent_cases" validate:"min=1"`

	// BatchTimeout bounds the whole batch; zero means no deadline. Cases
	// still pending at the deadline are reported as failed.
	BatchTimeout time.Duration `json:"batch_timeout" validate:"min=0"`
}

// DefaultConfig returns the bounded strategy with default parallelism.
func DefaultConfig() Config {
	return Config{
		Strategy:           StrategyBounded,
		MaxConcurrentCases: DefaultMaxConcurrentCases,
	}
}

var validate = validator.New()

// Validate checks the scheduling parameters.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid batch config: %w", err)
	}
	return nil
}

// CaseRunner evaluates one case and returns its verdict. *pipeline.Pipeline
// satisfies this; the indirection keeps batch scheduling testable without a
// full pipeline.
type CaseRunner interface {
	Run(ctx context.Context, c domain.Case, actual any) (*domain.PipelineVerdict, error)
}

// TrackedCaseRunner is the optional upgrade a CaseRunner can implement to
// feed the batch-owned tracker with per-evaluator starts and completions,
// so batch progress is computed over cases x evaluators rather than whole
// cases. *pipeline.Pipeline implements it.
type TrackedCaseRunner interface {
	CaseRunner
	EvaluatorCount() int
	RunTracked(ctx context.Context, c domain.Case, actual any, tracker *progress.Tracker) (*domain.PipelineVerdict, error)
}

// Item pairs a case with the output under evaluation.
type Item struct {
	Case   domain.Case
	Actual any
}

// Runner schedules pipeline runs over a dataset.
type Runner struct {
	cfg      Config
	pipeline CaseRunner
	observer progress.Observer
	logger   *slog.Logger
}

// Option configures optional runner collaborators.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithObserver wires a batch-level progress observer. It sees case
// completions, not individual evaluator completions.
func WithObserver(o progress.Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// New builds a runner from a validated configuration.
func New(cfg Config, p CaseRunner, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:      cfg,
		pipeline: p,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// caseOutcome is one case's terminal result, position-indexed into the
// results slice so report assembly is deterministic.
type caseOutcome struct {
	caseID  string
	verdict *domain.PipelineVerdict
	err     error
}

// Run evaluates every item and assembles the batch report. It always returns
// a report; per-case failures land in FailedCases rather than aborting the
// batch. The returned error is non-nil only when the whole batch could not be
// scheduled.
func (r *Runner) Run(ctx context.Context, datasetID string, items []Item) (*domain.BatchReport, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("batch %q has no cases", datasetID)
	}

	if r.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.BatchTimeout)
		defer cancel()
	}

	report := &domain.BatchReport{
		DatasetID:   datasetID,
		FailedCases: make(map[string]string),
		StartedAt:   time.Now(),
	}

	// With a tracked runner the batch tracker counts (case, evaluator)
	// units; otherwise it degrades to whole-case granularity.
	tracked, fineGrained := r.pipeline.(TrackedCaseRunner)
	perCase := 1
	if fineGrained {
		if n := tracked.EvaluatorCount(); n > 0 {
			perCase = n
		}
	}
	tracker := progress.New(len(items), perCase, r.observer, r.logger)
	tracker.SetStage(domain.StageRunning)

	r.logger.Info("batch run starting", "dataset", datasetID,
		"cases", len(items), "strategy", r.cfg.Strategy)

	results := make([]caseOutcome, len(items))
	run := func(ctx context.Context, i int) {
		c := items[i].Case
		var verdict *domain.PipelineVerdict
		var err error
		if fineGrained {
			verdict, err = tracked.RunTracked(ctx, c, items[i].Actual, tracker)
		} else {
			tracker.StartEvaluation(c.ID, "pipeline")
			verdict, err = r.pipeline.Run(ctx, c, items[i].Actual)
			tracker.Update(c.ID, "pipeline", err == nil)
		}
		results[i] = caseOutcome{caseID: c.ID, verdict: verdict, err: err}
	}

	if r.cfg.Strategy == StrategyNone {
		for i := range items {
			if ctx.Err() != nil {
				results[i] = caseOutcome{caseID: items[i].Case.ID, err: ctx.Err()}
				continue
			}
			run(ctx, i)
		}
	} else {
		sem := make(chan struct{}, r.cfg.MaxConcurrentCases)
		var wg sync.WaitGroup
		wg.Add(len(items))
		for i := range items {
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				if ctx.Err() != nil {
					results[i] = caseOutcome{caseID: items[i].Case.ID, err: ctx.Err()}
					return
				}
				run(ctx, i)
			}()
		}
		wg.Wait()
	}

	tracker.SetStage(domain.StageAggregation)
	for _, res := range results {
		switch {
		case res.err != nil:
			report.FailedCases[res.caseID] = res.err.Error()
			if res.verdict != nil {
				report.Verdicts = append(report.Verdicts, *res.verdict)
			}
		case res.verdict.Failed():
			report.FailedCases[res.caseID] = "all evaluators failed"
			report.Verdicts = append(report.Verdicts, *res.verdict)
		default:
			report.Verdicts = append(report.Verdicts, *res.verdict)
		}
	}
	report.EvaluatorMetrics = evaluatorMetrics(report.Verdicts)
	report.CompletedAt = time.Now()

	tracker.SetStage(domain.StageCompleted)
	r.logger.Info("batch run completed", "dataset", datasetID,
		"success_cases", report.SuccessCases(), "failed_cases", len(report.FailedCases),
		"duration", report.Duration())
	return report, nil
}

// evaluatorMetrics folds per-case outcomes into per-evaluator aggregates.
// Failed (case, evaluator) units count toward Runs and drag SuccessRate down
// but contribute nothing to the score and duration averages.
func evaluatorMetrics(verdicts []domain.PipelineVerdict) map[string]domain.EvaluatorAggregate {
	type acc struct {
		scoreSum    float64
		durationSum time.Duration
		successes   int
		runs        int
	}
	accs := make(map[string]*acc)
	get := func(name string) *acc {
		a, ok := accs[name]
		if !ok {
			a = &acc{}
			accs[name] = a
		}
		return a
	}

	for i := range verdicts {
		for name, o := range verdicts[i].Outcomes {
			a := get(name)
			a.scoreSum += o.Score
			a.durationSum += o.Duration
			a.successes++
			a.runs++
		}
		for name := range verdicts[i].FailedEvaluators {
			get(name).runs++
		}
	}

	metrics := make(map[string]domain.EvaluatorAggregate, len(accs))
	for name, a := range accs {
		m := domain.EvaluatorAggregate{Runs: a.runs}
		if a.successes > 0 {
			m.AvgScore = a.scoreSum / float64(a.successes)
			m.AvgDuration = a.durationSum / time.Duration(a.successes)
		}
		if a.runs > 0 {
			m.SuccessRate = float64(a.successes) / float64(a.runs)
		}
		metrics[name] = m
	}
	return metrics
}
