package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rescore/internal/aggregate"
	"rescore/internal/circuitbreaker"
	"rescore/internal/domain"
	"rescore/internal/evaluator"
	"rescore/internal/progress"
	"rescore/internal/telemetry"
)

// VerdictSaver persists a completed verdict. The file saver in this package
// is the default; database or object-store savers plug in the same way.
type VerdictSaver interface {
	Save(ctx context.Context, verdict *domain.PipelineVerdict) error
}

// Pipeline orchestrates one case through all configured evaluators.
// A pipeline is safe for concurrent Run calls; per-run state lives in the
// run. The circuit breaker registry and the evaluator semaphore are shared:
// the semaphore bounds simultaneous evaluator executions across every
// concurrent run of this pipeline, so a batch run over many cases never
// exceeds MaxConcurrentEvaluators in-flight calls in total.
type Pipeline struct {
	cfg      Config
	registry *evaluator.Registry
	breakers *circuitbreaker.Registry
	sem      chan struct{}
	saver    VerdictSaver
	observer progress.Observer
	logger   *slog.Logger
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithObserver wires a progress observer into every run's tracker.
func WithObserver(o progress.Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithSaver replaces the default file saver.
func WithSaver(s VerdictSaver) Option {
	return func(p *Pipeline) { p.saver = s }
}

// New builds a pipeline from a validated configuration. The breaker registry
// and the evaluator semaphore are shared across all runs of this pipeline;
// pass the same registry to multiple pipelines to share breaker state
// process-wide.
func New(cfg Config, registry *evaluator.Registry, breakers *circuitbreaker.Registry, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:      cfg,
		registry: registry,
		breakers: breakers,
		sem:      make(chan struct{}, cfg.MaxConcurrentEvaluators),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.saver == nil && cfg.OutputDir != "" {
		p.saver = &fileSaver{dir: cfg.OutputDir}
	}
	return p, nil
}

// evalResult carries one evaluator's terminal result through the running
// stage.
type evalResult struct {
	name    string
	outcome domain.EvaluatorOutcome
	err     error
}

// Run evaluates one case. A completed run always returns a verdict; callers
// must inspect FailedEvaluators to know whether it is partial. The returned
// error is non-nil only for run-level failures (invalid case, unresolvable
// configuration) and fail-fast aborts; in the abort case the verdict is still
// returned with finalized timestamps for diagnostics.
func (p *Pipeline) Run(ctx context.Context, c domain.Case, actual any) (*domain.PipelineVerdict, error) {
	return p.run(ctx, c, actual, nil)
}

// RunTracked evaluates one case like Run and additionally reports every
// evaluator start and completion to the caller-owned tracker, so a batch run
// sized cases x evaluators sees progress at (case, evaluator) granularity.
func (p *Pipeline) RunTracked(ctx context.Context, c domain.Case, actual any, batch *progress.Tracker) (*domain.PipelineVerdict, error) {
	return p.run(ctx, c, actual, batch)
}

// EvaluatorCount returns the number of evaluators the configured mode
// selects, for sizing batch-level progress trackers.
func (p *Pipeline) EvaluatorCount() int {
	return len(p.cfg.evaluatorNames(p.registry))
}

func (p *Pipeline) run(ctx context.Context, c domain.Case, actual any, batch *progress.Tracker) (*domain.PipelineVerdict, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	verdict := &domain.PipelineVerdict{
		RunID:            uuid.NewString(),
		CaseID:           c.ID,
		Mode:             p.cfg.Mode,
		Outcomes:         make(map[string]domain.EvaluatorOutcome),
		FailedEvaluators: make(map[string]string),
		CategoryScores:   make(map[string]float64),
		StartedAt:        time.Now(),
	}
	// Finalize timing no matter how the run ends.
	defer func() {
		verdict.CompletedAt = time.Now()
		verdict.Duration = verdict.CompletedAt.Sub(verdict.StartedAt)
	}()

	logger := p.logger.With("run_id", verdict.RunID, "case_id", c.ID)

	// Initialization: resolve the evaluator set and size the tracker.
	names := p.cfg.evaluatorNames(p.registry)
	evals, err := p.registry.Resolve(names)
	if err != nil {
		return nil, fmt.Errorf("resolving evaluators: %w", err)
	}
	tracker := progress.New(1, len(evals), p.observer, logger)
	logger.Info("pipeline run starting", "mode", p.cfg.Mode, "evaluators", len(evals),
		"parallel", p.cfg.ParallelExecution)

	// PreProcessing: cheap shape validation. Failures are logged and the
	// evaluator left in the set; it will fail at execution time.
	tracker.SetStage(domain.StagePreProcessing)
	for _, e := range evals {
		if err := e.Validate(c, actual); err != nil {
			logger.Warn("preprocessing validation failed",
				"evaluator", e.Capabilities().Name, "error", err)
			if p.cfg.FailFast {
				return verdict, fmt.Errorf("%w: %w", domain.ErrRunAborted, err)
			}
		}
	}

	// Running.
	tracker.SetStage(domain.StageRunning)
	results := p.runEvaluators(ctx, evals, c, actual, tracker, batch)

	var firstErr error
	for _, r := range results {
		if r.err != nil {
			verdict.FailedEvaluators[r.name] = r.err.Error()
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		verdict.Outcomes[r.name] = r.outcome
		verdict.Usage.TotalTokens += r.outcome.TokensUsed
		verdict.Usage.TotalExternalCalls += r.outcome.ExternalCalls
		verdict.Usage.TotalExecutionTime += r.outcome.Duration
	}

	if p.cfg.FailFast && firstErr != nil {
		return verdict, fmt.Errorf("%w: %w", domain.ErrRunAborted, firstErr)
	}

	// Aggregation.
	tracker.SetStage(domain.StageAggregation)
	weights, categories := p.aggregationTables(evals)
	scores := aggregate.Combine(aggregate.Inputs{
		Outcomes:   verdict.Outcomes,
		Weights:    weights,
		Categories: categories,
	})
	if len(verdict.Outcomes) == 0 {
		// Not a hard failure: the zero-score verdict is still returned.
		logger.Warn("no successful outcomes to aggregate",
			"failed_evaluators", len(verdict.FailedEvaluators))
	}
	verdict.OverallScore = scores.Overall
	verdict.Confidence = scores.Confidence
	verdict.CategoryScores = scores.ByCategory

	// PostProcessing.
	tracker.SetStage(domain.StagePostProcessing)
	verdict.Analysis = aggregate.DeriveFindings(
		verdict.Outcomes, verdict.FailedEvaluators, scores,
		aggregate.Thresholds{Confidence: p.cfg.ConfidenceThreshold})

	// Saving is optional and best-effort: a persistence failure does not
	// invalidate the in-memory verdict. Timestamps are stamped here so the
	// persisted document carries them; the deferred finalize refreshes them
	// on return.
	if p.saver != nil {
		tracker.SetStage(domain.StageSaving)
		verdict.CompletedAt = time.Now()
		verdict.Duration = verdict.CompletedAt.Sub(verdict.StartedAt)
		if err := p.saver.Save(ctx, verdict); err != nil {
			logger.Warn("failed to persist verdict", "error", err)
		}
	}

	tracker.SetStage(domain.StageCompleted)
	logger.Info("pipeline run completed",
		"overall", verdict.OverallScore, "confidence", verdict.Confidence,
		"outcomes", len(verdict.Outcomes), "failed", len(verdict.FailedEvaluators),
		"duration", time.Since(verdict.StartedAt))
	return verdict, nil
}

// aggregationTables builds the per-evaluator weight and category lookups from
// the configured weight tables and evaluator capabilities.
func (p *Pipeline) aggregationTables(evals []evaluator.Evaluator) (map[string]float64, map[string]string) {
	weights := make(map[string]float64, len(evals))
	categories := make(map[string]string, len(evals))
	for _, e := range evals {
		caps := e.Capabilities()
		categories[caps.Name] = caps.Category
		if w, ok := p.cfg.EvaluatorWeights[caps.Name]; ok {
			weights[caps.Name] = w
		} else if w, ok := p.cfg.CategoryWeights[caps.Category]; ok {
			weights[caps.Name] = w
		}
	}
	return weights, categories
}

// runEvaluators executes the selected evaluators per the concurrency policy
// and returns one result per evaluator, in selection order. Admission goes
// through the pipeline-shared semaphore inside runOne, so concurrent runs of
// the same pipeline share one in-flight bound.
func (p *Pipeline) runEvaluators(
	ctx context.Context,
	evals []evaluator.Evaluator,
	c domain.Case,
	actual any,
	tracker, batch *progress.Tracker,
) []evalResult {
	results := make([]evalResult, len(evals))

	if !p.cfg.ParallelExecution {
		for i, e := range evals {
			name := e.Capabilities().Name
			outcome, err := p.runOne(ctx, e, c, actual, tracker, batch)
			results[i] = evalResult{name: name, outcome: outcome, err: err}
			if err != nil && p.cfg.FailFast {
				for j := i + 1; j < len(evals); j++ {
					results[j] = evalResult{
						name: evals[j].Capabilities().Name,
						err:  domain.ErrRunAborted,
					}
				}
				break
			}
		}
		return results
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(len(evals))

	for i, e := range evals {
		go func() {
			defer wg.Done()

			name := e.Capabilities().Name
			outcome, err := p.runOne(runCtx, e, c, actual, tracker, batch)
			results[i] = evalResult{name: name, outcome: outcome, err: err}
			if err != nil && p.cfg.FailFast {
				cancel()
			}
		}()
	}

	wg.Wait()
	return results
}

// runOne executes one evaluator with circuit breaking, retry, and a per-call
// timeout. Failed attempts record breaker failures; exhausting the retry
// budget records one more. Trackers observe start and completion; batch is
// the optional tracker owned by a surrounding batch run.
func (p *Pipeline) runOne(
	ctx context.Context,
	e evaluator.Evaluator,
	c domain.Case,
	actual any,
	tracker, batch *progress.Tracker,
) (domain.EvaluatorOutcome, error) {
	name := e.Capabilities().Name

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		tracker.Update(c.ID, name, false)
		if batch != nil {
			batch.Update(c.ID, name, false)
		}
		return domain.EvaluatorOutcome{}, classify(ctx.Err(), name)
	}
	defer func() { <-p.sem }()

	tracker.StartEvaluation(c.ID, name)
	if batch != nil {
		batch.StartEvaluation(c.ID, name)
	}
	start := time.Now()

	var outcome domain.EvaluatorOutcome
	err := p.cfg.Retry.Do(ctx,
		func() error { return p.breakers.Allow(name) },
		func(attemptCtx context.Context, attempt int) error {
			if attempt > 0 {
				p.logger.Debug("retrying evaluator", "evaluator", name, "attempt", attempt)
			}
			callCtx, cancel := context.WithTimeout(attemptCtx, p.cfg.EvaluationTimeout)
			defer cancel()

			attemptStart := time.Now()
			o, callErr := invoke(callCtx, e, c, actual)
			if callErr != nil {
				// A cancellation arriving from above (fail-fast sibling,
				// batch deadline) is not this evaluator's fault and must
				// not accrue on its shared breaker.
				if attemptCtx.Err() == nil {
					p.breakers.RecordFailure(name)
				}
				return classify(callErr, name)
			}
			if o.Duration == 0 {
				o.Duration = time.Since(attemptStart)
			}
			p.breakers.RecordSuccess(name)
			outcome = o
			return nil
		})

	ok := err == nil
	if !ok {
		if errors.Is(err, domain.ErrRetriesExhausted) {
			// Exhaustion is recorded once more on top of the per-attempt
			// failures.
			p.breakers.RecordFailure(name)
		}
		telemetry.ObserveEvaluation(name, failureLabel(err), time.Since(start))
	} else {
		telemetry.ObserveEvaluation(name, telemetry.OutcomeSuccess, time.Since(start))
	}
	tracker.Update(c.ID, name, ok)
	if batch != nil {
		batch.Update(c.ID, name, ok)
	}
	if !ok {
		return domain.EvaluatorOutcome{}, err
	}
	return outcome, nil
}

// invoke calls the evaluator and enforces the call deadline even against an
// evaluator that ignores its context.
func invoke(ctx context.Context, e evaluator.Evaluator, c domain.Case, actual any) (domain.EvaluatorOutcome, error) {
	type result struct {
		outcome domain.EvaluatorOutcome
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		o, err := e.Evaluate(ctx, c, actual)
		ch <- result{outcome: o, err: err}
	}()

	select {
	case r := <-ch:
		return r.outcome, r.err
	case <-ctx.Done():
		return domain.EvaluatorOutcome{}, ctx.Err()
	}
}

// classify maps an evaluator call error into the domain taxonomy. Typed
// errors pass through; deadline errors become timeouts; everything else is a
// transient execution error.
func classify(err error, name string) error {
	var evalErr *domain.EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewEvaluationError(domain.ErrorTypeTimeout, name, "evaluation timed out", err)
	}
	return domain.NewEvaluationError(domain.ErrorTypeExecution, name, err.Error(), err)
}

// failureLabel maps a terminal error to its telemetry outcome label.
func failureLabel(err error) string {
	var evalErr *domain.EvaluationError
	if errors.As(err, &evalErr) {
		switch evalErr.Type {
		case domain.ErrorTypeTimeout:
			return telemetry.OutcomeTimeout
		case domain.ErrorTypeCircuitOpen:
			return telemetry.OutcomeCircuitOpen
		}
	}
	return telemetry.OutcomeFailure
}
