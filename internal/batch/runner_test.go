package batch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescore/internal/batch"
	"rescore/internal/circuitbreaker"
	"rescore/internal/domain"
	"rescore/internal/evaluator"
	"rescore/internal/pipeline"
	"rescore/internal/retry"
)

// fakeRunner scripts per-case verdicts without a real pipeline.
type fakeRunner struct {
	mu        sync.Mutex
	order     []string
	inflight  atomic.Int32
	maxSeen   atomic.Int32
	delay     time.Duration
	failCases map[string]error
	score     float64
}

func (f *fakeRunner) Run(ctx context.Context, c domain.Case, _ any) (*domain.PipelineVerdict, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if cur <= seen || f.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	f.mu.Lock()
	f.order = append(f.order, c.ID)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.failCases[c.ID]; ok {
		return nil, err
	}
	return &domain.PipelineVerdict{
		CaseID: c.ID,
		Outcomes: map[string]domain.EvaluatorOutcome{
			"stub": {Evaluator: "stub", Score: f.score, Passed: true, Duration: 10 * time.Millisecond},
		},
		FailedEvaluators: map[string]string{},
	}, nil
}

func cases(n int) []batch.Item {
	items := make([]batch.Item, n)
	for i := range items {
		items[i] = batch.Item{
			Case:   domain.Case{ID: fmt.Sprintf("case-%d", i), Input: map[string]any{"resume_content": "text"}},
			Actual: "output",
		}
	}
	return items
}

func TestRun_SequentialStrategyPreservesOrder(t *testing.T) {
	fake := &fakeRunner{score: 0.8}
	cfg := batch.DefaultConfig()
	cfg.Strategy = batch.StrategyNone

	r, err := batch.New(cfg, fake)
	require.NoError(t, err)

	report, err := r.Run(context.Background(), "ds", cases(4))
	require.NoError(t, err)

	assert.Equal(t, []string{"case-0", "case-1", "case-2", "case-3"}, fake.order)
	assert.Equal(t, int32(1), fake.maxSeen.Load())
	assert.Len(t, report.Verdicts, 4)
	assert.Empty(t, report.FailedCases)
	assert.Equal(t, 4, report.SuccessCases())
}

func TestRun_BoundedStrategyRespectsLimit(t *testing.T) {
	fake := &fakeRunner{score: 0.8, delay: 20 * time.Millisecond}
	cfg := batch.DefaultConfig()
	cfg.MaxConcurrentCases = 2

	r, err := batch.New(cfg, fake)
	require.NoError(t, err)

	report, err := r.Run(context.Background(), "ds", cases(8))
	require.NoError(t, err)

	assert.LessOrEqual(t, fake.maxSeen.Load(), int32(2))
	assert.Len(t, report.Verdicts, 8)
}

func TestRun_CaseFailureDoesNotAbortBatch(t *testing.T) {
	fake := &fakeRunner{
		score:     0.8,
		failCases: map[string]error{"case-1": errors.New("bad case shape")},
	}
	r, err := batch.New(batch.DefaultConfig(), fake)
	require.NoError(t, err)

	report, err := r.Run(context.Background(), "ds", cases(3))
	require.NoError(t, err)

	assert.Len(t, report.Verdicts, 2)
	require.Contains(t, report.FailedCases, "case-1")
	assert.Equal(t, "bad case shape", report.FailedCases["case-1"])
	assert.Equal(t, 2, report.SuccessCases())
}

func TestRun_BatchTimeoutFailsPendingCases(t *testing.T) {
	fake := &fakeRunner{score: 0.8, delay: 50 * time.Millisecond}
	cfg := batch.DefaultConfig()
	cfg.Strategy = batch.StrategyNone
	cfg.BatchTimeout = 75 * time.Millisecond

	r, err := batch.New(cfg, fake)
	require.NoError(t, err)

	report, err := r.Run(context.Background(), "ds", cases(5))
	require.NoError(t, err)

	assert.NotEmpty(t, report.FailedCases)
	assert.Less(t, report.SuccessCases(), 5)
	assert.False(t, report.CompletedAt.IsZero())
}

func TestRun_EvaluatorMetricsAggregation(t *testing.T) {
	fake := &fakeRunner{score: 0.6}
	r, err := batch.New(batch.DefaultConfig(), fake)
	require.NoError(t, err)

	report, err := r.Run(context.Background(), "ds", cases(4))
	require.NoError(t, err)

	m, ok := report.EvaluatorMetrics["stub"]
	require.True(t, ok)
	assert.Equal(t, 4, m.Runs)
	assert.InDelta(t, 0.6, m.AvgScore, 1e-9)
	assert.InDelta(t, 1.0, m.SuccessRate, 1e-9)
	assert.Equal(t, 10*time.Millisecond, m.AvgDuration)
}

func TestRun_EmptyBatchIsAnError(t *testing.T) {
	r, err := batch.New(batch.DefaultConfig(), &fakeRunner{})
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "ds", nil)
	assert.Error(t, err)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := batch.DefaultConfig()
	cfg.Strategy = "greedy"
	_, err := batch.New(cfg, &fakeRunner{})
	assert.Error(t, err)

	cfg = batch.DefaultConfig()
	cfg.MaxConcurrentCases = 0
	_, err = batch.New(cfg, &fakeRunner{})
	assert.Error(t, err)
}

// countingEvaluator tracks the peak number of simultaneous Evaluate calls
// across every instance sharing the same counters.
type countingEvaluator struct {
	name     string
	inflight *atomic.Int32
	peak     *atomic.Int32
}

func (e *countingEvaluator) Evaluate(ctx context.Context, _ domain.Case, _ any) (domain.EvaluatorOutcome, error) {
	cur := e.inflight.Add(1)
	defer e.inflight.Add(-1)
	for {
		p := e.peak.Load()
		if cur <= p || e.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return domain.EvaluatorOutcome{}, ctx.Err()
	}
	return domain.EvaluatorOutcome{Evaluator: e.name, Score: 0.5, Passed: true}, nil
}

func (e *countingEvaluator) Validate(domain.Case, any) error { return nil }
func (e *countingEvaluator) Describe() string                { return "counts concurrent executions" }
func (e *countingEvaluator) Capabilities() evaluator.Capabilities {
	return evaluator.Capabilities{Name: e.name, Category: "quality"}
}

func countingPipeline(t *testing.T, names []string, maxEvals int) (*pipeline.Pipeline, *atomic.Int32) {
	t.Helper()
	var inflight, peak atomic.Int32
	reg := evaluator.NewRegistry()
	for _, n := range names {
		require.NoError(t, reg.Register(n, func() evaluator.Evaluator {
			return &countingEvaluator{name: n, inflight: &inflight, peak: &peak}
		}))
	}

	cfg := pipeline.DefaultConfig()
	cfg.Mode = pipeline.ModeCustom
	cfg.CustomEvaluators = names
	cfg.MaxConcurrentEvaluators = maxEvals

	breakers := circuitbreaker.NewRegistry(cfg.CircuitBreaker, nil)
	p, err := pipeline.New(cfg, reg, breakers)
	require.NoError(t, err)
	return p, &peak
}

// The evaluator bound is shared by every case in the batch: even with four
// cases in flight, total simultaneous Evaluate calls never exceed the
// configured evaluator concurrency.
func TestRun_EvaluatorBoundHoldsAcrossWholeBatch(t *testing.T) {
	p, peak := countingPipeline(t, []string{"count-a", "count-b", "count-c"}, 2)

	bcfg := batch.DefaultConfig()
	bcfg.MaxConcurrentCases = 4
	r, err := batch.New(bcfg, p)
	require.NoError(t, err)

	report, err := r.Run(context.Background(), "bounded-ds", cases(4))
	require.NoError(t, err)

	assert.Equal(t, 4, report.SuccessCases())
	assert.LessOrEqual(t, peak.Load(), int32(2),
		"simultaneous evaluator executions exceeded the shared bound")
}

// Batch progress counts (case, evaluator) units, not whole cases.
func TestRun_ProgressCountsEvaluatorUnits(t *testing.T) {
	p, _ := countingPipeline(t, []string{"ev-a", "ev-b"}, 4)

	var final atomic.Value
	r, err := batch.New(batch.DefaultConfig(), p,
		batch.WithObserver(func(info domain.ProgressInfo) { final.Store(info) }))
	require.NoError(t, err)

	_, err = r.Run(context.Background(), "tracked-ds", cases(3))
	require.NoError(t, err)

	info, ok := final.Load().(domain.ProgressInfo)
	require.True(t, ok)
	assert.Equal(t, domain.StageCompleted, info.Stage)
	assert.Equal(t, 6, info.TotalCount)
	assert.Equal(t, 6, info.CompletedCount)
	assert.InDelta(t, 100.0, info.Percent, 1e-9)
}

// timeoutEvaluator never returns in time.
type timeoutEvaluator struct {
	calls atomic.Int32
}

func (e *timeoutEvaluator) Evaluate(ctx context.Context, _ domain.Case, _ any) (domain.EvaluatorOutcome, error) {
	e.calls.Add(1)
	<-ctx.Done()
	return domain.EvaluatorOutcome{}, ctx.Err()
}

func (e *timeoutEvaluator) Validate(domain.Case, any) error { return nil }
func (e *timeoutEvaluator) Describe() string                { return "never finishes" }
func (e *timeoutEvaluator) Capabilities() evaluator.Capabilities {
	return evaluator.Capabilities{Name: "stuck", Category: "quality"}
}

// End to end through a real pipeline: an evaluator that always times out
// fails every case, and its breaker opens partway through so the tail of the
// batch never invokes it.
func TestRun_TimeoutEvaluatorOpensBreakerAcrossBatch(t *testing.T) {
	stuck := &timeoutEvaluator{}
	reg := evaluator.NewRegistry()
	require.NoError(t, reg.Register("stuck", func() evaluator.Evaluator { return stuck }))

	cfg := pipeline.DefaultConfig()
	cfg.Mode = pipeline.ModeCustom
	cfg.CustomEvaluators = []string{"stuck"}
	cfg.EvaluationTimeout = 10 * time.Millisecond
	cfg.Retry = retry.Policy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	cfg.CircuitBreaker = circuitbreaker.Config{FailureThreshold: 3, RecoveryTimeout: time.Hour}

	breakers := circuitbreaker.NewRegistry(cfg.CircuitBreaker, nil)
	p, err := pipeline.New(cfg, reg, breakers)
	require.NoError(t, err)

	bcfg := batch.DefaultConfig()
	bcfg.Strategy = batch.StrategyNone
	r, err := batch.New(bcfg, p)
	require.NoError(t, err)

	report, err := r.Run(context.Background(), "timeout-ds", cases(5))
	require.NoError(t, err)

	assert.Len(t, report.FailedCases, 5)
	assert.Equal(t, 0, report.SuccessCases())
	assert.Equal(t, circuitbreaker.StateOpen, breakers.State("stuck"))

	// One attempt plus one exhaustion record per case opens the breaker on
	// the second case; cases three through five never invoke the evaluator.
	assert.Equal(t, int32(2), stuck.calls.Load())

	m := report.EvaluatorMetrics["stuck"]
	assert.Equal(t, 5, m.Runs)
	assert.Zero(t, m.SuccessRate)
}
