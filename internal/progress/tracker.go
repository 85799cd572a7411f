// Package progress tracks completion and ETA for evaluation runs. One tracker
// is owned by a single pipeline or batch run; evaluator completions race from
// many goroutines, so all mutation is serialized under one mutex and reads
// take consistent snapshots.
package progress

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rescore/internal/domain"
)

// recentWindowSize bounds the rolling window of per-evaluator durations used
// for the ETA estimate.
const recentWindowSize = 100

// Observer is invoked with a snapshot copy after every progress update. It is
// how an external delivery mechanism is wired in without this package
// depending on any transport. Called synchronously; implementations should
// return quickly or hand off to their own goroutine.
type Observer func(domain.ProgressInfo)

// Tracker holds the mutable progress state for one run.
type Tracker struct {
	mu sync.Mutex

	stage     domain.StageState
	completed map[string]struct{} // keyed caseID/evaluator
	total     int
	startedAt time.Time

	starts map[string]time.Time // in-flight evaluation start times

	// recent is a bounded ring of the most recent evaluation durations.
	recent    [recentWindowSize]time.Duration
	recentLen int
	recentPos int

	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a tracker sized for totalCases x totalEvaluators evaluations.
func New(totalCases, totalEvaluators int, observer Observer, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	return &Tracker{
		stage:     domain.StageInitialization,
		completed: make(map[string]struct{}),
		total:     totalCases * totalEvaluators,
		startedAt: now(),
		starts:    make(map[string]time.Time),
		observer:  observer,
		logger:    logger,
		now:       now,
	}
}

// key builds the completion-set key for one (case, evaluator) unit.
func key(caseID, evaluator string) string {
	return fmt.Sprintf("%s/%s", caseID, evaluator)
}

// SetStage advances the run stage. Regressions are rejected and logged;
// the stage ordering is monotonic by contract.
func (t *Tracker) SetStage(stage domain.StageState) {
	t.mu.Lock()
	if stage != t.stage && !t.stage.CanAdvanceTo(stage) {
		t.logger.Warn("rejected stage regression",
			"from", t.stage.String(), "to", stage.String())
		t.mu.Unlock()
		return
	}
	t.stage = stage
	info := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(info)
}

// StartEvaluation records the start timestamp for one (case, evaluator) unit.
func (t *Tracker) StartEvaluation(caseID, evaluator string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.starts[key(caseID, evaluator)] = t.now()
}

// Update records the completion of one (case, evaluator) unit, feeds its
// elapsed time into the recent-duration window, and notifies the observer.
// Success and failure both count toward completion; the success flag is
// carried to the observer boundary through logging only.
func (t *Tracker) Update(caseID, evaluator string, success bool) {
	k := key(caseID, evaluator)

	t.mu.Lock()
	if started, ok := t.starts[k]; ok {
		elapsed := t.now().Sub(started)
		t.recent[t.recentPos] = elapsed
		t.recentPos = (t.recentPos + 1) % recentWindowSize
		if t.recentLen < recentWindowSize {
			t.recentLen++
		}
		delete(t.starts, k)
	}
	t.completed[k] = struct{}{}
	info := t.snapshotLocked()
	t.mu.Unlock()

	t.logger.Debug("evaluation finished",
		"case", caseID, "evaluator", evaluator, "success", success,
		"percent", info.Percent)
	t.notify(info)
}

// Snapshot returns a consistent copy of the current progress state.
func (t *Tracker) Snapshot() domain.ProgressInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// snapshotLocked builds a ProgressInfo. Caller holds t.mu.
func (t *Tracker) snapshotLocked() domain.ProgressInfo {
	done := len(t.completed)
	if done > t.total {
		done = t.total
	}

	percent := 0.0
	if t.total > 0 {
		percent = float64(done) / float64(t.total) * 100
	}

	var eta time.Duration
	if t.recentLen > 0 && done < t.total {
		var sum time.Duration
		for i := range t.recentLen {
			sum += t.recent[i]
		}
		avg := sum / time.Duration(t.recentLen)
		eta = avg * time.Duration(t.total-done)
	}

	completed := make([]string, 0, done)
	for k := range t.completed {
		completed = append(completed, k)
	}

	return domain.ProgressInfo{
		Stage:          t.stage,
		Completed:      completed,
		CompletedCount: done,
		TotalCount:     t.total,
		Percent:        percent,
		ETA:            eta,
		Elapsed:        t.now().Sub(t.startedAt),
		StartedAt:      t.startedAt,
	}
}

// notify invokes the observer outside the tracker lock.
func (t *Tracker) notify(info domain.ProgressInfo) {
	if t.observer != nil {
		t.observer(info)
	}
}
