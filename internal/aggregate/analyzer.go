package aggregate

import (
	"fmt"
	"math"
	"sync"

	"rescore/internal/domain"
)

// TrendStats summarizes overall scores across an accumulated verdict set.
type TrendStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// FailureSummary describes the failed verdicts in an accumulated result set.
type FailureSummary struct {
	// FailedCount is the number of verdicts with no successful outcome.
	FailedCount int `json:"failed_count"`

	// Descriptions lists one line per failed verdict.
	Descriptions []string `json:"descriptions"`
}

// Analyzer accumulates verdicts across runs and computes cross-run trend and
// failure-pattern statistics. Used for reporting only; it never feeds back
// into any single run's verdict. Safe for concurrent use.
type Analyzer struct {
	mu       sync.Mutex
	verdicts []domain.PipelineVerdict
}

// NewAnalyzer creates an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Add records a completed verdict.
func (a *Analyzer) Add(v domain.PipelineVerdict) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verdicts = append(a.verdicts, v)
}

// Count returns the number of accumulated verdicts.
func (a *Analyzer) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.verdicts)
}

// Trend computes mean/min/max/stdev of overall scores over the accumulated
// set. Returns zero stats when empty.
func (a *Analyzer) Trend() TrendStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.verdicts)
	if n == 0 {
		return TrendStats{}
	}

	stats := TrendStats{Count: n, Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for i := range a.verdicts {
		s := a.verdicts[i].OverallScore
		sum += s
		stats.Min = math.Min(stats.Min, s)
		stats.Max = math.Max(stats.Max, s)
	}
	stats.Mean = sum / float64(n)

	var variance float64
	for i := range a.verdicts {
		d := a.verdicts[i].OverallScore - stats.Mean
		variance += d * d
	}
	stats.StdDev = math.Sqrt(variance / float64(n))
	return stats
}

// FailurePatterns summarizes the verdicts that produced no successful outcome.
func (a *Analyzer) FailurePatterns() FailureSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := FailureSummary{Descriptions: []string{}}
	for i := range a.verdicts {
		v := &a.verdicts[i]
		if !v.Failed() {
			continue
		}
		summary.FailedCount++
		summary.Descriptions = append(summary.Descriptions,
			fmt.Sprintf("case %s: all %d evaluators failed", v.CaseID, len(v.FailedEvaluators)))
	}
	return summary
}
