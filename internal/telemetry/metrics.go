// Package telemetry exposes Prometheus collectors for the evaluation engine.
// Collectors are registered on the default registry; serving them over HTTP
// is left to the embedding process.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescore_evaluations_total",
		Help: "Evaluator invocations by terminal outcome.",
	}, []string{"evaluator", "outcome"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescore_breaker_transitions_total",
		Help: "Circuit breaker state transitions per evaluator.",
	}, []string{"evaluator", "state"})

	evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rescore_evaluation_duration_seconds",
		Help:    "Wall-clock duration of evaluator calls.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"evaluator"})
)

// Outcome labels for ObserveEvaluation.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeTimeout     = "timeout"
	OutcomeCircuitOpen = "circuit_open"
)

// ObserveEvaluation records one terminal evaluator attempt.
func ObserveEvaluation(evaluator, outcome string, d time.Duration) {
	evaluationsTotal.WithLabelValues(evaluator, outcome).Inc()
	evaluationDuration.WithLabelValues(evaluator).Observe(d.Seconds())
}

// ObserveBreakerTransition records a circuit state change.
func ObserveBreakerTransition(evaluator, state string) {
	breakerTransitions.WithLabelValues(evaluator, state).Inc()
}
