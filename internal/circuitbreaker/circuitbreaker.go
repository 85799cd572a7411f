// Package circuitbreaker provides failure isolation for evaluators. A breaker
// is tracked per evaluator name and shared across every concurrent run in the
// process, so a consistently failing evaluator trips once for the whole
// workload instead of once per case.
//
// The breaker is deliberately two-state. Closed allows calls; reaching the
// failure threshold opens it until the recovery timeout elapses, after which
// it optimistically closes and the next call is attempted normally. There is
// no half-open probe state: the failure count is preserved across the
// optimistic close, so a single further failure reopens the breaker.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"

	"rescore/internal/domain"
	"rescore/internal/telemetry"
)

// CircuitState represents the observable state of one breaker.
type CircuitState int32

const (
	// StateClosed allows calls through.
	StateClosed CircuitState = iota
	// StateOpen rejects calls without invoking the evaluator.
	StateOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config controls breaker behavior for all evaluators in a registry.
type Config struct {
	// FailureThreshold is the consecutive-failure count that opens a breaker.
	FailureThreshold int `json:"failure_threshold" validate:"min=1"`

	// RecoveryTimeout is how long an open breaker rejects calls before
	// optimistically closing.
	RecoveryTimeout time.Duration `json:"recovery_timeout" validate:"min=0"`
}

// breakerState tracks one evaluator's failures. openUntil is the zero time
// while the breaker is closed.
type breakerState struct {
	failures  int
	openUntil time.Time
}

// Registry holds the process-wide breaker state, keyed by evaluator name.
// All access is serialized under a single mutex; state for a name is created
// lazily on first use.
type Registry struct {
	mu     sync.Mutex
	states map[string]*breakerState
	cfg    Config
	logger *slog.Logger
	now    func() time.Time // injected for tests
}

// NewRegistry creates a breaker registry with the given configuration.
// A nil logger falls back to slog.Default().
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		states: make(map[string]*breakerState),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// get returns the state for name, creating it if needed. Caller holds r.mu.
func (r *Registry) get(name string) *breakerState {
	s, ok := r.states[name]
	if !ok {
		s = &breakerState{}
		r.states[name] = s
	}
	return s
}

// Allow reports whether a call to the named evaluator may proceed. While the
// breaker is open it returns a circuit-open error without any evaluator
// invocation. When the recovery timeout has elapsed the breaker closes
// optimistically and the call is allowed.
func (r *Registry) Allow(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(name)
	if s.openUntil.IsZero() {
		return nil
	}
	if r.now().Before(s.openUntil) {
		return domain.NewEvaluationError(
			domain.ErrorTypeCircuitOpen, name,
			"circuit breaker is open", domain.ErrCircuitOpen,
		)
	}

	// Recovery timeout elapsed: close optimistically. The failure count is
	// kept so one further failure reopens the breaker immediately.
	s.openUntil = time.Time{}
	r.logger.Info("circuit breaker state transition",
		"evaluator", name, "from", StateOpen.String(), "to", StateClosed.String())
	telemetry.ObserveBreakerTransition(name, StateClosed.String())
	return nil
}

// RecordSuccess clears the named breaker: failure count to zero, open state
// cleared.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(name)
	wasOpen := !s.openUntil.IsZero()
	s.failures = 0
	s.openUntil = time.Time{}
	if wasOpen {
		r.logger.Info("circuit breaker state transition",
			"evaluator", name, "from", StateOpen.String(), "to", StateClosed.String())
		telemetry.ObserveBreakerTransition(name, StateClosed.String())
	}
}

// RecordFailure increments the named breaker's failure count and opens it
// when the threshold is reached.
func (r *Registry) RecordFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(name)
	s.failures++
	if s.failures >= r.cfg.FailureThreshold && s.openUntil.IsZero() {
		s.openUntil = r.now().Add(r.cfg.RecoveryTimeout)
		r.logger.Warn("circuit breaker state transition",
			"evaluator", name, "from", StateClosed.String(), "to", StateOpen.String(),
			"failures", s.failures, "recovery_timeout", r.cfg.RecoveryTimeout)
		telemetry.ObserveBreakerTransition(name, StateOpen.String())
	}
}

// State returns the current state of the named breaker. A breaker whose
// recovery timeout has elapsed reports closed.
func (r *Registry) State(name string) CircuitState {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[name]
	if !ok || s.openUntil.IsZero() || !r.now().Before(s.openUntil) {
		return StateClosed
	}
	return StateOpen
}

// Failures returns the current consecutive-failure count for the named
// breaker.
func (r *Registry) Failures(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[name]
	if !ok {
		return 0
	}
	return s.failures
}

// Reset clears the named breaker on operator command.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, name)
}

// ResetAll clears every breaker in the registry.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = make(map[string]*breakerState)
}
