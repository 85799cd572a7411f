// Package retry implements the retry policy applied around a single evaluator
// call: up to MaxRetries additional attempts with exponential backoff and
// optional full jitter. The circuit breaker check is orthogonal and happens
// before each attempt via a caller-supplied gate.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"rescore/internal/domain"
)

// Configuration validation errors.
var (
	ErrMaxRetriesInvalid = errors.New("maxRetries must be >= 0")
	ErrBaseDelayInvalid  = errors.New("baseDelay must be > 0")
	ErrMaxDelayInvalid   = errors.New("maxDelay must be >= baseDelay")
)

// Policy controls retry behavior for failed evaluator calls.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first
	// failure. Zero means a single attempt.
	MaxRetries int `json:"max_retries"`

	// BaseDelay is the backoff before the first retry.
	BaseDelay time.Duration `json:"base_delay"`

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration `json:"max_delay"`

	// Jitter enables full jitter randomization of the computed backoff.
	Jitter bool `json:"jitter"`
}

// Validate checks policy parameters.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return ErrMaxRetriesInvalid
	}
	if p.BaseDelay <= 0 {
		return ErrBaseDelayInvalid
	}
	if p.MaxDelay < p.BaseDelay {
		return ErrMaxDelayInvalid
	}
	return nil
}

// Backoff returns the delay before retry number attempt (0-based):
// baseDelay * 2^attempt, capped at MaxDelay. With Jitter enabled the result
// is a uniform random duration in [0, backoff].
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}

	backoff := p.BaseDelay
	for range attempt {
		backoff *= 2
		if backoff >= p.MaxDelay {
			backoff = p.MaxDelay
			break
		}
	}

	if p.Jitter {
		// Full jitter: random between 0 and the calculated backoff.
		// math/rand/v2 is safe for concurrent use.
		return time.Duration(rand.Int64N(int64(backoff) + 1)) // #nosec G404 -- non-cryptographic jitter
	}
	return backoff
}

// AttemptFunc performs one attempt. It receives the 0-based attempt number.
type AttemptFunc func(ctx context.Context, attempt int) error

// GateFunc is consulted before every attempt; a non-nil error skips the
// attempt and ends the retry loop immediately (e.g. circuit open).
type GateFunc func() error

// Do runs fn up to 1+MaxRetries times, sleeping the backoff between attempts
// and honoring context cancellation during the sleep. Non-retryable errors
// (per domain.IsRetryable) end the loop immediately. On exhaustion the last
// error is wrapped with domain.ErrRetriesExhausted.
func (p Policy) Do(ctx context.Context, gate GateFunc, fn AttemptFunc) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.Backoff(attempt - 1)):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		if gate != nil {
			if err := gate(); err != nil {
				return err
			}
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if !domain.IsRetryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled after attempt %d: %w", attempt, ctx.Err())
		}
	}

	return fmt.Errorf("%w: %w", domain.ErrRetriesExhausted, lastErr)
}
