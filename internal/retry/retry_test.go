package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescore/internal/domain"
	"rescore/internal/retry"
)

func fastPolicy(maxRetries int) retry.Policy {
	return retry.Policy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  retry.Policy
		wantErr error
	}{
		{"valid", retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Second}, nil},
		{"negative retries", retry.Policy{MaxRetries: -1, BaseDelay: time.Millisecond, MaxDelay: time.Second}, retry.ErrMaxRetriesInvalid},
		{"zero base delay", retry.Policy{MaxRetries: 1, MaxDelay: time.Second}, retry.ErrBaseDelayInvalid},
		{"max below base", retry.Policy{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: time.Millisecond}, retry.ErrMaxDelayInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPolicy_BackoffDoubles(t *testing.T) {
	p := retry.Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(3))
	// Capped at MaxDelay from here on.
	assert.Equal(t, time.Second, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(10))
}

func TestPolicy_BackoffJitterStaysWithinBound(t *testing.T) {
	p := retry.Policy{BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Jitter: true}

	for range 100 {
		d := p.Backoff(2) // un-jittered value would be 200ms
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestPolicy_DoSucceedsAfterTransientFailures(t *testing.T) {
	// Fails twice then succeeds: with MaxRetries=2 the function must be
	// invoked exactly 3 times and the overall result is success.
	calls := 0
	err := fastPolicy(2).Do(context.Background(), nil, func(_ context.Context, _ int) error {
		calls++
		if calls <= 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_DoExhaustsRetries(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), nil, func(_ context.Context, _ int) error {
		calls++
		return errors.New("always failing")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetriesExhausted)
	assert.Equal(t, 3, calls)
}

func TestPolicy_DoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	valErr := domain.NewEvaluationError(domain.ErrorTypeValidation, "structure", "bad shape", nil)
	err := fastPolicy(5).Do(context.Background(), nil, func(_ context.Context, _ int) error {
		calls++
		return valErr
	})

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRetriesExhausted)
	assert.Equal(t, 1, calls)
}

func TestPolicy_DoGateRejectionSkipsAttempt(t *testing.T) {
	calls := 0
	gateErr := domain.NewEvaluationError(domain.ErrorTypeCircuitOpen, "readability", "circuit breaker is open", domain.ErrCircuitOpen)
	err := fastPolicy(3).Do(context.Background(), func() error { return gateErr }, func(_ context.Context, _ int) error {
		calls++
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestPolicy_DoGateRecheckedEachAttempt(t *testing.T) {
	gateCalls := 0
	fnCalls := 0
	err := fastPolicy(2).Do(context.Background(),
		func() error {
			gateCalls++
			return nil
		},
		func(_ context.Context, _ int) error {
			fnCalls++
			return errors.New("transient")
		})

	require.Error(t, err)
	assert.Equal(t, 3, fnCalls)
	assert.Equal(t, 3, gateCalls)
}

func TestPolicy_DoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := retry.Policy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, nil, func(_ context.Context, _ int) error {
			calls++
			return errors.New("transient")
		})
	}()

	cancel()
	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
	assert.Equal(t, 1, calls)
}
