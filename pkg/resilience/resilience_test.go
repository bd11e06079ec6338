package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSink = errors.New("sink unavailable")

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("kafka", BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	cb.now = func() time.Time { return clock }

	fail := func() error { return errSink }
	assert.ErrorIs(t, cb.Execute(fail), errSink)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errSink)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	clock = clock.Add(time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("redis", BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	cb.now = func() time.Time { return clock }

	_ = cb.Execute(func() error { return errSink })
	clock = clock.Add(2 * time.Second)
	_ = cb.Execute(func() error { return errSink })
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetry_SucceedsEventually(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errSink
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_GivesUp(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		calls.Add(1)
		return errSink
	})
	assert.ErrorIs(t, err, errSink)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetry_DoesNotRetryOpenCircuit(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "op", RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		calls.Add(1)
		return ErrCircuitOpen
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	err := Retry(ctx, "op", RetryConfig{MaxAttempts: 10, InitialDelay: time.Hour}, func(ctx context.Context) error {
		cancel()
		return errSink
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errSink)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, WithTimeout(context.Background(), 0, "direct", func(ctx context.Context) error { return nil }))
}

func TestGuard_Do(t *testing.T) {
	g := NewGuard("postgres", GuardConfig{
		Timeout: time.Second,
		Retry:   RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond},
		Breaker: BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour},
	})
	var calls atomic.Int32
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		return errSink
	})
	assert.ErrorIs(t, err, errSink)
	assert.Equal(t, StateOpen, g.Breaker().State())

	err = g.Do(context.Background(), func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "postgres", g.Name())
}
