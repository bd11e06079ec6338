package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a context that expires after timeout. fn is
// expected to honour ctx; if it returns late its result is discarded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(tctx) }()

	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w after %v", name, context.DeadlineExceeded, timeout)
	}
}

// Guard applies a per-attempt timeout, a circuit breaker, and retry to every
// call made through Do.
type Guard struct {
	name    string
	timeout time.Duration
	retry   RetryConfig
	breaker *CircuitBreaker
}

type GuardConfig struct {
	Timeout time.Duration
	Retry   RetryConfig
	Breaker BreakerConfig
}

func NewGuard(name string, cfg GuardConfig) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Guard{
		name:    name,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		breaker: NewCircuitBreaker(name, cfg.Breaker),
	}
}

func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return Retry(ctx, g.name, g.retry, func(ctx context.Context) error {
		return g.breaker.Execute(func() error {
			return WithTimeout(ctx, g.timeout, g.name, fn)
		})
	})
}

func (g *Guard) Name() string { return g.name }

func (g *Guard) Breaker() *CircuitBreaker { return g.breaker }
