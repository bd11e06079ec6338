package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ryanbrate/inverted-index/internal/indexer"
	"github.com/ryanbrate/inverted-index/internal/indexer/notify"
	"github.com/ryanbrate/inverted-index/pkg/config"
	"github.com/ryanbrate/inverted-index/pkg/health"
	"github.com/ryanbrate/inverted-index/pkg/kafka"
	"github.com/ryanbrate/inverted-index/pkg/metrics"
	"github.com/ryanbrate/inverted-index/pkg/postgres"
	"github.com/ryanbrate/inverted-index/pkg/redis"
	"github.com/ryanbrate/inverted-index/pkg/resilience"
)

var sinkGuard = resilience.GuardConfig{
	Timeout: 5 * time.Second,
	Retry:   resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond},
	Breaker: resilience.BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute},
}

// runtime owns everything a command needs around a Builder: metrics, the
// health checker, and the optional notification sinks.
type runtime struct {
	builder *indexer.Builder
	checker *health.Checker
	closers []func() error
}

// newRuntime connects the sinks enabled in cfg. A sink that cannot be
// reached at startup is logged and left out; builds never depend on one.
func newRuntime(ctx context.Context, cfg *config.Config) *runtime {
	rt := &runtime{checker: health.NewChecker()}
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	var sinks []notify.Notifier
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		rt.closers = append(rt.closers, producer.Close)
		rt.checker.Sink("kafka", func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		})
		sinks = append(sinks, notify.NewKafkaSink(producer))
	}
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis status board disabled", "error", err)
		} else {
			rt.closers = append(rt.closers, client.Close)
			rt.checker.Sink("redis", client.Ping)
			sinks = append(sinks, notify.NewStatusBoard(client, cfg.Redis.StatusTTL))
		}
	}
	if cfg.Postgres.Enabled {
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres catalog disabled", "error", err)
		} else {
			catalog := notify.NewCatalog(client.DB)
			if err := catalog.EnsureSchema(ctx); err != nil {
				slog.Warn("postgres catalog disabled", "error", err)
				client.Close()
			} else {
				rt.closers = append(rt.closers, client.Close)
				rt.checker.Sink("postgres", client.Ping)
				sinks = append(sinks, catalog)
			}
		}
	}

	opts := []indexer.Option{indexer.WithMetrics(m)}
	if len(sinks) > 0 {
		opts = append(opts, indexer.WithNotifier(notify.NewMulti(sinkGuard, sinks, notify.WithMetrics(m))))
	}
	rt.builder = indexer.NewBuilder(cfg.Indexer, opts...)

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, reg, rt.checker)
		rt.closers = append(rt.closers, func() error {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(sctx)
		})
	}
	return rt
}

func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
