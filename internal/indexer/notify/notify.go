// Package notify tells the outside world that a build finished. Sinks are
// optional and best effort: a sink that is down is retried, then tripped
// open, and never fails the build that triggered it.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/ryanbrate/inverted-index/internal/indexer/index"
	"github.com/ryanbrate/inverted-index/pkg/metrics"
	"github.com/ryanbrate/inverted-index/pkg/resilience"
)

// Build statuses carried by an Event.
const (
	StatusBuilt  = "built"
	StatusFailed = "failed"
)

// Event describes one finished build.
type Event struct {
	Config     string      `json:"config"`
	Status     string      `json:"status"`
	InputDir   string      `json:"input_dir"`
	OutputDir  string      `json:"output_dir"`
	IndexFile  string      `json:"index_file,omitempty"`
	Format     string      `json:"format,omitempty"`
	Stats      index.Stats `json:"stats"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

func (e Event) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Notifier delivers an Event to one sink.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, e Event) error
}

// Multi fans an event out to every sink in turn, each behind its own Guard.
type Multi struct {
	sinks   []guarded
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type guarded struct {
	sink  Notifier
	guard *resilience.Guard
}

type Option func(*Multi)

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Multi) { n.metrics = m }
}

func NewMulti(cfg resilience.GuardConfig, sinks []Notifier, opts ...Option) *Multi {
	n := &Multi{logger: slog.Default().With("component", "notify")}
	for _, s := range sinks {
		n.sinks = append(n.sinks, guarded{sink: s, guard: resilience.NewGuard(s.Name(), cfg)})
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Multi) Name() string { return "multi" }

// Notify always returns nil. Failures are logged and counted per sink.
func (n *Multi) Notify(ctx context.Context, e Event) error {
	for _, g := range n.sinks {
		err := g.guard.Do(ctx, func(ctx context.Context) error {
			return g.sink.Notify(ctx, e)
		})
		if err != nil {
			n.logger.Warn("notification failed",
				"sink", g.sink.Name(),
				"config", e.Config,
				"status", e.Status,
				"error", err,
			)
			if n.metrics != nil {
				n.metrics.NotifyFailuresTotal.WithLabelValues(g.sink.Name()).Inc()
			}
			continue
		}
		n.logger.Debug("notification delivered", "sink", g.sink.Name(), "config", e.Config)
	}
	return nil
}

// Len reports how many sinks are attached.
func (n *Multi) Len() int { return len(n.sinks) }
