// Package indexer drives index builds. A Builder turns one build
// configuration into an index on disk: enumerate the input collections, index
// them on a worker pool, fold the results, and persist the index together
// with a snapshot of the configuration that produced it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ryanbrate/inverted-index/internal/corpus"
	"github.com/ryanbrate/inverted-index/internal/indexer/index"
	"github.com/ryanbrate/inverted-index/internal/indexer/notify"
	"github.com/ryanbrate/inverted-index/internal/indexer/scheduler"
	"github.com/ryanbrate/inverted-index/internal/indexer/segment"
	"github.com/ryanbrate/inverted-index/pkg/config"
	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
	"github.com/ryanbrate/inverted-index/pkg/logger"
	"github.com/ryanbrate/inverted-index/pkg/metrics"
	"github.com/ryanbrate/inverted-index/pkg/tracing"
)

// Outcome is what Process did with a configuration.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeBuilt
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBuilt:
		return "built"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

type Builder struct {
	cfg       config.IndexerConfig
	scheduler *scheduler.Scheduler
	writer    *segment.Writer
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Builder)

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func WithNotifier(n notify.Notifier) Option {
	return func(b *Builder) { b.notifier = n }
}

func WithScheduler(s *scheduler.Scheduler) Option {
	return func(b *Builder) { b.scheduler = s }
}

func NewBuilder(cfg config.IndexerConfig, opts ...Option) *Builder {
	b := &Builder{
		cfg:    cfg,
		writer: segment.NewWriter(cfg.Format),
		logger: logger.WithComponent("builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.scheduler == nil {
		b.scheduler = scheduler.New(scheduler.WithMetrics(b.metrics))
	}
	return b
}

// IndexPath is where the index for bc is written.
func (b *Builder) IndexPath(bc config.BuildConfig) string {
	return filepath.Join(bc.OutputDir, b.cfg.IndexFile)
}

// Process builds the index for one configuration. An existing output
// directory means the configuration was built before and it is skipped
// without reading any input. On failure nothing is written.
func (b *Builder) Process(ctx context.Context, bc config.BuildConfig) (Outcome, error) {
	ctx = logger.WithConfig(ctx, bc.Name)
	log := logger.FromContext(ctx).With("component", "builder")
	start := time.Now()

	if _, err := os.Stat(bc.OutputDir); err == nil {
		log.Info("output directory exists, skipping", "output_dir", bc.OutputDir)
		b.recordOutcome(OutcomeSkipped, start)
		return OutcomeSkipped, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		err = apperrors.WithConfig(apperrors.Wrap(apperrors.ErrIO, bc.OutputDir, err, "checking output directory"), bc.Name)
		b.recordOutcome(OutcomeFailed, start)
		return OutcomeFailed, err
	}

	ctx, span := tracing.StartSpan(ctx, "build", "")
	span.SetAttr("config", bc.Name)
	g, err := b.build(ctx, bc)
	span.End(err)
	span.Log(log)

	finished := time.Now()
	event := notify.Event{
		Config:     bc.Name,
		InputDir:   bc.InputDir,
		OutputDir:  bc.OutputDir,
		Format:     b.cfg.Format,
		StartedAt:  start,
		FinishedAt: finished,
	}
	if err != nil {
		err = apperrors.WithConfig(err, bc.Name)
		event.Status = notify.StatusFailed
		event.Error = err.Error()
		b.notify(ctx, event)
		b.recordOutcome(OutcomeFailed, start)
		return OutcomeFailed, err
	}

	stats := g.Stats()
	event.Status = notify.StatusBuilt
	event.IndexFile = b.IndexPath(bc)
	event.Stats = stats
	b.notify(ctx, event)
	b.recordOutcome(OutcomeBuilt, start)
	if b.metrics != nil {
		b.metrics.IndexTokens.WithLabelValues(bc.Name).Set(float64(stats.Tokens))
		b.metrics.IndexOccurrences.WithLabelValues(bc.Name).Set(float64(stats.Occurrences))
	}
	log.Info("index built",
		"output_dir", bc.OutputDir,
		"tokens", stats.Tokens,
		"collections", stats.Collections,
		"occurrences", stats.Occurrences,
		"duration_ms", finished.Sub(start).Milliseconds(),
	)
	return OutcomeBuilt, nil
}

func (b *Builder) build(ctx context.Context, bc config.BuildConfig) (*index.GlobalIndex, error) {
	log := logger.FromContext(ctx)

	_, enumSpan := tracing.StartChild(ctx, "enumerate")
	paths, err := corpus.Enumerate(bc.InputDir, b.cfg.MetadataFile)
	enumSpan.SetAttr("collections", len(paths))
	enumSpan.End(err)
	if err != nil {
		return nil, err
	}
	tasks := make([]scheduler.Task, len(paths))
	for i, p := range paths {
		tasks[i] = scheduler.Task{CollectionID: p, Path: p}
	}
	log.Debug("collections enumerated", "input_dir", bc.InputDir, "collections", len(tasks), "workers", bc.Processes)

	schedCtx, schedSpan := tracing.StartChild(ctx, "schedule")
	filter := index.NewTokenFilter(bc.TokensOfInterest)
	results, err := b.scheduler.Run(schedCtx, tasks, filter, bc.Processes)
	schedSpan.SetAttr("workers", bc.Processes)
	schedSpan.End(err)
	if err != nil {
		return nil, err
	}

	_, mergeSpan := tracing.StartChild(ctx, "merge")
	g := index.Fold(results)
	mergeSpan.SetAttr("tokens", g.Len())
	mergeSpan.End(nil)

	_, persistSpan := tracing.StartChild(ctx, "persist")
	err = b.persist(bc, g)
	persistSpan.End(err)
	if err != nil {
		// The directory did not exist when Process started. Leaving it
		// behind would make the next run skip this configuration.
		if rmErr := os.RemoveAll(bc.OutputDir); rmErr != nil {
			log.Warn("removing partial output failed", "output_dir", bc.OutputDir, "error", rmErr)
		}
		return nil, err
	}
	return g, nil
}

// persist writes the index first and the snapshot second, so a directory
// holding config.json always holds a complete index too.
func (b *Builder) persist(bc config.BuildConfig, g *index.GlobalIndex) error {
	if err := os.MkdirAll(bc.OutputDir, 0755); err != nil {
		return apperrors.Wrap(apperrors.ErrIO, bc.OutputDir, err, "creating output directory")
	}
	if err := b.writer.WriteIndex(b.IndexPath(bc), g); err != nil {
		return err
	}
	snapshot, err := bc.Snapshot()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrIO, bc.OutputDir, err, "encoding config snapshot")
	}
	return segment.WriteSnapshot(filepath.Join(bc.OutputDir, b.cfg.MetadataFile), snapshot)
}

func (b *Builder) notify(ctx context.Context, e notify.Event) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(ctx, e); err != nil {
		b.logger.Warn("notification failed", "config", e.Config, "sink", b.notifier.Name(), "error", err)
	}
}

func (b *Builder) recordOutcome(o Outcome, start time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.BuildsTotal.WithLabelValues(o.String()).Inc()
	if o != OutcomeSkipped {
		b.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	}
}

// ProcessBatch processes configurations one after another. A failed
// configuration is logged and the rest still run; the returned error joins
// every failure. Cancelling ctx stops the batch before the next
// configuration.
func (b *Builder) ProcessBatch(ctx context.Context, batch []config.BuildConfig) error {
	var errs []error
	counts := make(map[Outcome]int)
	for _, bc := range batch {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("batch interrupted before %s: %w", bc.Name, err))
			break
		}
		outcome, err := b.Process(ctx, bc)
		counts[outcome]++
		if err != nil {
			b.logger.Error("build failed", "config", bc.Name, "error", err)
			errs = append(errs, err)
		}
	}
	b.logger.Info("batch finished",
		"configs", len(batch),
		"built", counts[OutcomeBuilt],
		"skipped", counts[OutcomeSkipped],
		"failed", counts[OutcomeFailed],
	)
	return errors.Join(errs...)
}
