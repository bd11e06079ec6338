// Package scheduler runs the per-collection indexer over every collection of
// a build, either in order on the calling goroutine or on a fixed-size
// worker pool, and hands back one result per collection once all have
// finished.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryanbrate/inverted-index/internal/corpus"
	"github.com/ryanbrate/inverted-index/internal/indexer/index"
	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
	"github.com/ryanbrate/inverted-index/pkg/metrics"
)

// Task names one collection to index.
type Task struct {
	CollectionID string
	Path         string
}

// Loader reads and parses the collection at path.
type Loader func(path string) (corpus.Collection, error)

type Scheduler struct {
	load    Loader
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Scheduler)

func WithLoader(l Loader) Option {
	return func(s *Scheduler) { s.load = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		load:   corpus.Load,
		logger: slog.Default().With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run indexes every task. With parallelism 1 tasks run sequentially in
// order; otherwise at most parallelism tasks run at once, each worker owning
// its collection end to end. Run returns only after every started task has
// finished. The first failure aborts the batch: it is returned, tasks not yet
// started are skipped, and no results are returned.
func (s *Scheduler) Run(ctx context.Context, tasks []Task, filter index.TokenFilter, parallelism int) ([]index.Result, error) {
	if parallelism < 1 {
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, "", "degree of parallelism must be >= 1, got %d", parallelism)
	}
	if s.metrics != nil {
		s.metrics.WorkerPoolSize.Set(float64(parallelism))
	}
	if parallelism == 1 {
		return s.runSequential(ctx, tasks, filter)
	}
	return s.runPool(ctx, tasks, filter, parallelism)
}

func (s *Scheduler) runSequential(ctx context.Context, tasks []Task, filter index.TokenFilter) ([]index.Result, error) {
	results := make([]index.Result, 0, len(tasks))
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.runTask(task, filter)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
		s.logger.Debug("collection indexed",
			"collection", task.CollectionID,
			"tokens", len(r.Index),
			"done", i+1,
			"total", len(tasks),
		)
	}
	return results, nil
}

func (s *Scheduler) runPool(ctx context.Context, tasks []Task, filter index.TokenFilter, parallelism int) ([]index.Result, error) {
	results := make([]index.Result, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	var done atomic.Int64
	for i, task := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.runTask(task, filter)
			if err != nil {
				return err
			}
			results[i] = r
			s.logger.Debug("collection indexed",
				"collection", task.CollectionID,
				"tokens", len(r.Index),
				"done", done.Add(1),
				"total", len(tasks),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runTask loads and indexes one collection. A panic is reported as a worker
// failure for that collection.
func (s *Scheduler) runTask(task Task, filter index.TokenFilter) (r index.Result, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = apperrors.Newf(apperrors.ErrWorkerFailure, task.Path, "indexing %s panicked: %v", task.CollectionID, p)
		}
		s.observe(start, err)
	}()
	c, err := s.load(task.Path)
	if err != nil {
		var ie *apperrors.IndexError
		if !errors.As(err, &ie) {
			err = apperrors.Wrap(apperrors.ErrWorkerFailure, task.Path, err, "loading collection")
		}
		return index.Result{}, err
	}
	return index.Result{CollectionID: task.CollectionID, Index: index.Build(c, filter)}, nil
}

func (s *Scheduler) observe(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.CollectionIndexDuration.Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.CollectionsIndexedTotal.WithLabelValues(status).Inc()
}
