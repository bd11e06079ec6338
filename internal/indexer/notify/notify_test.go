package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanbrate/inverted-index/internal/indexer/index"
	"github.com/ryanbrate/inverted-index/pkg/metrics"
	"github.com/ryanbrate/inverted-index/pkg/resilience"
)

type recorder struct {
	name   string
	err    error
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Notify(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func sampleEvent() Event {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return Event{
		Config:     "news",
		Status:     StatusBuilt,
		InputDir:   "/data/in",
		OutputDir:  "/data/out",
		IndexFile:  "/data/out/inverted_index.json",
		Format:     "nested",
		Stats:      index.Stats{Tokens: 3, Collections: 1, Occurrences: 4},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
}

var fastGuard = resilience.GuardConfig{
	Timeout: time.Second,
	Retry:   resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond},
}

func TestMulti_FailingSinkDoesNotStopOthers(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	bad := &recorder{name: "kafka", err: errors.New("broker down")}
	good := &recorder{name: "redis"}
	n := NewMulti(fastGuard, []Notifier{bad, good}, WithMetrics(m))

	require.NoError(t, n.Notify(context.Background(), sampleEvent()))

	assert.Len(t, bad.events, 2, "retried once")
	assert.Len(t, good.events, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotifyFailuresTotal.WithLabelValues("kafka")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NotifyFailuresTotal.WithLabelValues("redis")))
	assert.Equal(t, 2, n.Len())
}

type fakePublisher struct {
	key   string
	value []byte
}

func (f *fakePublisher) Publish(ctx context.Context, key string, value any) error {
	f.key = key
	data, err := json.Marshal(value)
	f.value = data
	return err
}

func TestKafkaSink(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewKafkaSink(pub).Notify(context.Background(), sampleEvent()))

	assert.Equal(t, "news", pub.key)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.value, &decoded))
	assert.Equal(t, "built", decoded["status"])
	assert.Equal(t, map[string]any{"tokens": 3.0, "collections": 1.0, "occurrences": 4.0}, decoded["stats"])
	assert.NotContains(t, decoded, "error")
}

type fakeHash struct {
	key    string
	fields map[string]any
	ttl    time.Duration
}

func (f *fakeHash) SetHash(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error {
	f.key, f.fields, f.ttl = key, fields, ttl
	return nil
}

func TestStatusBoard(t *testing.T) {
	h := &fakeHash{}
	require.NoError(t, NewStatusBoard(h, time.Hour).Notify(context.Background(), sampleEvent()))

	assert.Equal(t, "index:build:news", h.key)
	assert.Equal(t, time.Hour, h.ttl)
	assert.Equal(t, "built", h.fields["status"])
	assert.Equal(t, "4", h.fields["occurrences"])
	assert.Equal(t, "1500", h.fields["duration_ms"])
	assert.Equal(t, "2026-03-01T12:00:01Z", h.fields["finished_at"])
}

type fakeExec struct {
	queries []string
	args    [][]any
	err     error
}

func (f *fakeExec) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return nil, f.err
}

func TestCatalog(t *testing.T) {
	db := &fakeExec{}
	c := NewCatalog(db)
	require.NoError(t, c.EnsureSchema(context.Background()))
	require.NoError(t, c.Notify(context.Background(), sampleEvent()))

	require.Len(t, db.queries, 2)
	assert.Contains(t, db.queries[0], "CREATE TABLE IF NOT EXISTS index_builds")
	assert.Contains(t, db.queries[1], "ON CONFLICT (config)")
	assert.Len(t, db.args[1], 12)
	assert.Equal(t, "news", db.args[1][0])

	db.err = errors.New("relation does not exist")
	err := c.Notify(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "recording build news")
}
