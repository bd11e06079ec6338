// Package metrics defines the Prometheus collectors for index builds and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the indexer.
type Metrics struct {
	CollectionsIndexedTotal *prometheus.CounterVec
	CollectionIndexDuration prometheus.Histogram
	BuildsTotal             *prometheus.CounterVec
	BuildDuration           prometheus.Histogram
	IndexTokens             *prometheus.GaugeVec
	IndexOccurrences        *prometheus.GaugeVec
	WorkerPoolSize          prometheus.Gauge
	NotifyFailuresTotal     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CollectionsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collections_indexed_total",
				Help: "Collections indexed by outcome (ok, error).",
			},
			[]string{"status"},
		),
		CollectionIndexDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collection_index_duration_seconds",
				Help:    "Time to load, parse and index one collection.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "builds_total",
				Help: "Build configurations processed by outcome (built, skipped, failed).",
			},
			[]string{"status"},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "build_duration_seconds",
				Help:    "End-to-end time to build and persist one configuration.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
			},
		),
		IndexTokens: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_tokens",
				Help: "Distinct tokens in the last index built for a configuration.",
			},
			[]string{"config"},
		),
		IndexOccurrences: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_occurrences",
				Help: "Occurrences recorded in the last index built for a configuration.",
			},
			[]string{"config"},
		),
		WorkerPoolSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_pool_size",
				Help: "Worker pool size of the configuration currently being built.",
			},
		),
		NotifyFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_failures_total",
				Help: "Failed post-build notifications by sink.",
			},
			[]string{"sink"},
		),
	}

	reg.MustRegister(
		m.CollectionsIndexedTotal,
		m.CollectionIndexDuration,
		m.BuildsTotal,
		m.BuildDuration,
		m.IndexTokens,
		m.IndexOccurrences,
		m.WorkerPoolSize,
		m.NotifyFailuresTotal,
	)

	return m
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors, for a process that serves its own metrics.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the scrape handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
