// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PhrasesIngestedTotal *prometheus.CounterVec
	ValuesComputedTotal  *prometheus.CounterVec
	ComputeErrorsTotal   *prometheus.CounterVec
	LookupsTotal         *prometheus.CounterVec
	GroupSizes           prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CheckpointFlushes    *prometheus.CounterVec
	CheckpointBytes      prometheus.Counter
	CommitQueueDepth     prometheus.Gauge
	IndexEntries         *prometheus.GaugeVec
	BaselineChecksTotal  *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PhrasesIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phrases_ingested_total",
				Help: "Total phrases processed by the ingest pipeline, by outcome (ok, failed).",
			},
			[]string{"outcome"},
		),
		ValuesComputedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "values_computed_total",
				Help: "Total codec values computed, by method.",
			},
			[]string{"method"},
		),
		ComputeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "compute_errors_total",
				Help: "Codec computation errors by method and kind (overflow, recursion).",
			},
			[]string{"method", "kind"},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_lookups_total",
				Help: "Total index lookups by kind (value, hierarchy) and result (hit, empty).",
			},
			[]string{"kind", "result"},
		),
		GroupSizes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relationship_group_size",
				Help:    "Number of related phrases returned per group query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		CheckpointFlushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkpoint_flushes_total",
				Help: "Total checkpoint log flush operations by status.",
			},
			[]string{"status"},
		),
		CheckpointBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "checkpoint_bytes_total",
				Help: "Total bytes appended to the checkpoint log.",
			},
		),
		CommitQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "commit_queue_depth",
				Help: "Current number of records waiting in the index commit queue.",
			},
		),
		IndexEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "index_entries",
				Help: "Number of distinct (alphabet, method, value) keys per partition.",
			},
			[]string{"partition"},
		),
		BaselineChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "baseline_checks_total",
				Help: "Baseline validation checks by outcome (match, mismatch, error).",
			},
			[]string{"outcome"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PhrasesIngestedTotal,
		m.ValuesComputedTotal,
		m.ComputeErrorsTotal,
		m.LookupsTotal,
		m.GroupSizes,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CheckpointFlushes,
		m.CheckpointBytes,
		m.CommitQueueDepth,
		m.IndexEntries,
		m.BaselineChecksTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
