// Package metrics exposes Prometheus collectors for the cache, the fetch
// orchestrator and the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradebook_cache_requests_total",
			Help: "Cache lookups by result (hit, miss, expired).",
		},
		[]string{"result"},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gradebook_cache_evictions_total",
			Help: "Entries evicted to respect the cache size bound.",
		},
	)

	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradebook_fetch_attempts_total",
			Help: "Producer invocations by outcome (success, error, canceled).",
		},
		[]string{"outcome"},
	)

	FetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gradebook_fetch_retries_total",
			Help: "Retries scheduled after transient failures.",
		},
	)

	FetchInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gradebook_fetch_inflight",
			Help: "Producer calls currently in flight.",
		},
	)

	ImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradebook_import_rows_total",
			Help: "Bulk import rows by outcome.",
		},
		[]string{"outcome"},
	)

	ImportRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradebook_import_runs_total",
			Help: "Bulk import runs by final status.",
		},
		[]string{"status"},
	)
)

// Cache lookup results.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultExpired = "expired"
)

// Fetch attempt outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// RecordCacheLookup counts one cache lookup.
func RecordCacheLookup(result string) {
	CacheRequests.WithLabelValues(result).Inc()
}

// RecordImportRows adds n rows with the given outcome.
func RecordImportRows(outcome string, n int) {
	if n <= 0 {
		return
	}
	ImportRows.WithLabelValues(outcome).Add(float64(n))
}
