// Package metrics declares the Prometheus collectors shared across packages.
// They register on the default registry and are exposed by the API's /metrics
// route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultCorrupt = "corrupt"
)

var (
	// CacheLookups counts cache reads by backend and result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_cache_lookups_total",
		Help: "External data cache lookups by backend and result",
	}, []string{"backend", "result"})

	// CachePurged counts entries removed by PurgeExpired.
	CachePurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_cache_purged_total",
		Help: "Expired cache entries removed",
	}, []string{"backend"})

	// SignalFetches counts fetcher results by category and data quality.
	SignalFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_signal_fetches_total",
		Help: "Signal fetches by category and data quality",
	}, []string{"category", "quality"})

	// LiveFetchFailures counts live calls that fell back to simulation.
	LiveFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_signal_live_failures_total",
		Help: "Live signal calls that failed and were replaced by simulated data",
	}, []string{"category"})

	// ProbabilityResults counts computed probabilities by provenance.
	ProbabilityResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_probability_results_total",
		Help: "Probability results by provenance tier",
	}, []string{"provenance"})

	// RemoteFallbacks counts remote probability calls that fell back locally.
	RemoteFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_remote_fallbacks_total",
		Help: "Remote probability lookups that fell back to local computation",
	}, []string{"reason"})

	// RemoteLatency observes remote probability call duration.
	RemoteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prism_remote_request_duration_seconds",
		Help:    "Remote probability backend request latency",
		Buckets: prometheus.DefBuckets,
	})
)
