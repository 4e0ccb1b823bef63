package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts read-through cache hits by namespace.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	// CacheMisses counts read-through cache misses by namespace.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	// CacheInvalidations counts keys removed by pattern invalidation.
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_cache_invalidations_total",
			Help: "Total number of cache keys removed by invalidation",
		},
		[]string{"pattern"},
	)

	// CursorRejections counts rejected pagination cursors by reason
	// (format|signature|version|expired|drift).
	CursorRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_cursor_rejections_total",
			Help: "Total number of rejected pagination cursors",
		},
		[]string{"reason"},
	)

	// IngestRuns counts scheduler fetch runs by result (success|failure).
	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skimmer_ingest_runs_total",
			Help: "Total number of source fetch runs",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skimmer_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
