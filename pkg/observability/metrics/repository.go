package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Cache lookup results used as the "result" label.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	// repositoryOperationDuration tracks repository call latency in seconds.
	// Labels: collection, operation, outcome
	repositoryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_repository_operation_duration_seconds",
			Help:    "Repository operation duration in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"collection", "operation", "outcome"},
	)

	// repositoryOperationsTotal counts repository calls.
	// Labels: collection, operation, outcome
	repositoryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_repository_operations_total",
			Help: "Total number of repository operations",
		},
		[]string{"collection", "operation", "outcome"},
	)

	// cacheResultsTotal counts document cache lookups.
	// Labels: collection, result
	cacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_cache_results_total",
			Help: "Total document cache lookups by result",
		},
		[]string{"collection", "result"},
	)
)

// RecordRepositoryOperation records the duration and outcome of one repository call.
func RecordRepositoryOperation(collection, operation, outcome string, duration time.Duration) {
	repositoryOperationDuration.WithLabelValues(collection, operation, outcome).Observe(duration.Seconds())
	repositoryOperationsTotal.WithLabelValues(collection, operation, outcome).Inc()
}

// RecordCacheResult counts a document cache lookup.
func RecordCacheResult(collection, result string) {
	cacheResultsTotal.WithLabelValues(collection, result).Inc()
}
