package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Assignments decided, by outcome: best_price | rule | rule_not_honored | error code
	Assignments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carmen_price_assignments_total",
		Help: "Price assignment attempts by outcome",
	}, []string{"outcome"})

	// Latency of one assignPrice pipeline run
	AssignLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "carmen_price_assignment_latency_seconds",
		Help:    "Latency of a single price assignment",
		Buckets: prometheus.DefBuckets,
	})

	AssignConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "carmen_price_assignment_confidence",
		Help:    "Confidence score of automatic assignments",
		Buckets: []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
	})

	Overrides = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carmen_price_assignment_overrides_total",
		Help: "Manual overrides recorded",
	})

	OverrideConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "carmen_price_assignment_override_conflicts_total",
		Help: "Optimistic lock conflicts hit while recording overrides",
	})

	// Bulk batch items by result: success | failed | cancelled
	BulkItems = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carmen_bulk_assignment_items_total",
		Help: "Bulk assignment items by result",
	}, []string{"result"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "carmen_snapshot_cache_lookups_total",
		Help: "Rate and rule snapshot cache lookups",
	}, []string{"cache", "result"})
)

var once sync.Once

// Init registers every collector with the default registry. Safe to call twice.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			Assignments,
			AssignLatency,
			AssignConfidence,
			Overrides,
			OverrideConflicts,
			BulkItems,
			CacheLookups,
		)
	})
}
