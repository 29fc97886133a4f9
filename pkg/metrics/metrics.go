// Package metrics provides Prometheus metrics for the reconciliation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal tracks reconciliation queries resolved by outcome
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reconcile",
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "Total number of reconciliation queries resolved by outcome",
		},
		[]string{"outcome"},
	)

	// QueryDuration tracks single-query resolution duration in seconds
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reconcile",
			Subsystem: "engine",
			Name:      "query_duration_seconds",
			Help:      "Duration of single-query resolution in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// CandidatesReturned tracks how many candidates each query returned
	CandidatesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reconcile",
			Subsystem: "engine",
			Name:      "candidates_returned",
			Help:      "Number of candidates returned per resolved query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25, 50, 100},
		},
	)

	// BatchSize tracks the number of queries per batch request
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reconcile",
			Subsystem: "engine",
			Name:      "batch_size",
			Help:      "Number of queries per batch request",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// BatchDuration tracks batch resolution duration in seconds
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reconcile",
			Subsystem: "engine",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch resolution in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)

	// CatalogueSize reports the number of records in the loaded catalogue
	CatalogueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reconcile",
			Subsystem: "catalogue",
			Name:      "records",
			Help:      "Number of records in the loaded catalogue",
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reconcile",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordQuery records the outcome and duration of a single query resolution
func RecordQuery(outcome string, durationSeconds float64, candidates int) {
	QueriesTotal.WithLabelValues(outcome).Inc()
	QueryDuration.Observe(durationSeconds)
	CandidatesReturned.Observe(float64(candidates))
}

// RecordBatch records the size and duration of a batch resolution
func RecordBatch(size int, durationSeconds float64) {
	BatchSize.Observe(float64(size))
	BatchDuration.Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
