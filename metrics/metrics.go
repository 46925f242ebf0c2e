package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recall"

// Retrieval and query-processing metrics.
var (
	SignalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_requests_total",
			Help:      "Retrieval signal calls by outcome",
		},
		[]string{"signal", "status"}, // status: "ok" / "empty" / "error"
	)

	SignalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "signal_duration_seconds",
			Help:      "Retrieval signal latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"signal"},
	)

	QueryPlansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_plans_total",
			Help:      "Query plans by classified type",
		},
		[]string{"type"},
	)

	DecompositionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decompositions_total",
			Help:      "Query decompositions by deciding strategy",
		},
		[]string{"strategy"}, // "guardrail" / "llm" / "rule"
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	IngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_records_total",
			Help:      "Records written during ingestion",
		},
		[]string{"kind"}, // "message" / "triple" / "reembed"
	)
)

var registerOnce sync.Once

// Register registers all recall metrics with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SignalRequestsTotal,
			SignalDuration,
			QueryPlansTotal,
			DecompositionsTotal,
			SearchDuration,
			IngestedTotal,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}
