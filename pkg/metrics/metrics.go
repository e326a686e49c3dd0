// Package metrics provides Prometheus metrics for resolution runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks resolution runs by outcome (match, no_match, error).
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "personamatch",
			Subsystem: "resolve",
			Name:      "runs_total",
			Help:      "Total number of resolution runs by outcome",
		},
		[]string{"outcome"},
	)

	// ResolutionDuration tracks end-to-end resolution time in seconds
	ResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "personamatch",
			Subsystem: "resolve",
			Name:      "duration_seconds",
			Help:      "Duration of resolution runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// ResolutionsInFlight tracks runs currently executing
	ResolutionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "personamatch",
			Subsystem: "resolve",
			Name:      "in_flight",
			Help:      "Number of resolution runs currently executing",
		},
	)

	// SearchQueriesTotal tracks discovery queries by strategy and status
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "personamatch",
			Subsystem: "discovery",
			Name:      "queries_total",
			Help:      "Total number of discovery search queries",
		},
		[]string{"strategy", "status"},
	)

	// CandidatesDiscovered tracks the size of the unioned candidate URL set
	CandidatesDiscovered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "personamatch",
			Subsystem: "discovery",
			Name:      "candidates",
			Help:      "Number of unique candidate URLs discovered per run",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	// DocumentsFetched tracks candidate document fetches by status
	DocumentsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "personamatch",
			Subsystem: "acquire",
			Name:      "documents_total",
			Help:      "Total number of candidate documents processed by status",
		},
		[]string{"status"},
	)

	// ScoringFailures tracks sub-score failures that defaulted to zero
	ScoringFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "personamatch",
			Subsystem: "score",
			Name:      "failures_total",
			Help:      "Total number of sub-score computations that failed",
		},
		[]string{"signal"},
	)

	// Confidence tracks the confidence of the selected match
	Confidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "personamatch",
			Subsystem: "resolve",
			Name:      "confidence",
			Help:      "Overall confidence of the best candidate per run",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// CacheLookups tracks cached fetches by result
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "personamatch",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cached URL fetches by hit or miss",
		},
		[]string{"result"},
	)
)
