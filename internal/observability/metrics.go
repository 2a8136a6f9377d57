package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssp_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ssp_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// decisions by outcome (filled / no_fill) and no-fill reason
	DecisionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssp_decisions_total",
			Help: "Total ad decisions by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	// time spent inside the decision engine per request
	DecisionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ssp_decision_duration_seconds",
			Help:    "Duration of decision engine evaluations",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)

	// eligible candidates surviving targeting and pacing per decision
	EligibleCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ssp_eligible_candidates",
			Help:    "Eligible line items per decision",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		},
	)

	// computed floor prices
	FloorPrice = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ssp_floor_price",
			Help:    "Histogram of computed floor CPMs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// clearing prices of filled decisions
	WinningPrice = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ssp_winning_price",
			Help:    "Histogram of winning bid CPMs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// trace lookups by result (found / missing)
	TraceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssp_trace_lookups_total",
			Help: "Total decision trace lookups",
		},
		[]string{"result"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		DecisionCount,
		DecisionLatency,
		EligibleCandidates,
		FloorPrice,
		WinningPrice,
		TraceLookups,
	)
}
