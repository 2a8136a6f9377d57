package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// Handlers depend on it instead of touching the global Prometheus vectors
// directly, which keeps tests quiet.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Decision metrics
	IncrementDecisions(outcome, reason string)
	RecordDecisionLatency(duration time.Duration)
	RecordEligibleCandidates(count int)
	RecordFloorPrice(floor float64)
	RecordWinningPrice(price float64)

	// Trace retrieval metrics
	IncrementTraceLookups(result string)
}

// PrometheusRegistry implements MetricsRegistry using the global
// Prometheus metrics.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry.
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementDecisions(outcome, reason string) {
	DecisionCount.WithLabelValues(outcome, reason).Inc()
}

func (r *PrometheusRegistry) RecordDecisionLatency(duration time.Duration) {
	DecisionLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) RecordEligibleCandidates(count int) {
	EligibleCandidates.Observe(float64(count))
}

func (r *PrometheusRegistry) RecordFloorPrice(floor float64) {
	FloorPrice.Observe(floor)
}

func (r *PrometheusRegistry) RecordWinningPrice(price float64) {
	WinningPrice.Observe(price)
}

func (r *PrometheusRegistry) IncrementTraceLookups(result string) {
	TraceLookups.WithLabelValues(result).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing.
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry.
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementDecisions(outcome, reason string)                            {}
func (r *NoOpRegistry) RecordDecisionLatency(duration time.Duration)                         {}
func (r *NoOpRegistry) RecordEligibleCandidates(count int)                                   {}
func (r *NoOpRegistry) RecordFloorPrice(floor float64)                                       {}
func (r *NoOpRegistry) RecordWinningPrice(price float64)                                     {}
func (r *NoOpRegistry) IncrementTraceLookups(result string)                                  {}
