package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// Handlers depend on this instead of the global Prometheus collectors so
// tests can swap in a no-op.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Engine metrics
	IncrementAvailabilityChecks(outcome string)
	IncrementAllocationRuns(strategy string)
	RecordAllocationLatency(duration time.Duration)
	AddSpotsPlaced(n int)
	IncrementConflicts(kind string)
}

// PrometheusRegistry implements MetricsRegistry on the package-level
// Prometheus collectors.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementAvailabilityChecks(outcome string) {
	AvailabilityCheckCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) IncrementAllocationRuns(strategy string) {
	AllocationRunCount.WithLabelValues(strategy).Inc()
}

func (r *PrometheusRegistry) RecordAllocationLatency(duration time.Duration) {
	AllocationLatency.Observe(duration.Seconds())
}

func (r *PrometheusRegistry) AddSpotsPlaced(n int) {
	SpotsPlacedCount.Add(float64(n))
}

func (r *PrometheusRegistry) IncrementConflicts(kind string) {
	ConflictCount.WithLabelValues(kind).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementAvailabilityChecks(outcome string)                           {}
func (r *NoOpRegistry) IncrementAllocationRuns(strategy string)                              {}
func (r *NoOpRegistry) RecordAllocationLatency(duration time.Duration)                       {}
func (r *NoOpRegistry) AddSpotsPlaced(n int)                                                 {}
func (r *NoOpRegistry) IncrementConflicts(kind string)                                       {}
