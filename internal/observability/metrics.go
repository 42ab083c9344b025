package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total API requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcast_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adcast_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// availability checks labelled by outcome (available or conflict kind)
	AvailabilityCheckCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcast_availability_checks_total",
			Help: "Total availability checks by outcome",
		},
		[]string{"outcome"},
	)

	// allocation runs labelled by fallback strategy
	AllocationRunCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcast_allocation_runs_total",
			Help: "Total bulk allocation runs",
		},
		[]string{"strategy"},
	)

	// allocation run latency in seconds
	AllocationLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adcast_allocation_duration_seconds",
			Help:    "Histogram of bulk allocation run latencies",
			Buckets: prometheus.DefBuckets,
		},
	)

	// spots placed and conflicts raised per run outcome
	SpotsPlacedCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adcast_spots_placed_total",
			Help: "Total spots placed across allocation runs",
		},
	)
	ConflictCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcast_conflicts_total",
			Help: "Total allocation conflicts by kind",
		},
		[]string{"kind"},
	)
)

// Register registers all metrics with the default Prometheus registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		AvailabilityCheckCount,
		AllocationRunCount,
		AllocationLatency,
		SpotsPlacedCount,
		ConflictCount,
	)
}
