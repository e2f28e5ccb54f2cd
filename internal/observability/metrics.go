package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	timelineMutationsTotal *prometheus.CounterVec
	timelineMutationTime   *prometheus.HistogramVec
	timelineCacheTotal     *prometheus.CounterVec
	timelineSubscribers    prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the timeline service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_http_requests_total",
			Help: "Total number of running module API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timeline_http_latency_seconds",
			Help:    "Latency distribution for running module API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_http_errors_total",
			Help: "Total number of error responses returned by running module endpoints.",
		}, []string{"method", "route", "status"})

		timelineMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_mutations_total",
			Help: "Timeline mutations by operation and outcome.",
		}, []string{"operation", "outcome"})

		timelineMutationTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timeline_mutation_seconds",
			Help:    "Time spent inside the per-group timeline transaction.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"})

		timelineCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timeline_cache_requests_total",
			Help: "Timeline cache lookups by result.",
		}, []string{"result"})

		timelineSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timeline_event_subscribers",
			Help: "Number of connected timeline event subscribers.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			timelineMutationsTotal,
			timelineMutationTime,
			timelineCacheTotal,
			timelineSubscribers,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// TimelineMutations exposes the mutation outcome counter.
func TimelineMutations() *prometheus.CounterVec {
	RegisterMetrics()
	return timelineMutationsTotal
}

// TimelineMutationLatency exposes the mutation latency histogram.
func TimelineMutationLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return timelineMutationTime
}

// TimelineCacheRequests exposes the cache hit/miss counter.
func TimelineCacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return timelineCacheTotal
}

// TimelineSubscribers exposes the connected subscriber gauge.
func TimelineSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return timelineSubscribers
}
