package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	gradingRunsTotal      *prometheus.CounterVec
	gradingDuration       prometheus.Histogram
	questionOutcomesTotal *prometheus.CounterVec
	statusCacheTotal      *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the grading pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_runs_total",
			Help: "Grading attempts partitioned by outcome.",
		}, []string{"outcome"})

		gradingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_duration_seconds",
			Help:    "Time spent grading a single submission, persistence included.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		questionOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_question_outcomes_total",
			Help: "Per-question grading outcomes by question type.",
		}, []string{"type", "outcome"})

		statusCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_status_cache_total",
			Help: "Assignment status cache lookups by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			gradingRunsTotal,
			gradingDuration,
			questionOutcomesTotal,
			statusCacheTotal,
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

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// GradingRuns counts grading attempts: graded, not_gradable, not_found, failed.
func GradingRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingRunsTotal
}

// GradingDuration observes end-to-end grading latency.
func GradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingDuration
}

// QuestionOutcomes counts correct, incorrect, manual and error outcomes per question type.
func QuestionOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return questionOutcomesTotal
}

// StatusCache counts hit, miss, stale and error results of the status cache.
func StatusCache() *prometheus.CounterVec {
	RegisterMetrics()
	return statusCacheTotal
}
