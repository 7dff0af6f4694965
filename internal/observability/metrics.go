package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce       sync.Once
	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec
	otpEventsTotal     *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
	submissionScore    prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "techlearn_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "techlearn_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "techlearn_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		otpEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "techlearn_otp_events_total",
			Help: "One-time code lifecycle events by outcome.",
		}, []string{"outcome"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "techlearn_submissions_total",
			Help: "Submission attempts by outcome.",
		}, []string{"outcome"})

		submissionScore = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "techlearn_submission_score_ratio",
			Help:    "Stored submission score as a fraction of the maximum possible score.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, httpErrorsTotal, otpEventsTotal, submissionsTotal, submissionScore)
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

// RecordOTPEvent counts a one-time code lifecycle event.
func RecordOTPEvent(outcome string) {
	RegisterMetrics()
	otpEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordSubmission counts a submission attempt and, when it was stored, its score ratio.
func RecordSubmission(outcome string, score, maxScore int) {
	RegisterMetrics()
	submissionsTotal.WithLabelValues(outcome).Inc()
	if outcome == "stored" && maxScore > 0 {
		submissionScore.Observe(float64(score) / float64(maxScore))
	}
}
