package judge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "techlearn",
		Subsystem: "judge",
		Name:      "run_duration_seconds",
		Help:      "Duration of judge runs including queueing at the execution backend",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"backend", "language"})

	runOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "techlearn",
		Subsystem: "judge",
		Name:      "runs_total",
		Help:      "Number of judge runs by outcome",
	}, []string{"backend", "language", "outcome"})
)

func observeRun(backend string, language Language, result Result) {
	runDuration.WithLabelValues(backend, language.String()).Observe(result.Duration.Seconds())
	runOutcomes.WithLabelValues(backend, language.String(), outcomeLabel(result)).Inc()
}

func outcomeLabel(result Result) string {
	switch {
	case result.Accepted:
		return "accepted"
	case result.StatusCode == StatusTimeout:
		return "timeout"
	case result.StatusCode == StatusCanceled:
		return "canceled"
	case result.StatusCode == StatusTransportError:
		return "transport_error"
	default:
		return "rejected"
	}
}
