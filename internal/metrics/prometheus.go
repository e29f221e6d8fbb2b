package metrics

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ResolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purchasing_resolution_duration_seconds",
			Help:    "Question resolution duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"strategy"},
	)

	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasing_resolutions_total",
			Help: "Total number of resolved questions by final strategy and quality tier",
		},
		[]string{"strategy", "quality"},
	)

	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasing_strategy_attempts_total",
			Help: "Strategy attempts by outcome",
		},
		[]string{"strategy", "outcome"},
	)

	AttemptsPerResolution = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "purchasing_attempts_per_resolution",
			Help:    "Number of strategies attempted per question",
			Buckets: []float64{0, 1, 2, 3, 4},
		},
	)

	RecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasing_recoveries_total",
			Help: "Recovery attempts by error category",
		},
		[]string{"category", "recovered"},
	)

	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchasing_metrics_sink_failures_total",
			Help: "Metrics sink write failures",
		},
		[]string{"sink"},
	)
)

func Init() {
	prometheus.MustRegister(ResolutionDuration)
	prometheus.MustRegister(ResolutionsTotal)
	prometheus.MustRegister(AttemptsTotal)
	prometheus.MustRegister(AttemptsPerResolution)
	prometheus.MustRegister(RecoveriesTotal)
	prometheus.MustRegister(SinkFailures)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// ObserveRecovery counts one recovery attempt.
func ObserveRecovery(category string, recovered bool) {
	RecoveriesTotal.WithLabelValues(category, strconv.FormatBool(recovered)).Inc()
}

// PrometheusSink turns resolution events into counters and histograms.
type PrometheusSink struct{}

func (PrometheusSink) Name() string {
	return "prometheus"
}

func (PrometheusSink) Write(_ context.Context, e Event) error {
	ResolutionsTotal.WithLabelValues(e.Strategy, e.Quality).Inc()
	ResolutionDuration.WithLabelValues(e.Strategy).Observe(float64(e.LatencyMs) / 1000)
	AttemptsPerResolution.Observe(float64(e.AttemptCount))
	for _, a := range e.Attempts {
		AttemptsTotal.WithLabelValues(a.Strategy, a.Outcome).Inc()
	}
	return nil
}
