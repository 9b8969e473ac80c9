package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mercator-hq/s3rotate/pkg/config"
)

// RunMetrics tracks family runs and the time spent in each step.
type RunMetrics struct {
	runsTotal    *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	lastRun      *prometheus.GaugeVec
}

// stepBuckets span a quick listing (50ms) to a large multipart upload (1h).
var stepBuckets = []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600}

// NewRunMetrics creates run metrics registered with registry.
func NewRunMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RunMetrics {
	factory := promauto.With(registry)
	return &RunMetrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "runs_total",
				Help:      "Total number of family runs by outcome",
			},
			[]string{"family", "status"},
		),

		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of upload and rotation steps in seconds",
				Buckets:   stepBuckets,
			},
			[]string{"step"},
		),

		lastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time of the last finished run by outcome",
			},
			[]string{"family", "status"},
		),
	}
}
