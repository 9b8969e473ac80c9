package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/s3rotate/pkg/config"
)

// RotationMetrics tracks artifacts moving through the tiers.
type RotationMetrics struct {
	uploadsTotal       *prometheus.CounterVec
	promotionsTotal    *prometheus.CounterVec
	deletionsTotal     *prometheus.CounterVec
	parseFailuresTotal *prometheus.CounterVec
	tierArtifacts      *prometheus.GaugeVec
}

// NewRotationMetrics creates and registers rotation metrics with the provided registry.
func NewRotationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RotationMetrics {
	rm := &RotationMetrics{
		uploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "uploads_total",
				Help:      "Total number of local backups uploaded as daily artifacts",
			},
			[]string{"family"},
		),

		promotionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "promotions_total",
				Help:      "Total number of artifacts promoted into a coarser tier",
			},
			[]string{"family", "from", "to"},
		),

		deletionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "deletions_total",
				Help:      "Total number of artifacts pruned from a tier",
			},
			[]string{"family", "tier"},
		),

		parseFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "parse_failures_total",
				Help:      "Total number of files or keys whose date could not be parsed",
			},
			[]string{"family", "stage"},
		),

		tierArtifacts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "tier_artifacts",
				Help:      "Number of artifacts held in a tier after the last rotation",
			},
			[]string{"family", "tier"},
		),
	}

	registry.MustRegister(
		rm.uploadsTotal,
		rm.promotionsTotal,
		rm.deletionsTotal,
		rm.parseFailuresTotal,
		rm.tierArtifacts,
	)

	return rm
}
