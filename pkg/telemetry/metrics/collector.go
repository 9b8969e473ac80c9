package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/config"
)

// Collector owns every s3rotate metric and the registry they live in.
// When metrics are disabled every Record method is a no-op.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	rotationMetrics *RotationMetrics
	runMetrics      *RunMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a new registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		rotationMetrics: NewRotationMetrics(cfg, registry),
		runMetrics:      NewRunMetrics(cfg, registry),
	}
}

// RecordUpload counts an artifact uploaded into the daily tier.
func (c *Collector) RecordUpload(family string) {
	if !c.config.Enabled {
		return
	}
	c.rotationMetrics.uploadsTotal.WithLabelValues(family).Inc()
}

// RecordPromotion counts an artifact copied from one tier into the next.
func (c *Collector) RecordPromotion(family string, from, to artifact.Tier) {
	if !c.config.Enabled {
		return
	}
	c.rotationMetrics.promotionsTotal.WithLabelValues(family, string(from), string(to)).Inc()
}

// RecordDeletion counts an artifact pruned from tier.
func (c *Collector) RecordDeletion(family string, tier artifact.Tier) {
	if !c.config.Enabled {
		return
	}
	c.rotationMetrics.deletionsTotal.WithLabelValues(family, string(tier)).Inc()
}

// RecordParseFailure counts a file or key whose date could not be read.
// stage is "upload" or "promote".
func (c *Collector) RecordParseFailure(family, stage string) {
	if !c.config.Enabled {
		return
	}
	c.rotationMetrics.parseFailuresTotal.WithLabelValues(family, stage).Inc()
}

// UpdateTierSize records how many artifacts tier holds after pruning.
func (c *Collector) UpdateTierSize(family string, tier artifact.Tier, count int) {
	if !c.config.Enabled {
		return
	}
	c.rotationMetrics.tierArtifacts.WithLabelValues(family, string(tier)).Set(float64(count))
}

// RecordStep observes the duration of one rotation step
// ("upload", "rotate_local", "rotate_daily", ...).
func (c *Collector) RecordStep(step string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.runMetrics.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordRun counts a finished run. status is "success" or "failure".
func (c *Collector) RecordRun(family, status string, finishedAt time.Time) {
	if !c.config.Enabled {
		return
	}
	c.runMetrics.runsTotal.WithLabelValues(family, status).Inc()
	c.runMetrics.lastRun.WithLabelValues(family, status).Set(float64(finishedAt.Unix()))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
