package rotation

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/telemetry/tracing"
)

// Metrics receives rotation measurements. *metrics.Collector implements it.
type Metrics interface {
	RecordUpload(family string)
	RecordPromotion(family string, from, to artifact.Tier)
	RecordDeletion(family string, tier artifact.Tier)
	RecordParseFailure(family, stage string)
	UpdateTierSize(family string, tier artifact.Tier, count int)
	RecordStep(step string, duration time.Duration)
	RecordRun(family, status string, finishedAt time.Time)
}

type nopMetrics struct{}

func (nopMetrics) RecordUpload(string)                                  {}
func (nopMetrics) RecordPromotion(string, artifact.Tier, artifact.Tier) {}
func (nopMetrics) RecordDeletion(string, artifact.Tier)                 {}
func (nopMetrics) RecordParseFailure(string, string)                    {}
func (nopMetrics) UpdateTierSize(string, artifact.Tier, int)            {}
func (nopMetrics) RecordStep(string, time.Duration)                     {}
func (nopMetrics) RecordRun(string, string, time.Time)                  {}

// RunRecorder persists finished run reports. *ledger.Ledger implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, rep *Report) error
}

// StatusTracker remembers the outcome of each family's last run.
// *health.RunTracker implements it.
type StatusTracker interface {
	RecordRun(family string, at time.Time, err error)
}

type options struct {
	metrics    Metrics
	tracer     *tracing.Tracer
	logger     *slog.Logger
	cascade    []TierPolicy
	ledger     RunRecorder
	status     StatusTracker
	runTimeout time.Duration
}

// Option customizes an Uploader, Rotator or Manager.
type Option func(*options)

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer used for step spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCascade replaces the tier cascade used by the Rotator.
func WithCascade(c []TierPolicy) Option {
	return func(o *options) {
		if len(c) > 0 {
			o.cascade = c
		}
	}
}

// WithLedger records every finished run.
func WithLedger(l RunRecorder) Option {
	return func(o *options) {
		o.ledger = l
	}
}

// WithStatusTracker reports every finished run to t.
func WithStatusTracker(t StatusTracker) Option {
	return func(o *options) {
		o.status = t
	}
}

// WithRunTimeout bounds each Manager run. Zero means no limit.
func WithRunTimeout(d time.Duration) Option {
	return func(o *options) {
		o.runTimeout = d
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{
		metrics: nopMetrics{},
		tracer:  tracing.Noop(),
		logger:  slog.Default(),
		cascade: Cascade,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", component)
	return o
}
