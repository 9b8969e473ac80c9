package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/ledger"
	"mercator-hq/s3rotate/pkg/rotation"
	"mercator-hq/s3rotate/pkg/store"
	"mercator-hq/s3rotate/pkg/store/local"
	"mercator-hq/s3rotate/pkg/telemetry/health"
	"mercator-hq/s3rotate/pkg/telemetry/logging"
	"mercator-hq/s3rotate/pkg/telemetry/metrics"
	"mercator-hq/s3rotate/pkg/telemetry/tracing"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	remote    artifact.RemoteStore
	manager   *rotation.Manager
	ledger    ledger.Ledger
	collector *metrics.Collector
	tracer    *tracing.Tracer
	tracker   *health.RunTracker
	logger    *slog.Logger
}

// loadConfig initializes the global configuration from --config and installs
// the configured logger.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError(cfgFile, err.Error())
	}
	cfg := config.GetConfig()

	if _, err := setupLogging(cfg); err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Telemetry.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.Setup(logging.Config{
		Level:     level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
}

// newApp wires stores, telemetry and the ledger into a rotation manager.
func newApp(ctx context.Context, cfg *config.Config, opts ...rotation.Option) (*app, error) {
	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	remote, err := store.New(ctx, cfg.Remote)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize remote store: %w", err)
	}
	remote = store.Traced(remote, tracer)

	led, err := ledger.New(cfg.Ledger)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	a := &app{
		cfg:       cfg,
		remote:    remote,
		ledger:    led,
		collector: metrics.NewCollector(&cfg.Telemetry.Metrics, nil),
		tracer:    tracer,
		tracker:   health.NewRunTracker(),
		logger:    slog.Default().With("component", "cli"),
	}

	base := []rotation.Option{
		rotation.WithMetrics(a.collector),
		rotation.WithTracer(tracer),
		rotation.WithLedger(led),
		rotation.WithStatusTracker(a.tracker),
	}
	a.manager = rotation.NewManager(local.New(), remote, append(base, opts...)...)

	a.logger.Debug("components initialized",
		"backend", cfg.Remote.Backend,
		"ledger", cfg.Ledger.Enabled,
		"metrics", cfg.Telemetry.Metrics.Enabled,
		"tracing", tracer.Enabled(),
	)
	return a, nil
}

// close releases the ledger and flushes pending spans.
func (a *app) close(ctx context.Context) error {
	return errors.Join(
		a.ledger.Close(),
		a.tracer.Shutdown(ctx),
	)
}

// selectFamilies returns the named families, or every family when names is
// empty.
func selectFamilies(cfg *config.Config, names []string) ([]config.FamilyConfig, error) {
	if len(names) == 0 {
		return cfg.Families, nil
	}

	families := make([]config.FamilyConfig, 0, len(names))
	for _, name := range names {
		fam, ok := cfg.Family(name)
		if !ok {
			return nil, cli.NewConfigError("family", fmt.Sprintf("unknown family %q", name))
		}
		families = append(families, *fam)
	}
	return families, nil
}

// formatter returns the formatter selected by --output.
func formatter() (cli.Formatter, error) {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return nil, cli.NewConfigError("output", err.Error())
	}
	return cli.NewFormatter(format), nil
}
