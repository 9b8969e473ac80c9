package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/rotation"
)

// withApp loads configuration, builds the app and runs fn with a context
// cancelled on SIGINT or SIGTERM. Errors from fn are attributed to name.
func withApp(cmd *cobra.Command, name string, fn func(ctx context.Context, a *app, f cli.Formatter) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := formatter()
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, appOptions(cfg)...)
	if err != nil {
		return cli.NewCommandError(name, err)
	}
	defer func() {
		if err := a.close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	if err := fn(ctx, a, f); err != nil {
		if cli.ExitCode(err) == cli.ExitConfig {
			return err
		}
		return cli.NewCommandError(name, err)
	}
	return nil
}

func appOptions(cfg *config.Config) []rotation.Option {
	return []rotation.Option{rotation.WithRunTimeout(cfg.Daemon.RunTimeout)}
}

// writeReports prints reports as a summary or, with events set, as one row
// per action taken.
func writeReports(w io.Writer, f cli.Formatter, reports []*rotation.Report, events bool) error {
	if events {
		return f.FormatTo(w, reportEvents(reports))
	}
	return f.FormatTo(w, reportList(reports))
}
