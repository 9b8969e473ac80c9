package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/rotation"
	"mercator-hq/s3rotate/pkg/telemetry/health"
	"mercator-hq/s3rotate/pkg/telemetry/tracing"
	"mercator-hq/s3rotate/pkg/watch"
)

var daemonFlags struct {
	listenAddress string
	runOnStart    bool
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run families on their schedules",
	Long: `Run every family on its cron schedule until interrupted.

Families with watch enabled also run when a new file appears in their
local directory. The daemon serves health, readiness, last-run status
and Prometheus metrics on the listen address, and runs a family on
POST /run?family=NAME.

The configuration is reloaded on SIGHUP, and on every change to the
configuration file when daemon.reload_config is set. A reload that fails
validation keeps the running configuration.

Examples:
  s3rotate daemon --config /etc/s3rotate/config.yaml
  s3rotate daemon --listen 0.0.0.0:9464 --run-on-start`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVarP(&daemonFlags.listenAddress, "listen", "l", "", "override listen address")
	daemonCmd.Flags().BoolVar(&daemonFlags.runOnStart, "run-on-start", false, "run every family once at startup")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if daemonFlags.listenAddress != "" {
		cfg.Daemon.ListenAddress = daemonFlags.listenAddress
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, appOptions(cfg)...)
	if err != nil {
		return cli.NewCommandError("daemon", err)
	}
	defer func() {
		if err := a.close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Daemon.ListenAddress)
	if err != nil {
		return cli.NewCommandError("daemon", fmt.Errorf("failed to listen on %s: %w", cfg.Daemon.ListenAddress, err))
	}

	d := newDaemon(a, cmd.OutOrStdout())
	if err := d.serve(ctx, ln); err != nil {
		return cli.NewCommandError("daemon", err)
	}
	return nil
}

// daemon owns the long-running parts: scheduler, watchers and HTTP server.
type daemon struct {
	app       *app
	checker   *health.Checker
	scheduler *rotation.Scheduler
	out       io.Writer
	logger    *slog.Logger

	mu         sync.Mutex
	cfg        *config.Config
	watchers   map[string]*watch.Watcher
	cfgWatcher *watch.Watcher
	checks     []string
	wg         sync.WaitGroup
}

func newDaemon(a *app, out io.Writer) *daemon {
	d := &daemon{
		app:       a,
		checker:   health.New(5 * time.Second),
		scheduler: rotation.NewScheduler(a.manager),
		out:       out,
		logger:    slog.Default().With("component", "daemon"),
		cfg:       a.cfg,
		watchers:  make(map[string]*watch.Watcher),
	}
	if pinger, ok := a.ledger.(interface{ Ping(context.Context) error }); ok {
		d.checker.RegisterCheck("ledger", pinger.Ping)
	}
	d.registerFamilyChecks(a.cfg)
	return d
}

// handler serves health, run status and metrics.
func (d *daemon) handler() http.Handler {
	mux := http.NewServeMux()
	health.Register(mux, d.checker, d.app.tracker, Version, GitCommit, BuildDate)

	metricsCfg := d.app.cfg.Telemetry.Metrics
	if metricsCfg.Enabled {
		path := metricsCfg.Path
		if path == "" {
			path = config.DefaultMetricsPath
		}
		mux.Handle(path, d.app.collector.Handler())
	}
	mux.Handle("/run", tracing.HTTPMiddleware(d.runHandler()))
	return mux
}

// runHandler runs the family named by the "family" query parameter and
// responds with its report. The run outlives a disconnecting client.
func (d *daemon) runHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := r.URL.Query().Get("family")
		fam, ok := d.config().Family(name)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown family %q", name), http.StatusNotFound)
			return
		}

		rep, err := d.app.manager.Run(context.WithoutCancel(r.Context()), *fam, rotation.TriggerAPI)
		code := http.StatusOK
		if err != nil {
			code = http.StatusInternalServerError
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(rep); err != nil {
			d.logger.Warn("failed to write run report", "error", err)
		}
	}
}

// serve runs until ctx is cancelled or the HTTP server fails, then shuts
// everything down within the configured shutdown timeout.
func (d *daemon) serve(ctx context.Context, ln net.Listener) error {
	cfg := d.config()

	srv := &http.Server{
		Handler:           d.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	if err := d.scheduler.Start(ctx, cfg); err != nil {
		_ = srv.Close()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	d.startWatchers(ctx, cfg)

	config.OnReload(func(next *config.Config) { d.apply(ctx, next) })
	if cfg.Daemon.ReloadConfig {
		d.watchConfig(ctx)
	}
	reloadChan, stopReload := cli.ReloadSignals()
	defer stopReload()

	if daemonFlags.runOnStart {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if _, err := d.app.manager.RunAll(ctx, cfg.Families, rotation.TriggerManual); err != nil {
				d.logger.Error("startup run failed", "error", err)
			}
		}()
	}

	fmt.Fprintf(d.out, "✓ Listening on %s\n", ln.Addr())
	fmt.Fprintf(d.out, "✓ Scheduled families: %v\n", d.scheduler.Families())
	for _, name := range d.scheduler.Families() {
		if next := d.scheduler.NextRun(name); next != nil {
			d.logger.Info("family scheduled", "family", name, "next_run", next)
		}
	}

	var serveErr error
loop:
	for {
		select {
		case err := <-errChan:
			serveErr = err
			break loop
		case <-reloadChan:
			d.logger.Info("reload requested")
			d.reload()
		case <-ctx.Done():
			d.logger.Info("shutting down")
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config().Daemon.ShutdownTimeout)
	defer cancel()

	d.scheduler.Stop()
	d.stopWatchers()
	if d.cfgWatcher != nil {
		if err := d.cfgWatcher.Stop(); err != nil {
			d.logger.Warn("failed to stop configuration watcher", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		d.logger.Error("http shutdown failed", "error", err)
	}
	d.wg.Wait()

	if serveErr == nil {
		fmt.Fprintln(d.out, "✓ Daemon stopped")
	}
	return serveErr
}

// reload re-reads the configuration file. The reload hook registered by
// serve applies it.
func (d *daemon) reload() {
	if err := config.ReloadConfig(cfgFile); err != nil {
		d.logger.Error("config reload failed, keeping current configuration", "error", err)
	}
}

// apply switches schedules, watchers and health checks to next. Remote,
// ledger and telemetry settings only take effect on restart.
func (d *daemon) apply(ctx context.Context, next *config.Config) {
	if ctx.Err() != nil {
		return
	}

	d.mu.Lock()
	prev := d.cfg
	d.cfg = next
	d.mu.Unlock()

	if prev.Remote != next.Remote || prev.Ledger != next.Ledger {
		d.logger.Warn("remote and ledger changes require a restart")
	}

	if err := d.scheduler.Reload(ctx, next); err != nil {
		d.logger.Error("failed to reschedule families", "error", err)
	}
	d.stopWatchers()
	d.startWatchers(ctx, next)
	d.registerFamilyChecks(next)

	d.logger.Info("configuration applied", "families", len(next.Families))
}

func (d *daemon) config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// registerFamilyChecks makes readiness fail while a family's last run failed.
func (d *daemon) registerFamilyChecks(cfg *config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range d.checks {
		d.checker.UnregisterCheck(name)
	}
	d.checks = d.checks[:0]
	for _, fam := range cfg.Families {
		name := "family:" + fam.Name
		d.checker.RegisterCheck(name, d.app.tracker.Check(fam.Name))
		d.checks = append(d.checks, name)
	}
}

// startWatchers runs a family whenever its local directory changes.
func (d *daemon) startWatchers(ctx context.Context, cfg *config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, fam := range cfg.Families {
		if !fam.Watch {
			continue
		}
		w, err := watch.New(watch.Config{
			Path:       fam.LocalDir,
			Debounce:   cfg.Daemon.WatchDebounce,
			SkipHidden: true,
			Ops:        watch.ArrivalOps,
			Settle:     cfg.Daemon.WatchSettle,
		}, d.logger.With("family", fam.Name))
		if err != nil {
			d.logger.Error("failed to watch local directory", "family", fam.Name, "error", err)
			continue
		}
		d.watchers[fam.Name] = w

		fam := fam
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			err := w.Watch(ctx, func(ctx context.Context, paths []string) error {
				_, err := d.app.manager.Run(ctx, fam, rotation.TriggerWatch)
				return err
			})
			if err != nil {
				d.logger.Error("watcher stopped", "family", fam.Name, "error", err)
			}
		}()
	}
}

func (d *daemon) stopWatchers() {
	d.mu.Lock()
	watchers := d.watchers
	d.watchers = make(map[string]*watch.Watcher)
	d.mu.Unlock()

	for name, w := range watchers {
		if err := w.Stop(); err != nil {
			d.logger.Warn("failed to stop watcher", "family", name, "error", err)
		}
	}
}

// watchConfig reloads the configuration whenever the file changes.
func (d *daemon) watchConfig(ctx context.Context) {
	w, err := watch.New(watch.Config{Path: cfgFile}, d.logger.With("path", cfgFile))
	if err != nil {
		d.logger.Error("failed to watch configuration file", "error", err)
		return
	}

	d.cfgWatcher = w

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		err := w.Watch(ctx, func(ctx context.Context, paths []string) error {
			d.logger.Info("configuration file changed", "path", cfgFile)
			return config.ReloadConfig(cfgFile)
		})
		if err != nil {
			d.logger.Error("configuration watcher stopped", "error", err)
		}
	}()
}
