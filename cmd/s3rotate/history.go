package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/ledger"
)

var historyFlags struct {
	family string
	status string
	since  time.Duration
	limit  int
	keep   int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs",
	Long: `List runs recorded in the ledger, newest first.

The ledger must be enabled in the configuration.

Examples:
  # Last 50 runs
  s3rotate history

  # Failed runs of one family in the last week
  s3rotate history --family db --status failed --since 168h

  # Every action of one run
  s3rotate history events 3f1c9a2e-...

  # Keep only the 100 most recent runs
  s3rotate history prune --keep 100`,
	Args: cobra.NoArgs,
	RunE: listRuns,
}

var historyEventsCmd = &cobra.Command{
	Use:   "events RUN_ID",
	Short: "Show the actions of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  listEvents,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the most recent runs",
	Args:  cobra.NoArgs,
	RunE:  pruneRuns,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyEventsCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyCmd.Flags().StringVarP(&historyFlags.family, "family", "f", "", "only runs of this family")
	historyCmd.Flags().StringVar(&historyFlags.status, "status", "", "only runs with this status: success, failed")
	historyCmd.Flags().DurationVar(&historyFlags.since, "since", 0, "only runs started within this duration")
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 50, "maximum runs to list")

	historyPruneCmd.Flags().IntVar(&historyFlags.keep, "keep", 0, "number of runs to keep (default: ledger.keep_runs)")
}

// withLedger opens the configured ledger for fn.
func withLedger(cmd *cobra.Command, name string, fn func(ctx context.Context, l ledger.Ledger, f cli.Formatter) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Ledger.Enabled {
		return cli.NewConfigError("ledger.enabled", "run history requires the ledger to be enabled")
	}
	f, err := formatter()
	if err != nil {
		return err
	}

	l, err := ledger.Open(cfg.Ledger)
	if err != nil {
		return cli.NewCommandError(name, err)
	}
	defer l.Close()

	if err := fn(cmd.Context(), l, f); err != nil {
		return cli.NewCommandError(name, err)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	return withLedger(cmd, "history", func(ctx context.Context, l ledger.Ledger, f cli.Formatter) error {
		filter := ledger.Filter{
			Family: historyFlags.family,
			Status: historyFlags.status,
			Limit:  historyFlags.limit,
		}
		if historyFlags.since > 0 {
			filter.Since = time.Now().Add(-historyFlags.since)
		}

		runs, err := l.Runs(ctx, filter)
		if err != nil {
			return err
		}
		return f.FormatTo(cmd.OutOrStdout(), runList(runs))
	})
}

func listEvents(cmd *cobra.Command, args []string) error {
	return withLedger(cmd, "history events", func(ctx context.Context, l ledger.Ledger, f cli.Formatter) error {
		events, err := l.Events(ctx, args[0])
		if err != nil {
			return err
		}
		return f.FormatTo(cmd.OutOrStdout(), eventList(events))
	})
}

func pruneRuns(cmd *cobra.Command, args []string) error {
	return withLedger(cmd, "history prune", func(ctx context.Context, l ledger.Ledger, f cli.Formatter) error {
		keep := historyFlags.keep
		if keep <= 0 {
			keep = config.GetConfig().Ledger.KeepRuns
		}
		if keep <= 0 {
			return cli.NewConfigError("keep", "no retention configured: pass --keep or set ledger.keep_runs")
		}
		removed, err := l.Prune(ctx, keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d runs (kept %d)\n", removed, keep)
		return nil
	})
}
