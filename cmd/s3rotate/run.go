package main

import (
	"context"

	"github.com/spf13/cobra"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/rotation"
)

var runFlags struct {
	families []string
	events   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload and rotate backups once",
	Long: `Upload new local backups and rotate every tier, once per family.

Families run one after another. A failing family does not stop the others;
the command exits non-zero if any family failed. Each run is recorded in
the ledger when it is enabled.

Examples:
  # Run every configured family
  s3rotate run

  # Run two families and list every upload, promotion and deletion
  s3rotate run --family db --family media --events

  # Machine-readable report
  s3rotate run --output json`,
	RunE: runFamilies,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVarP(&runFlags.families, "family", "f", nil, "family to run (repeatable, default all)")
	runCmd.Flags().BoolVar(&runFlags.events, "events", false, "list individual actions instead of a summary")
}

func runFamilies(cmd *cobra.Command, args []string) error {
	return withApp(cmd, "run", func(ctx context.Context, a *app, f cli.Formatter) error {
		families, err := selectFamilies(a.cfg, runFlags.families)
		if err != nil {
			return err
		}

		reports, runErr := a.manager.RunAll(ctx, families, rotation.TriggerManual)
		if err := writeReports(cmd.OutOrStdout(), f, reports, runFlags.events); err != nil {
			return err
		}
		return runErr
	})
}
