package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/store/local"
)

var validateFlags struct {
	checkDirs bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load and validate the configuration, then list the configured families
with their effective schedule and limits.

Validation covers date patterns and formats, cron schedules, limits,
remote, ledger and telemetry settings. With --check-dirs every family's
local directory must also be readable.

Examples:
  s3rotate validate --config /etc/s3rotate/config.yaml
  s3rotate validate --check-dirs --output json`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.checkDirs, "check-dirs", false, "verify local directories are readable")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := formatter()
	if err != nil {
		return err
	}

	if validateFlags.checkDirs {
		if err := checkLocalDirs(cfg); err != nil {
			return err
		}
	}

	if err := f.FormatTo(cmd.OutOrStdout(), describeFamilies(cfg)); err != nil {
		return err
	}
	if outputFormat == "" || outputFormat == string(cli.FormatText) {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid (%d families)\n", len(cfg.Families))
	}
	return nil
}

func describeFamilies(cfg *config.Config) familyList {
	rows := make(familyList, 0, len(cfg.Families))
	for i := range cfg.Families {
		fam := &cfg.Families[i]
		rows = append(rows, familyRow{
			Name:     fam.Name,
			LocalDir: fam.LocalDir,
			Schedule: cfg.ScheduleFor(fam),
			Watch:    fam.Watch,
			Limits:   fam.EffectiveLimits(),
		})
	}
	return rows
}

// checkLocalDirs lists every family's local directory.
func checkLocalDirs(cfg *config.Config) error {
	ls := local.New()
	var errs []error
	for i, fam := range cfg.Families {
		if _, err := ls.ListFiles(fam.LocalDir); err != nil {
			errs = append(errs, cli.NewConfigError(fmt.Sprintf("families[%d].local_dir", i), err.Error()))
		}
	}
	return errors.Join(errs...)
}
