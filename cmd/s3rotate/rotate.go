package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/rotation"
)

var rotateFlags struct {
	families []string
	tier     string
	events   bool
}

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Promote and prune backups without uploading",
	Long: `Rotate the tiers of each family without uploading anything.

Without --tier every step runs in order: local files are pruned, dailies
are promoted to weekly and pruned, weeklies are promoted to monthly and
pruned, monthlies are pruned. With --tier only that step runs.

Examples:
  s3rotate rotate
  s3rotate rotate --family db --tier weekly --events`,
	RunE: rotateFamilies,
}

func init() {
	rootCmd.AddCommand(rotateCmd)

	rotateCmd.Flags().StringSliceVarP(&rotateFlags.families, "family", "f", nil, "family to rotate (repeatable, default all)")
	rotateCmd.Flags().StringVar(&rotateFlags.tier, "tier", "", "run a single step: local, daily, weekly, monthly")
	rotateCmd.Flags().BoolVar(&rotateFlags.events, "events", false, "list individual actions instead of a summary")
}

func rotateFamilies(cmd *cobra.Command, args []string) error {
	var tier artifact.Tier
	if rotateFlags.tier != "" {
		t, err := artifact.ParseTier(rotateFlags.tier)
		if err != nil {
			return cli.NewConfigError("tier", err.Error())
		}
		tier = t
	}

	return withApp(cmd, "rotate", func(ctx context.Context, a *app, f cli.Formatter) error {
		families, err := selectFamilies(a.cfg, rotateFlags.families)
		if err != nil {
			return err
		}

		var reports []*rotation.Report
		var errs []error
		for _, fam := range families {
			rep, err := rotateFamily(ctx, a.manager.Rotator(), fam, tier)
			if rep != nil {
				reports = append(reports, rep)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("family %s: %w", fam.Name, err))
			}
		}

		if err := writeReports(cmd.OutOrStdout(), f, reports, rotateFlags.events); err != nil {
			return err
		}
		return errors.Join(errs...)
	})
}

// rotateFamily runs the whole cascade, or only the step for tier when set.
func rotateFamily(ctx context.Context, r *rotation.Rotator, fam config.FamilyConfig, tier artifact.Tier) (*rotation.Report, error) {
	limits := fam.EffectiveLimits()
	switch tier {
	case "":
		return r.Rotate(ctx, fam.Name, fam.LocalDir, limits)
	case artifact.TierLocal:
		return r.RotateLocal(ctx, fam.Name, fam.LocalDir, limits.Local)
	case artifact.TierDaily:
		return r.RotateDaily(ctx, fam.Name, limits.Daily)
	case artifact.TierWeekly:
		return r.RotateWeekly(ctx, fam.Name, limits.Weekly)
	case artifact.TierMonthly:
		return r.RotateMonthly(ctx, fam.Name, limits.Monthly)
	default:
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
}
