package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/rotation"
)

var uploadFlags struct {
	families []string
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload new local backups into the daily tier",
	Long: `Upload local backups that are not yet present in the daily tier.

The newest files are uploaded first and the upload stops at the first file
already present remotely. Files without a recognizable date are skipped.
Nothing is promoted or deleted; use rotate or run for that.

Examples:
  s3rotate upload
  s3rotate upload --family db --output csv`,
	RunE: uploadFamilies,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringSliceVarP(&uploadFlags.families, "family", "f", nil, "family to upload (repeatable, default all)")
}

func uploadFamilies(cmd *cobra.Command, args []string) error {
	return withApp(cmd, "upload", func(ctx context.Context, a *app, f cli.Formatter) error {
		families, err := selectFamilies(a.cfg, uploadFlags.families)
		if err != nil {
			return err
		}

		var uploaded artifactList
		var errs []error
		for _, fam := range families {
			arts, err := a.manager.Uploader().Upload(ctx, fam.Name, fam.LocalDir, rotation.UploadOptions{
				DatePattern: fam.DatePattern,
				DateFormat:  fam.DateFormat,
			})
			uploaded = append(uploaded, arts...)
			if err != nil {
				errs = append(errs, fmt.Errorf("family %s: %w", fam.Name, err))
			}
		}

		if err := f.FormatTo(cmd.OutOrStdout(), uploaded); err != nil {
			return err
		}
		return errors.Join(errs...)
	})
}
