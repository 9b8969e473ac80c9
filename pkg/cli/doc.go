/*
Package cli provides command-line helpers for the s3rotate command.

Output Formatting:

Results render as text, JSON or CSV. Values implementing Tabular are aligned
in columns for text output and written row by row for CSV:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, reports); err != nil {
		return err
	}

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

The daemon also listens on ReloadSignals for SIGHUP to reload configuration.

Errors:

ConfigError and CommandError classify failures; ExitCode maps them to the
process exit status.
*/
package cli
