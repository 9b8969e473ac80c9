// Package logging builds the process-wide slog logger.
//
// # Overview
//
// The package wraps Go's standard log/slog package to provide:
//   - JSON, text, and console output formats
//   - Redaction of AWS credentials in log attributes
//   - Context fields (family, run ID, trigger) attached to every record
//     logged with a context
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	slog.SetDefault(logger)
//
//	ctx = logging.WithFamily(ctx, "db-prod")
//	ctx = logging.WithRunID(ctx, runID)
//	slog.InfoContext(ctx, "artifact uploaded", "key", key)
//	// level=INFO msg="artifact uploaded" key=... family=db-prod run_id=...
package logging
