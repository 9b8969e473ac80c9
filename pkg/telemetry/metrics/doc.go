// Package metrics provides Prometheus metrics for backup rotation.
//
// # Metrics
//
// Rotation metrics (per family):
//   - s3rotate_uploads_total{family}
//   - s3rotate_promotions_total{family,from,to}
//   - s3rotate_deletions_total{family,tier}
//   - s3rotate_parse_failures_total{family,stage}
//   - s3rotate_tier_artifacts{family,tier}
//
// Run metrics:
//   - s3rotate_runs_total{family,status}
//   - s3rotate_step_duration_seconds{step}
//   - s3rotate_last_run_timestamp_seconds{family,status}
//
// Parse failures are the observable side channel for files and keys whose
// date cannot be read; a rising count usually means a misconfigured
// date_pattern or date_format.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	http.Handle("/metrics", collector.Handler())
package metrics
