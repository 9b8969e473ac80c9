// Package telemetry groups the observability packages used by s3rotate.
//
//   - logging: slog handler construction, context fields and secret redaction
//   - metrics: Prometheus counters for uploads, promotions, deletions and runs
//   - tracing: OpenTelemetry spans around rotation steps
//   - health: liveness, readiness and per-family run status
package telemetry
