// Package tracing provides OpenTelemetry tracing for rotation runs.
//
// A run produces one "rotation.run" span with children for each step:
//
//	rotation.run
//	├── rotation.upload
//	├── rotation.rotate_local
//	├── rotation.rotate_daily
//	├── rotation.rotate_weekly
//	└── rotation.rotate_monthly
//
// Spans are exported over OTLP gRPC. When tracing is disabled a noop tracer is
// used and span creation costs next to nothing.
package tracing
