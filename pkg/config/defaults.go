package config

import (
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/datecodec"
)

// Default values for configuration fields.
const (
	// Remote defaults
	DefaultRemoteBackend   = "s3"
	DefaultS3Region        = "us-east-1"
	DefaultS3PartSize      = int64(100 * 1024 * 1024)      // 100MB
	DefaultS3CopyThreshold = int64(5 * 1024 * 1024 * 1024) // 5GB
	DefaultS3CopyPartSize  = int64(512 * 1024 * 1024)      // 512MB
	DefaultFilesystemRoot  = "data/remote"
	MinS3PartSize          = int64(5 * 1024 * 1024) // S3 minimum part size

	// Family defaults
	DefaultDatePattern = datecodec.DefaultPattern
	DefaultDateFormat  = datecodec.DefaultFormat

	// Daemon defaults
	ScheduleOff            = "off"
	DefaultDaemonSchedule  = "0 3 * * *"
	DefaultRunTimeout      = time.Hour
	DefaultWatchDebounce   = 30 * time.Second
	DefaultWatchSettle     = 5 * time.Second
	DefaultListenAddress   = "127.0.0.1:9464"
	DefaultShutdownTimeout = 30 * time.Second

	// Ledger defaults
	DefaultLedgerDriver      = "sqlite"
	DefaultLedgerPath        = "data/s3rotate.db"
	DefaultLedgerKeepRuns    = 1000
	DefaultLedgerBusyTimeout = 5 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "text"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "s3rotate"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "s3rotate"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Remote defaults
	if cfg.Remote.Backend == "" {
		cfg.Remote.Backend = DefaultRemoteBackend
	}
	if cfg.Remote.S3.Region == "" {
		cfg.Remote.S3.Region = DefaultS3Region
	}
	if cfg.Remote.S3.PartSize == 0 {
		cfg.Remote.S3.PartSize = DefaultS3PartSize
	}
	if cfg.Remote.S3.CopyThreshold == 0 {
		cfg.Remote.S3.CopyThreshold = DefaultS3CopyThreshold
	}
	if cfg.Remote.S3.CopyPartSize == 0 {
		cfg.Remote.S3.CopyPartSize = DefaultS3CopyPartSize
	}
	if cfg.Remote.Filesystem.Root == "" {
		cfg.Remote.Filesystem.Root = DefaultFilesystemRoot
	}

	// Family defaults
	if cfg.Defaults.DatePattern == "" {
		cfg.Defaults.DatePattern = DefaultDatePattern
	}
	if cfg.Defaults.DateFormat == "" {
		cfg.Defaults.DateFormat = DefaultDateFormat
	}
	builtin := artifact.DefaultLimits()
	fillLimits(&cfg.Defaults.Limits, LimitsConfig{
		Local:   &builtin.Local,
		Daily:   &builtin.Daily,
		Weekly:  &builtin.Weekly,
		Monthly: &builtin.Monthly,
	})

	// Applied to each family
	for i := range cfg.Families {
		family := &cfg.Families[i]
		if family.DatePattern == "" {
			family.DatePattern = cfg.Defaults.DatePattern
		}
		if family.DateFormat == "" {
			family.DateFormat = cfg.Defaults.DateFormat
		}
		fillLimits(&family.Limits, cfg.Defaults.Limits)
	}

	// Daemon defaults
	if cfg.Daemon.Schedule == "" {
		cfg.Daemon.Schedule = DefaultDaemonSchedule
	}
	if cfg.Daemon.RunTimeout == 0 {
		cfg.Daemon.RunTimeout = DefaultRunTimeout
	}
	if cfg.Daemon.WatchDebounce == 0 {
		cfg.Daemon.WatchDebounce = DefaultWatchDebounce
	}
	if cfg.Daemon.WatchSettle == 0 {
		cfg.Daemon.WatchSettle = DefaultWatchSettle
	}
	if cfg.Daemon.ListenAddress == "" {
		cfg.Daemon.ListenAddress = DefaultListenAddress
	}
	if cfg.Daemon.ShutdownTimeout == 0 {
		cfg.Daemon.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Ledger defaults
	if cfg.Ledger.Driver == "" {
		cfg.Ledger.Driver = DefaultLedgerDriver
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = DefaultLedgerPath
	}
	if cfg.Ledger.KeepRuns == 0 {
		cfg.Ledger.KeepRuns = DefaultLedgerKeepRuns
	}
	if cfg.Ledger.BusyTimeout == 0 {
		cfg.Ledger.BusyTimeout = DefaultLedgerBusyTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
}

// fillLimits copies each unset field of dst from base.
// Values are copied, not aliased, so families never share a pointer.
func fillLimits(dst *LimitsConfig, base LimitsConfig) {
	fill := func(field **int, from *int) {
		if *field == nil && from != nil {
			v := *from
			*field = &v
		}
	}
	fill(&dst.Local, base.Local)
	fill(&dst.Daily, base.Daily)
	fill(&dst.Weekly, base.Weekly)
	fill(&dst.Monthly, base.Monthly)
}
