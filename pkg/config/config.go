package config

import (
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
)

// Config is the root configuration structure for s3rotate.
// It describes where backups live remotely, which local backup families are
// rotated, and how the daemon, run ledger, and telemetry behave.
type Config struct {
	// Remote selects and configures the remote artifact store.
	Remote RemoteConfig `yaml:"remote"`

	// Families lists the backup families to upload and rotate.
	Families []FamilyConfig `yaml:"families"`

	// Defaults holds values applied to every family that leaves them unset.
	Defaults FamilyDefaults `yaml:"defaults"`

	// Daemon contains configuration for the long-running scheduler mode.
	Daemon DaemonConfig `yaml:"daemon"`

	// Ledger contains configuration for the run history database.
	Ledger LedgerConfig `yaml:"ledger"`

	// Telemetry contains configuration for logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RemoteConfig selects the remote store backend.
type RemoteConfig struct {
	// Backend selects the store implementation.
	// Options: "s3", "filesystem", "memory"
	// Default: "s3"
	Backend string `yaml:"backend"`

	// S3 contains S3 backend configuration.
	S3 S3Config `yaml:"s3"`

	// Filesystem contains filesystem backend configuration.
	Filesystem FilesystemConfig `yaml:"filesystem"`
}

// S3Config contains S3-specific configuration.
type S3Config struct {
	// Bucket is the S3 bucket holding every family. Required.
	Bucket string `yaml:"bucket"`

	// Region is the AWS region for the S3 bucket.
	// Default: "us-east-1"
	Region string `yaml:"region"`

	// Endpoint is an optional custom S3 endpoint (for S3-compatible services).
	Endpoint string `yaml:"endpoint"`

	// AccessKeyID and SecretAccessKey select static credentials.
	// When empty the AWS default credential chain is used.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`

	// Prefix is an optional key prefix for all artifacts, e.g. "backups/".
	Prefix string `yaml:"prefix"`

	// UsePathStyle addresses the bucket in the URL path. MinIO needs this.
	// Default: false
	UsePathStyle bool `yaml:"use_path_style"`

	// PartSize is the multipart upload chunk size in bytes.
	// Default: 104857600 (100MB)
	PartSize int64 `yaml:"part_size"`

	// CopyThreshold is the largest object copied in a single request.
	// Default: 5368709120 (5GB)
	CopyThreshold int64 `yaml:"copy_threshold"`

	// CopyPartSize is the range size for multipart server-side copies.
	// Default: 536870912 (512MB)
	CopyPartSize int64 `yaml:"copy_part_size"`
}

// FilesystemConfig contains configuration for the directory-backed remote.
type FilesystemConfig struct {
	// Root is the directory standing in for the bucket.
	Root string `yaml:"root"`
}

// FamilyConfig describes one backup family.
type FamilyConfig struct {
	// Name identifies the family and is the first key segment. Required.
	Name string `yaml:"name"`

	// LocalDir is the directory the backup job writes into. Required.
	LocalDir string `yaml:"local_dir"`

	// DatePattern is the regular expression locating the date in a filename.
	// Default: defaults.date_pattern
	DatePattern string `yaml:"date_pattern"`

	// DateFormat is the strftime format of the matched date, or "%s" for
	// Unix seconds.
	// Default: defaults.date_format
	DateFormat string `yaml:"date_format"`

	// Schedule is the cron expression for this family in daemon mode.
	// "off" disables scheduled runs, leaving only watch-triggered ones.
	// Default: daemon.schedule
	Schedule string `yaml:"schedule"`

	// Watch triggers a run when a file appears in LocalDir.
	// Default: false
	Watch bool `yaml:"watch"`

	// Limits caps the artifacts kept per tier.
	Limits LimitsConfig `yaml:"limits"`
}

// LimitsConfig caps the artifacts kept per tier.
// A nil field inherits from defaults.limits; zero is a valid limit that
// empties the tier.
type LimitsConfig struct {
	Local   *int `yaml:"local"`
	Daily   *int `yaml:"daily"`
	Weekly  *int `yaml:"weekly"`
	Monthly *int `yaml:"monthly"`
}

// Resolve returns the effective limits, falling back to base for unset fields.
func (l LimitsConfig) Resolve(base artifact.Limits) artifact.Limits {
	out := base
	if l.Local != nil {
		out.Local = *l.Local
	}
	if l.Daily != nil {
		out.Daily = *l.Daily
	}
	if l.Weekly != nil {
		out.Weekly = *l.Weekly
	}
	if l.Monthly != nil {
		out.Monthly = *l.Monthly
	}
	return out
}

// FamilyDefaults holds values inherited by every family.
type FamilyDefaults struct {
	// DatePattern is the default date regular expression.
	// Default: `\d{4}-\d{2}-\d{2}`
	DatePattern string `yaml:"date_pattern"`

	// DateFormat is the default strftime date format.
	// Default: "%Y-%m-%d"
	DateFormat string `yaml:"date_format"`

	// Limits are the default tier limits.
	// Default: local 3, daily 7, weekly 4, monthly 3
	Limits LimitsConfig `yaml:"limits"`
}

// DaemonConfig contains configuration for daemon mode.
type DaemonConfig struct {
	// Schedule is the cron expression used by families without their own.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule"`

	// RunTimeout bounds a single family run.
	// Default: 1h
	RunTimeout time.Duration `yaml:"run_timeout"`

	// WatchDebounce coalesces bursts of file events into one run.
	// Default: 30s
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// WatchSettle is how long a new backup's size and modification time
	// must stay unchanged before a watch-triggered run uploads it.
	// Default: 5s
	WatchSettle time.Duration `yaml:"watch_settle"`

	// ListenAddress serves /health, /ready, /runs, /run and /metrics. The
	// daemon always listens; the --listen flag overrides it.
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// ReloadConfig reloads the configuration file when it changes.
	// Default: false
	ReloadConfig bool `yaml:"reload_config"`

	// ShutdownTimeout is the maximum duration to wait for running jobs.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LedgerConfig contains configuration for the run history database.
type LedgerConfig struct {
	// Enabled controls whether runs are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Driver selects the SQLite driver.
	// Options: "sqlite" (modernc.org/sqlite, pure Go), "sqlite3" (mattn/go-sqlite3, cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file path.
	// Default: "data/s3rotate.db"
	Path string `yaml:"path"`

	// KeepRuns is the number of most recent runs retained. 0 keeps everything.
	// Default: 1000
	KeepRuns int `yaml:"keep_runs"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "s3rotate"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service name in traces.
	// Default: "s3rotate"
	ServiceName string `yaml:"service_name"`
}

// Family returns the named family configuration.
func (c *Config) Family(name string) (*FamilyConfig, bool) {
	for i := range c.Families {
		if c.Families[i].Name == name {
			return &c.Families[i], true
		}
	}
	return nil, false
}

// ScheduleFor returns the cron expression that drives f, or "" when f is not
// scheduled.
func (c *Config) ScheduleFor(f *FamilyConfig) string {
	switch f.Schedule {
	case ScheduleOff:
		return ""
	case "":
		return c.Daemon.Schedule
	default:
		return f.Schedule
	}
}

// EffectiveLimits returns the family's limits with unset fields filled from
// the built-in defaults.
func (f *FamilyConfig) EffectiveLimits() artifact.Limits {
	return f.Limits.Resolve(artifact.DefaultLimits())
}

// FamilyNames returns the configured family names in file order.
func (c *Config) FamilyNames() []string {
	names := make([]string, 0, len(c.Families))
	for _, f := range c.Families {
		names = append(names, f.Name)
	}
	return names
}
