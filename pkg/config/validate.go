package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/s3rotate/pkg/datecodec"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "remote.s3.bucket").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRemote(&cfg.Remote)...)
	errs = append(errs, validateLimits("defaults.limits", &cfg.Defaults.Limits)...)
	errs = append(errs, validateFamilies(cfg.Families)...)
	errs = append(errs, validateDaemon(&cfg.Daemon)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateRemote validates remote store configuration.
func validateRemote(cfg *RemoteConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "s3":
		if cfg.S3.Bucket == "" {
			errs = append(errs, FieldError{
				Field:   "remote.s3.bucket",
				Message: "S3 bucket is required when backend is 's3'",
			})
		}
		if strings.HasPrefix(cfg.S3.Prefix, "/") {
			errs = append(errs, FieldError{
				Field:   "remote.s3.prefix",
				Message: "prefix must not start with /",
			})
		}
		if cfg.S3.Prefix != "" && !strings.HasSuffix(cfg.S3.Prefix, "/") {
			errs = append(errs, FieldError{
				Field:   "remote.s3.prefix",
				Message: "prefix must end with /",
			})
		}
		if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
			errs = append(errs, FieldError{
				Field:   "remote.s3.secret_access_key",
				Message: "access_key_id and secret_access_key must be set together",
			})
		}
		if cfg.S3.PartSize < MinS3PartSize {
			errs = append(errs, FieldError{
				Field:   "remote.s3.part_size",
				Message: fmt.Sprintf("part size must be at least %d bytes", MinS3PartSize),
			})
		}
		if cfg.S3.CopyThreshold <= 0 || cfg.S3.CopyThreshold > DefaultS3CopyThreshold {
			errs = append(errs, FieldError{
				Field:   "remote.s3.copy_threshold",
				Message: fmt.Sprintf("copy threshold must be between 1 and %d bytes", DefaultS3CopyThreshold),
			})
		}
		if cfg.S3.CopyPartSize < MinS3PartSize || cfg.S3.CopyPartSize > DefaultS3CopyThreshold {
			errs = append(errs, FieldError{
				Field:   "remote.s3.copy_part_size",
				Message: fmt.Sprintf("copy part size must be between %d and %d bytes", MinS3PartSize, DefaultS3CopyThreshold),
			})
		}
	case "filesystem":
		if cfg.Filesystem.Root == "" {
			errs = append(errs, FieldError{
				Field:   "remote.filesystem.root",
				Message: "root is required when backend is 'filesystem'",
			})
		}
	case "memory":
	case "":
		errs = append(errs, FieldError{
			Field:   "remote.backend",
			Message: "backend is required",
		})
	default:
		errs = append(errs, FieldError{
			Field:   "remote.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 's3', 'filesystem', or 'memory'", cfg.Backend),
		})
	}

	return errs
}

// validateFamilies validates every family and checks names are unique.
func validateFamilies(families []FamilyConfig) []FieldError {
	var errs []FieldError

	if len(families) == 0 {
		errs = append(errs, FieldError{
			Field:   "families",
			Message: "at least one family must be configured",
		})
		return errs
	}

	seen := make(map[string]bool)
	for i := range families {
		family := &families[i]
		prefix := fmt.Sprintf("families[%d]", i)

		switch {
		case family.Name == "":
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: "family name is required",
			})
		case strings.Contains(family.Name, "/"):
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("family name %q must not contain /", family.Name),
			})
		case seen[family.Name]:
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate family name %q", family.Name),
			})
		}
		seen[family.Name] = true

		if family.LocalDir == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".local_dir",
				Message: "local directory is required",
			})
		}

		if _, err := datecodec.New(family.DatePattern, family.DateFormat); err != nil {
			errs = append(errs, FieldError{
				Field:   prefix + ".date_pattern",
				Message: err.Error(),
			})
		}

		if family.Schedule != "" && family.Schedule != ScheduleOff {
			if _, err := cron.ParseStandard(family.Schedule); err != nil {
				errs = append(errs, FieldError{
					Field:   prefix + ".schedule",
					Message: fmt.Sprintf("invalid cron expression %q: %v", family.Schedule, err),
				})
			}
		}

		errs = append(errs, validateLimits(prefix+".limits", &family.Limits)...)
	}

	return errs
}

// validateLimits checks every set limit is non-negative.
func validateLimits(prefix string, limits *LimitsConfig) []FieldError {
	var errs []FieldError

	fields := []struct {
		name  string
		value *int
	}{
		{"local", limits.Local},
		{"daily", limits.Daily},
		{"weekly", limits.Weekly},
		{"monthly", limits.Monthly},
	}
	for _, f := range fields {
		if f.value != nil && *f.value < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + "." + f.name,
				Message: "limit must be non-negative",
			})
		}
	}

	return errs
}

// validateDaemon validates daemon configuration.
func validateDaemon(cfg *DaemonConfig) []FieldError {
	var errs []FieldError

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "daemon.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Schedule, err),
			})
		}
	}
	if cfg.RunTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "daemon.run_timeout",
			Message: "run timeout must be positive",
		})
	}
	if cfg.WatchDebounce < 0 {
		errs = append(errs, FieldError{
			Field:   "daemon.watch_debounce",
			Message: "watch debounce must be positive",
		})
	}
	if cfg.WatchDebounce > time.Hour {
		errs = append(errs, FieldError{
			Field:   "daemon.watch_debounce",
			Message: "watch debounce exceeds reasonable limit (1h)",
		})
	}
	if cfg.WatchSettle < 0 {
		errs = append(errs, FieldError{
			Field:   "daemon.watch_settle",
			Message: "watch settle must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "daemon.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}

	return errs
}

// validateLedger validates run ledger configuration.
func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError

	// If the ledger is disabled, skip validation
	if !cfg.Enabled {
		return errs
	}

	validDrivers := map[string]bool{"sqlite": true, "sqlite3": true}
	if !validDrivers[cfg.Driver] {
		errs = append(errs, FieldError{
			Field:   "ledger.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.Driver),
		})
	}
	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "ledger.path",
			Message: "ledger path is required when the ledger is enabled",
		})
	}
	if cfg.KeepRuns < 0 {
		errs = append(errs, FieldError{
			Field:   "ledger.keep_runs",
			Message: "keep runs must be non-negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	// Validate metrics path
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	// Validate tracing configuration
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
