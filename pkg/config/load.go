package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "S3ROTATE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration without applying defaults.
// Unknown fields are rejected so a misspelled limit does not silently
// fall back to its default.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// an empty document is a valid, all-defaults configuration
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention S3ROTATE_SECTION_FIELD (e.g., S3ROTATE_REMOTE_S3_BUCKET).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply environment variable overrides
// 3. Apply default values
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format S3ROTATE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Remote overrides
	setString(&cfg.Remote.Backend, "REMOTE_BACKEND")
	setString(&cfg.Remote.S3.Bucket, "REMOTE_S3_BUCKET")
	setString(&cfg.Remote.S3.Region, "REMOTE_S3_REGION")
	setString(&cfg.Remote.S3.Endpoint, "REMOTE_S3_ENDPOINT")
	setString(&cfg.Remote.S3.AccessKeyID, "REMOTE_S3_ACCESS_KEY_ID")
	setString(&cfg.Remote.S3.SecretAccessKey, "REMOTE_S3_SECRET_ACCESS_KEY")
	setString(&cfg.Remote.S3.SessionToken, "REMOTE_S3_SESSION_TOKEN")
	setString(&cfg.Remote.S3.Prefix, "REMOTE_S3_PREFIX")
	setBool(&cfg.Remote.S3.UsePathStyle, "REMOTE_S3_USE_PATH_STYLE")
	setInt64(&cfg.Remote.S3.PartSize, "REMOTE_S3_PART_SIZE")
	setString(&cfg.Remote.Filesystem.Root, "REMOTE_FILESYSTEM_ROOT")

	// Family overrides: S3ROTATE_FAMILIES_<NAME>_<FIELD>
	for i := range cfg.Families {
		applyFamilyEnvOverrides(&cfg.Families[i])
	}

	// Daemon overrides
	setString(&cfg.Daemon.Schedule, "DAEMON_SCHEDULE")
	setDuration(&cfg.Daemon.RunTimeout, "DAEMON_RUN_TIMEOUT")
	setDuration(&cfg.Daemon.WatchDebounce, "DAEMON_WATCH_DEBOUNCE")
	setDuration(&cfg.Daemon.WatchSettle, "DAEMON_WATCH_SETTLE")
	setString(&cfg.Daemon.ListenAddress, "DAEMON_LISTEN_ADDRESS")
	setBool(&cfg.Daemon.ReloadConfig, "DAEMON_RELOAD_CONFIG")

	// Ledger overrides
	setBool(&cfg.Ledger.Enabled, "LEDGER_ENABLED")
	setString(&cfg.Ledger.Driver, "LEDGER_DRIVER")
	setString(&cfg.Ledger.Path, "LEDGER_PATH")
	setInt(&cfg.Ledger.KeepRuns, "LEDGER_KEEP_RUNS")

	// Telemetry overrides
	setString(&cfg.Telemetry.Logging.Level, "TELEMETRY_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "TELEMETRY_LOGGING_FORMAT")
	setBool(&cfg.Telemetry.Metrics.Enabled, "TELEMETRY_METRICS_ENABLED")
	setString(&cfg.Telemetry.Metrics.Path, "TELEMETRY_METRICS_PATH")
	setBool(&cfg.Telemetry.Tracing.Enabled, "TELEMETRY_TRACING_ENABLED")
	setString(&cfg.Telemetry.Tracing.Endpoint, "TELEMETRY_TRACING_ENDPOINT")
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

// applyFamilyEnvOverrides applies overrides for one family. The family name
// is upper-cased with dashes and dots replaced by underscores, so family
// "db-prod" reads S3ROTATE_FAMILIES_DB_PROD_LOCAL_DIR.
func applyFamilyEnvOverrides(family *FamilyConfig) {
	prefix := "FAMILIES_" + envName(family.Name) + "_"

	setString(&family.LocalDir, prefix+"LOCAL_DIR")
	setString(&family.Schedule, prefix+"SCHEDULE")
	setBool(&family.Watch, prefix+"WATCH")
	setLimit(&family.Limits.Local, prefix+"LIMITS_LOCAL")
	setLimit(&family.Limits.Daily, prefix+"LIMITS_DAILY")
	setLimit(&family.Limits.Weekly, prefix+"LIMITS_WEEKLY")
	setLimit(&family.Limits.Monthly, prefix+"LIMITS_MONTHLY")
}

func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

func setString(dst *string, key string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setInt64(dst *int64, key string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func setLimit(dst **int, key string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = &i
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
