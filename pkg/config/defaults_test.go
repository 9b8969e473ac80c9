package config

import (
	"testing"
)

func intPtr(i int) *int { return &i }

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{Families: []FamilyConfig{{Name: "db", LocalDir: "/backups"}}}
	ApplyDefaults(cfg)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"remote.backend", cfg.Remote.Backend, DefaultRemoteBackend},
		{"remote.s3.region", cfg.Remote.S3.Region, DefaultS3Region},
		{"remote.s3.part_size", cfg.Remote.S3.PartSize, DefaultS3PartSize},
		{"remote.s3.copy_threshold", cfg.Remote.S3.CopyThreshold, DefaultS3CopyThreshold},
		{"daemon.schedule", cfg.Daemon.Schedule, DefaultDaemonSchedule},
		{"daemon.run_timeout", cfg.Daemon.RunTimeout, DefaultRunTimeout},
		{"daemon.watch_debounce", cfg.Daemon.WatchDebounce, DefaultWatchDebounce},
		{"daemon.watch_settle", cfg.Daemon.WatchSettle, DefaultWatchSettle},
		{"daemon.listen_address", cfg.Daemon.ListenAddress, DefaultListenAddress},
		{"ledger.driver", cfg.Ledger.Driver, DefaultLedgerDriver},
		{"ledger.keep_runs", cfg.Ledger.KeepRuns, DefaultLedgerKeepRuns},
		{"telemetry.logging.level", cfg.Telemetry.Logging.Level, DefaultLoggingLevel},
		{"telemetry.logging.format", cfg.Telemetry.Logging.Format, DefaultLoggingFormat},
		{"telemetry.metrics.namespace", cfg.Telemetry.Metrics.Namespace, DefaultMetricsNamespace},
		{"families[0].date_pattern", cfg.Families[0].DatePattern, DefaultDatePattern},
		{"families[0].date_format", cfg.Families[0].DateFormat, DefaultDateFormat},
		{"families[0].limits.local", *cfg.Families[0].Limits.Local, 3},
		{"families[0].limits.daily", *cfg.Families[0].Limits.Daily, 7},
		{"families[0].limits.weekly", *cfg.Families[0].Limits.Weekly, 4},
		{"families[0].limits.monthly", *cfg.Families[0].Limits.Monthly, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Remote: RemoteConfig{Backend: "filesystem", Filesystem: FilesystemConfig{Root: "/srv/remote"}},
		Defaults: FamilyDefaults{
			DateFormat: "%d.%m.%Y",
			Limits:     LimitsConfig{Weekly: intPtr(8)},
		},
		Families: []FamilyConfig{
			{Name: "db", LocalDir: "/backups", Limits: LimitsConfig{Local: intPtr(0)}},
			{Name: "logs", LocalDir: "/logs", DateFormat: "%Y-%m-%d"},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Remote.Filesystem.Root != "/srv/remote" {
		t.Errorf("expected explicit root, got %q", cfg.Remote.Filesystem.Root)
	}

	db := cfg.Families[0]
	if db.DateFormat != "%d.%m.%Y" {
		t.Errorf("expected inherited date format, got %q", db.DateFormat)
	}
	if got := db.EffectiveLimits(); got.Local != 0 || got.Weekly != 8 || got.Daily != 7 {
		t.Errorf("unexpected db limits %+v", got)
	}

	logs := cfg.Families[1]
	if logs.DateFormat != "%Y-%m-%d" {
		t.Errorf("expected explicit date format, got %q", logs.DateFormat)
	}
	if got := logs.EffectiveLimits(); got.Weekly != 8 {
		t.Errorf("expected inherited weekly limit 8, got %d", got.Weekly)
	}

	// families must not share limit storage
	*cfg.Families[1].Limits.Daily = 99
	if *cfg.Families[0].Limits.Daily == 99 {
		t.Error("families share a limit pointer")
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{Families: []FamilyConfig{{Name: "db", LocalDir: "/backups"}}}
	ApplyDefaults(cfg)
	first := cfg.Families[0].EffectiveLimits()
	ApplyDefaults(cfg)

	if got := cfg.Families[0].EffectiveLimits(); got != first {
		t.Errorf("second ApplyDefaults changed limits: %+v -> %+v", first, got)
	}
}

func TestScheduleFor(t *testing.T) {
	cfg := &Config{Daemon: DaemonConfig{Schedule: "0 3 * * *"}}

	tests := []struct {
		schedule string
		want     string
	}{
		{"", "0 3 * * *"},
		{"off", ""},
		{"*/5 * * * *", "*/5 * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			if got := cfg.ScheduleFor(&FamilyConfig{Schedule: tt.schedule}); got != tt.want {
				t.Errorf("ScheduleFor(%q) = %q, want %q", tt.schedule, got, tt.want)
			}
		})
	}
}
