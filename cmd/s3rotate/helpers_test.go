package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mercator-hq/s3rotate/pkg/config"
)

func intPtr(v int) *int { return &v }

// testConfig returns a validated configuration with one family "db" backed
// by a filesystem remote and a SQLite ledger, all below t.TempDir().
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	dir := filepath.Join(root, "local", "db")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg := &config.Config{
		Remote: config.RemoteConfig{
			Backend:    "filesystem",
			Filesystem: config.FilesystemConfig{Root: filepath.Join(root, "remote")},
		},
		Families: []config.FamilyConfig{{
			Name:     "db",
			LocalDir: dir,
			Schedule: config.ScheduleOff,
			Limits: config.LimitsConfig{
				Local:   intPtr(2),
				Daily:   intPtr(3),
				Weekly:  intPtr(2),
				Monthly: intPtr(2),
			},
		}},
		Ledger: config.LedgerConfig{
			Enabled: true,
			Path:    filepath.Join(root, "ledger.db"),
		},
		Telemetry: config.TelemetryConfig{
			Metrics: config.MetricsConfig{Enabled: true},
		},
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

// writeBackups creates one empty backup per date in dir.
func writeBackups(t *testing.T, dir string, dates ...string) {
	t.Helper()
	for _, d := range dates {
		path := filepath.Join(dir, "db-"+d+".tgz")
		if err := os.WriteFile(path, []byte(d), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
}

func localNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	a, err := newApp(context.Background(), cfg, appOptions(cfg)...)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() {
		if err := a.close(context.Background()); err != nil {
			t.Errorf("close() error = %v", err)
		}
	})
	return a
}

var januaryBackups = []string{
	"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05",
	"2024-01-06", "2024-01-07", "2024-01-08", "2024-01-09", "2024-01-10",
}
