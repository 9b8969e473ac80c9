package main

import (
	"context"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/cli"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/ledger"
	"mercator-hq/s3rotate/pkg/rotation"
)

func TestSelectFamilies(t *testing.T) {
	cfg := &config.Config{Families: []config.FamilyConfig{
		{Name: "db"}, {Name: "media"}, {Name: "mail"},
	}}

	tests := []struct {
		name     string
		names    []string
		want     []string
		wantCode int
	}{
		{name: "all", names: nil, want: []string{"db", "media", "mail"}},
		{name: "subset keeps flag order", names: []string{"mail", "db"}, want: []string{"mail", "db"}},
		{name: "unknown", names: []string{"db", "logs"}, wantCode: cli.ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectFamilies(cfg, tt.names)
			if code := cli.ExitCode(err); code != tt.wantCode {
				t.Fatalf("selectFamilies() error = %v, exit code %d, want %d", err, code, tt.wantCode)
			}
			if err != nil {
				return
			}
			var names []string
			for _, f := range got {
				names = append(names, f.Name)
			}
			if !slices.Equal(names, tt.want) {
				t.Errorf("selectFamilies() = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestNewApp_UnsupportedBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.Backend = "ftp"

	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Fatal("newApp() expected error for unsupported backend")
	}
}

func TestNewApp_DisabledLedger(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Enabled = false

	a := newTestApp(t, cfg)
	if _, ok := a.ledger.(ledger.Nop); !ok {
		t.Errorf("ledger = %T, want ledger.Nop", a.ledger)
	}
}

func TestRunAll_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	fam := cfg.Families[0]
	writeBackups(t, fam.LocalDir, januaryBackups...)

	a := newTestApp(t, cfg)
	ctx := context.Background()

	reports, err := a.manager.RunAll(ctx, cfg.Families, rotation.TriggerManual)
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("RunAll() returned %d reports, want 1", len(reports))
	}
	rep := reports[0]
	if rep.Status != rotation.StatusSuccess {
		t.Errorf("Status = %q, want %q (error %q)", rep.Status, rotation.StatusSuccess, rep.Error)
	}
	if len(rep.Uploaded) != len(januaryBackups) {
		t.Errorf("Uploaded = %d, want %d", len(rep.Uploaded), len(januaryBackups))
	}
	if got := len(rep.Copied()); got != 3 {
		t.Errorf("Copied = %d, want 3", got)
	}

	wantLocal := []string{"db-2024-01-09.tgz", "db-2024-01-10.tgz"}
	if got := localNames(t, fam.LocalDir); !slices.Equal(got, wantLocal) {
		t.Errorf("local files = %v, want %v", got, wantLocal)
	}

	wantTiers := map[artifact.Tier][]string{
		artifact.TierDaily:   {"2024-01-08.tgz", "2024-01-09.tgz", "2024-01-10.tgz"},
		artifact.TierWeekly:  {"2024-01-01.tgz", "2024-01-08.tgz"},
		artifact.TierMonthly: {"2024-01-01.tgz"},
	}
	for tier, want := range wantTiers {
		list, err := a.remote.List(ctx, "db", tier)
		if err != nil {
			t.Fatalf("List(%s) error = %v", tier, err)
		}
		var got []string
		for _, art := range list {
			got = append(got, art.Name())
		}
		if !slices.Equal(got, want) {
			t.Errorf("%s = %v, want %v", tier, got, want)
		}
	}

	runs, err := a.ledger.Runs(ctx, ledger.Filter{Family: "db"})
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != rep.RunID || runs[0].Uploaded != len(januaryBackups) {
		t.Errorf("Runs() = %+v, want one run %s with %d uploads", runs, rep.RunID, len(januaryBackups))
	}

	status, ok := a.tracker.Status("db")
	if !ok || !status.Healthy() {
		t.Errorf("tracker status = %+v, %v, want healthy", status, ok)
	}

	count, err := testutil.GatherAndCount(a.collector.Registry(), "s3rotate_uploads_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("s3rotate_uploads_total series = %d, want 1", count)
	}
}

func TestRotateFamily_SingleTier(t *testing.T) {
	cfg := testConfig(t)
	fam := cfg.Families[0]
	writeBackups(t, fam.LocalDir, januaryBackups...)

	a := newTestApp(t, cfg)
	ctx := context.Background()

	if _, err := rotateFamily(ctx, a.manager.Rotator(), fam, artifact.TierLocal); err != nil {
		t.Fatalf("rotateFamily(local) error = %v", err)
	}
	if got := localNames(t, fam.LocalDir); len(got) != 2 {
		t.Errorf("local files = %v, want 2", got)
	}

	rep, err := rotateFamily(ctx, a.manager.Rotator(), fam, artifact.TierDaily)
	if err != nil {
		t.Fatalf("rotateFamily(daily) error = %v", err)
	}
	if len(rep.Promotions) != 0 || len(rep.Deleted) != 0 {
		t.Errorf("empty daily tier produced %+v", rep)
	}

	if _, err := rotateFamily(ctx, a.manager.Rotator(), fam, artifact.Tier("yearly")); err == nil {
		t.Error("rotateFamily(yearly) expected error")
	}
}
