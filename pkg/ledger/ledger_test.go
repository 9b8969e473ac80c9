package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/rotation"
)

func openTest(t *testing.T, keepRuns int) *SQLite {
	t.Helper()
	l, err := Open(config.LedgerConfig{
		Enabled:  true,
		Driver:   "sqlite",
		Path:     filepath.Join(t.TempDir(), "ledger", "s3rotate.db"),
		KeepRuns: keepRuns,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func testReport(id, family string, started time.Time, err error) *rotation.Report {
	daily := &artifact.Artifact{Family: family, Tier: artifact.TierDaily, Key: family + "/daily/2020-01-13.tgz"}
	weekly := &artifact.Artifact{Family: family, Tier: artifact.TierWeekly, Key: family + "/weekly/2020-01-13.tgz"}

	rep := rotation.NewReport(family)
	rep.RunID = id
	rep.Trigger = rotation.TriggerManual
	rep.Uploaded = []*artifact.Artifact{daily}
	rep.Promotions = []rotation.Promotion{{Source: daily, Target: weekly}}
	rep.Deleted = []rotation.Deletion{{Tier: artifact.TierDaily, Key: family + "/daily/2020-01-06.tgz"}}
	rep.Skipped = []rotation.Failure{{Stage: rotation.StageUpload, Key: "/backups/notes.txt", Reason: "no date match"}}
	rep.Finish(err)
	rep.StartedAt = started
	rep.FinishedAt = started.Add(90 * time.Second)
	return rep
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LedgerConfig
	}{
		{name: "unknown driver", cfg: config.LedgerConfig{Driver: "postgres", Path: "x.db"}},
		{name: "missing path", cfg: config.LedgerConfig{Driver: "sqlite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	l, err := New(config.LedgerConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := l.(Nop); !ok {
		t.Fatalf("New() = %T, want Nop", l)
	}
	if err := l.RecordRun(context.Background(), testReport("r1", "db", time.Now(), nil)); err != nil {
		t.Errorf("Nop.RecordRun() error = %v", err)
	}
	runs, _ := l.Runs(context.Background(), Filter{})
	if len(runs) != 0 {
		t.Errorf("Nop.Runs() = %v", runs)
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	l := openTest(t, 0)
	ctx := context.Background()
	started := time.Date(2020, 1, 17, 3, 0, 0, 0, time.UTC)

	if err := l.RecordRun(ctx, testReport("run-1", "db", started, nil)); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	runs, err := l.Runs(ctx, Filter{})
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != "run-1" || r.Family != "db" || r.Trigger != rotation.TriggerManual || r.Status != rotation.StatusSuccess {
		t.Errorf("run = %+v", r)
	}
	if !r.StartedAt.Equal(started) || r.Duration() != 90*time.Second {
		t.Errorf("times = %v, %v", r.StartedAt, r.Duration())
	}
	if r.Uploaded != 1 || r.Promoted != 1 || r.Deleted != 1 || r.Failures != 1 {
		t.Errorf("counts = %+v", r)
	}

	events, err := l.Events(ctx, "run-1")
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	wantActions := []string{rotation.ActionUpload, rotation.ActionParseFail, rotation.ActionPromote, rotation.ActionDelete}
	if len(events) != len(wantActions) {
		t.Fatalf("got %d events, want %d", len(events), len(wantActions))
	}
	for i, action := range wantActions {
		if events[i].Action != action {
			t.Errorf("event %d action = %q, want %q", i, events[i].Action, action)
		}
	}
	if events[2].Tier != artifact.TierWeekly || events[2].Detail != "db/daily/2020-01-13.tgz" {
		t.Errorf("promotion event = %+v", events[2])
	}
}

func TestRecordRun_ReplacesSameID(t *testing.T) {
	l := openTest(t, 0)
	ctx := context.Background()
	started := time.Now()

	if err := l.RecordRun(ctx, testReport("run-1", "db", started, nil)); err != nil {
		t.Fatal(err)
	}
	if err := l.RecordRun(ctx, testReport("run-1", "db", started, errors.New("boom"))); err != nil {
		t.Fatal(err)
	}

	runs, _ := l.Runs(ctx, Filter{})
	if len(runs) != 1 || runs[0].Status != rotation.StatusFailed || runs[0].Error != "boom" {
		t.Fatalf("runs = %+v", runs)
	}
	events, _ := l.Events(ctx, "run-1")
	if len(events) != 4 {
		t.Errorf("events duplicated: got %d", len(events))
	}
}

func TestRecordRun_RequiresID(t *testing.T) {
	l := openTest(t, 0)
	if err := l.RecordRun(context.Background(), testReport("", "db", time.Now(), nil)); err == nil {
		t.Fatal("expected error for a report without run id")
	}
}

func TestRuns_Filter(t *testing.T) {
	l := openTest(t, 0)
	ctx := context.Background()
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 6 {
		family := "db"
		if i%2 == 1 {
			family = "web"
		}
		var err error
		if i == 4 {
			err = errors.New("failed")
		}
		rep := testReport(fmt.Sprintf("run-%d", i), family, base.Add(time.Duration(i)*time.Hour), err)
		if err := l.RecordRun(ctx, rep); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "all newest first", filter: Filter{}, want: []string{"run-5", "run-4", "run-3", "run-2", "run-1", "run-0"}},
		{name: "family", filter: Filter{Family: "web"}, want: []string{"run-5", "run-3", "run-1"}},
		{name: "status", filter: Filter{Status: rotation.StatusFailed}, want: []string{"run-4"}},
		{name: "since", filter: Filter{Since: base.Add(4 * time.Hour)}, want: []string{"run-5", "run-4"}},
		{name: "limit", filter: Filter{Limit: 2}, want: []string{"run-5", "run-4"}},
		{name: "family and status", filter: Filter{Family: "db", Status: rotation.StatusSuccess}, want: []string{"run-2", "run-0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := l.Runs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Runs() error = %v", err)
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("got %d runs, want %d", len(runs), len(tt.want))
			}
			for i, id := range tt.want {
				if runs[i].ID != id {
					t.Errorf("runs[%d] = %s, want %s", i, runs[i].ID, id)
				}
			}
		})
	}
}

func TestPrune(t *testing.T) {
	l := openTest(t, 0)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := range 5 {
		if err := l.RecordRun(ctx, testReport(fmt.Sprintf("run-%d", i), "db", base.Add(time.Duration(i)*time.Minute), nil)); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := l.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	runs, _ := l.Runs(ctx, Filter{})
	if len(runs) != 2 || runs[0].ID != "run-4" || runs[1].ID != "run-3" {
		t.Errorf("runs = %+v", runs)
	}
	if events, _ := l.Events(ctx, "run-0"); len(events) != 0 {
		t.Errorf("events of pruned run remain: %v", events)
	}

	if _, err := l.Prune(ctx, -1); err == nil {
		t.Error("expected error for negative keep")
	}
}

func TestRecordRun_AutoPrune(t *testing.T) {
	l := openTest(t, 3)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := range 5 {
		if err := l.RecordRun(ctx, testReport(fmt.Sprintf("run-%d", i), "db", base.Add(time.Duration(i)*time.Minute), nil)); err != nil {
			t.Fatal(err)
		}
	}
	runs, _ := l.Runs(ctx, Filter{})
	if len(runs) != 3 {
		t.Errorf("got %d runs, want 3", len(runs))
	}
}

func TestClose(t *testing.T) {
	l := openTest(t, 0)
	if err := l.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := l.RecordRun(context.Background(), testReport("r", "db", time.Now(), nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("RecordRun() after close = %v, want ErrClosed", err)
	}
	if _, err := l.Runs(context.Background(), Filter{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Runs() after close = %v, want ErrClosed", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s3rotate.db")
	cfg := config.LedgerConfig{Enabled: true, Driver: "sqlite", Path: path}

	l, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.RecordRun(context.Background(), testReport("run-1", "db", time.Now(), nil)); err != nil {
		t.Fatal(err)
	}
	l.Close()

	l, err = Open(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer l.Close()
	runs, _ := l.Runs(context.Background(), Filter{})
	if len(runs) != 1 {
		t.Errorf("got %d runs after reopen, want 1", len(runs))
	}
}
