package rotation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/store/local"
	"mercator-hq/s3rotate/pkg/store/memory"
)

func TestRotateDaily_Scenario(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierDaily, dateRange(t, "2020-01-12", "2020-01-17")...)
	seed(t, remote, artifact.TierWeekly, "2020-01-06")
	seed(t, remote, artifact.TierMonthly, "2020-01-06")

	metrics := newRecordingMetrics()
	r := NewRotator(local.New(), remote, WithMetrics(metrics))

	rep, err := r.RotateDaily(context.Background(), testFamily, 3)
	if err != nil {
		t.Fatalf("RotateDaily() error = %v", err)
	}

	if got, want := tierDates(t, remote, artifact.TierDaily), []string{"2020-01-15", "2020-01-16", "2020-01-17"}; !equal(got, want) {
		t.Errorf("daily = %v, want %v", got, want)
	}
	if got, want := tierDates(t, remote, artifact.TierWeekly), []string{"2020-01-06", "2020-01-13"}; !equal(got, want) {
		t.Errorf("weekly = %v, want %v", got, want)
	}
	if got, want := tierDates(t, remote, artifact.TierMonthly), []string{"2020-01-06"}; !equal(got, want) {
		t.Errorf("monthly = %v, want %v", got, want)
	}

	copied := rep.Copied()
	if len(copied) != 1 || copied[0].Source.Key != "db/daily/2020-01-13.tgz" || copied[0].Target.Key != "db/weekly/2020-01-13.tgz" {
		t.Errorf("promotions = %+v, want daily 2020-01-13 to weekly", copied)
	}
	wantDeleted := []string{"db/daily/2020-01-12.tgz", "db/daily/2020-01-13.tgz", "db/daily/2020-01-14.tgz"}
	if got := rep.DeletedIn(artifact.TierDaily); !equal(got, wantDeleted) {
		t.Errorf("deleted = %v, want %v", got, wantDeleted)
	}
	if rep.Status != StatusSuccess {
		t.Errorf("status = %q, want success", rep.Status)
	}

	if metrics.promotions["daily->weekly"] != 1 {
		t.Errorf("promotion metric = %d, want 1", metrics.promotions["daily->weekly"])
	}
	if metrics.deletions[artifact.TierDaily] != 3 {
		t.Errorf("deletion metric = %d, want 3", metrics.deletions[artifact.TierDaily])
	}
	if metrics.tierSizes[artifact.TierDaily] != 3 {
		t.Errorf("daily size = %d, want 3", metrics.tierSizes[artifact.TierDaily])
	}
}

func TestRotateDaily_EmptyWeeklyPromotesFirst(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierDaily, "2031-07-19")

	r := NewRotator(local.New(), remote)
	if _, err := r.RotateDaily(context.Background(), testFamily, 7); err != nil {
		t.Fatalf("RotateDaily() error = %v", err)
	}

	if got := tierDates(t, remote, artifact.TierWeekly); !equal(got, []string{"2031-07-19"}) {
		t.Errorf("weekly = %v, want [2031-07-19]", got)
	}
	if got := tierDates(t, remote, artifact.TierDaily); !equal(got, []string{"2031-07-19"}) {
		t.Errorf("daily = %v, promotion must keep the source", got)
	}
}

func TestRotateDaily_BackfilledOlderDaily(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierDaily, "2020-01-06", "2020-01-13")
	seed(t, remote, artifact.TierWeekly, "2020-01-13")

	r := NewRotator(local.New(), remote)
	rep, err := r.RotateDaily(context.Background(), testFamily, 7)
	if err != nil {
		t.Fatalf("RotateDaily() error = %v", err)
	}

	// the older daily is 7 days from the last weekly and promotes, then the
	// daily already present in weekly is recognized without a copy
	if got := tierDates(t, remote, artifact.TierWeekly); !equal(got, []string{"2020-01-06", "2020-01-13"}) {
		t.Errorf("weekly = %v", got)
	}
	if len(rep.Promotions) != 2 || len(rep.Copied()) != 1 {
		t.Errorf("promotions = %d, copied = %d, want 2 and 1", len(rep.Promotions), len(rep.Copied()))
	}
	if remote.Calls("copy") != 1 {
		t.Errorf("copy calls = %d, want 1", remote.Calls("copy"))
	}
}

func TestRotateWeekly_CalendarMonths(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierWeekly, "2020-01-31", "2020-02-07", "2020-02-29", "2020-03-01")
	seed(t, remote, artifact.TierMonthly, "2020-01-31")

	r := NewRotator(local.New(), remote)
	if _, err := r.RotateWeekly(context.Background(), testFamily, 10); err != nil {
		t.Fatalf("RotateWeekly() error = %v", err)
	}

	if got, want := tierDates(t, remote, artifact.TierMonthly), []string{"2020-01-31", "2020-03-01"}; !equal(got, want) {
		t.Errorf("monthly = %v, want %v", got, want)
	}
}

func TestRotateMonthly_PruneOnly(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierMonthly, "2019-10-01", "2019-11-01", "2019-12-01", "2020-01-01")

	r := NewRotator(local.New(), remote)
	rep, err := r.RotateMonthly(context.Background(), testFamily, 3)
	if err != nil {
		t.Fatalf("RotateMonthly() error = %v", err)
	}
	if len(rep.Promotions) != 0 {
		t.Errorf("monthly must not promote, got %v", rep.Promotions)
	}
	if got := tierDates(t, remote, artifact.TierMonthly); !equal(got, []string{"2019-11-01", "2019-12-01", "2020-01-01"}) {
		t.Errorf("monthly = %v", got)
	}
}

func TestRotateMonthly_Empty(t *testing.T) {
	remote := memory.New("")
	r := NewRotator(local.New(), remote)
	rep, err := r.RotateMonthly(context.Background(), testFamily, 3)
	if err != nil {
		t.Fatalf("RotateMonthly() error = %v", err)
	}
	if len(rep.Deleted) != 0 || remote.Calls("delete") != 0 {
		t.Error("empty monthly tier must be a no-op")
	}
}

func TestPruning_KeepsNewest(t *testing.T) {
	for _, k := range []int{0, 1, 4, 9} {
		for _, n := range []int{0, 1, 4, 7} {
			t.Run(fmt.Sprintf("k=%d,N=%d", k, n), func(t *testing.T) {
				remote := memory.New("")
				var dates []string
				if k > 0 {
					dates = dateRange(t, "2020-03-01", mustDate(t, "2020-03-01").AddDays(k-1).String())
				}
				seed(t, remote, artifact.TierMonthly, dates...)

				r := NewRotator(local.New(), remote)
				if _, err := r.RotateMonthly(context.Background(), testFamily, n); err != nil {
					t.Fatalf("RotateMonthly() error = %v", err)
				}

				keep := min(k, n)
				got := tierDates(t, remote, artifact.TierMonthly)
				if !equal(got, dates[len(dates)-keep:]) {
					t.Errorf("kept %v, want %v", got, dates[len(dates)-keep:])
				}
			})
		}
	}
}

func TestRotateLocal(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.tgz", "b.tgz", "c.tgz", "d.tgz", "e.tgz")

	r := NewRotator(local.New(), memory.New(""))
	rep, err := r.RotateLocal(context.Background(), testFamily, dir, 3)
	if err != nil {
		t.Fatalf("RotateLocal() error = %v", err)
	}

	if got := dirNames(t, dir); !equal(got, []string{"c.tgz", "d.tgz", "e.tgz"}) {
		t.Errorf("remaining = %v", got)
	}
	if len(rep.DeletedIn(artifact.TierLocal)) != 2 {
		t.Errorf("deleted = %v", rep.Deleted)
	}
}

func TestRotateLocal_InvalidDirectory(t *testing.T) {
	r := NewRotator(local.New(), memory.New(""))
	_, err := r.RotateLocal(context.Background(), testFamily, t.TempDir()+"/missing", 3)
	if !errors.Is(err, artifact.ErrInvalidDirectory) {
		t.Fatalf("error = %v, want ErrInvalidDirectory", err)
	}
}

func TestRotate_InvalidDirectoryStopsRun(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierDaily, dateRange(t, "2020-01-01", "2020-01-10")...)

	r := NewRotator(local.New(), remote)
	rep, err := r.Rotate(context.Background(), testFamily, t.TempDir()+"/missing", artifact.DefaultLimits())
	if !errors.Is(err, artifact.ErrInvalidDirectory) {
		t.Fatalf("error = %v, want ErrInvalidDirectory", err)
	}
	if rep.Status != StatusFailed {
		t.Errorf("status = %q, want failed", rep.Status)
	}
	if remote.Calls("list") != 0 {
		t.Error("remote tiers must not be touched after a local failure")
	}
}

func TestRotate_ParseFailuresReported(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierDaily, "2020-01-06")
	remote.PutKey("db/daily/garbage.tgz", []byte("x"))

	metrics := newRecordingMetrics()
	r := NewRotator(local.New(), remote, WithMetrics(metrics))
	rep, err := r.RotateDaily(context.Background(), testFamily, 7)
	if err != nil {
		t.Fatalf("RotateDaily() error = %v", err)
	}

	if len(rep.Failures) != 1 || rep.Failures[0].Key != "db/daily/garbage.tgz" || rep.Failures[0].Stage != StagePromote {
		t.Errorf("failures = %+v", rep.Failures)
	}
	if metrics.parseFailures[StagePromote] != 1 {
		t.Errorf("parse failure metric = %d, want 1", metrics.parseFailures[StagePromote])
	}
	if got := tierDates(t, remote, artifact.TierWeekly); !equal(got, []string{"2020-01-06"}) {
		t.Errorf("weekly = %v", got)
	}
}

func TestRotate_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "backup-2020-02-13.tgz", "backup-2020-02-14.tgz", "backup-2020-02-15.tgz")

	remote := memory.New("")
	seed(t, remote, artifact.TierDaily, dateRange(t, "2020-01-01", "2020-02-15")...)

	r := NewRotator(local.New(), remote)
	limits := artifact.Limits{Local: 3, Daily: 7, Weekly: 4, Monthly: 3}

	first, err := r.Rotate(context.Background(), testFamily, dir, limits)
	if err != nil {
		t.Fatalf("first Rotate() error = %v", err)
	}
	if len(first.Copied()) == 0 || len(first.Deleted) == 0 {
		t.Fatalf("first run should promote and prune, got %+v", first)
	}
	if got, want := tierDates(t, remote, artifact.TierMonthly), []string{"2020-01-01", "2020-02-05"}; !equal(got, want) {
		t.Errorf("monthly = %v, want %v", got, want)
	}

	copies := remote.Calls("copy")
	second, err := r.Rotate(context.Background(), testFamily, dir, limits)
	if err != nil {
		t.Fatalf("second Rotate() error = %v", err)
	}
	if len(second.Copied()) != 0 {
		t.Errorf("second run promoted %+v", second.Copied())
	}
	if len(second.Deleted) != 0 {
		t.Errorf("second run deleted %+v", second.Deleted)
	}
	if remote.Calls("copy") != copies {
		t.Errorf("second run issued %d copies", remote.Calls("copy")-copies)
	}
}

func TestRotate_StoreErrorPropagates(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierDaily, dateRange(t, "2020-01-01", "2020-01-10")...)
	remote.InjectError("copy", errors.New("access denied"))

	r := NewRotator(local.New(), remote)
	_, err := r.RotateDaily(context.Background(), testFamily, 7)

	var storeErr *artifact.StoreError
	if !errors.As(err, &storeErr) || storeErr.Operation != "copy" {
		t.Fatalf("error = %v, want copy StoreError", err)
	}
	if remote.Calls("delete") != 0 {
		t.Error("pruning must not run after a failed promotion")
	}
}

func TestRotate_Cancelled(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierDaily, dateRange(t, "2020-01-01", "2020-01-10")...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRotator(local.New(), remote)
	if _, err := r.RotateDaily(ctx, testFamily, 3); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestPromote_KeepsSource(t *testing.T) {
	remote := memory.New("")
	seed(t, remote, artifact.TierDaily, "2020-01-06")
	src, _ := remote.List(context.Background(), testFamily, artifact.TierDaily)

	r := NewRotator(local.New(), remote)
	got, err := r.Promote(context.Background(), testFamily, src[0], artifact.TierWeekly)
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if got.Key != "db/weekly/2020-01-06.tgz" || got.Tier != artifact.TierWeekly {
		t.Errorf("promoted = %+v", got)
	}
	if _, ok := remote.Get("db/daily/2020-01-06.tgz"); !ok {
		t.Error("source was removed")
	}
}
