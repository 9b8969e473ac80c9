package rotation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/datecodec"
	"mercator-hq/s3rotate/pkg/store/local"
	"mercator-hq/s3rotate/pkg/store/memory"
	"mercator-hq/s3rotate/pkg/telemetry/tracing"
)

type fakeLedger struct {
	mu      sync.Mutex
	reports []*Report
	err     error
}

func (l *fakeLedger) RecordRun(_ context.Context, rep *Report) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, rep)
	return l.err
}

type fakeTracker struct {
	mu   sync.Mutex
	errs map[string]error
}

func (f *fakeTracker) RecordRun(family string, _ time.Time, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	f.errs[family] = err
}

func intPtr(i int) *int { return &i }

func family(name, dir string) config.FamilyConfig {
	return config.FamilyConfig{
		Name:     name,
		LocalDir: dir,
		Limits: config.LimitsConfig{
			Local: intPtr(2),
			Daily: intPtr(3),
		},
	}
}

func TestManager_Run(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "db-2020-01-10.tgz", "db-2020-01-11.tgz", "db-2020-01-12.tgz")

	remote := memory.New("")
	ledger := &fakeLedger{}
	tracker := &fakeTracker{}
	metrics := newRecordingMetrics()

	m := NewManager(local.New(), remote,
		WithLedger(ledger),
		WithStatusTracker(tracker),
		WithMetrics(metrics),
	)

	rep, err := m.Run(context.Background(), family(testFamily, dir), TriggerManual)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rep.RunID == "" || rep.Trigger != TriggerManual || rep.Status != StatusSuccess {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Uploaded) != 3 {
		t.Errorf("uploaded %d, want 3", len(rep.Uploaded))
	}
	if got := dirNames(t, dir); !equal(got, []string{"db-2020-01-11.tgz", "db-2020-01-12.tgz"}) {
		t.Errorf("local = %v", got)
	}
	if got := tierDates(t, remote, artifact.TierWeekly); !equal(got, []string{"2020-01-10"}) {
		t.Errorf("weekly = %v", got)
	}
	if got := tierDates(t, remote, artifact.TierMonthly); !equal(got, []string{"2020-01-10"}) {
		t.Errorf("monthly = %v", got)
	}

	if len(ledger.reports) != 1 || ledger.reports[0] != rep {
		t.Errorf("ledger got %d reports", len(ledger.reports))
	}
	if err, ok := tracker.errs[testFamily]; !ok || err != nil {
		t.Errorf("tracker = %v, %v", err, ok)
	}
	if !equal(metrics.runs, []string{StatusSuccess}) {
		t.Errorf("run metrics = %v", metrics.runs)
	}

	// a second run finds nothing new
	again, err := m.Run(context.Background(), family(testFamily, dir), TriggerSchedule)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if len(again.Uploaded) != 0 || len(again.Copied()) != 0 || len(again.Deleted) != 0 {
		t.Errorf("second run changed state: %+v", again)
	}
	if again.RunID == rep.RunID {
		t.Error("run ids must differ")
	}
}

func TestManager_RunFailure(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("disk full")}
	tracker := &fakeTracker{}
	metrics := newRecordingMetrics()

	m := NewManager(local.New(), memory.New(""),
		WithLedger(ledger),
		WithStatusTracker(tracker),
		WithMetrics(metrics),
	)

	rep, err := m.Run(context.Background(), family(testFamily, t.TempDir()+"/missing"), TriggerWatch)
	if !errors.Is(err, artifact.ErrInvalidDirectory) {
		t.Fatalf("error = %v, want ErrInvalidDirectory", err)
	}
	if rep == nil || rep.Status != StatusFailed || rep.Error == "" {
		t.Fatalf("report = %+v", rep)
	}
	if len(ledger.reports) != 1 {
		t.Error("failed runs must still be recorded")
	}
	if tracker.errs[testFamily] == nil {
		t.Error("tracker should hold the failure")
	}
	if !equal(metrics.runs, []string{StatusFailed}) {
		t.Errorf("run metrics = %v", metrics.runs)
	}
}

func TestManager_RunInvalidDateFormat(t *testing.T) {
	m := NewManager(local.New(), memory.New(""))
	fam := family(testFamily, t.TempDir())
	fam.DatePattern = "(["

	if _, err := m.Run(context.Background(), fam, TriggerManual); err == nil {
		t.Fatal("expected error for invalid date pattern")
	}
}

func TestManager_RunAll(t *testing.T) {
	good := t.TempDir()
	writeFiles(t, good, "web-2020-01-12.tgz")

	remote := memory.New("")
	m := NewManager(local.New(), remote)

	families := []config.FamilyConfig{
		family("broken", t.TempDir()+"/missing"),
		family("web", good),
	}
	reports, err := m.RunAll(context.Background(), families, TriggerManual)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].Status != StatusFailed || reports[1].Status != StatusSuccess {
		t.Errorf("statuses = %s, %s", reports[0].Status, reports[1].Status)
	}
	if _, ok := remote.Get("web/daily/2020-01-12.tgz"); !ok {
		t.Error("the healthy family should still run")
	}
}

func TestManager_SameFamilySerialized(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "db-2020-01-10.tgz", "db-2020-01-11.tgz", "db-2020-01-12.tgz")

	remote := memory.New("")
	m := NewManager(local.New(), remote)
	fam := family(testFamily, dir)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Run(context.Background(), fam, TriggerWatch)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}
	if remote.Calls("upload") != 3 {
		t.Errorf("upload calls = %d, want 3", remote.Calls("upload"))
	}
	if got := tierDates(t, remote, artifact.TierWeekly); !equal(got, []string{"2020-01-10"}) {
		t.Errorf("weekly = %v", got)
	}
}

func TestManager_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	m := NewManager(local.New(), memory.New(""), WithTracer(tracing.NewWithProvider(provider)))
	if _, err := m.Run(context.Background(), family(testFamily, t.TempDir()), TriggerManual); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := make(map[string]bool)
	for _, s := range recorder.Ended() {
		got[s.Name()] = true
	}
	for _, name := range []string{
		"rotation.run",
		"rotation.upload",
		"rotation.rotate_local",
		"rotation.rotate_daily",
		"rotation.rotate_weekly",
		"rotation.rotate_monthly",
	} {
		if !got[name] {
			t.Errorf("missing span %q", name)
		}
	}
}

// blockingStore waits for the context on every existence check.
type blockingStore struct {
	*memory.Store
}

func (b blockingStore) Exists(ctx context.Context, family string, date datecodec.Date, tier artifact.Tier, ext string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestManager_RunTimeout(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "db-2020-01-12.tgz")

	m := NewManager(local.New(), blockingStore{memory.New("")}, WithRunTimeout(20*time.Millisecond))

	rep, err := m.Run(context.Background(), family(testFamily, dir), TriggerManual)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if rep.Status != StatusFailed {
		t.Errorf("status = %q, want failed", rep.Status)
	}
}
