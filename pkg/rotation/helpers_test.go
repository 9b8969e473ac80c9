package rotation

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/datecodec"
	"mercator-hq/s3rotate/pkg/store/memory"
)

const testFamily = "db"

func mustDate(t *testing.T, s string) datecodec.Date {
	t.Helper()
	d, err := datecodec.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}

// seed stores one ".tgz" artifact per date in tier.
func seed(t *testing.T, s *memory.Store, tier artifact.Tier, dates ...string) {
	t.Helper()
	for _, d := range dates {
		s.Put(testFamily, tier, mustDate(t, d), ".tgz", []byte(d))
	}
}

// dateRange returns every date from first to last inclusive.
func dateRange(t *testing.T, first, last string) []string {
	t.Helper()
	var out []string
	for d, end := mustDate(t, first), mustDate(t, last); !d.After(end); d = d.AddDays(1) {
		out = append(out, d.String())
	}
	return out
}

// tierDates lists tier and returns the artifact names without extension.
func tierDates(t *testing.T, s artifact.RemoteStore, tier artifact.Tier) []string {
	t.Helper()
	list, err := s.List(context.Background(), testFamily, tier)
	if err != nil {
		t.Fatalf("List(%s) error = %v", tier, err)
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		name := a.Name()
		if len(name) >= len(time.DateOnly) {
			name = name[:len(time.DateOnly)]
		}
		out = append(out, name)
	}
	return out
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error = %v", err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// recordingMetrics counts what the engine reports.
type recordingMetrics struct {
	mu            sync.Mutex
	uploads       int
	promotions    map[string]int
	deletions     map[artifact.Tier]int
	parseFailures map[string]int
	tierSizes     map[artifact.Tier]int
	steps         []string
	runs          []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		promotions:    make(map[string]int),
		deletions:     make(map[artifact.Tier]int),
		parseFailures: make(map[string]int),
		tierSizes:     make(map[artifact.Tier]int),
	}
}

func (m *recordingMetrics) RecordUpload(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
}

func (m *recordingMetrics) RecordPromotion(_ string, from, to artifact.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotions[string(from)+"->"+string(to)]++
}

func (m *recordingMetrics) RecordDeletion(_ string, tier artifact.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletions[tier]++
}

func (m *recordingMetrics) RecordParseFailure(_ string, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseFailures[stage]++
}

func (m *recordingMetrics) UpdateTierSize(_ string, tier artifact.Tier, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tierSizes[tier] = count
}

func (m *recordingMetrics) RecordStep(step string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step)
}

func (m *recordingMetrics) RecordRun(_ string, status string, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, status)
}

func mustCodec(t *testing.T, pattern, format string) *datecodec.Codec {
	t.Helper()
	c, err := datecodec.New(pattern, format)
	if err != nil {
		t.Fatalf("datecodec.New() error = %v", err)
	}
	return c
}
