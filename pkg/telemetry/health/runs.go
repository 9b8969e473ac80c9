package health

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// RunStatus is the last known outcome of a family's rotation runs.
type RunStatus struct {
	Family      string    `json:"family"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Failures    int       `json:"consecutive_failures"`
}

// Healthy reports whether the most recent run succeeded.
func (s RunStatus) Healthy() bool {
	return s.LastError == ""
}

// RunTracker remembers the most recent run of every family.
// It is safe for concurrent use.
type RunTracker struct {
	mu   sync.RWMutex
	runs map[string]RunStatus
}

// NewRunTracker creates an empty RunTracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{runs: make(map[string]RunStatus)}
}

// RecordRun stores the outcome of a run of family finished at at.
func (t *RunTracker) RecordRun(family string, at time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.runs[family]
	s.Family = family
	s.LastRun = at
	if err != nil {
		s.LastError = err.Error()
		s.Failures++
	} else {
		s.LastError = ""
		s.LastSuccess = at
		s.Failures = 0
	}
	t.runs[family] = s
}

// Status returns the status of family and whether it has run at all.
func (t *RunTracker) Status(family string) (RunStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.runs[family]
	return s, ok
}

// All returns the status of every family that has run, ordered by name.
func (t *RunTracker) All() []RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RunStatus, 0, len(t.runs))
	for _, s := range t.runs {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b RunStatus) int {
		if a.Family < b.Family {
			return -1
		}
		if a.Family > b.Family {
			return 1
		}
		return 0
	})
	return out
}

// Check returns a CheckFunc that fails when the last run of family failed.
// A family that has not run yet is healthy.
func (t *RunTracker) Check(family string) CheckFunc {
	return func(ctx context.Context) error {
		s, ok := t.Status(family)
		if !ok || s.Healthy() {
			return nil
		}
		return fmt.Errorf("last run at %s failed (%d consecutive): %s",
			s.LastRun.UTC().Format(time.RFC3339), s.Failures, s.LastError)
	}
}
