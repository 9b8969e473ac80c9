package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/s3rotate/pkg/config"
)

// Runner runs one family. *Manager implements it.
type Runner interface {
	Run(ctx context.Context, fam config.FamilyConfig, trigger string) (*Report, error)
}

// Scheduler runs each family on its cron schedule.
type Scheduler struct {
	runner  Runner
	cron    *cron.Cron
	entries map[string]cron.EntryID
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
	// stopped is closed when the current cron instance stops
	stopped chan struct{}
}

// NewScheduler creates a scheduler driving runner.
func NewScheduler(runner Runner) *Scheduler {
	return &Scheduler{
		runner:  runner,
		entries: make(map[string]cron.EntryID),
		logger:  slog.Default().With("component", "rotation.scheduler"),
	}
}

// Start registers one job per scheduled family and starts the cron loop.
// Families whose schedule resolves to "" are left unscheduled. Every
// expression is validated before any job is added.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "30 1 * * 0"   - Sundays at 1:30 AM
//
// The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	type job struct {
		fam      config.FamilyConfig
		schedule string
	}
	var jobs []job
	for i := range cfg.Families {
		fam := cfg.Families[i]
		schedule := cfg.ScheduleFor(&fam)
		if schedule == "" {
			s.logger.Info("family not scheduled", "family", fam.Name)
			continue
		}
		if _, err := cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q for family %s: %w", schedule, fam.Name, err)
		}
		jobs = append(jobs, job{fam: fam, schedule: schedule})
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	entries := make(map[string]cron.EntryID, len(jobs))
	for _, j := range jobs {
		fam := j.fam
		id, err := c.AddFunc(j.schedule, func() {
			s.runFamily(ctx, fam)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule family %s: %w", fam.Name, err)
		}
		entries[fam.Name] = id
		s.logger.Info("family scheduled", "family", fam.Name, "schedule", j.schedule)
	}

	s.cron = c
	s.entries = entries
	s.cron.Start()
	s.running = true

	stopped := make(chan struct{})
	s.stopped = stopped
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopped:
		}
	}()

	return nil
}

func (s *Scheduler) runFamily(ctx context.Context, fam config.FamilyConfig) {
	if ctx.Err() != nil {
		return
	}
	// errors are logged and recorded by the runner
	_, _ = s.runner.Run(ctx, fam, TriggerSchedule)
}

// Stop stops the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cron == nil || !s.running {
		return
	}
	done := s.cron.Stop()
	<-done.Done()
	s.running = false
	close(s.stopped)
	s.stopped = nil
	s.logger.Info("scheduler stopped")
}

// Reload stops the current schedule, waits for running jobs and starts again
// from cfg.
func (s *Scheduler) Reload(ctx context.Context, cfg *config.Config) error {
	s.Stop()
	return s.Start(ctx, cfg)
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Families returns the scheduled family names, sorted.
func (s *Scheduler) Families() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NextRun returns the next scheduled run of family, or nil when it is not
// scheduled.
func (s *Scheduler) NextRun(family string) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	id, ok := s.entries[family]
	if !ok {
		return nil
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return nil
	}
	next := entry.Next
	return &next
}
