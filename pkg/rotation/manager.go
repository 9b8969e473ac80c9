package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/im7mortal/kmutex"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/datecodec"
	"mercator-hq/s3rotate/pkg/telemetry/logging"
	"mercator-hq/s3rotate/pkg/telemetry/tracing"
)

// Trigger names recorded with each run.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerWatch    = "watch"
	TriggerAPI      = "api"
)

// Manager runs upload then rotate for a family. Runs of the same family are
// serialized; runs of different families may overlap.
type Manager struct {
	uploader *Uploader
	rotator  *Rotator
	locks    *kmutex.Kmutex
	opts     options
	logger   *slog.Logger
}

// NewManager creates a Manager over the given stores.
func NewManager(local artifact.LocalStore, remote artifact.RemoteStore, opts ...Option) *Manager {
	o := buildOptions("rotation.manager", opts)
	return &Manager{
		uploader: NewUploader(local, remote, opts...),
		rotator:  NewRotator(local, remote, opts...),
		locks:    kmutex.New(),
		opts:     o,
		logger:   o.logger,
	}
}

// Uploader returns the manager's uploader.
func (m *Manager) Uploader() *Uploader { return m.uploader }

// Rotator returns the manager's rotator.
func (m *Manager) Rotator() *Rotator { return m.rotator }

// Run uploads new backups of fam and rotates its tiers. The returned report
// is never nil, even when the run fails.
func (m *Manager) Run(ctx context.Context, fam config.FamilyConfig, trigger string) (*Report, error) {
	m.locks.Lock(fam.Name)
	defer m.locks.Unlock(fam.Name)

	rep := NewReport(fam.Name)
	rep.RunID = uuid.NewString()
	rep.Trigger = trigger

	if m.opts.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.runTimeout)
		defer cancel()
	}
	ctx = logging.WithFamily(ctx, fam.Name)
	ctx = logging.WithRunID(ctx, rep.RunID)
	ctx = logging.WithTrigger(ctx, trigger)

	ctx, span := m.opts.tracer.Start(ctx, "rotation.run",
		tracing.AttrFamily.String(fam.Name),
		tracing.AttrRunID.String(rep.RunID),
	)

	m.logger.InfoContext(ctx, "starting run", "local_dir", fam.LocalDir)

	err := m.run(ctx, rep, fam)
	rep.Finish(err)
	tracing.End(span, err)

	m.record(ctx, rep, err)
	return rep, err
}

func (m *Manager) run(ctx context.Context, rep *Report, fam config.FamilyConfig) error {
	codec, err := datecodec.New(fam.DatePattern, fam.DateFormat)
	if err != nil {
		return fmt.Errorf("family %s: %w", fam.Name, err)
	}
	if err := m.uploader.upload(ctx, rep, fam.LocalDir, codec); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if err := m.rotator.rotate(ctx, rep, fam.LocalDir, fam.EffectiveLimits()); err != nil {
		return fmt.Errorf("rotate: %w", err)
	}
	return nil
}

// record publishes a finished report. The ledger write outlives a cancelled
// run context so failed runs are still recorded.
func (m *Manager) record(ctx context.Context, rep *Report, err error) {
	m.opts.metrics.RecordRun(rep.Family, rep.Status, rep.FinishedAt)
	if m.opts.status != nil {
		m.opts.status.RecordRun(rep.Family, rep.FinishedAt, err)
	}
	if m.opts.ledger != nil {
		if lerr := m.opts.ledger.RecordRun(context.WithoutCancel(ctx), rep); lerr != nil {
			m.logger.WarnContext(ctx, "failed to record run", "error", lerr)
		}
	}

	attrs := []any{
		"status", rep.Status,
		"duration", rep.Duration(),
		"uploaded", len(rep.Uploaded),
		"promoted", len(rep.Copied()),
		"deleted", len(rep.Deleted),
		"skipped", len(rep.Skipped),
		"parse_failures", len(rep.Failures),
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "run failed", append(attrs, "error", err)...)
		return
	}
	m.logger.InfoContext(ctx, "run completed", attrs...)
}

// RunAll runs every family in order. A failing family does not stop the
// others; the returned error joins every failure.
func (m *Manager) RunAll(ctx context.Context, families []config.FamilyConfig, trigger string) ([]*Report, error) {
	reports := make([]*Report, 0, len(families))
	var errs []error
	for _, fam := range families {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rep, err := m.Run(ctx, fam, trigger)
		reports = append(reports, rep)
		if err != nil {
			errs = append(errs, fmt.Errorf("family %s: %w", fam.Name, err))
		}
	}
	return reports, errors.Join(errs...)
}
