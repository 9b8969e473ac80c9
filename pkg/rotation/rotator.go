package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/telemetry/tracing"
)

// Rotator promotes artifacts between remote tiers and prunes every tier to
// its limit.
type Rotator struct {
	local  artifact.LocalStore
	remote artifact.RemoteStore
	opts   options
	logger *slog.Logger
}

// NewRotator creates a Rotator using the default Cascade unless WithCascade
// is given.
func NewRotator(local artifact.LocalStore, remote artifact.RemoteStore, opts ...Option) *Rotator {
	o := buildOptions("rotation.rotator", opts)
	return &Rotator{
		local:  local,
		remote: remote,
		opts:   o,
		logger: o.logger,
	}
}

// Rotate runs RotateLocal, RotateDaily, RotateWeekly and RotateMonthly in
// that order and stops at the first error. The report covers the steps that
// ran.
func (r *Rotator) Rotate(ctx context.Context, family, localDir string, limits artifact.Limits) (*Report, error) {
	rep := NewReport(family)
	err := r.rotate(ctx, rep, localDir, limits)
	rep.Finish(err)
	return rep, err
}

func (r *Rotator) rotate(ctx context.Context, rep *Report, localDir string, limits artifact.Limits) error {
	if err := r.rotateLocal(ctx, rep, localDir, limits.Local); err != nil {
		return err
	}
	for _, p := range r.opts.cascade {
		if err := r.rotateTier(ctx, rep, p, limits.For(p.Tier)); err != nil {
			return err
		}
	}
	return nil
}

// RotateLocal deletes the oldest files of localDir, by name order, until at
// most max remain.
func (r *Rotator) RotateLocal(ctx context.Context, family, localDir string, max int) (*Report, error) {
	rep := NewReport(family)
	err := r.rotateLocal(ctx, rep, localDir, max)
	rep.Finish(err)
	return rep, err
}

// RotateDaily promotes daily artifacts to weekly and prunes the daily tier.
func (r *Rotator) RotateDaily(ctx context.Context, family string, max int) (*Report, error) {
	return r.rotateOne(ctx, family, artifact.TierDaily, max)
}

// RotateWeekly promotes weekly artifacts to monthly and prunes the weekly tier.
func (r *Rotator) RotateWeekly(ctx context.Context, family string, max int) (*Report, error) {
	return r.rotateOne(ctx, family, artifact.TierWeekly, max)
}

// RotateMonthly prunes the monthly tier.
func (r *Rotator) RotateMonthly(ctx context.Context, family string, max int) (*Report, error) {
	return r.rotateOne(ctx, family, artifact.TierMonthly, max)
}

func (r *Rotator) rotateOne(ctx context.Context, family string, tier artifact.Tier, max int) (*Report, error) {
	rep := NewReport(family)
	p, ok := policyFor(r.opts.cascade, tier)
	if !ok {
		err := fmt.Errorf("no policy for tier %s", tier)
		rep.Finish(err)
		return rep, err
	}
	err := r.rotateTier(ctx, rep, p, max)
	rep.Finish(err)
	return rep, err
}

// Promote copies a into target and returns the new artifact. a is kept.
func (r *Rotator) Promote(ctx context.Context, family string, a *artifact.Artifact, target artifact.Tier) (*artifact.Artifact, error) {
	return r.remote.Copy(ctx, family, a, target)
}

func (r *Rotator) rotateLocal(ctx context.Context, rep *Report, localDir string, max int) (err error) {
	ctx, span := r.opts.tracer.Start(ctx, "rotation.rotate_local",
		tracing.AttrFamily.String(rep.Family),
		tracing.AttrTier.String(string(artifact.TierLocal)),
	)
	start := time.Now()
	deleted := 0
	defer func() {
		span.SetAttributes(tracing.AttrDeleted.Int(deleted))
		tracing.End(span, err)
		r.opts.metrics.RecordStep("rotate_local", time.Since(start))
	}()

	names, err := r.local.ListFiles(localDir)
	if err != nil {
		return err
	}

	n := pruneCount(len(names), max)
	for _, name := range names[:n] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.local.DeleteFile(localDir, name); err != nil {
			return err
		}
		deleted++
		rep.Deleted = append(rep.Deleted, Deletion{Tier: artifact.TierLocal, Key: localKey(localDir, name)})
		r.opts.metrics.RecordDeletion(rep.Family, artifact.TierLocal)
		r.logger.InfoContext(ctx, "removed local backup", "dir", localDir, "file", name)
	}
	r.opts.metrics.UpdateTierSize(rep.Family, artifact.TierLocal, len(names)-n)
	return nil
}

// rotateTier is the shared promote-and-prune step.
func (r *Rotator) rotateTier(ctx context.Context, rep *Report, p TierPolicy, max int) (err error) {
	family := rep.Family
	step := "rotate_" + string(p.Tier)
	ctx, span := r.opts.tracer.Start(ctx, "rotation."+step,
		tracing.AttrFamily.String(family),
		tracing.AttrTier.String(string(p.Tier)),
	)
	start := time.Now()
	promoted, deleted := 0, 0
	defer func() {
		span.SetAttributes(
			tracing.AttrPromoted.Int(promoted),
			tracing.AttrDeleted.Int(deleted),
		)
		tracing.End(span, err)
		r.opts.metrics.RecordStep(step, time.Since(start))
	}()

	source, err := r.remote.List(ctx, family, p.Tier)
	if err != nil {
		return err
	}

	if p.Promotes() {
		target, err := r.remote.List(ctx, family, p.Next)
		if err != nil {
			return err
		}
		promoted, err = r.promote(ctx, rep, p, source, target)
		if err != nil {
			return err
		}
	}

	n := pruneCount(len(source), max)
	for _, a := range source[:n] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.remote.Delete(ctx, a); err != nil {
			return err
		}
		deleted++
		rep.Deleted = append(rep.Deleted, Deletion{Tier: p.Tier, Key: a.Key})
		r.opts.metrics.RecordDeletion(family, p.Tier)
		r.logger.InfoContext(ctx, "removed artifact", "tier", p.Tier, "key", a.Key)
	}
	r.opts.metrics.UpdateTierSize(family, p.Tier, len(source)-n)
	return nil
}

func (r *Rotator) promote(ctx context.Context, rep *Report, p TierPolicy, source, target []*artifact.Artifact) (int, error) {
	copied := 0
	for _, d := range planPromotions(source, target, p.Rule) {
		if d.err != nil {
			r.logger.WarnContext(ctx, "cannot evaluate promotion, date did not parse",
				"tier", p.Tier,
				"key", d.failedKey,
				"error", d.err,
			)
			r.opts.metrics.RecordParseFailure(rep.Family, StagePromote)
			rep.Failures = append(rep.Failures, Failure{
				Stage:  StagePromote,
				Key:    d.failedKey,
				Reason: d.err.Error(),
			})
			continue
		}
		if !d.promote {
			continue
		}

		if d.existing != nil {
			rep.Promotions = append(rep.Promotions, Promotion{Source: d.source, Target: d.existing, Existing: true})
			r.logger.DebugContext(ctx, "promotion target already present", "key", d.source.Key, "tier", p.Next)
			continue
		}

		if err := ctx.Err(); err != nil {
			return copied, err
		}
		created, err := r.Promote(ctx, rep.Family, d.source, p.Next)
		if err != nil {
			return copied, err
		}
		copied++
		rep.Promotions = append(rep.Promotions, Promotion{Source: d.source, Target: created})
		r.opts.metrics.RecordPromotion(rep.Family, p.Tier, p.Next)
		r.logger.InfoContext(ctx, "promoted artifact",
			"from", p.Tier,
			"to", p.Next,
			"key", created.Key,
		)
	}
	return copied, nil
}
