package store

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/config"
	"mercator-hq/s3rotate/pkg/datecodec"
	"mercator-hq/s3rotate/pkg/store/filesystem"
	"mercator-hq/s3rotate/pkg/store/memory"
	"mercator-hq/s3rotate/pkg/store/s3store"
	"mercator-hq/s3rotate/pkg/telemetry/tracing"
)

// New creates the remote store selected by cfg.Backend.
func New(ctx context.Context, cfg config.RemoteConfig) (artifact.RemoteStore, error) {
	switch cfg.Backend {
	case "s3", "":
		return s3store.NewFromConfig(ctx, s3store.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			SessionToken:    cfg.S3.SessionToken,
			Prefix:          cfg.S3.Prefix,
			UsePathStyle:    cfg.S3.UsePathStyle,
			PartSize:        cfg.S3.PartSize,
			CopyThreshold:   cfg.S3.CopyThreshold,
			CopyPartSize:    cfg.S3.CopyPartSize,
		})
	case "filesystem":
		return filesystem.New(cfg.Filesystem.Root)
	case "memory":
		return memory.New(""), nil
	default:
		return nil, fmt.Errorf("unsupported remote backend: %s", cfg.Backend)
	}
}

// Traced wraps remote so that every call emits a "store.<op>" span.
// A nil or disabled tracer returns remote unchanged.
func Traced(remote artifact.RemoteStore, tracer *tracing.Tracer) artifact.RemoteStore {
	if tracer == nil || !tracer.Enabled() {
		return remote
	}
	return &tracedStore{next: remote, tracer: tracer}
}

type tracedStore struct {
	next   artifact.RemoteStore
	tracer *tracing.Tracer
}

func (t *tracedStore) List(ctx context.Context, family string, tier artifact.Tier) (out []*artifact.Artifact, err error) {
	ctx, span := t.tracer.Start(ctx, "store.list",
		tracing.AttrFamily.String(family),
		tracing.AttrTier.String(string(tier)),
	)
	defer func() {
		span.SetAttributes(tracing.AttrCount.Int(len(out)))
		tracing.End(span, err)
	}()
	return t.next.List(ctx, family, tier)
}

func (t *tracedStore) Exists(ctx context.Context, family string, date datecodec.Date, tier artifact.Tier, ext string) (ok bool, err error) {
	ctx, span := t.tracer.Start(ctx, "store.exists",
		tracing.AttrFamily.String(family),
		tracing.AttrTier.String(string(tier)),
		attribute.String("s3rotate.date", date.String()),
	)
	defer func() { tracing.End(span, err) }()
	return t.next.Exists(ctx, family, date, tier, ext)
}

func (t *tracedStore) Upload(ctx context.Context, family string, date datecodec.Date, tier artifact.Tier, ext string, body io.Reader, size int64) (a *artifact.Artifact, err error) {
	ctx, span := t.tracer.Start(ctx, "store.upload",
		tracing.AttrFamily.String(family),
		tracing.AttrTier.String(string(tier)),
		attribute.Int64("s3rotate.size", size),
	)
	defer func() {
		if a != nil {
			span.SetAttributes(tracing.AttrKey.String(a.Key))
		}
		tracing.End(span, err)
	}()
	return t.next.Upload(ctx, family, date, tier, ext, body, size)
}

func (t *tracedStore) Copy(ctx context.Context, family string, src *artifact.Artifact, target artifact.Tier) (a *artifact.Artifact, err error) {
	ctx, span := t.tracer.Start(ctx, "store.copy",
		tracing.AttrFamily.String(family),
		tracing.AttrKey.String(src.Key),
		tracing.AttrTier.String(string(target)),
	)
	defer func() { tracing.End(span, err) }()
	return t.next.Copy(ctx, family, src, target)
}

func (t *tracedStore) Delete(ctx context.Context, a *artifact.Artifact) (err error) {
	ctx, span := t.tracer.Start(ctx, "store.delete",
		tracing.AttrFamily.String(a.Family),
		tracing.AttrKey.String(a.Key),
	)
	defer func() { tracing.End(span, err) }()
	return t.next.Delete(ctx, a)
}
