package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/datecodec"
	"mercator-hq/s3rotate/pkg/telemetry/tracing"
)

// UploadOptions selects how dates are read from local file names.
// Empty fields use datecodec.DefaultPattern and datecodec.DefaultFormat.
type UploadOptions struct {
	DatePattern string
	DateFormat  string
}

// Uploader copies new local backups into the daily tier.
type Uploader struct {
	local  artifact.LocalStore
	remote artifact.RemoteStore
	opts   options
	logger *slog.Logger
}

// NewUploader creates an Uploader.
func NewUploader(local artifact.LocalStore, remote artifact.RemoteStore, opts ...Option) *Uploader {
	o := buildOptions("rotation.uploader", opts)
	return &Uploader{
		local:  local,
		remote: remote,
		opts:   o,
		logger: o.logger,
	}
}

// Upload walks localDir from the newest file to the oldest and uploads each
// backup as a daily artifact. The walk stops at the first file whose daily
// artifact already exists. Files without a parsable date are skipped.
// It returns the uploaded artifacts in upload order.
func (u *Uploader) Upload(ctx context.Context, family, localDir string, opts UploadOptions) ([]*artifact.Artifact, error) {
	codec, err := datecodec.New(opts.DatePattern, opts.DateFormat)
	if err != nil {
		return nil, err
	}
	rep := NewReport(family)
	err = u.upload(ctx, rep, localDir, codec)
	return rep.Uploaded, err
}

func (u *Uploader) upload(ctx context.Context, rep *Report, localDir string, codec *datecodec.Codec) (err error) {
	family := rep.Family
	ctx, span := u.opts.tracer.Start(ctx, "rotation.upload",
		tracing.AttrFamily.String(family),
	)
	start := time.Now()
	defer func() {
		span.SetAttributes(tracing.AttrCount.Int(len(rep.Uploaded)))
		tracing.End(span, err)
		u.opts.metrics.RecordStep("upload", time.Since(start))
	}()

	names, err := u.local.ListFiles(localDir)
	if err != nil {
		return err
	}

	for i := len(names) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := names[i]

		date, err := codec.Extract(name)
		if err != nil {
			u.logger.WarnContext(ctx, "skipping file without parsable date",
				"dir", localDir,
				"file", name,
				"error", err,
			)
			u.opts.metrics.RecordParseFailure(family, StageUpload)
			rep.Skipped = append(rep.Skipped, Failure{
				Stage:  StageUpload,
				Key:    localKey(localDir, name),
				Reason: err.Error(),
			})
			continue
		}
		ext, _ := datecodec.ExtractExtension(name)

		exists, err := u.remote.Exists(ctx, family, date, artifact.TierDaily, ext)
		if err != nil {
			return err
		}
		if exists {
			u.logger.DebugContext(ctx, "reached uploaded backup, stopping scan",
				"file", name,
				"date", date.String(),
			)
			return nil
		}

		a, err := u.uploadFile(ctx, family, localDir, name, date, ext)
		if err != nil {
			return err
		}
		rep.Uploaded = append(rep.Uploaded, a)
		u.opts.metrics.RecordUpload(family)
		u.logger.InfoContext(ctx, "uploaded backup",
			"file", name,
			"key", a.Key,
			"size", a.Size,
		)
	}
	return nil
}

func (u *Uploader) uploadFile(ctx context.Context, family, dir, name string, date datecodec.Date, ext string) (*artifact.Artifact, error) {
	body, size, err := u.local.Open(dir, name)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	a, err := u.remote.Upload(ctx, family, date, artifact.TierDaily, ext, body, size)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	return a, nil
}
