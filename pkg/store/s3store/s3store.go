// Package s3store implements artifact.RemoteStore on an S3 bucket.
//
// Uploads go through the SDK's multipart upload manager so a payload is
// streamed in bounded parts. Copies are server side: a single CopyObject up
// to CopyThreshold, multipart UploadPartCopy above it, so promotion never
// routes the payload through this process.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/datecodec"
)

const (
	// DefaultPartSize is the multipart upload chunk size (100 MiB).
	DefaultPartSize = 100 * 1024 * 1024

	// DefaultCopyThreshold is the largest object copied with a single
	// CopyObject call; S3 rejects single copies above 5 GiB.
	DefaultCopyThreshold = 5 * 1024 * 1024 * 1024

	// DefaultCopyPartSize is the range size of each UploadPartCopy (512 MiB).
	DefaultCopyPartSize = 512 * 1024 * 1024
)

// API is the subset of the S3 client used by Store.
type API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	UploadPartCopy(ctx context.Context, params *s3.UploadPartCopyInput, optFns ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config contains configuration for the S3 store.
type Config struct {
	// Bucket is the bucket holding every family.
	Bucket string

	// Region is the bucket's AWS region.
	Region string

	// Endpoint overrides the S3 endpoint (MinIO, Ceph, localstack).
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the SDK's default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Prefix is prepended to every key, e.g. "backups/".
	Prefix string

	// UsePathStyle addresses the bucket in the path instead of the host name.
	UsePathStyle bool

	// PartSize is the multipart upload chunk size. Default: 100 MiB.
	PartSize int64

	// CopyThreshold is the largest object copied in one request. Default: 5 GiB.
	CopyThreshold int64

	// CopyPartSize is the range size for multipart copies. Default: 512 MiB.
	CopyPartSize int64
}

// Store is an S3-backed artifact.RemoteStore.
type Store struct {
	client   API
	uploader *manager.Uploader
	config   Config
	logger   *slog.Logger
}

// NewFromConfig loads AWS configuration and creates a Store.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket cannot be empty")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return New(client, cfg), nil
}

// New creates a Store around an existing client.
func New(client API, cfg Config) *Store {
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}
	if cfg.CopyThreshold <= 0 {
		cfg.CopyThreshold = DefaultCopyThreshold
	}
	if cfg.CopyPartSize <= 0 {
		cfg.CopyPartSize = DefaultCopyPartSize
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.PartSize
	})

	return &Store{
		client:   client,
		uploader: uploader,
		config:   cfg,
		logger: slog.Default().With("component", "store.s3",
			"bucket", cfg.Bucket,
		),
	}
}

// List returns every artifact of family in tier, ascending by key.
func (s *Store) List(ctx context.Context, family string, tier artifact.Tier) ([]*artifact.Artifact, error) {
	prefix := artifact.TierPrefix(s.config.Prefix, family, tier)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.config.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var result []*artifact.Artifact
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, artifact.NewStoreError("s3", "list", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			a := s.describe(family, tier, key)
			a.Size = aws.ToInt64(obj.Size)
			a.LastModified = aws.ToTime(obj.LastModified)
			result = append(result, a)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	s.logger.Debug("listed tier", "prefix", prefix, "count", len(result))
	return result, nil
}

// Exists reports whether the artifact for date and ext exists in tier.
func (s *Store) Exists(ctx context.Context, family string, date datecodec.Date, tier artifact.Tier, ext string) (bool, error) {
	key := artifact.Key(s.config.Prefix, family, tier, date, ext)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, artifact.NewStoreError("s3", "exists", key, err)
}

// Upload streams body to a new artifact in PartSize chunks.
func (s *Store) Upload(ctx context.Context, family string, date datecodec.Date, tier artifact.Tier, ext string, body io.Reader, size int64) (*artifact.Artifact, error) {
	key := artifact.Key(s.config.Prefix, family, tier, date, ext)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return nil, artifact.NewStoreError("s3", "upload", key, err)
	}

	s.logger.Info("artifact uploaded", "key", key, "size", size)

	a := s.describe(family, tier, key)
	a.Size = size
	return a, nil
}

// Copy duplicates src into target on the server side.
func (s *Store) Copy(ctx context.Context, family string, src *artifact.Artifact, target artifact.Tier) (*artifact.Artifact, error) {
	key := artifact.TierPrefix(s.config.Prefix, family, target) + src.Name()

	size := src.Size
	if size <= 0 {
		head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(src.Key),
		})
		if err != nil {
			if isNotFound(err) {
				err = artifact.ErrNotFound
			}
			return nil, artifact.NewStoreError("s3", "copy", src.Key, err)
		}
		size = aws.ToInt64(head.ContentLength)
	}

	var err error
	if size > s.config.CopyThreshold {
		err = s.multipartCopy(ctx, src.Key, key, size)
	} else {
		_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.config.Bucket),
			Key:        aws.String(key),
			CopySource: aws.String(s.copySource(src.Key)),
		})
	}
	if err != nil {
		return nil, artifact.NewStoreError("s3", "copy", key, err)
	}

	s.logger.Info("artifact copied", "source", src.Key, "key", key, "size", size)

	a := s.describe(family, target, key)
	a.Size = size
	return a, nil
}

// multipartCopy copies objects larger than CopyThreshold in CopyPartSize ranges.
func (s *Store) multipartCopy(ctx context.Context, srcKey, dstKey string, size int64) error {
	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(dstKey),
	})
	if err != nil {
		return fmt.Errorf("create multipart upload: %w", err)
	}
	uploadID := created.UploadId

	abort := func(cause error) error {
		// detached from ctx so a cancelled run still cleans up
		_, abortErr := s.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.config.Bucket),
			Key:      aws.String(dstKey),
			UploadId: uploadID,
		})
		if abortErr != nil {
			s.logger.Warn("failed to abort multipart copy", "key", dstKey, "error", abortErr)
		}
		return cause
	}

	var parts []types.CompletedPart
	partNumber := int32(1)
	for start := int64(0); start < size; start += s.config.CopyPartSize {
		end := start + s.config.CopyPartSize - 1
		if end >= size {
			end = size - 1
		}

		out, err := s.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
			Bucket:          aws.String(s.config.Bucket),
			Key:             aws.String(dstKey),
			UploadId:        uploadID,
			PartNumber:      aws.Int32(partNumber),
			CopySource:      aws.String(s.copySource(srcKey)),
			CopySourceRange: aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
		})
		if err != nil {
			return abort(fmt.Errorf("copy part %d: %w", partNumber, err))
		}

		var etag *string
		if out.CopyPartResult != nil {
			etag = out.CopyPartResult.ETag
		}
		parts = append(parts, types.CompletedPart{
			ETag:       etag,
			PartNumber: aws.Int32(partNumber),
		})
		partNumber++
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.config.Bucket),
		Key:             aws.String(dstKey),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return abort(fmt.Errorf("complete multipart upload: %w", err))
	}
	return nil
}

// Delete removes a.
func (s *Store) Delete(ctx context.Context, a *artifact.Artifact) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(a.Key),
	})
	if err != nil {
		return artifact.NewStoreError("s3", "delete", a.Key, err)
	}
	s.logger.Info("artifact deleted", "key", a.Key)
	return nil
}

func (s *Store) copySource(key string) string {
	return url.PathEscape(s.config.Bucket + "/" + key)
}

func (s *Store) describe(family string, tier artifact.Tier, key string) *artifact.Artifact {
	a, err := artifact.ParseKey(s.config.Prefix, key)
	if err != nil {
		return &artifact.Artifact{Family: family, Tier: tier, Key: key}
	}
	return a
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
