// Package filesystem implements artifact.RemoteStore on a local directory
// tree laid out like a bucket. It suits NAS mounts and offline testing.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/datecodec"
)

// Store maps object keys to files below Root.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates a store rooted at root. The directory is created if missing.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem store root cannot be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, artifact.NewStoreError("filesystem", "init", root, err)
	}
	return &Store{
		root:   root,
		logger: slog.Default().With("component", "store.filesystem"),
	}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// List returns every artifact of family in tier, ascending by key.
// A tier directory that does not exist yet is an empty tier.
func (s *Store) List(ctx context.Context, family string, tier artifact.Tier) ([]*artifact.Artifact, error) {
	prefix := artifact.TierPrefix("", family, tier)
	if err := ctx.Err(); err != nil {
		return nil, artifact.NewStoreError("filesystem", "list", prefix, err)
	}

	entries, err := os.ReadDir(s.path(prefix))
	if errors.Is(err, fs.ErrNotExist) {
		return []*artifact.Artifact{}, nil
	}
	if err != nil {
		return nil, artifact.NewStoreError("filesystem", "list", prefix, err)
	}

	result := make([]*artifact.Artifact, 0, len(entries))
	for _, entry := range entries {
		// in-flight writes are dot-prefixed temp files
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, artifact.NewStoreError("filesystem", "list", prefix+entry.Name(), err)
		}
		result = append(result, describe(family, tier, prefix+entry.Name(), info))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Exists reports whether the artifact for date and ext exists in tier.
func (s *Store) Exists(ctx context.Context, family string, date datecodec.Date, tier artifact.Tier, ext string) (bool, error) {
	key := artifact.Key("", family, tier, date, ext)
	if err := ctx.Err(); err != nil {
		return false, artifact.NewStoreError("filesystem", "exists", key, err)
	}

	_, err := os.Stat(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, artifact.NewStoreError("filesystem", "exists", key, err)
	}
	return true, nil
}

// Upload streams body into a new artifact.
func (s *Store) Upload(ctx context.Context, family string, date datecodec.Date, tier artifact.Tier, ext string, body io.Reader, size int64) (*artifact.Artifact, error) {
	key := artifact.Key("", family, tier, date, ext)
	if err := s.write(ctx, key, body); err != nil {
		return nil, artifact.NewStoreError("filesystem", "upload", key, err)
	}
	return s.stat(family, tier, key, "upload")
}

// Copy streams src into target without holding the payload in memory.
func (s *Store) Copy(ctx context.Context, family string, src *artifact.Artifact, target artifact.Tier) (*artifact.Artifact, error) {
	in, err := os.Open(s.path(src.Key))
	if err != nil {
		return nil, artifact.NewStoreError("filesystem", "copy", src.Key, err)
	}
	defer in.Close()

	key := artifact.TierPrefix("", family, target) + src.Name()
	if err := s.write(ctx, key, in); err != nil {
		return nil, artifact.NewStoreError("filesystem", "copy", key, err)
	}
	return s.stat(family, target, key, "copy")
}

// Delete removes a.
func (s *Store) Delete(ctx context.Context, a *artifact.Artifact) error {
	if err := ctx.Err(); err != nil {
		return artifact.NewStoreError("filesystem", "delete", a.Key, err)
	}
	if err := os.Remove(s.path(a.Key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = artifact.ErrNotFound
		}
		return artifact.NewStoreError("filesystem", "delete", a.Key, err)
	}
	return nil
}

// write copies r into key through a temp file renamed into place, so a
// listing never observes a partial artifact.
func (s *Store) write(ctx context.Context, key string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	s.logger.Debug("artifact written", "key", key)
	return os.Rename(tmp.Name(), dst)
}

func (s *Store) stat(family string, tier artifact.Tier, key, op string) (*artifact.Artifact, error) {
	info, err := os.Stat(s.path(key))
	if err != nil {
		return nil, artifact.NewStoreError("filesystem", op, key, err)
	}
	return describe(family, tier, key, info), nil
}

func describe(family string, tier artifact.Tier, key string, info fs.FileInfo) *artifact.Artifact {
	a := &artifact.Artifact{
		Family:       family,
		Tier:         tier,
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}
	if name := info.Name(); len(name) > len(datecodec.Date{}.String()) {
		a.Extension = name[len(datecodec.Date{}.String()):]
	}
	return a
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
