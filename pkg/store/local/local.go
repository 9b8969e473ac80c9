// Package local implements artifact.LocalStore over the operating system's
// filesystem.
package local

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"mercator-hq/s3rotate/pkg/artifact"
)

// Store lists, opens and deletes files in local backup directories.
type Store struct {
	logger *slog.Logger
}

// New creates a local store.
func New() *Store {
	return &Store{
		logger: slog.Default().With("component", "store.local"),
	}
}

// ListFiles returns the names of regular files in dir in ascending order.
// Subdirectories are skipped; symlinks are followed.
func (s *Store) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, artifact.NewDirectoryError(dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(filepath.Join(dir, entry.Name()))
			if err != nil {
				s.logger.Debug("skipping dangling symlink", "dir", dir, "name", entry.Name(), "error", err)
				continue
			}
			isDir = info.IsDir()
		}
		if isDir {
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Strings(names)
	return names, nil
}

// Open opens dir/name for reading and returns its size.
func (s *Store) Open(dir, name string) (io.ReadCloser, int64, error) {
	path := filepath.Join(dir, name)

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, artifact.NewStoreError("local", "open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, artifact.NewStoreError("local", "stat", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, artifact.NewStoreError("local", "open", path, fmt.Errorf("is a directory"))
	}

	return f, info.Size(), nil
}

// DeleteFile removes dir/name.
func (s *Store) DeleteFile(dir, name string) error {
	path := filepath.Join(dir, name)
	if err := os.Remove(path); err != nil {
		return artifact.NewStoreError("local", "delete", path, err)
	}
	return nil
}
