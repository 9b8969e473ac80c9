package artifact

import (
	"errors"
	"fmt"
)

// ErrInvalidDirectory is returned when a local backup directory cannot be read.
var ErrInvalidDirectory = errors.New("invalid directory")

// ErrNotFound is returned by stores when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// DirectoryError reports an unreadable local directory.
type DirectoryError struct {
	Dir   string
	Cause error
}

// Error implements the error interface.
func (e *DirectoryError) Error() string {
	return fmt.Sprintf("invalid directory %s: %v", e.Dir, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrInvalidDirectory) hold for any DirectoryError.
func (e *DirectoryError) Is(target error) bool {
	return target == ErrInvalidDirectory
}

// NewDirectoryError creates a new DirectoryError.
func NewDirectoryError(dir string, cause error) *DirectoryError {
	return &DirectoryError{
		Dir:   dir,
		Cause: cause,
	}
}

// StoreError represents a failure reported by a store backend.
type StoreError struct {
	Backend   string // Store backend type ("s3", "filesystem", "memory", "local")
	Operation string // Operation that failed ("list", "exists", "upload", "copy", "delete")
	Key       string // Key or path involved, if any
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("store error [backend=%s, operation=%s, key=%s]: %v", e.Backend, e.Operation, e.Key, e.Cause)
	}
	return fmt.Sprintf("store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation, key string, cause error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Key:       key,
		Cause:     cause,
	}
}
