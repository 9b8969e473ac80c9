// Package memory implements artifact.RemoteStore in process memory.
// It backs tests and dry runs and should not be used for real backups.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"mercator-hq/s3rotate/pkg/artifact"
	"mercator-hq/s3rotate/pkg/datecodec"
)

type object struct {
	data    []byte
	modTime time.Time
}

// Store keeps artifacts in a map keyed by object key.
type Store struct {
	prefix  string
	objects map[string]*object
	faults  map[string]error
	calls   map[string]int
	now     func() time.Time
	mu      sync.RWMutex
}

// New creates an empty store whose keys start with prefix.
func New(prefix string) *Store {
	return &Store{
		prefix:  prefix,
		objects: make(map[string]*object),
		faults:  make(map[string]error),
		calls:   make(map[string]int),
		now:     time.Now,
	}
}

// Put stores data directly under family/tier/date+ext, bypassing Upload.
func (s *Store) Put(family string, tier artifact.Tier, date datecodec.Date, ext string, data []byte) *artifact.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := artifact.Key(s.prefix, family, tier, date, ext)
	s.objects[key] = &object{data: append([]byte(nil), data...), modTime: s.now()}
	return s.describe(key)
}

// PutKey stores data under an arbitrary key. Used to plant malformed keys.
func (s *Store) PutKey(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = &object{data: append([]byte(nil), data...), modTime: s.now()}
}

// Get returns a copy of the payload stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// Keys returns every stored key in ascending order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InjectError makes every later call of op ("list", "exists", "upload",
// "copy", "delete") fail with err. A nil err clears the fault.
func (s *Store) InjectError(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.calls[op]
}

// enter records a call and returns the injected fault, if any.
// Caller must hold the write lock.
func (s *Store) enter(op, key string) error {
	s.calls[op]++
	if err := s.faults[op]; err != nil {
		return artifact.NewStoreError("memory", op, key, err)
	}
	return nil
}

// List returns every artifact of family in tier, ascending by key.
func (s *Store) List(ctx context.Context, family string, tier artifact.Tier) ([]*artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := artifact.TierPrefix(s.prefix, family, tier)
	if err := s.enter("list", prefix); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, artifact.NewStoreError("memory", "list", prefix, err)
	}

	var keys []string
	for k := range s.objects {
		rest, ok := strings.CutPrefix(k, prefix)
		if ok && rest != "" && !strings.Contains(rest, "/") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	result := make([]*artifact.Artifact, 0, len(keys))
	for _, k := range keys {
		result = append(result, s.describe(k))
	}
	return result, nil
}

// Exists reports whether the artifact for date and ext exists in tier.
func (s *Store) Exists(ctx context.Context, family string, date datecodec.Date, tier artifact.Tier, ext string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := artifact.Key(s.prefix, family, tier, date, ext)
	if err := s.enter("exists", key); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, artifact.NewStoreError("memory", "exists", key, err)
	}

	_, ok := s.objects[key]
	return ok, nil
}

// Upload reads body fully and stores it.
func (s *Store) Upload(ctx context.Context, family string, date datecodec.Date, tier artifact.Tier, ext string, body io.Reader, size int64) (*artifact.Artifact, error) {
	key := artifact.Key(s.prefix, family, tier, date, ext)

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, artifact.NewStoreError("memory", "upload", key, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, artifact.NewStoreError("memory", "upload", key,
			fmt.Errorf("read %d bytes, expected %d", len(data), size))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("upload", key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, artifact.NewStoreError("memory", "upload", key, err)
	}

	s.objects[key] = &object{data: data, modTime: s.now()}
	return s.describe(key), nil
}

// Copy duplicates src into target.
func (s *Store) Copy(ctx context.Context, family string, src *artifact.Artifact, target artifact.Tier) (*artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("copy", src.Key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, artifact.NewStoreError("memory", "copy", src.Key, err)
	}

	obj, ok := s.objects[src.Key]
	if !ok {
		return nil, artifact.NewStoreError("memory", "copy", src.Key, artifact.ErrNotFound)
	}

	key := artifact.TierPrefix(s.prefix, family, target) + src.Name()
	s.objects[key] = &object{data: append([]byte(nil), obj.data...), modTime: s.now()}
	return s.describe(key), nil
}

// Delete removes a.
func (s *Store) Delete(ctx context.Context, a *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter("delete", a.Key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return artifact.NewStoreError("memory", "delete", a.Key, err)
	}

	if _, ok := s.objects[a.Key]; !ok {
		return artifact.NewStoreError("memory", "delete", a.Key, artifact.ErrNotFound)
	}
	delete(s.objects, a.Key)
	return nil
}

// describe builds the artifact for key. Caller must hold a lock.
func (s *Store) describe(key string) *artifact.Artifact {
	a, err := artifact.ParseKey(s.prefix, key)
	if err != nil {
		rest := strings.TrimPrefix(key, s.prefix)
		a = &artifact.Artifact{Key: key}
		if parts := strings.Split(rest, "/"); len(parts) == 3 {
			a.Family, a.Tier = parts[0], artifact.Tier(parts[1])
		}
	}
	if obj, ok := s.objects[key]; ok {
		a.Size = int64(len(obj.data))
		a.LastModified = obj.modTime
	}
	return a
}
