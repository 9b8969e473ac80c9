package artifact

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"mercator-hq/s3rotate/pkg/datecodec"
)

// Tier is a retention bucket.
type Tier string

const (
	// TierLocal holds files in the local backup directory.
	TierLocal Tier = "local"
	// TierDaily holds one remote artifact per uploaded backup.
	TierDaily Tier = "daily"
	// TierWeekly holds daily artifacts promoted at least a week apart.
	TierWeekly Tier = "weekly"
	// TierMonthly holds weekly artifacts promoted at least a calendar month apart.
	TierMonthly Tier = "monthly"
)

// RemoteTiers lists the remote tiers from finest to coarsest.
var RemoteTiers = []Tier{TierDaily, TierWeekly, TierMonthly}

// ParseTier returns the Tier named s.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(s)); t {
	case TierLocal, TierDaily, TierWeekly, TierMonthly:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// Artifact describes one backup object in a remote tier.
type Artifact struct {
	Family       string    `json:"family"`
	Tier         Tier      `json:"tier"`
	Key          string    `json:"key"`
	Extension    string    `json:"extension,omitempty"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// Name returns the last path element of the key, "{date}{extension}".
func (a *Artifact) Name() string {
	return path.Base(a.Key)
}

// Date parses the artifact's date from its key name.
func (a *Artifact) Date() (datecodec.Date, error) {
	return KeyDate(a.Key)
}

var keyCodec = datecodec.Default()

// KeyDate parses the date from the base name of key.
// Only the base name is inspected so a family named like a date cannot
// shadow the artifact's own date.
func KeyDate(key string) (datecodec.Date, error) {
	return keyCodec.Extract(path.Base(key))
}

// Key builds the object key for an artifact.
func Key(prefix, family string, tier Tier, date datecodec.Date, ext string) string {
	return TierPrefix(prefix, family, tier) + date.String() + ext
}

// TierPrefix returns the key prefix shared by every artifact of family in tier,
// trailing slash included.
func TierPrefix(prefix, family string, tier Tier) string {
	return prefix + family + "/" + string(tier) + "/"
}

// ParseKey splits a key produced by Key back into an Artifact.
// The prefix must match the one used to build the key.
func ParseKey(prefix, key string) (*Artifact, error) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return nil, fmt.Errorf("key %q does not start with prefix %q", key, prefix)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return nil, fmt.Errorf("key %q is not of the form family/tier/name", key)
	}

	tier, err := ParseTier(parts[1])
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", key, err)
	}

	a := &Artifact{
		Family: parts[0],
		Tier:   tier,
		Key:    key,
	}
	// the extension follows the fixed-width date
	if len(parts[2]) > len(time.DateOnly) {
		a.Extension = parts[2][len(time.DateOnly):]
	}
	return a, nil
}

// Limits caps the number of artifacts kept per tier.
type Limits struct {
	Local   int `json:"local" yaml:"local"`
	Daily   int `json:"daily" yaml:"daily"`
	Weekly  int `json:"weekly" yaml:"weekly"`
	Monthly int `json:"monthly" yaml:"monthly"`
}

// DefaultLimits matches the retention most deployments start with:
// three local files, a week of dailies, a month of weeklies, a quarter of monthlies.
func DefaultLimits() Limits {
	return Limits{Local: 3, Daily: 7, Weekly: 4, Monthly: 3}
}

// For returns the limit configured for tier.
func (l Limits) For(tier Tier) int {
	switch tier {
	case TierLocal:
		return l.Local
	case TierDaily:
		return l.Daily
	case TierWeekly:
		return l.Weekly
	case TierMonthly:
		return l.Monthly
	default:
		return 0
	}
}

// RemoteStore is the object-tier capability set.
// Listings are returned in ascending key order and are empty, not nil-erroring,
// when a tier holds nothing.
type RemoteStore interface {
	// List returns every artifact of family in tier, ascending by key.
	List(ctx context.Context, family string, tier Tier) ([]*Artifact, error)

	// Exists reports whether an artifact with the given date and extension
	// exists in tier.
	Exists(ctx context.Context, family string, date datecodec.Date, tier Tier, ext string) (bool, error)

	// Upload stores body as a new artifact. size may be -1 when unknown.
	Upload(ctx context.Context, family string, date datecodec.Date, tier Tier, ext string, body io.Reader, size int64) (*Artifact, error)

	// Copy duplicates src into target under the same date and extension and
	// returns the new artifact. src is left untouched.
	Copy(ctx context.Context, family string, src *Artifact, target Tier) (*Artifact, error)

	// Delete removes a.
	Delete(ctx context.Context, a *Artifact) error
}

// LocalStore is the local backup directory capability set.
type LocalStore interface {
	// ListFiles returns the regular file names in dir, ascending by name.
	// It fails with ErrInvalidDirectory when dir cannot be read.
	ListFiles(dir string) ([]string, error)

	// Open opens a file for upload and returns its size.
	Open(dir, name string) (io.ReadCloser, int64, error)

	// DeleteFile removes a file from dir.
	DeleteFile(dir, name string) error
}
