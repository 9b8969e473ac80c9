package datecodec

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

const (
	// DefaultPattern matches an ISO 8601 calendar date anywhere in a filename.
	DefaultPattern = `\d{4}-\d{2}-\d{2}`

	// DefaultFormat parses DefaultPattern matches.
	DefaultFormat = "%Y-%m-%d"

	// UnixFormat is the sentinel format reading the match as Unix seconds.
	UnixFormat = "%s"
)

// Codec extracts dates using a precompiled pattern and format.
// A Codec is safe for concurrent use.
type Codec struct {
	pattern *regexp.Regexp
	format  string
	layout  string // Go layout for format, empty for UnixFormat
}

// New compiles pattern and format into a Codec.
// Empty values fall back to DefaultPattern and DefaultFormat.
func New(pattern, format string) (*Codec, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if format == "" {
		format = DefaultFormat
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid date pattern %q: %w", pattern, err)
	}

	layout, err := CompileFormat(format)
	if err != nil {
		return nil, err
	}

	return &Codec{
		pattern: re,
		format:  format,
		layout:  layout,
	}, nil
}

// Default returns a Codec for DefaultPattern and DefaultFormat.
func Default() *Codec {
	c, err := New(DefaultPattern, DefaultFormat)
	if err != nil {
		panic(err)
	}
	return c
}

// CompileFormat converts a strftime format into a Go time layout.
// UnixFormat compiles to the empty layout.
func CompileFormat(format string) (string, error) {
	if format == UnixFormat {
		return "", nil
	}
	layout, err := strftime.Layout(format)
	if err != nil {
		return "", fmt.Errorf("unsupported date format %q: %w", format, err)
	}
	return layout, nil
}

// Pattern returns the source text of the codec's regular expression.
func (c *Codec) Pattern() string {
	return c.pattern.String()
}

// Format returns the codec's strftime format.
func (c *Codec) Format() string {
	return c.format
}

// Extract returns the date embedded in filename.
func (c *Codec) Extract(filename string) (Date, error) {
	m := c.pattern.FindStringSubmatchIndex(filename)
	if m == nil {
		return Date{}, newDateError(filename, c.pattern.String(), c.format, "", ErrNoDateMatch)
	}

	// the first capturing group narrows the match when it participated
	match := filename[m[0]:m[1]]
	if c.pattern.NumSubexp() > 0 && m[2] >= 0 {
		match = filename[m[2]:m[3]]
	}
	if match == "" {
		return Date{}, newDateError(filename, c.pattern.String(), c.format, "", ErrNoDateMatch)
	}

	t, err := c.parse(match)
	if err != nil {
		return Date{}, newDateError(filename, c.pattern.String(), c.format, match,
			fmt.Errorf("%w: %v", ErrInvalidDateFormat, err))
	}
	return DateOf(t), nil
}

func (c *Codec) parse(s string) (time.Time, error) {
	if c.format == UnixFormat {
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Parse(c.layout, s)
}

// ExtractDate applies pattern to filename and parses the match with format.
// It fails with ErrNoDateMatch when nothing matches and ErrInvalidDateFormat
// when the match does not parse.
func ExtractDate(filename, pattern, format string) (Date, error) {
	c, err := New(pattern, format)
	if err != nil {
		return Date{}, err
	}
	return c.Extract(filename)
}

// ExtractExtension returns the extension of filename: everything from the
// first dot of the base name onward. It reports false when filename contains
// no dot at all.
//
// A dot anywhere in the path counts, so "dir.d/backup" yields ".", true.
func ExtractExtension(filename string) (string, bool) {
	if !strings.Contains(filename, ".") {
		return "", false
	}

	parts := strings.Split(path.Base(filename), ".")

	// trailing empty segments are dropped: "a.b." has extension ".b"
	end := len(parts)
	for end > 1 && parts[end-1] == "" {
		end--
	}
	if end <= 1 {
		return ".", true
	}
	return "." + strings.Join(parts[1:end], "."), true
}
