package datecodec

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDateMatch is returned when the date pattern does not match the filename.
	ErrNoDateMatch = errors.New("no date match")

	// ErrInvalidDateFormat is returned when the matched text cannot be parsed
	// with the configured format.
	ErrInvalidDateFormat = errors.New("invalid date format")
)

// DateError describes a failure to derive a date from a filename.
type DateError struct {
	Input   string // Filename or key being parsed
	Pattern string // Regular expression applied to Input
	Format  string // strftime format applied to the match
	Match   string // Matched text, empty when nothing matched
	Cause   error  // ErrNoDateMatch or ErrInvalidDateFormat, possibly wrapping a parser error
}

// Error implements the error interface.
func (e *DateError) Error() string {
	if e.Match == "" {
		return fmt.Sprintf("date error [input=%s, pattern=%s]: %v", e.Input, e.Pattern, e.Cause)
	}
	return fmt.Sprintf("date error [input=%s, match=%s, format=%s]: %v", e.Input, e.Match, e.Format, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *DateError) Unwrap() error {
	return e.Cause
}

func newDateError(input, pattern, format, match string, cause error) *DateError {
	return &DateError{
		Input:   input,
		Pattern: pattern,
		Format:  format,
		Match:   match,
		Cause:   cause,
	}
}
