// Package datecodec derives calendar dates and extensions from backup filenames.
//
// # Dates
//
// ExtractDate applies a regular expression to a filename and parses the match
// with a strftime-style format:
//
//	d, err := datecodec.ExtractDate("db-2020-01-13.sql.gz", datecodec.DefaultPattern, datecodec.DefaultFormat)
//	if err != nil {
//	    // errors.Is(err, datecodec.ErrNoDateMatch) or errors.Is(err, datecodec.ErrInvalidDateFormat)
//	}
//
// If the pattern has capturing groups and the first one took part in the match,
// that group is parsed instead of the whole match. The format "%s" reads the
// match as Unix seconds.
//
// A Date has no time of day. Its String form is the fixed-width, year-first
// "YYYY-MM-DD", so lexicographic order of rendered dates equals chronological
// order.
//
// # Extensions
//
// ExtractExtension returns everything after the first dot of the base name,
// dots included:
//
//	ext, ok := datecodec.ExtractExtension("backup.tar.gz.1") // ".tar.gz.1", true
//	_, ok = datecodec.ExtractExtension("backup")             // "", false
package datecodec
