package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

const redacted = "***"

// sensitiveKeys are attribute keys whose values are never logged.
var sensitiveKeys = map[string]bool{
	"secret_access_key": true,
	"session_token":     true,
	"password":          true,
	"authorization":     true,
}

// accessKeyPattern matches AWS access key IDs.
var accessKeyPattern = regexp.MustCompile(`\b(AKIA|ASIA)[A-Z0-9]{12}([A-Z0-9]{4})\b`)

// redactAttr is a slog ReplaceAttr hook masking credentials.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindString {
		s := a.Value.String()
		if accessKeyPattern.MatchString(s) {
			return slog.String(a.Key, RedactString(s))
		}
	}
	return a
}

// RedactString masks AWS access key IDs in s, keeping the last four
// characters so keys stay distinguishable in logs.
func RedactString(s string) string {
	return accessKeyPattern.ReplaceAllString(s, "${1}"+strings.Repeat("*", 12)+"${2}")
}
