package logger

import (
	"log/slog"
	"strings"
)

// Attribute keys containing any of these are redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"key",
	"credential",
	"token",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive replaces non-empty string values of sensitive keys and
// recurses into groups.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// IsSensitiveKey reports whether a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(k, pattern) {
			return true
		}
	}
	return false
}

// Mask hides a secret for display, keeping its length class visible.
// Empty values stay empty.
func Mask(value string) string {
	switch {
	case value == "":
		return ""
	case len(value) <= 8:
		return "***"
	default:
		return value[:2] + "***" + value[len(value)-2:]
	}
}
