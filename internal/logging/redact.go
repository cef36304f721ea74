package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of any attribute whose key looks sensitive.
const RedactedValue = "[REDACTED]"

var sensitiveFragments = []string{"passphrase", "password", "secret", "payload", "code", "privatekey"}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer("_", "", "-", "").Replace(k)
	for _, f := range sensitiveFragments {
		if strings.Contains(k, f) {
			return true
		}
	}
	return false
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if IsSensitive(a.Key) {
		return slog.String(a.Key, RedactedValue)
	}
	return a
}
