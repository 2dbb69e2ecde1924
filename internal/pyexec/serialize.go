package pyexec

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

const maxSerializedLen = 200

var sensitiveNamePattern = regexp.MustCompile(`(?i)password|secret|token|passwd`)

// Serialize renders a value's repr, truncated to maxSerializedLen with a
// short content fingerprint appended so two different truncated values
// never collide in a snapshot diff. Mirrors variable_tracker.py's
// safe_serialize.
func Serialize(v Value) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = "<UNREPRABLE>"
		}
	}()
	full := Repr(v)
	if len(full) <= maxSerializedLen {
		return full
	}
	sum := sha256.Sum256([]byte(full))
	fp := fmt.Sprintf("%x", sum)[:8]
	suffix := fmt.Sprintf("...<truncated:%s>", fp)
	return full[:maxSerializedLen-len(suffix)] + suffix
}

// RedactIfSensitive replaces a serialized value with a placeholder when its
// variable name looks like it holds a secret (password/secret/token/passwd,
// case-insensitive), mirroring variable_tracker.py's redact_if_sensitive.
func RedactIfSensitive(name, serialized string) string {
	if sensitiveNamePattern.MatchString(name) {
		return "<REDACTED>"
	}
	return serialized
}

// SkipName reports whether a binding should be excluded from variable
// tracking: Python's own convention of leading-underscore names for
// internals, mirrored from variable_tracker.py's track_line filter.
func SkipName(name string) bool {
	return strings.HasPrefix(name, "_")
}
