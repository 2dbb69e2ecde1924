package pyexec

import (
	"strings"
	"testing"
)

func TestSerializeTruncatesLongValues(t *testing.T) {
	long := ""
	for i := 0; i < 500; i++ {
		long += "a"
	}
	s := Serialize(StrVal(long))
	if len(s) > maxSerializedLen {
		t.Fatalf("serialized length %d exceeds the %d-char bound", len(s), maxSerializedLen)
	}
	if !strings.Contains(s, "...<truncated:") {
		t.Fatalf("expected a truncated value to carry the truncation marker, got %q", s)
	}
}

func TestSerializeShortValueUntouched(t *testing.T) {
	s := Serialize(IntVal(42))
	if s != "42" {
		t.Fatalf("serialize(42) = %q, want %q", s, "42")
	}
}

func TestRedactIfSensitiveMasksSecretNames(t *testing.T) {
	for _, name := range []string{"password", "api_token", "user_secret", "passwd"} {
		if got := RedactIfSensitive(name, "plaintext"); got != "<REDACTED>" {
			t.Fatalf("RedactIfSensitive(%q, ...) = %q, want <REDACTED>", name, got)
		}
	}
}

func TestRedactIfSensitiveLeavesOrdinaryNamesAlone(t *testing.T) {
	if got := RedactIfSensitive("count", "3"); got != "3" {
		t.Fatalf("RedactIfSensitive(count, 3) = %q, want %q", got, "3")
	}
}

func TestSkipNameFiltersUnderscorePrefixed(t *testing.T) {
	if !SkipName("_internal") {
		t.Fatalf("expected _internal to be skipped")
	}
	if SkipName("visible") {
		t.Fatalf("expected visible to not be skipped")
	}
}
