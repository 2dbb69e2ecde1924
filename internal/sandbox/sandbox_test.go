package sandbox

import (
	"testing"
	"time"

	"apex-autofix/internal/tracker"
)

func TestExecuteSuccess(t *testing.T) {
	sb := New(5)
	res := sb.Execute("print('hello')\n", 0)
	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.Output != "hello\n" {
		t.Fatalf("output = %q, want %q", res.Output, "hello\n")
	}
	if res.Error != "" {
		t.Fatalf("success.Error must be empty, got %q", res.Error)
	}
}

func TestExecuteTimeoutScenario(t *testing.T) {
	sb := New(5)
	start := time.Now()
	res := sb.Execute("while True:\n    pass\n", time.Second)
	elapsed := time.Since(start)

	if res.Success {
		t.Fatalf("expected failure on an infinite loop")
	}
	if !res.Timeout {
		t.Fatalf("expected Timeout=true")
	}
	if res.ErrorKind != KindTimeout {
		t.Fatalf("error_kind = %q, want %q", res.ErrorKind, KindTimeout)
	}
	if elapsed < time.Second || elapsed > 1500*time.Millisecond {
		t.Fatalf("execution_time %v not within [1s, 1.5s]", elapsed)
	}
}

func TestExecuteWithTraceReportsIndexErrorScenario(t *testing.T) {
	sb := New(5)
	tr := sb.ExecuteWithTrace("x = [1, 2, 3]\nprint(x[10])\n", 5*time.Second)

	if tr.Success {
		t.Fatalf("expected failure")
	}
	if tr.ErrorKind != RuntimeKind("IndexError") {
		t.Fatalf("error_kind = %q, want %q", tr.ErrorKind, RuntimeKind("IndexError"))
	}
	if tr.ErrorLine != 2 {
		t.Fatalf("error_line = %d, want 2", tr.ErrorLine)
	}
	if v, ok := tr.Variables["x"]; !ok || v != "[1, 2, 3]" {
		t.Fatalf("variables[x] = %q, ok=%v, want [1, 2, 3]", v, ok)
	}
}

func TestExecuteWithTrackingReportsSingleChangeScenario(t *testing.T) {
	sb := New(5)
	trk := tracker.New()
	res, _, changes := sb.ExecuteWithTracking("x = 10\nx = x + 5\nprint(x)\n", 5*time.Second, trk)

	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.Output != "15\n" {
		t.Fatalf("output = %q, want %q", res.Output, "15\n")
	}

	var xChanges int
	for _, c := range changes {
		if c.Name == "x" {
			xChanges++
			if c.OldValue != "10" || c.NewValue != "15" {
				t.Fatalf("change = %+v, want old=10 new=15", c)
			}
			if c.Line != 2 {
				t.Fatalf("change line = %d, want 2", c.Line)
			}
		}
	}
	if xChanges != 1 {
		t.Fatalf("expected exactly one change for x, got %d", xChanges)
	}
}

func TestExecuteRestrictionRejectsUnsafeImport(t *testing.T) {
	sb := New(5)
	res := sb.Execute("import os\nos.system('ls')\n", 5*time.Second)
	if res.Success {
		t.Fatalf("expected compilation to be rejected")
	}
	if res.ErrorKind != KindSyntax && res.ErrorKind != KindRestriction {
		t.Fatalf("error_kind = %q, want Syntax or Restriction", res.ErrorKind)
	}
}
