package pyexec

import (
	"context"
	"strings"
	"testing"
)

func runCapture(t *testing.T, src string) (string, error) {
	t.Helper()
	prog, cerr := Compile(src)
	if cerr != nil {
		t.Fatalf("unexpected compile error: %v", cerr)
	}
	var out strings.Builder
	in := NewInterp(context.Background())
	in.Print = func(line string) { out.WriteString(line); out.WriteByte('\n') }
	err := in.Run(prog)
	return out.String(), err
}

func TestInterpPrintAndArithmetic(t *testing.T) {
	out, err := runCapture(t, "x = 1 + 2\nprint(x)\n")
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "3\n" {
		t.Fatalf("output = %q, want %q", out, "3\n")
	}
}

func TestInterpVariableReassignmentTracksLatestValue(t *testing.T) {
	out, err := runCapture(t, "x = 10\nx = x + 5\nprint(x)\n")
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "15\n" {
		t.Fatalf("output = %q, want %q", out, "15\n")
	}
}

func TestInterpIndexErrorIsRuntimeError(t *testing.T) {
	prog, cerr := Compile("x = [1, 2, 3]\nprint(x[10])\n")
	if cerr != nil {
		t.Fatalf("unexpected compile error: %v", cerr)
	}
	in := NewInterp(context.Background())
	in.Print = func(string) {}
	err := in.Run(prog)
	if err == nil {
		t.Fatalf("expected an IndexError, got nil")
	}
	rerr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
	if rerr.Kind != "IndexError" {
		t.Fatalf("kind = %q, want %q", rerr.Kind, "IndexError")
	}
	if rerr.Line != 2 {
		t.Fatalf("line = %d, want 2", rerr.Line)
	}
}

func TestInterpForLoopOverRange(t *testing.T) {
	out, err := runCapture(t, "total = 0\nfor i in range(5):\n    total = total + i\nprint(total)\n")
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "10\n" {
		t.Fatalf("output = %q, want %q", out, "10\n")
	}
}

func TestInterpUserFunctionCallAndReturn(t *testing.T) {
	out, err := runCapture(t, "def add(a, b):\n    return a + b\nprint(add(2, 3))\n")
	if err != nil {
		t.Fatalf("unexpected runtime error: %v", err)
	}
	if out != "5\n" {
		t.Fatalf("output = %q, want %q", out, "5\n")
	}
}
