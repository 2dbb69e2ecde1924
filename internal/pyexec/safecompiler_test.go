package pyexec

import (
	"context"
	"testing"
)

func TestCompileRejectsUnresolvedImport(t *testing.T) {
	_, cerr := Compile("import os\nos.system('ls')\n")
	if cerr == nil {
		t.Fatalf("expected compilation to be rejected")
	}
}

func TestCompileRejectsDunderAttributeAccess(t *testing.T) {
	_, cerr := Compile("x = 1\nprint(x.__class__)\n")
	if cerr == nil {
		t.Fatalf("expected compilation to be rejected for dunder attribute access")
	}
	if cerr.Kind != KindForbidden {
		t.Fatalf("kind = %v, want %v", cerr.Kind, KindForbidden)
	}
}

func TestCompileAcceptsRestrictedSubset(t *testing.T) {
	_, cerr := Compile("def square(n):\n    return n * n\nprint(square(4))\n")
	if cerr != nil {
		t.Fatalf("unexpected rejection: %v", cerr)
	}
}

func TestCompileAcceptsUndefinedNameAndRaisesRuntimeNameError(t *testing.T) {
	prog, cerr := Compile("print(undefined_name)\n")
	if cerr != nil {
		t.Fatalf("unexpected compile rejection for an ordinary undefined name: %v", cerr)
	}
	in := NewInterp(context.Background())
	in.Print = func(string) {}
	err := in.Run(prog)
	rerr, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected *RuntimeError, got %T (%v)", err, err)
	}
	if rerr.Kind != "NameError" {
		t.Fatalf("kind = %q, want %q", rerr.Kind, "NameError")
	}
}

func TestCompileRejectsDeniedBuiltinCall(t *testing.T) {
	_, cerr := Compile("open('/etc/passwd')\n")
	if cerr == nil {
		t.Fatalf("expected compilation to be rejected for a denied call")
	}
	if cerr.Kind != KindForbidden {
		t.Fatalf("kind = %v, want %v", cerr.Kind, KindForbidden)
	}
}

func TestCompileRejectsSyntaxError(t *testing.T) {
	_, cerr := Compile("if True\n    print('hello')\n")
	if cerr == nil {
		t.Fatalf("expected a syntax error")
	}
	if cerr.Kind != KindSyntax {
		t.Fatalf("kind = %v, want %v", cerr.Kind, KindSyntax)
	}
}
