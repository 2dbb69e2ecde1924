package rules

import "testing"

func TestMissingColonHandlerFixesIfHeader(t *testing.T) {
	h := MissingColonHandler{}
	source := "if True\n    print('hello')\n"
	if !h.CanHandle("SyntaxError: expected ':'") {
		t.Fatalf("expected CanHandle to match a missing-colon SyntaxError")
	}
	d, ok := h.Analyze("SyntaxError: expected ':'", source)
	if !ok {
		t.Fatalf("expected Analyze to find the missing colon")
	}
	if d.Line != 1 {
		t.Fatalf("line = %d, want 1", d.Line)
	}
	fixed, applied := h.Apply(source, d)
	if !applied {
		t.Fatalf("expected Apply to report a change")
	}
	want := "if True:\n    print('hello')\n"
	if fixed != want {
		t.Fatalf("fixed = %q, want %q", fixed, want)
	}
}

func TestMissingColonHandlerNoopWhenColonPresent(t *testing.T) {
	h := MissingColonHandler{}
	_, ok := h.Analyze("SyntaxError: expected ':'", "if True:\n    print('hi')\n")
	if ok {
		t.Fatalf("expected no diagnosis when the colon is already present")
	}
}

func TestIndexBoundsHandlerRewritesSubscript(t *testing.T) {
	h := IndexBoundsHandler{}
	source := "x = [1, 2, 3]\nprint(x[10])\n"
	errText := "IndexError: list index out of range, line 2"
	if !h.CanHandle(errText) {
		t.Fatalf("expected CanHandle to match IndexError")
	}
	d, ok := h.Analyze(errText, source)
	if !ok {
		t.Fatalf("expected Analyze to locate the subscript expression")
	}
	fixed, applied := h.Apply(source, d)
	if !applied {
		t.Fatalf("expected Apply to rewrite the subscript")
	}
	if fixed == source {
		t.Fatalf("expected the fixed source to differ from the original")
	}
}

func TestRegistryAttemptFallsThroughWhenNoHandlerMatches(t *testing.T) {
	r := NewRegistry()
	fixed, applied := r.Attempt("print(1)", "ZeroDivisionError: division by zero")
	if applied {
		t.Fatalf("expected no rule handler to apply")
	}
	if fixed != "print(1)" {
		t.Fatalf("expected source to be unchanged on no-op")
	}
}

func TestNameErrorHandlerCreatesStubFunctionForCallSite(t *testing.T) {
	h := NameErrorHandler{}
	source := "print(add(2, 3))\n"
	errText := "NameError: name 'add' is not defined"
	if !h.CanHandle(errText) {
		t.Fatalf("expected CanHandle to match NameError")
	}
	d, ok := h.Analyze(errText, source)
	if !ok {
		t.Fatalf("expected Analyze to find the missing name")
	}
	fixed, applied := h.Apply(source, d)
	if !applied {
		t.Fatalf("expected Apply to insert a stub function")
	}
	want := "def add(arg0, arg1):\n    return arg0 + arg1\n\n" + source
	if fixed != want {
		t.Fatalf("fixed = %q, want %q", fixed, want)
	}
}

func TestNameErrorHandlerDefaultsBareReferenceToNone(t *testing.T) {
	h := NameErrorHandler{}
	source := "print(total)\n"
	errText := "NameError: name 'total' is not defined"
	d, ok := h.Analyze(errText, source)
	if !ok {
		t.Fatalf("expected Analyze to find the missing name")
	}
	fixed, applied := h.Apply(source, d)
	if !applied {
		t.Fatalf("expected Apply to insert a default binding")
	}
	if fixed != "total = None\n"+source {
		t.Fatalf("fixed = %q", fixed)
	}
}

func TestRegistryAttemptAppliesMissingColonFix(t *testing.T) {
	r := NewRegistry()
	source := "if True\n    print('hello')\n"
	fixed, applied := r.Attempt(source, "SyntaxError: expected ':'")
	if !applied {
		t.Fatalf("expected the registry to apply the missing-colon handler")
	}
	if fixed != "if True:\n    print('hello')\n" {
		t.Fatalf("fixed = %q", fixed)
	}
}
