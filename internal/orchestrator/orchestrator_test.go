package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"apex-autofix/internal/ai"
	"apex-autofix/internal/cache"
	"apex-autofix/internal/memory"
	"apex-autofix/internal/rules"
	"apex-autofix/internal/sandbox"
)

type fakePlanner struct {
	responses []*ai.PlanResponse
	calls     int
}

func (f *fakePlanner) Plan(ctx context.Context, req ai.PlanRequest) (*ai.PlanResponse, error) {
	r := f.responses[f.calls]
	f.calls++
	return r, nil
}

func newTestOrchestrator(t *testing.T, planner Planner) *Orchestrator {
	t.Helper()
	fixCache, err := cache.New(filepath.Join(t.TempDir(), "cache"), 30, 100, "model-v1")
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	mem, err := memory.Open(db)
	if err != nil {
		t.Fatalf("memory.Open: %v", err)
	}
	return New(rules.NewRegistry(), fixCache, mem, sandbox.New(5), planner)
}

func TestFixAppliesRuleHandlerForMissingColonScenario(t *testing.T) {
	orch := newTestOrchestrator(t, nil)
	art := orch.Fix(context.Background(), "if True\n    print('hello')\n", "SyntaxError")

	if !art.Success {
		t.Fatalf("expected success, got %+v", art)
	}
	if art.Method != MethodRule {
		t.Fatalf("method = %v, want rule", art.Method)
	}
	res := orch.Sandbox.Execute(art.Fixed, 5*time.Second)
	if !res.Success {
		t.Fatalf("fixed source failed to execute: %s", res.Error)
	}
}

func TestFixReturnsFallbackWhenNoPlannerAndNoRuleApplies(t *testing.T) {
	orch := newTestOrchestrator(t, nil)
	art := orch.Fix(context.Background(), "import os\nos.system('ls')\n", "")

	if art.Success {
		t.Fatalf("expected a fallback failure")
	}
	if art.Method != MethodFallback {
		t.Fatalf("method = %v, want fallback", art.Method)
	}
	if len(art.Suggestions) == 0 {
		t.Fatalf("expected fallback suggestions to be populated")
	}
}

func TestFixUsesPlannerWhenRuleAndCacheMiss(t *testing.T) {
	planner := &fakePlanner{responses: []*ai.PlanResponse{
		{Text: "Here is the fix:\n```python\nprint('ok')\n```"},
	}}
	orch := newTestOrchestrator(t, planner)

	art := orch.Fix(context.Background(), "print('broken'", "SyntaxError")
	if !art.Success {
		t.Fatalf("expected success from the planner loop, got %+v", art)
	}
	if art.Method != MethodAI {
		t.Fatalf("method = %v, want ai", art.Method)
	}
	if art.Fixed != "print('ok')" {
		t.Fatalf("fixed = %q", art.Fixed)
	}
}

func TestFixSecondCallHitsCacheWithIdenticalFix(t *testing.T) {
	planner := &fakePlanner{responses: []*ai.PlanResponse{
		{Text: "```python\nprint('ok')\n```"},
	}}
	orch := newTestOrchestrator(t, planner)

	source := "print('broken'"
	first := orch.Fix(context.Background(), source, "SyntaxError")
	if !first.Success {
		t.Fatalf("expected first call to succeed, got %+v", first)
	}

	second := orch.Fix(context.Background(), source, "SyntaxError")
	if !second.CacheHit {
		t.Fatalf("expected second call to be a cache hit")
	}
	if second.Method != MethodCache {
		t.Fatalf("method = %v, want cache", second.Method)
	}
	if second.Fixed != first.Fixed {
		t.Fatalf("fixed bytes differ between calls: %q vs %q", first.Fixed, second.Fixed)
	}
}

func TestDetectKindMatchesFixedList(t *testing.T) {
	cases := map[string]ErrorKind{
		"IndexError: list index out of range": KindIndexError,
		"ZeroDivisionError: division by zero":  KindZeroDivision,
		"totally unrecognized message":         KindUnknown,
	}
	for text, want := range cases {
		if got := DetectKind(text); got != want {
			t.Fatalf("DetectKind(%q) = %v, want %v", text, got, want)
		}
	}
}
