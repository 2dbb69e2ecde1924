package memory

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	m, err := Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return m
}

func TestStoreThenSearchSimilarRoundTripsID(t *testing.T) {
	m := newTestMemory(t)
	original := "x = [1, 2, 3]\nprint(x[10])"
	id, err := m.Store(original, "IndexError", "x = [1, 2, 3]\nprint(x[2])", "rule", nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	want := recordID(original, "IndexError")
	if id != want {
		t.Fatalf("id = %s, want %s", id, want)
	}

	results, err := m.SearchSimilar(original, "IndexError", 1)
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 1 || results[0].ID != want {
		t.Fatalf("results = %+v, want single record with id %s", results, want)
	}
}

func TestStoreSameKeyUpdatesRatherThanDuplicates(t *testing.T) {
	m := newTestMemory(t)
	id1, _ := m.Store("src", "KeyError", "fix-a", "rule", nil)
	id2, _ := m.Store("src", "KeyError", "fix-b", "ai", nil)
	if id1 != id2 {
		t.Fatalf("expected identical ids for the same (original, error_kind), got %s vs %s", id1, id2)
	}

	total, _ := m.Stats()
	if total != 1 {
		t.Fatalf("expected exactly one stored record, got %d", total)
	}
}

func TestSearchWithQualityFiltersBelowMinSuccessRate(t *testing.T) {
	m := newTestMemory(t)
	id, _ := m.Store("src", "TypeError", "fixed", "ai", nil)

	for i := 0; i < 5; i++ {
		if err := m.RecordOutcome(id, false); err != nil {
			t.Fatalf("RecordOutcome: %v", err)
		}
	}

	results, err := m.SearchWithQuality("src", "TypeError", 5, 0.5)
	if err != nil {
		t.Fatalf("SearchWithQuality: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected low-success-rate record to be filtered out, got %+v", results)
	}
}

func TestCleanupRemovesLowQualityRecordsOnceUsageThresholdMet(t *testing.T) {
	m := newTestMemory(t)
	id, _ := m.Store("src", "ValueError", "fixed", "ai", nil)

	for i := 0; i < 10; i++ {
		_ = m.RecordOutcome(id, i < 2) // 2/10 success rate
	}

	removed, err := m.Cleanup(0.5, 10)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	total, _ := m.Stats()
	if total != 0 {
		t.Fatalf("expected the low-quality record to be deleted, total=%d", total)
	}
}

func TestCleanupSparesRecordsBelowUsageThreshold(t *testing.T) {
	m := newTestMemory(t)
	id, _ := m.Store("src", "ValueError", "fixed", "ai", nil)
	_ = m.RecordOutcome(id, false)

	removed, err := m.Cleanup(0.5, 10)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected no removal below the usage threshold, got %d", removed)
	}
}
