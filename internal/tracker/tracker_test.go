package tracker

import (
	"testing"

	"apex-autofix/internal/pyexec"
)

func TestTrackLineEmitsChangeOnDistinctSerializedForm(t *testing.T) {
	trk := New()
	trk.TrackLine(1, map[string]pyexec.Value{"x": pyexec.IntVal(10)})
	trk.TrackLine(2, map[string]pyexec.Value{"x": pyexec.IntVal(15)})

	changes := trk.Changes()
	if len(changes) != 1 {
		t.Fatalf("expected exactly one change, got %d", len(changes))
	}
	c := changes[0]
	if c.OldValue != "10" || c.NewValue != "15" || c.Line != 2 {
		t.Fatalf("change = %+v, want old=10 new=15 line=2", c)
	}
}

func TestTrackLineNoChangeWhenValueRepeats(t *testing.T) {
	trk := New()
	trk.TrackLine(1, map[string]pyexec.Value{"x": pyexec.IntVal(10)})
	trk.TrackLine(2, map[string]pyexec.Value{"x": pyexec.IntVal(10)})

	if len(trk.Changes()) != 0 {
		t.Fatalf("expected no changes when the serialized value is unchanged")
	}
}

func TestTrackLineSkipsUnderscorePrefixedNames(t *testing.T) {
	trk := New()
	trk.TrackLine(1, map[string]pyexec.Value{"_private": pyexec.IntVal(1)})

	if len(trk.Snapshots()) != 0 {
		t.Fatalf("expected underscore-prefixed names to be skipped")
	}
}

func TestTrackerEvictsOldestSnapshotsOnOverflow(t *testing.T) {
	trk := New(WithMaxSnapshots(3))
	for i := 0; i < 5; i++ {
		trk.TrackLine(i+1, map[string]pyexec.Value{"x": pyexec.IntVal(int64(i))})
	}
	snaps := trk.Snapshots()
	if len(snaps) != 3 {
		t.Fatalf("expected eviction to cap snapshots at 3, got %d", len(snaps))
	}
	if snaps[0].Value != "2" {
		t.Fatalf("expected oldest retained snapshot to be value 2, got %s", snaps[0].Value)
	}
}

func TestVariableAtLineReturnsMostRecentAtOrBefore(t *testing.T) {
	trk := New()
	trk.TrackLine(1, map[string]pyexec.Value{"x": pyexec.IntVal(1)})
	trk.TrackLine(5, map[string]pyexec.Value{"x": pyexec.IntVal(2)})

	snap, ok := trk.VariableAtLine("x", 3)
	if !ok {
		t.Fatalf("expected a snapshot at or before line 3")
	}
	if snap.Value != "1" {
		t.Fatalf("value = %s, want 1", snap.Value)
	}
}
