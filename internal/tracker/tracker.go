// Package tracker implements VariableTracker (C3): a bounded, append-only
// history of variable values across line executions, ported from
// variable_tracker.py.
package tracker

import (
	"sync"
	"time"

	"apex-autofix/internal/pyexec"
)

// Snapshot is one observed variable state at a given line.
type Snapshot struct {
	Line      int
	Name      string
	Value     string // serialized + redacted, never the original user value
	Type      string
	Timestamp time.Time
}

// Change is emitted when a retained variable's serialized form changes
// between two observations.
type Change struct {
	Line     int
	Name     string
	OldValue string
	NewValue string
	NewType  string
}

const (
	defaultMaxSnapshots = 50_000
	defaultMaxChanges   = 10_000
)

// Tracker owns the Snapshot/Change history plus the last-seen serialized
// form of every tracked variable. It never retains references to the
// original runtime values, only their bounded string forms.
type Tracker struct {
	mu         sync.Mutex
	threadSafe bool

	maxSnapshots int
	maxChanges   int

	snapshots []Snapshot
	changes   []Change
	lastSeen  map[string]string
}

// Option configures a Tracker at construction.
type Option func(*Tracker)

// WithThreadSafe enables the internal mutex for concurrent callers.
func WithThreadSafe(v bool) Option { return func(t *Tracker) { t.threadSafe = v } }

// WithMaxSnapshots overrides the default eviction cap.
func WithMaxSnapshots(n int) Option { return func(t *Tracker) { t.maxSnapshots = n } }

// WithMaxChanges overrides the default eviction cap.
func WithMaxChanges(n int) Option { return func(t *Tracker) { t.maxChanges = n } }

// New constructs a Tracker with spec-default caps, overridable via Option.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		maxSnapshots: defaultMaxSnapshots,
		maxChanges:   defaultMaxChanges,
		lastSeen:     make(map[string]string),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// TrackLine records the current state of every tracked name at line, given
// the interpreter's runtime Value bindings. Names starting with "_" are
// skipped, mirroring track_line's filter.
func (t *Tracker) TrackLine(line int, vars map[string]pyexec.Value) {
	if t.threadSafe {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	now := time.Now()
	for name, v := range vars {
		if pyexec.SkipName(name) {
			continue
		}
		serialized := pyexec.RedactIfSensitive(name, pyexec.Serialize(v))
		t.appendSnapshot(Snapshot{Line: line, Name: name, Value: serialized, Type: v.Kind.String(), Timestamp: now})

		if prev, ok := t.lastSeen[name]; ok && prev != serialized {
			t.appendChange(Change{Line: line, Name: name, OldValue: prev, NewValue: serialized, NewType: v.Kind.String()})
		}
		t.lastSeen[name] = serialized
	}
}

func (t *Tracker) appendSnapshot(s Snapshot) {
	if len(t.snapshots) >= t.maxSnapshots {
		t.snapshots = t.snapshots[1:]
	}
	t.snapshots = append(t.snapshots, s)
}

func (t *Tracker) appendChange(c Change) {
	if len(t.changes) >= t.maxChanges {
		t.changes = t.changes[1:]
	}
	t.changes = append(t.changes, c)
}

func (t *Tracker) locked(fn func()) {
	if t.threadSafe {
		t.mu.Lock()
		defer t.mu.Unlock()
	}
	fn()
}

// Snapshots returns a copy of the retained snapshot history.
func (t *Tracker) Snapshots() []Snapshot {
	var out []Snapshot
	t.locked(func() { out = append(out, t.snapshots...) })
	return out
}

// Changes returns a copy of the retained change history.
func (t *Tracker) Changes() []Change {
	var out []Change
	t.locked(func() { out = append(out, t.changes...) })
	return out
}

// VariableHistory returns every snapshot recorded for name, in order.
func (t *Tracker) VariableHistory(name string) []Snapshot {
	var out []Snapshot
	t.locked(func() {
		for _, s := range t.snapshots {
			if s.Name == name {
				out = append(out, s)
			}
		}
	})
	return out
}

// VariableAtLine returns the most recent snapshot of name at or before line.
func (t *Tracker) VariableAtLine(name string, line int) (Snapshot, bool) {
	var best Snapshot
	found := false
	t.locked(func() {
		for _, s := range t.snapshots {
			if s.Name == name && s.Line <= line {
				best = s
				found = true
			}
		}
	})
	return best, found
}

// ChangesSummary reports the number of changes recorded per variable name.
func (t *Tracker) ChangesSummary() map[string]int {
	out := map[string]int{}
	t.locked(func() {
		for _, c := range t.changes {
			out[c.Name]++
		}
	})
	return out
}
