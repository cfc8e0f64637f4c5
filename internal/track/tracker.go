package track

import (
	"sync"
	"time"
)

// Snapshot is an immutable view of the history at one point in time.
type Snapshot struct {
	Seq       uint64    `json:"seq"`
	Fixes     []Fix     `json:"fixes"`
	Latest    Fix       `json:"latest"`
	Capacity  int       `json:"capacity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether the snapshot holds no fixes.
func (s Snapshot) Empty() bool { return len(s.Fixes) == 0 }

// Sink receives every published snapshot. Publish is called with the
// tracker's publish lock held, so implementations must not call back into
// the Tracker.
type Sink interface {
	Publish(Snapshot)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Snapshot)

func (f SinkFunc) Publish(s Snapshot) { f(s) }

// Tracker owns a History and is its only writer. Every mutation is followed
// by a publish to all sinks under the same lock, so sinks observe snapshots
// in sequence order and never see a half-applied merge.
type Tracker struct {
	mu         sync.Mutex
	history    *History
	latest     Fix
	seq        uint64
	generation uint64
	updatedAt  time.Time
	sinks      []Sink
	now        func() time.Time
}

// NewTracker returns a tracker with an empty history of the given capacity.
func NewTracker(capacity int) *Tracker {
	return &Tracker{
		history: NewHistory(capacity),
		now:     time.Now,
	}
}

// Subscribe registers a sink for future publishes.
func (t *Tracker) Subscribe(s Sink) {
	t.mu.Lock()
	t.sinks = append(t.sinks, s)
	t.mu.Unlock()
}

// Generation identifies the current history lifetime. It changes on Reset,
// letting a refresh cycle detect that its result has gone stale.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Merge adds f to the history and publishes the result.
func (t *Tracker) Merge(f Fix) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mergeLocked(f)
}

// MergeAt merges f only if the history has not been reset since generation
// was read. The second return value is false when f was discarded.
func (t *Tracker) MergeAt(generation uint64, f Fix) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if generation != t.generation {
		return t.snapshotLocked(), false
	}
	return t.mergeLocked(f), true
}

func (t *Tracker) mergeLocked(f Fix) Snapshot {
	t.history.Merge(f)
	t.latest = f
	t.seq++
	t.updatedAt = t.now().UTC()
	snap := t.snapshotLocked()
	t.publishLocked(snap)
	return snap
}

// Reset empties the history, forgets the latest fix and publishes the empty
// snapshot.
func (t *Tracker) Reset() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history.Reset()
	t.latest = Fix{}
	t.seq++
	t.generation++
	t.updatedAt = t.now().UTC()
	snap := t.snapshotLocked()
	t.publishLocked(snap)
	return snap
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Latest returns the most recently merged fix and whether there is one.
func (t *Tracker) Latest() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.history.Len() > 0
}

// Len returns the current number of fixes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.Len()
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		Seq:       t.seq,
		Fixes:     t.history.Fixes(),
		Latest:    t.latest,
		Capacity:  t.history.Capacity(),
		UpdatedAt: t.updatedAt,
	}
}

func (t *Tracker) publishLocked(s Snapshot) {
	for _, sink := range t.sinks {
		c := s
		c.Fixes = append([]Fix(nil), s.Fixes...)
		sink.Publish(c)
	}
}
