// Package track keeps the bounded, deduplicated history of position fixes
// and publishes consistent snapshots of it to presentation sinks.
package track

import (
	"sort"
	"time"
)

// DefaultCapacity is the number of fixes retained when none is configured.
const DefaultCapacity = 20

// Fix is one sub-satellite point at a UTC instant.
type Fix struct {
	Time  time.Time `json:"timestamp"`
	Lat   float64   `json:"latitude"`
	Lon   float64   `json:"longitude"`
	AltKm float64   `json:"altitude_km"`
}

// Equal reports whether two fixes share the same deduplication key.
func (f Fix) Equal(o Fix) bool {
	return f.Time.Equal(o.Time) && f.Lat == o.Lat && f.Lon == o.Lon && f.AltKm == o.AltKm
}

// IsZero reports whether f is the zero Fix.
func (f Fix) IsZero() bool {
	return f.Time.IsZero() && f.Lat == 0 && f.Lon == 0 && f.AltKm == 0
}

// History is a capacity-bounded sequence of fixes in append order. It is not
// safe for concurrent use; the Tracker serializes access.
type History struct {
	fixes    []Fix
	capacity int
}

// NewHistory returns an empty history holding at most capacity fixes.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity}
}

// Merge appends f, drops any earlier entries equal to f, and evicts from the
// front until at most capacity entries remain.
func (h *History) Merge(f Fix) {
	kept := make([]Fix, 0, len(h.fixes)+1)
	for _, old := range h.fixes {
		if !old.Equal(f) {
			kept = append(kept, old)
		}
	}
	kept = append(kept, f)
	if over := len(kept) - h.capacity; over > 0 {
		kept = kept[over:]
	}
	h.fixes = kept
}

// Fixes returns a copy of the entries in append order.
func (h *History) Fixes() []Fix {
	out := make([]Fix, len(h.fixes))
	copy(out, h.fixes)
	return out
}

// Len returns the number of stored fixes.
func (h *History) Len() int { return len(h.fixes) }

// Capacity returns the retention bound.
func (h *History) Capacity() int { return h.capacity }

// Reset empties the history.
func (h *History) Reset() { h.fixes = nil }

// NewestFirst returns a copy of fixes ordered by timestamp, newest first.
// Entries with equal timestamps keep their relative append order reversed,
// so the most recently merged one comes first.
func NewestFirst(fixes []Fix) []Fix {
	out := make([]Fix, len(fixes))
	for i, f := range fixes {
		out[len(fixes)-1-i] = f
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.After(out[j].Time)
	})
	return out
}
