package track

import (
	"sync"
	"testing"
	"time"
)

var base = time.Date(2025, 5, 18, 12, 0, 0, 0, time.UTC)

func fixAt(i int) Fix {
	return Fix{
		Time:  base.Add(time.Duration(i) * 10 * time.Second),
		Lat:   float64(i) * 0.5,
		Lon:   -170 + float64(i)*3.25,
		AltKm: 415 + float64(i)*0.01,
	}
}

func assertUnique(t *testing.T, fixes []Fix) {
	t.Helper()
	for i := range fixes {
		for j := i + 1; j < len(fixes); j++ {
			if fixes[i].Equal(fixes[j]) {
				t.Fatalf("duplicate entries at %d and %d: %+v", i, j, fixes[i])
			}
		}
	}
}

func TestHistoryBoundedAndUnique(t *testing.T) {
	h := NewHistory(20)
	for i := 0; i < 100; i++ {
		// Every third fix repeats its predecessor.
		n := i
		if i%3 == 2 {
			n = i - 1
		}
		h.Merge(fixAt(n))
		if h.Len() > 20 {
			t.Fatalf("history grew to %d after %d merges", h.Len(), i+1)
		}
		assertUnique(t, h.Fixes())
	}
}

func TestHistoryLengthBelowCapacity(t *testing.T) {
	h := NewHistory(20)
	for i := 0; i < 7; i++ {
		h.Merge(fixAt(i))
		if h.Len() != i+1 {
			t.Fatalf("after %d merges len = %d", i+1, h.Len())
		}
	}
}

func TestHistoryDuplicateSuppressed(t *testing.T) {
	h := NewHistory(20)
	f := fixAt(1)
	h.Merge(f)
	h.Merge(f)
	if h.Len() != 1 {
		t.Fatalf("len = %d, want 1", h.Len())
	}
	if !h.Fixes()[0].Equal(f) {
		t.Errorf("stored %+v, want %+v", h.Fixes()[0], f)
	}
}

func TestHistoryDuplicateMovesToEnd(t *testing.T) {
	h := NewHistory(20)
	h.Merge(fixAt(0))
	h.Merge(fixAt(1))
	h.Merge(fixAt(0))

	got := h.Fixes()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Equal(fixAt(1)) || !got[1].Equal(fixAt(0)) {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestHistoryNearDuplicateKept(t *testing.T) {
	h := NewHistory(20)
	a := fixAt(0)
	b := a
	b.AltKm += 1e-9
	h.Merge(a)
	h.Merge(b)
	if h.Len() != 2 {
		t.Errorf("exact-match dedup should keep near duplicates, len = %d", h.Len())
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(20)
	for i := 0; i < 25; i++ {
		h.Merge(fixAt(i))
	}

	got := h.Fixes()
	if len(got) != 20 {
		t.Fatalf("len = %d, want 20", len(got))
	}
	for i, f := range got {
		if want := fixAt(i + 5); !f.Equal(want) {
			t.Fatalf("entry %d = %+v, want %+v", i, f, want)
		}
	}
}

func TestHistoryFixesIsCopy(t *testing.T) {
	h := NewHistory(5)
	h.Merge(fixAt(0))
	out := h.Fixes()
	out[0].Lat = 89
	if h.Fixes()[0].Lat == 89 {
		t.Error("Fixes exposed internal storage")
	}
}

func TestHistoryZeroCapacityUsesDefault(t *testing.T) {
	if got := NewHistory(0).Capacity(); got != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", got, DefaultCapacity)
	}
}

func TestNewestFirst(t *testing.T) {
	fixes := []Fix{fixAt(2), fixAt(0), fixAt(3), fixAt(1)}
	got := NewestFirst(fixes)
	for i := 1; i < len(got); i++ {
		if got[i].Time.After(got[i-1].Time) {
			t.Fatalf("not newest-first at %d: %v after %v", i, got[i].Time, got[i-1].Time)
		}
	}
	if !fixes[0].Equal(fixAt(2)) {
		t.Error("NewestFirst mutated its input")
	}
}

func TestNewestFirstAlwaysOrdered(t *testing.T) {
	h := NewHistory(20)
	for i := 0; i < 40; i++ {
		h.Merge(fixAt((i * 7) % 23))
		got := NewestFirst(h.Fixes())
		for j := 1; j < len(got); j++ {
			if got[j].Time.After(got[j-1].Time) {
				t.Fatalf("merge %d: table not newest-first", i)
			}
		}
	}
}

func TestTrackerPublishesToAllSinks(t *testing.T) {
	tr := NewTracker(20)

	var got [3][]Snapshot
	for i := range got {
		i := i
		tr.Subscribe(SinkFunc(func(s Snapshot) { got[i] = append(got[i], s) }))
	}

	tr.Merge(fixAt(0))
	tr.Merge(fixAt(1))

	for i := range got {
		if len(got[i]) != 2 {
			t.Fatalf("sink %d saw %d snapshots, want 2", i, len(got[i]))
		}
		last := got[i][1]
		if last.Seq != got[0][1].Seq || len(last.Fixes) != 2 {
			t.Errorf("sink %d saw inconsistent snapshot %+v", i, last)
		}
		if !last.Latest.Equal(fixAt(1)) {
			t.Errorf("sink %d latest = %+v", i, last.Latest)
		}
	}
}

func TestTrackerSinkCannotMutateHistory(t *testing.T) {
	tr := NewTracker(20)
	tr.Subscribe(SinkFunc(func(s Snapshot) {
		for i := range s.Fixes {
			s.Fixes[i].Lat = -89
		}
	}))
	tr.Merge(fixAt(3))
	if tr.Snapshot().Fixes[0].Lat == -89 {
		t.Error("sink mutation leaked into tracker")
	}
}

func TestTrackerLatest(t *testing.T) {
	tr := NewTracker(20)
	if _, ok := tr.Latest(); ok {
		t.Fatal("empty tracker reported a latest fix")
	}
	tr.Merge(fixAt(4))
	f, ok := tr.Latest()
	if !ok || !f.Equal(fixAt(4)) {
		t.Errorf("latest = %+v, %v", f, ok)
	}
}

func TestTrackerResetDiscardsStaleMerge(t *testing.T) {
	tr := NewTracker(20)
	tr.Merge(fixAt(0))

	gen := tr.Generation()
	snap := tr.Reset()
	if !snap.Empty() {
		t.Fatalf("reset snapshot not empty: %+v", snap)
	}

	if _, applied := tr.MergeAt(gen, fixAt(1)); applied {
		t.Error("merge from before reset should be discarded")
	}
	if tr.Len() != 0 {
		t.Errorf("len = %d after stale merge, want 0", tr.Len())
	}

	if _, applied := tr.MergeAt(tr.Generation(), fixAt(2)); !applied {
		t.Error("merge with current generation should apply")
	}
	if tr.Len() != 1 {
		t.Errorf("len = %d, want 1", tr.Len())
	}
}

func TestTrackerSequenceIncreases(t *testing.T) {
	tr := NewTracker(20)
	var seqs []uint64
	tr.Subscribe(SinkFunc(func(s Snapshot) { seqs = append(seqs, s.Seq) }))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Merge(fixAt(i))
		}(i)
	}
	wg.Wait()

	if len(seqs) != 50 {
		t.Fatalf("published %d snapshots, want 50", len(seqs))
	}
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("sequence went backwards at %d: %v", i, seqs)
		}
	}
	if tr.Len() != 20 {
		t.Errorf("len = %d, want 20", tr.Len())
	}
}
