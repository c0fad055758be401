package replacer

import (
	"testing"

	"heapcore/pkg/primitives"
)

func fid(n int) primitives.FrameID { return primitives.FrameID(n) }

func mustEvict(t *testing.T, r *LRUK, want int) {
	t.Helper()
	got, ok := r.Evict()
	if !ok {
		t.Fatalf("expected Evict() to return frame %d, got none", want)
	}
	if got != fid(want) {
		t.Fatalf("Evict() = %d, want %d", got, want)
	}
}

func mustNotEvict(t *testing.T, r *LRUK) {
	t.Helper()
	if _, ok := r.Evict(); ok {
		t.Fatalf("expected Evict() to return none")
	}
}

// Scenario mirrors the original implementation's own lru_k_replacer test:
// six frames, k=2, frame 6 starts pinned while the others cycle through
// eviction in k-distance order, and is evicted once it is unpinned.
func TestLRUK_BasicScenario(t *testing.T) {
	r := New(2)

	for i := 1; i <= 6; i++ {
		r.RecordAccess(fid(i))
	}
	for i := 1; i <= 5; i++ {
		r.Unpin(fid(i))
	}
	r.Pin(fid(6))

	if got := r.EvictableCount(); got != 5 {
		t.Fatalf("evictable count = %d, want 5", got)
	}

	r.RecordAccess(fid(1))

	mustEvict(t, r, 2)
	mustEvict(t, r, 3)
	mustEvict(t, r, 4)
	if got := r.EvictableCount(); got != 2 {
		t.Fatalf("evictable count = %d, want 2", got)
	}

	r.RecordAccess(fid(3))
	r.RecordAccess(fid(4))
	r.RecordAccess(fid(5))
	r.RecordAccess(fid(4))
	r.Unpin(fid(3))
	r.Unpin(fid(4))
	if got := r.EvictableCount(); got != 4 {
		t.Fatalf("evictable count = %d, want 4", got)
	}

	mustEvict(t, r, 3)

	r.Unpin(fid(6))
	mustEvict(t, r, 6)

	r.Pin(fid(1))
	mustEvict(t, r, 5)

	r.RecordAccess(fid(1))
	r.RecordAccess(fid(1))
	r.Unpin(fid(1))

	mustEvict(t, r, 4)
	mustEvict(t, r, 1)

	r.RecordAccess(fid(1))
	r.Pin(fid(1))
	mustNotEvict(t, r)

	r.Unpin(fid(1))
	mustEvict(t, r, 1)
	mustNotEvict(t, r)
}

func TestLRUK_EvictEmpty(t *testing.T) {
	r := New(2)
	mustNotEvict(t, r)
}

func TestLRUK_OnlyEvictableFramesConsidered(t *testing.T) {
	r := New(2)
	r.RecordAccess(fid(2))
	r.Pin(fid(2))
	mustNotEvict(t, r)
	r.Unpin(fid(2))
	mustEvict(t, r, 2)
}

func TestLRUK_FewerThanKAccessesEvictedFirst(t *testing.T) {
	r := New(3)
	r.RecordAccess(fid(1))
	r.RecordAccess(fid(1))
	r.RecordAccess(fid(2))
	r.RecordAccess(fid(1))
	r.Unpin(fid(2))
	r.Unpin(fid(1))

	// Frame 2 has only one access (infinite k-distance); frame 1 has three.
	mustEvict(t, r, 2)
	mustEvict(t, r, 1)
}

func TestLRUK_RemoveNonEvictableErrors(t *testing.T) {
	r := New(2)
	r.RecordAccess(fid(1))
	r.Pin(fid(1))
	if err := r.Remove(fid(1)); err == nil {
		t.Fatal("expected error removing a pinned frame")
	}
}

func TestLRUK_RemoveUnknownFrameErrors(t *testing.T) {
	r := New(2)
	if err := r.Remove(fid(99)); err == nil {
		t.Fatal("expected error removing an unrecorded frame")
	}
}

func TestLRUK_RemoveEvictableSucceeds(t *testing.T) {
	r := New(2)
	r.RecordAccess(fid(1))
	r.Unpin(fid(1))
	if err := r.Remove(fid(1)); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := r.EvictableCount(); got != 0 {
		t.Fatalf("evictable count = %d, want 0", got)
	}
}

// With three frames tracked at k=2: A, B, C are each accessed once then
// unpinned, then A is accessed again. Eviction should pick B (infinite
// k-distance, oldest first access among the untouched frames), not A
// (two accesses, finite distance).
func TestLRUK_EvictsInfiniteKDistanceOverFiniteWithFewerAccesses(t *testing.T) {
	r := New(2)
	A, B, C := fid(0), fid(1), fid(2)

	r.RecordAccess(A)
	r.Unpin(A)
	r.RecordAccess(B)
	r.Unpin(B)
	r.RecordAccess(C)
	r.Unpin(C)

	r.RecordAccess(A)

	mustEvict(t, r, 1) // B
}
