package buffer

import (
	"path/filepath"
	"testing"

	dberr "heapcore/pkg/error"
	"heapcore/pkg/primitives"
	"heapcore/pkg/storage/disk"
)

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	path := primitives.Filepath(filepath.Join(t.TempDir(), "test.db"))
	dm, err := disk.Open(path)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	return New(size, dm, 2)
}

func TestPool_CreateAndFetch(t *testing.T) {
	p := newTestPool(t, 3)

	pageID, frame, err := p.CreatePage()
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	copy(frame.Data(), []byte("payload"))

	if err := p.UnpinPage(pageID, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	frame2, err := p.FetchPage(pageID)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if string(frame2.Data()[:7]) != "payload" {
		t.Errorf("fetched data = %q", frame2.Data()[:7])
	}
	if err := p.UnpinPage(pageID, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
}

func TestPool_CreateBeyondCapacityFails(t *testing.T) {
	p := newTestPool(t, 2)

	_, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("CreatePage 1: %v", err)
	}
	_, _, err = p.CreatePage()
	if err != nil {
		t.Fatalf("CreatePage 2: %v", err)
	}
	_, _, err = p.CreatePage()
	if !dberr.Is(err, dberr.CodeNoFreeFrame) {
		t.Fatalf("expected NO_FREE_FRAME, got %v", err)
	}
}

func TestPool_UnpinMakesFrameEvictableForReuse(t *testing.T) {
	p := newTestPool(t, 1)

	id1, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if err := p.UnpinPage(id1, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	id2, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("CreatePage after unpin: %v", err)
	}
	if id2 == id1 {
		t.Fatalf("expected a distinct page id, got %v again", id1)
	}
}

func TestPool_DeletePinnedFails(t *testing.T) {
	p := newTestPool(t, 2)

	id, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	if err := p.DeletePage(id); !dberr.Is(err, dberr.CodePagePinned) {
		t.Fatalf("expected PAGE_PINNED, got %v", err)
	}

	if err := p.UnpinPage(id, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	if err := p.DeletePage(id); err != nil {
		t.Fatalf("DeletePage after unpin: %v", err)
	}
}

func TestPool_DeleteFailsWhileMultiplyPinned(t *testing.T) {
	// Pin page A twice; DeletePage fails with PAGE_PINNED until both pins
	// are released, at which point the delete succeeds.
	p := newTestPool(t, 2)

	a, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if _, err := p.FetchPage(a); err != nil {
		t.Fatalf("second pin of A: %v", err)
	}

	if err := p.DeletePage(a); !dberr.Is(err, dberr.CodePagePinned) {
		t.Fatalf("expected PAGE_PINNED with two outstanding pins, got %v", err)
	}

	if err := p.UnpinPage(a, false); err != nil {
		t.Fatalf("first unpin: %v", err)
	}
	if err := p.DeletePage(a); !dberr.Is(err, dberr.CodePagePinned) {
		t.Fatalf("expected PAGE_PINNED with one outstanding pin, got %v", err)
	}

	if err := p.UnpinPage(a, false); err != nil {
		t.Fatalf("second unpin: %v", err)
	}
	if err := p.DeletePage(a); err != nil {
		t.Fatalf("DeletePage after both unpins: %v", err)
	}
}

func TestPool_UnpinNotResidentFails(t *testing.T) {
	p := newTestPool(t, 2)
	if err := p.UnpinPage(999, false); !dberr.Is(err, dberr.CodePageNotResident) {
		t.Fatalf("expected PAGE_NOT_RESIDENT, got %v", err)
	}
}

func TestPool_FlushClearsDirty(t *testing.T) {
	p := newTestPool(t, 2)

	id, frame, err := p.CreatePage()
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	copy(frame.Data(), []byte("flush-me"))
	if err := p.UnpinPage(id, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	if err := p.FlushPage(id); err != nil {
		t.Fatalf("FlushPage: %v", err)
	}

	frame2, err := p.FetchPage(id)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if frame2.Dirty() {
		t.Error("expected frame to be clean after flush")
	}
	if string(frame2.Data()[:8]) != "flush-me" {
		t.Errorf("data after flush/refetch = %q", frame2.Data()[:8])
	}
	_ = p.UnpinPage(id, false)
}

func TestPool_PinCountRoundTrips(t *testing.T) {
	p := newTestPool(t, 2)

	id, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if err := p.UnpinPage(id, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := p.FetchPage(id); err != nil {
			t.Fatalf("FetchPage %d: %v", i, err)
		}
	}
	for i := 0; i < 5; i++ {
		if err := p.UnpinPage(id, false); err != nil {
			t.Fatalf("UnpinPage %d: %v", i, err)
		}
	}

	if err := p.UnpinPage(id, false); !dberr.Is(err, dberr.CodePinCountUnderflow) {
		t.Fatalf("expected PIN_COUNT_UNDERFLOW, got %v", err)
	}
}

func TestPool_EvictsLRUKVictim(t *testing.T) {
	// N=3, k=2: create A, B, C (each once, unpin), re-fetch A, then create D;
	// B should be evicted (infinite k-distance, earliest first access).
	p := newTestPool(t, 3)

	a, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	_ = p.UnpinPage(a, false)

	b, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("create B: %v", err)
	}
	_ = p.UnpinPage(b, false)

	c, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("create C: %v", err)
	}
	_ = p.UnpinPage(c, false)

	if _, err := p.FetchPage(a); err != nil {
		t.Fatalf("refetch A: %v", err)
	}
	_ = p.UnpinPage(a, false)

	d, _, err := p.CreatePage()
	if err != nil {
		t.Fatalf("create D: %v", err)
	}
	_ = p.UnpinPage(d, false)

	resident := map[primitives.PageID]bool{}
	for _, f := range p.Snapshot() {
		if f.Resident {
			resident[f.PageID] = true
		}
	}
	if resident[b] {
		t.Errorf("expected B to be evicted, but it is still resident")
	}
	if !resident[a] || !resident[c] || !resident[d] {
		t.Errorf("expected A, C, D resident; got resident=%v", resident)
	}
}
