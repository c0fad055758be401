package heap

import (
	"fmt"
	"path/filepath"
	"testing"

	dberr "heapcore/pkg/error"
	"heapcore/pkg/primitives"
	"heapcore/pkg/storage/buffer"
	"heapcore/pkg/storage/disk"
	"heapcore/pkg/storage/page"
)

func newTestHeap(t *testing.T, poolSize int) (*TableHeap, *buffer.Pool) {
	t.Helper()
	path := primitives.Filepath(filepath.Join(t.TempDir(), "heap.db"))
	dm, err := disk.Open(path)
	if err != nil {
		t.Fatalf("disk.Open: %v", err)
	}
	t.Cleanup(func() { dm.Close() })

	pool := buffer.New(poolSize, dm, 2)
	h, err := New("t", pool)
	if err != nil {
		t.Fatalf("heap.New: %v", err)
	}
	return h, pool
}

func TestTableHeap_InsertAndGetTuple(t *testing.T) {
	h, _ := newTestHeap(t, 4)

	rid, err := h.Insert([]byte("hello"), page.TupleMetadata{})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	meta, body, err := h.GetTuple(rid)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if meta.Deleted() {
		t.Error("fresh tuple reported deleted")
	}
	if string(body) != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
}

func TestTableHeap_SpansMultiplePages(t *testing.T) {
	h, pool := newTestHeap(t, 16)

	const n = 600
	tupleBody := make([]byte, 100)
	rids := make([]primitives.RecordID, 0, n)
	for i := 0; i < n; i++ {
		copy(tupleBody, []byte(fmt.Sprintf("tuple-%04d", i)))
		rid, err := h.Insert(tupleBody, page.TupleMetadata{})
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		rids = append(rids, rid)
	}

	seenPages := map[primitives.PageID]bool{}
	for _, rid := range rids {
		seenPages[rid.PageID] = true
	}
	if len(seenPages) < 2 {
		t.Fatalf("expected heap to span multiple pages, saw %d", len(seenPages))
	}

	it := h.Iterator()
	if err := it.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer it.Close()

	count := 0
	for {
		has, err := it.HasNext()
		if err != nil {
			t.Fatalf("HasNext: %v", err)
		}
		if !has {
			break
		}
		rid, meta, body, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if meta.Deleted() {
			t.Errorf("rid %v unexpectedly marked deleted", rid)
		}
		if len(body) != len(tupleBody) {
			t.Errorf("rid %v body len = %d, want %d", rid, len(body), len(tupleBody))
		}
		count++
	}
	if count != n {
		t.Errorf("iterated %d tuples, want %d", count, n)
	}

	if free := pool.FreeFrameCount(); free != 16 {
		t.Errorf("pool not fully unpinned after iteration: free frames = %d, want 16", free)
	}
}

func TestTableHeap_DeleteTupleFlipsFlagPreservesBytes(t *testing.T) {
	h, pool := newTestHeap(t, 4)

	rid, err := h.Insert([]byte("keepme"), page.TupleMetadata{})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := h.DeleteTuple(rid); err != nil {
		t.Fatalf("DeleteTuple: %v", err)
	}

	if err := pool.FlushPage(rid.PageID); err != nil {
		t.Fatalf("FlushPage: %v", err)
	}

	meta, body, err := h.GetTuple(rid)
	if err != nil {
		t.Fatalf("GetTuple after delete: %v", err)
	}
	if !meta.Deleted() {
		t.Error("expected deleted flag to be set")
	}
	if string(body) != "keepme" {
		t.Errorf("body after delete = %q, want %q", body, "keepme")
	}
}

func TestTableHeap_DeletePinnedPageFailsUntilUnpinned(t *testing.T) {
	h, pool := newTestHeap(t, 4)

	rid, err := h.Insert([]byte("x"), page.TupleMetadata{})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := pool.FetchPage(rid.PageID); err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if err := pool.DeletePage(rid.PageID); !dberr.Is(err, dberr.CodePagePinned) {
		t.Fatalf("expected PAGE_PINNED, got %v", err)
	}

	if err := pool.UnpinPage(rid.PageID, false); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	if err := pool.DeletePage(rid.PageID); err != nil {
		t.Fatalf("DeletePage after unpin: %v", err)
	}
}

func TestTupleIterator_EmptyHeap(t *testing.T) {
	h, _ := newTestHeap(t, 4)

	it := h.Iterator()
	if err := it.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer it.Close()

	has, err := it.HasNext()
	if err != nil {
		t.Fatalf("HasNext: %v", err)
	}
	if has {
		t.Error("expected no tuples in a freshly created heap")
	}
}

func TestTupleIterator_NextPastEndErrors(t *testing.T) {
	h, _ := newTestHeap(t, 4)

	if _, err := h.Insert([]byte("only"), page.TupleMetadata{}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	it := h.Iterator()
	if err := it.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer it.Close()

	if _, _, _, err := it.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if _, _, _, err := it.Next(); !dberr.Is(err, dberr.CodeOutOfBounds) {
		t.Fatalf("expected OUT_OF_BOUNDS past end, got %v", err)
	}
}

func TestTupleIterator_CloseIsIdempotent(t *testing.T) {
	h, _ := newTestHeap(t, 4)
	if _, err := h.Insert([]byte("a"), page.TupleMetadata{}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	it := h.Iterator()
	if err := it.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := it.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := it.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
