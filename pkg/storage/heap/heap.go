// Package heap implements a table as an unordered chain of table pages
// linked by next_page_id, plus a forward tuple iterator over that chain.
package heap

import (
	dberr "heapcore/pkg/error"
	"heapcore/pkg/logging"
	"heapcore/pkg/primitives"
	"heapcore/pkg/storage/buffer"
	"heapcore/pkg/storage/page"
)

// TableHeap names one logical table and owns a reference to the buffer
// pool serving it. It remembers only the head of its page chain; every
// other page is reached by following next_page_id links.
type TableHeap struct {
	name        string
	pool        *buffer.Pool
	firstPageID primitives.PageID
}

// New creates a fresh table heap backed by pool, allocating its first page.
func New(name string, pool *buffer.Pool) (*TableHeap, error) {
	pageID, _, err := pool.CreatePage()
	if err != nil {
		return nil, err
	}
	if err := pool.UnpinPage(pageID, true); err != nil {
		return nil, err
	}
	logging.WithComponent("TableHeap").Info("heap created", "table", name, "first_page", pageID)
	return &TableHeap{name: name, pool: pool, firstPageID: pageID}, nil
}

// Open reconstructs a TableHeap handle for an existing chain whose head is
// already known (e.g. handed off by an external catalog).
func Open(name string, pool *buffer.Pool, firstPageID primitives.PageID) *TableHeap {
	return &TableHeap{name: name, pool: pool, firstPageID: firstPageID}
}

// Name returns the heap's table name.
func (h *TableHeap) Name() string { return h.name }

// FirstPageID returns the head of the page chain.
func (h *TableHeap) FirstPageID() primitives.PageID {
	return h.firstPageID
}

// Insert walks the page chain from the head looking for room for tuple,
// appending a new page to the chain if every existing page is full, and
// returns the RecordID of the newly inserted tuple.
func (h *TableHeap) Insert(tuple []byte, meta page.TupleMetadata) (primitives.RecordID, error) {
	currentID := h.firstPageID

	for {
		frame, err := h.pool.FetchPageMut(currentID)
		if err != nil {
			return primitives.RecordID{}, err
		}
		tp := page.Wrap(currentID, frame.Data())

		rid, err := tp.InsertTuple(tuple, meta)
		if err == nil {
			if unpinErr := h.pool.UnpinPage(currentID, true); unpinErr != nil {
				return primitives.RecordID{}, unpinErr
			}
			return rid, nil
		}
		if !dberr.Is(err, dberr.CodePageFull) {
			_ = h.pool.UnpinPage(currentID, false)
			return primitives.RecordID{}, err
		}

		nextID := tp.NextPageID()
		if unpinErr := h.pool.UnpinPage(currentID, false); unpinErr != nil {
			return primitives.RecordID{}, unpinErr
		}

		if nextID.IsValid() {
			currentID = nextID
			continue
		}

		newPageID, newFrame, err := h.pool.CreatePage()
		if err != nil {
			return primitives.RecordID{}, err
		}

		linkFrame, err := h.pool.FetchPageMut(currentID)
		if err != nil {
			_ = h.pool.UnpinPage(newPageID, false)
			return primitives.RecordID{}, err
		}
		page.Wrap(currentID, linkFrame.Data()).SetNextPageID(newPageID)
		if err := h.pool.UnpinPage(currentID, true); err != nil {
			return primitives.RecordID{}, err
		}

		newTP := page.Wrap(newPageID, newFrame.Data())
		rid, err = newTP.InsertTuple(tuple, meta)
		unpinErr := h.pool.UnpinPage(newPageID, true)
		if err != nil {
			return primitives.RecordID{}, err
		}
		if unpinErr != nil {
			return primitives.RecordID{}, unpinErr
		}
		return rid, nil
	}
}

// GetTuple pins rid's page with read intent, reads the tuple, and unpins.
func (h *TableHeap) GetTuple(rid primitives.RecordID) (page.TupleMetadata, []byte, error) {
	frame, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return page.TupleMetadata{}, nil, err
	}
	tp := page.Wrap(rid.PageID, frame.Data())
	meta, body, err := tp.GetTuple(rid)
	if err != nil {
		_ = h.pool.UnpinPage(rid.PageID, false)
		return page.TupleMetadata{}, nil, err
	}
	bodyCopy := append([]byte(nil), body...)
	if unpinErr := h.pool.UnpinPage(rid.PageID, false); unpinErr != nil {
		return page.TupleMetadata{}, nil, unpinErr
	}
	return meta, bodyCopy, nil
}

// DeleteTuple marks rid's tuple deleted in place, leaving tuple bytes
// untouched.
func (h *TableHeap) DeleteTuple(rid primitives.RecordID) error {
	frame, err := h.pool.FetchPageMut(rid.PageID)
	if err != nil {
		return err
	}
	tp := page.Wrap(rid.PageID, frame.Data())
	meta, _, err := tp.GetTuple(rid)
	if err != nil {
		_ = h.pool.UnpinPage(rid.PageID, false)
		return err
	}
	if err := tp.UpdateTupleMetadata(rid, meta.WithDeleted(true)); err != nil {
		_ = h.pool.UnpinPage(rid.PageID, false)
		return err
	}
	return h.pool.UnpinPage(rid.PageID, true)
}

// PageChainEntry describes one page in a heap's chain, for diagnostic
// tooling that wants chain shape without iterating every tuple.
type PageChainEntry struct {
	PageID     primitives.PageID
	NumTuples  uint16
	NextPageID primitives.PageID
}

// PageChain walks the heap's page chain from the head, pinning and
// immediately unpinning each page to read its header, and returns one
// entry per page in link order.
func (h *TableHeap) PageChain() ([]PageChainEntry, error) {
	var entries []PageChainEntry
	currentID := h.firstPageID
	for currentID.IsValid() {
		frame, err := h.pool.FetchPage(currentID)
		if err != nil {
			return entries, err
		}
		tp := page.Wrap(currentID, frame.Data())
		entries = append(entries, PageChainEntry{
			PageID:     currentID,
			NumTuples:  tp.NumTuples(),
			NextPageID: tp.NextPageID(),
		})
		next := tp.NextPageID()
		if err := h.pool.UnpinPage(currentID, false); err != nil {
			return entries, err
		}
		currentID = next
	}
	return entries, nil
}

// Iterator returns a fresh, unopened TupleIterator over this heap.
func (h *TableHeap) Iterator() *TupleIterator {
	return &TupleIterator{pool: h.pool, nextPageID: h.firstPageID}
}

// TupleIterator produces a lazy, finite, forward-only, non-restartable
// sequence of (RecordID, metadata, tuple) triples over every slot in a
// heap's page chain, in page-link then slot-index order, including
// tuples marked deleted. Filtering deleted tuples is the caller's job.
type TupleIterator struct {
	pool *buffer.Pool

	nextPageID primitives.PageID // page to load once the current one is exhausted
	curPageID  primitives.PageID
	curFrame   *buffer.Frame
	curSlot    primitives.SlotID
	curCount   uint16
	opened     bool
	done       bool
}

// Open pins the first page of the chain, if any.
func (it *TupleIterator) Open() error {
	it.opened = true
	return it.loadPage(it.nextPageID)
}

func (it *TupleIterator) loadPage(pageID primitives.PageID) error {
	if !pageID.IsValid() {
		it.done = true
		it.curFrame = nil
		return nil
	}
	frame, err := it.pool.FetchPage(pageID)
	if err != nil {
		return err
	}
	it.curPageID = pageID
	it.curFrame = frame
	it.curSlot = 0
	it.curCount = page.Wrap(pageID, frame.Data()).NumTuples()
	return nil
}

// HasNext reports whether another tuple is available without consuming it.
func (it *TupleIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, dberr.NewCore(dberr.CodeOutOfBounds, "HasNext", "TupleIterator", "iterator not opened")
	}
	for !it.done && it.curSlot >= primitives.SlotID(it.curCount) {
		tp := page.Wrap(it.curPageID, it.curFrame.Data())
		next := tp.NextPageID()
		if err := it.pool.UnpinPage(it.curPageID, false); err != nil {
			return false, err
		}
		if err := it.loadPage(next); err != nil {
			return false, err
		}
	}
	return !it.done, nil
}

// Next returns the current tuple and advances the cursor.
func (it *TupleIterator) Next() (primitives.RecordID, page.TupleMetadata, []byte, error) {
	has, err := it.HasNext()
	if err != nil {
		return primitives.RecordID{}, page.TupleMetadata{}, nil, err
	}
	if !has {
		return primitives.RecordID{}, page.TupleMetadata{}, nil, dberr.NewCore(
			dberr.CodeOutOfBounds, "Next", "TupleIterator", "iterator exhausted")
	}

	rid := primitives.RecordID{PageID: it.curPageID, Slot: it.curSlot}
	tp := page.Wrap(it.curPageID, it.curFrame.Data())
	meta, body, err := tp.GetTuple(rid)
	if err != nil {
		return primitives.RecordID{}, page.TupleMetadata{}, nil, err
	}
	bodyCopy := append([]byte(nil), body...)
	it.curSlot++
	return rid, meta, bodyCopy, nil
}

// Close releases any pin the iterator still holds. Safe to call multiple
// times and after natural exhaustion.
func (it *TupleIterator) Close() error {
	if it.curFrame == nil || it.done {
		return nil
	}
	err := it.pool.UnpinPage(it.curPageID, false)
	it.curFrame = nil
	it.done = true
	return err
}
