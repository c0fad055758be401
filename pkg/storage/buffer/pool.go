// Package buffer implements the buffer pool: a fixed set of in-memory
// frames mediating between the table-page codec and the disk manager. It
// pins and unpins frames on behalf of callers, delegates victim selection
// to the LRU-K replacer, and serializes all of its bookkeeping behind a
// single mutex.
//
// Disk I/O is performed while holding that mutex — a pedagogical
// simplification carried over from the design this pool follows; a
// production buffer pool would release the lock around I/O.
package buffer

import (
	"sync"

	dberr "heapcore/pkg/error"
	"heapcore/pkg/logging"
	"heapcore/pkg/primitives"
	"heapcore/pkg/storage/disk"
	"heapcore/pkg/storage/page"
	"heapcore/pkg/storage/replacer"
)

// Frame is one of the pool's fixed in-memory buffers, carrying the
// bookkeeping the pool needs to decide whether it can be reused.
type Frame struct {
	pageID primitives.PageID
	pinCnt uint32
	dirty  bool
	data   [page.PageSize]byte
}

func (f *Frame) reset() {
	f.pageID = primitives.InvalidPageID
	f.pinCnt = 0
	f.dirty = false
	for i := range f.data {
		f.data[i] = 0
	}
}

// PageID returns the page currently resident in the frame.
func (f *Frame) PageID() primitives.PageID { return f.pageID }

// Dirty reports whether the frame's bytes differ from the on-disk image.
func (f *Frame) Dirty() bool { return f.dirty }

// PinCount returns the number of outstanding pins on the frame.
func (f *Frame) PinCount() uint32 { return f.pinCnt }

// Data returns the frame's backing buffer, suitable for wrapping with
// page.Wrap.
func (f *Frame) Data() []byte { return f.data[:] }

// Pool is the fixed-size buffer pool. It is safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	frames    []*Frame
	pageTable map[primitives.PageID]primitives.FrameID
	freeList  []primitives.FrameID
	replacer  *replacer.LRUK
	disk      disk.Manager
}

// New creates a buffer pool with the given number of frames, backed by
// disk and using an LRU-K replacer with history depth k.
func New(poolSize int, diskManager disk.Manager, k int) *Pool {
	frames := make([]*Frame, poolSize)
	freeList := make([]primitives.FrameID, poolSize)
	for i := range frames {
		frames[i] = &Frame{pageID: primitives.InvalidPageID}
		freeList[i] = primitives.FrameID(i)
	}
	return &Pool{
		frames:    frames,
		pageTable: make(map[primitives.PageID]primitives.FrameID),
		freeList:  freeList,
		replacer:  replacer.New(k),
		disk:      diskManager,
	}
}

// getFreeFrame returns a free frame, evicting one via the replacer if the
// free list is empty. Caller must hold p.mu.
func (p *Pool) getFreeFrame() (primitives.FrameID, error) {
	if n := len(p.freeList); n > 0 {
		id := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return id, nil
	}

	frameID, ok := p.replacer.Evict()
	if !ok {
		return 0, dberr.NewCore(dberr.CodeNoFreeFrame, "getFreeFrame", "BufferPool",
			"no free frame and no evictable frame")
	}

	frame := p.frames[frameID]
	if frame.dirty {
		if err := p.disk.WritePage(frame.pageID, frame.Data()); err != nil {
			// Leave the victim resident and dirty; the originating request
			// fails rather than silently losing the write-back.
			p.replacer.RecordAccess(frameID)
			p.replacer.Unpin(frameID)
			return 0, err
		}
	}
	delete(p.pageTable, frame.pageID)
	frame.reset()
	return frameID, nil
}

// CreatePage allocates a fresh page on disk, selects a frame for it, and
// returns the new page's identifier and a pinned handle to its frame.
func (p *Pool) CreatePage() (primitives.PageID, *Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, err := p.getFreeFrame()
	if err != nil {
		return 0, nil, err
	}

	pageID, err := p.disk.AllocatePage()
	if err != nil {
		p.freeList = append(p.freeList, frameID)
		return 0, nil, err
	}

	frame := p.frames[frameID]
	frame.reset()
	frame.pageID = pageID
	frame.pinCnt = 1
	frame.dirty = true

	tp := page.Wrap(pageID, frame.Data())
	tp.Init(primitives.InvalidPageID)

	p.pageTable[pageID] = frameID
	p.replacer.RecordAccess(frameID)
	p.replacer.Pin(frameID)

	logging.WithPage(int(pageID)).Debug("page created")
	return pageID, frame, nil
}

func (p *Pool) fetch(pageID primitives.PageID, markDirty bool) (*Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if frameID, ok := p.pageTable[pageID]; ok {
		frame := p.frames[frameID]
		frame.pinCnt++
		if markDirty {
			frame.dirty = true
		}
		p.replacer.RecordAccess(frameID)
		p.replacer.Pin(frameID)
		return frame, nil
	}

	frameID, err := p.getFreeFrame()
	if err != nil {
		return nil, err
	}

	data, err := p.disk.ReadPage(pageID)
	if err != nil {
		p.freeList = append(p.freeList, frameID)
		return nil, err
	}

	frame := p.frames[frameID]
	frame.pageID = pageID
	copy(frame.data[:], data)
	frame.pinCnt = 1
	frame.dirty = markDirty

	p.pageTable[pageID] = frameID
	p.replacer.RecordAccess(frameID)
	p.replacer.Pin(frameID)

	return frame, nil
}

// FetchPage pins pageID with read intent, loading it from disk if it is
// not already resident.
func (p *Pool) FetchPage(pageID primitives.PageID) (*Frame, error) {
	return p.fetch(pageID, false)
}

// FetchPageMut pins pageID with write intent, marking the frame dirty.
func (p *Pool) FetchPageMut(pageID primitives.PageID) (*Frame, error) {
	return p.fetch(pageID, true)
}

// UnpinPage decrements pageID's pin count. isDirty, if true, latches the
// frame's dirty flag (it is never cleared by an unpin). When the pin count
// reaches zero the frame becomes evictable.
func (p *Pool) UnpinPage(pageID primitives.PageID, isDirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[pageID]
	if !ok {
		return dberr.NewCore(dberr.CodePageNotResident, "UnpinPage", "BufferPool",
			"page is not resident")
	}

	frame := p.frames[frameID]
	if frame.pinCnt == 0 {
		return dberr.NewCore(dberr.CodePinCountUnderflow, "UnpinPage", "BufferPool",
			"pin count is already zero")
	}

	frame.pinCnt--
	if isDirty {
		frame.dirty = true
	}

	if frame.pinCnt == 0 {
		p.replacer.Unpin(frameID)
	} else {
		p.replacer.Pin(frameID)
	}
	return nil
}

// FlushPage writes pageID's frame to disk if resident and dirty, clearing
// the dirty flag. It succeeds trivially if the page is not resident.
func (p *Pool) FlushPage(pageID primitives.PageID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	frameID, ok := p.pageTable[pageID]
	if !ok {
		return nil
	}
	frame := p.frames[frameID]
	if !frame.dirty {
		return nil
	}
	if err := p.disk.WritePage(pageID, frame.Data()); err != nil {
		return err
	}
	frame.dirty = false
	return nil
}

// DeletePage evicts pageID without writing it back and instructs the disk
// manager to deallocate it. It fails with PAGE_PINNED if the page is
// resident and pinned.
func (p *Pool) DeletePage(pageID primitives.PageID) error {
	p.mu.Lock()
	frameID, resident := p.pageTable[pageID]
	if resident {
		frame := p.frames[frameID]
		if frame.pinCnt > 0 {
			p.mu.Unlock()
			return dberr.NewCore(dberr.CodePagePinned, "DeletePage", "BufferPool",
				"page is pinned")
		}
		delete(p.pageTable, pageID)
		if err := p.replacer.Remove(frameID); err != nil {
			// A resident frame with a zero pin count has been marked
			// evictable by UnpinPage, so Remove is not expected to fail
			// here; any error is ignored because the pool still owns the
			// frame and returns it to the free list either way.
			_ = err
		}
		frame.reset()
		p.freeList = append(p.freeList, frameID)
	}
	p.mu.Unlock()

	return p.disk.DeallocatePage(pageID)
}

// FreeFrameCount returns the number of frames available for a new
// CreatePage/FetchPage without blocking on eviction failure: free-list
// frames plus currently evictable resident frames.
func (p *Pool) FreeFrameCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.freeList) + p.replacer.EvictableCount()
}

// FrameSnapshot is a point-in-time, read-only view of one frame's
// bookkeeping, for diagnostic tooling.
type FrameSnapshot struct {
	FrameID  primitives.FrameID
	PageID   primitives.PageID
	Resident bool
	PinCount uint32
	Dirty    bool
}

// Snapshot returns a FrameSnapshot for every frame in the pool, in frame-id
// order. It takes no pins and is safe to call from an observer goroutine.
func (p *Pool) Snapshot() []FrameSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]FrameSnapshot, len(p.frames))
	for i, frame := range p.frames {
		_, resident := p.pageTable[frame.pageID]
		out[i] = FrameSnapshot{
			FrameID:  primitives.FrameID(i),
			PageID:   frame.pageID,
			Resident: resident && frame.pageID.IsValid(),
			PinCount: frame.pinCnt,
			Dirty:    frame.dirty,
		}
	}
	return out
}
