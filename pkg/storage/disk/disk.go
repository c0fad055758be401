// Package disk provides the concrete implementation of the disk-manager
// contract the storage core depends on: whole-page reads and writes against
// a single backing file, with page-identifier allocation and recycling.
package disk

import (
	"os"
	"sync"

	dberr "heapcore/pkg/error"
	"heapcore/pkg/logging"
	"heapcore/pkg/primitives"
	"heapcore/pkg/storage/page"
)

// Manager is the disk-manager contract the buffer pool consumes: fixed page
// size, whole-page reads/writes, and page identifiers that are dense,
// non-negative, and not recycled until explicitly deallocated.
type Manager interface {
	ReadPage(id primitives.PageID) ([]byte, error)
	WritePage(id primitives.PageID, data []byte) error
	AllocatePage() (primitives.PageID, error)
	DeallocatePage(id primitives.PageID) error
	Close() error
}

// FileManager implements Manager over a single os.File. Pages are stored at
// a fixed offset of PageSize*pageID bytes; deallocated page identifiers are
// pushed onto a free list and handed back out by the next AllocatePage call
// before any new page id is minted.
type FileManager struct {
	mu         sync.Mutex
	file       *os.File
	nextPageID primitives.PageID
	freeList   []primitives.PageID
}

// Open creates or opens the database file at path for use as a FileManager,
// creating any missing parent directories first. Pages already present in
// an existing file are treated as allocated: new identifiers are minted
// after the last page the file covers.
func Open(path primitives.Filepath) (*FileManager, error) {
	if err := path.MkdirAll(0755); err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOError, "Open", "DiskManager")
	}
	f, err := os.OpenFile(path.String(), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, dberr.Wrap(err, dberr.CodeIOError, "Open", "DiskManager")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberr.Wrap(err, dberr.CodeIOError, "Open", "DiskManager")
	}
	next := primitives.PageID((info.Size() + page.PageSize - 1) / page.PageSize)
	return &FileManager{file: f, nextPageID: next}, nil
}

func (m *FileManager) offset(id primitives.PageID) int64 {
	return int64(id) * page.PageSize
}

// ReadPage reads the full page-sized block for id.
func (m *FileManager) ReadPage(id primitives.PageID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, page.PageSize)
	n, err := m.file.ReadAt(buf, m.offset(id))
	if err != nil && n != page.PageSize {
		return nil, dberr.Wrap(err, dberr.CodeIOError, "ReadPage", "DiskManager")
	}
	return buf, nil
}

// WritePage writes data (which must be exactly PageSize bytes) to id's slot
// and fsyncs before returning.
func (m *FileManager) WritePage(id primitives.PageID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(data) != page.PageSize {
		return dberr.NewCore(dberr.CodeIOError, "WritePage", "DiskManager", "page data must be exactly PageSize bytes")
	}
	if _, err := m.file.WriteAt(data, m.offset(id)); err != nil {
		return dberr.Wrap(err, dberr.CodeIOError, "WritePage", "DiskManager")
	}
	if err := m.file.Sync(); err != nil {
		return dberr.Wrap(err, dberr.CodeIOError, "WritePage", "DiskManager")
	}
	return nil
}

// AllocatePage returns a free-list offset if one exists, otherwise the next
// dense identifier; the backing file is zero-extended to cover it.
func (m *FileManager) AllocatePage() (primitives.PageID, error) {
	m.mu.Lock()
	var id primitives.PageID
	if n := len(m.freeList); n > 0 {
		id = m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
	} else {
		id = m.nextPageID
		m.nextPageID++
	}
	m.mu.Unlock()

	zero := make([]byte, page.PageSize)
	if err := m.WritePage(id, zero); err != nil {
		return 0, err
	}
	logging.WithPage(int(id)).Debug("page allocated")
	return id, nil
}

// DeallocatePage returns id's offset to the free list for reuse by a future
// AllocatePage call.
func (m *FileManager) DeallocatePage(id primitives.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freeList = append(m.freeList, id)
	return nil
}

// Close flushes and closes the backing file.
func (m *FileManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return dberr.Wrap(err, dberr.CodeIOError, "Close", "DiskManager")
	}
	return m.file.Close()
}
