// Package page implements the slotted-page codec: the on-disk byte layout
// of one fixed-size page holding variable-length tuples and their metadata.
//
// Layout of a page's P bytes:
//
//	[0,4)                        next_page_id, u32 LE
//	[4,6)                        num_tuples, u16 LE
//	[6,8)                        reserved
//	[8, 8+num_tuples*SlotSize)   slot directory, insertion order
//	...free space...
//	tuple bytes, packed backward from the end of the page
//
// Each slot directory entry is SlotSize bytes: offset (u16 LE), length
// (u16 LE), then MetadataSize bytes of opaque per-tuple metadata.
package page

import (
	"encoding/binary"

	dberr "heapcore/pkg/error"
	"heapcore/pkg/logging"
	"heapcore/pkg/primitives"
)

const (
	// PageSize is the fixed number of bytes in every page.
	PageSize = 4096

	// HeaderSize is the number of bytes in the fixed page header.
	HeaderSize = 8

	// SlotSize is the number of bytes in one slot directory entry.
	SlotSize = 8

	// MetadataSize is the number of bytes of metadata carried per slot.
	MetadataSize = 4

	offsetNextPageID = 0
	offsetNumTuples  = 4
)

// TupleMetadata is the small fixed-size record accompanying each slot. Byte
// 0 carries the deleted flag; the remaining bytes are reserved and never
// interpreted by this package.
type TupleMetadata [MetadataSize]byte

// Deleted reports whether the deleted flag is set.
func (m TupleMetadata) Deleted() bool {
	return m[0] != 0
}

// WithDeleted returns a copy of m with the deleted flag set to v.
func (m TupleMetadata) WithDeleted(v bool) TupleMetadata {
	if v {
		m[0] = 1
	} else {
		m[0] = 0
	}
	return m
}

// TablePage is a self-contained codec over a P-byte buffer. It never
// performs I/O; the buffer pool owns reading and writing the bytes to disk.
type TablePage struct {
	id   primitives.PageID
	data []byte
}

// Wrap adapts an existing P-byte buffer (typically a buffer-pool frame's
// backing array) into a TablePage view. The buffer is not copied.
func Wrap(id primitives.PageID, data []byte) *TablePage {
	return &TablePage{id: id, data: data}
}

// Init writes a fresh header with num_tuples = 0 and the given next-page
// link, zeroing the reserved header bytes.
func (p *TablePage) Init(nextPageID primitives.PageID) {
	binary.LittleEndian.PutUint32(p.data[offsetNextPageID:], uint32(nextPageID))
	binary.LittleEndian.PutUint16(p.data[offsetNumTuples:], 0)
	for i := offsetNumTuples + 2; i < HeaderSize; i++ {
		p.data[i] = 0
	}
}

// PageID returns the identifier of the page this codec was wrapped with.
func (p *TablePage) PageID() primitives.PageID {
	return p.id
}

// NextPageID returns the next page in the heap chain, or InvalidPageID.
func (p *TablePage) NextPageID() primitives.PageID {
	return primitives.PageID(binary.LittleEndian.Uint32(p.data[offsetNextPageID:]))
}

// SetNextPageID rewrites the next-page link.
func (p *TablePage) SetNextPageID(id primitives.PageID) {
	binary.LittleEndian.PutUint32(p.data[offsetNextPageID:], uint32(id))
}

// NumTuples returns the number of slots currently allocated, including
// slots whose tuples have been marked deleted.
func (p *TablePage) NumTuples() uint16 {
	return binary.LittleEndian.Uint16(p.data[offsetNumTuples:])
}

func (p *TablePage) setNumTuples(n uint16) {
	binary.LittleEndian.PutUint16(p.data[offsetNumTuples:], n)
}

func (p *TablePage) slotOffset(slot primitives.SlotID) int {
	return HeaderSize + int(slot)*SlotSize
}

func (p *TablePage) readSlot(slot primitives.SlotID) (offset, length uint16, meta TupleMetadata) {
	base := p.slotOffset(slot)
	offset = binary.LittleEndian.Uint16(p.data[base:])
	length = binary.LittleEndian.Uint16(p.data[base+2:])
	copy(meta[:], p.data[base+4:base+4+MetadataSize])
	return
}

func (p *TablePage) writeSlot(slot primitives.SlotID, offset, length uint16, meta TupleMetadata) {
	base := p.slotOffset(slot)
	binary.LittleEndian.PutUint16(p.data[base:], offset)
	binary.LittleEndian.PutUint16(p.data[base+2:], length)
	copy(p.data[base+4:base+4+MetadataSize], meta[:])
}

// GetTuple returns the metadata and payload bytes of the tuple occupying
// rid's slot. The returned slice aliases the page buffer; callers must copy
// it before the page can be reused for a write.
func (p *TablePage) GetTuple(rid primitives.RecordID) (TupleMetadata, []byte, error) {
	if uint16(rid.Slot) >= p.NumTuples() {
		return TupleMetadata{}, nil, dberr.NewCore(dberr.CodeOutOfBounds, "GetTuple", "TablePage",
			"slot index exceeds num_tuples")
	}
	offset, length, meta := p.readSlot(rid.Slot)
	return meta, p.data[offset : offset+length], nil
}

// currentMinTupleOffset returns the smallest tuple offset in use, or
// PageSize if the page holds no tuples yet (i.e. the tuple area is empty
// and starts flush against the end of the page).
func (p *TablePage) currentMinTupleOffset() uint16 {
	n := p.NumTuples()
	min := uint16(PageSize)
	for s := primitives.SlotID(0); uint16(s) < n; s++ {
		offset, _, _ := p.readSlot(s)
		if offset < min {
			min = offset
		}
	}
	return min
}

// GetNextTupleOffset returns the offset at which a tuple of length
// tupleLen would be placed if inserted now, failing with PAGE_FULL if the
// growing slot directory would collide with the growing tuple area.
func (p *TablePage) GetNextTupleOffset(tupleLen uint16) (uint16, error) {
	dirEnd := HeaderSize + (int(p.NumTuples())+1)*SlotSize
	tailStart := int(p.currentMinTupleOffset()) - int(tupleLen)
	if dirEnd > tailStart {
		return 0, dberr.NewCore(dberr.CodePageFull, "GetNextTupleOffset", "TablePage",
			"slot directory and tuple area would overlap")
	}
	return uint16(tailStart), nil
}

// InsertTuple writes bytes into the page's tuple area, appends a new slot
// directory entry, and returns the RecordID of the newly inserted tuple.
// It never compacts or moves existing tuples.
func (p *TablePage) InsertTuple(bytes []byte, meta TupleMetadata) (primitives.RecordID, error) {
	offset, err := p.GetNextTupleOffset(uint16(len(bytes)))
	if err != nil {
		return primitives.RecordID{}, err
	}
	copy(p.data[offset:int(offset)+len(bytes)], bytes)

	slot := primitives.SlotID(p.NumTuples())
	p.writeSlot(slot, offset, uint16(len(bytes)), meta)
	p.setNumTuples(p.NumTuples() + 1)

	logging.WithPage(int(p.id)).Debug("tuple inserted", "slot", slot, "len", len(bytes), "offset", offset)
	return primitives.RecordID{PageID: p.id, Slot: slot}, nil
}

// UpdateTupleMetadata overwrites only the metadata portion of rid's slot;
// tuple bytes are never moved or rewritten.
func (p *TablePage) UpdateTupleMetadata(rid primitives.RecordID, meta TupleMetadata) error {
	if uint16(rid.Slot) >= p.NumTuples() {
		return dberr.NewCore(dberr.CodeOutOfBounds, "UpdateTupleMetadata", "TablePage",
			"slot index exceeds num_tuples")
	}
	offset, length, _ := p.readSlot(rid.Slot)
	p.writeSlot(rid.Slot, offset, length, meta)
	return nil
}

// Data returns the page's backing buffer, for the buffer pool to persist.
func (p *TablePage) Data() []byte {
	return p.data
}
