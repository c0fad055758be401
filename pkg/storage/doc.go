// Package storage is the root of heapcore's disk-based storage engine: a
// slotted-page table heap served by a fixed-size buffer pool with LRU-K
// replacement.
//
// # Sub-packages
//
//   - [heapcore/pkg/storage/page]     – the slotted-page codec: header, slot
//     directory, and tuple-area layout for one fixed-size page.
//   - [heapcore/pkg/storage/replacer] – the LRU-K frame replacement policy,
//     independent of page contents or disk I/O.
//   - [heapcore/pkg/storage/disk]     – the disk manager: whole-page
//     reads/writes against a single backing file, with page-id recycling.
//   - [heapcore/pkg/storage/buffer]   – the buffer pool binding the three
//     packages above into pin/unpin/fetch/create/delete semantics.
//   - [heapcore/pkg/storage/heap]     – the table heap and its forward tuple
//     iterator, built entirely on the buffer pool's page handles.
//
// # Page layout
//
// Each page starts with a fixed header (next-page link, tuple count,
// reserved bytes) followed by a slot directory that grows forward from the
// header toward the page's centre. Tuple bytes are packed backward from the
// end of the page toward the centre; a page is full once the two regions
// would overlap.
package storage
