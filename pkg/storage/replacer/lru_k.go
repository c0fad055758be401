// Package replacer implements the LRU-K frame replacement policy: pure
// in-memory bookkeeping over a fixed universe of frame identifiers. It knows
// nothing about page contents or disk I/O; the buffer pool translates.
package replacer

import (
	"math"
	"sync"

	dberr "heapcore/pkg/error"
	"heapcore/pkg/logging"
	"heapcore/pkg/primitives"
)

// node tracks one frame's access history and evictability.
type node struct {
	history   []uint64 // oldest first, at most k entries
	evictable bool
}

func newNode() *node {
	return &node{}
}

func (n *node) hasInfiniteBackwardKDistance(k int) bool {
	return len(n.history) < k
}

func (n *node) earliestTimestamp() uint64 {
	return n.history[0]
}

func (n *node) backwardKDistance(k int, now uint64) uint64 {
	if n.hasInfiniteBackwardKDistance(k) {
		return math.MaxUint64
	}
	return now - n.history[0]
}

func (n *node) recordAccess(ts uint64, k int) {
	n.history = append(n.history, ts)
	if len(n.history) > k {
		n.history = n.history[1:]
	}
}

// LRUK implements the LRU-K eviction policy over frame identifiers.
type LRUK struct {
	mu        sync.Mutex
	k         int
	nodes     map[primitives.FrameID]*node
	evictable int
	clock     uint64
}

// New creates an LRU-K replacer that tracks the last k accesses per frame.
func New(k int) *LRUK {
	return &LRUK{
		k:     k,
		nodes: make(map[primitives.FrameID]*node),
	}
}

func (r *LRUK) advance() uint64 {
	ts := r.clock
	r.clock++
	return ts
}

// RecordAccess records that frameID was accessed now, creating its entry on
// first sight.
func (r *LRUK) RecordAccess(frameID primitives.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.advance()
	n, ok := r.nodes[frameID]
	if !ok {
		n = newNode()
		r.nodes[frameID] = n
	}
	n.recordAccess(ts, r.k)
}

// Pin marks frameID non-evictable, preventing it from being chosen by Evict.
func (r *LRUK) Pin(frameID primitives.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok {
		n = newNode()
		r.nodes[frameID] = n
	}
	if n.evictable {
		n.evictable = false
		r.evictable--
	}
}

// Unpin marks frameID evictable.
func (r *LRUK) Unpin(frameID primitives.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok {
		n = newNode()
		r.nodes[frameID] = n
	}
	if !n.evictable {
		n.evictable = true
		r.evictable++
	}
}

// Evict picks the evictable frame with the largest backward k-distance,
// breaking ties toward the earliest-known access. It returns false if no
// frame is currently evictable.
func (r *LRUK) Evict() (primitives.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evictable == 0 {
		return 0, false
	}

	now := r.clock
	var (
		best      primitives.FrameID
		bestDist  uint64
		bestEarly uint64
		haveBest  bool
	)

	for frameID, n := range r.nodes {
		if !n.evictable {
			continue
		}
		dist := n.backwardKDistance(r.k, now)
		early := n.earliestTimestamp()
		if !haveBest || dist > bestDist || (dist == bestDist && early < bestEarly) {
			best, bestDist, bestEarly, haveBest = frameID, dist, early, true
		}
	}

	if !haveBest {
		return 0, false
	}

	delete(r.nodes, best)
	r.evictable--
	logging.WithFrame(int(best)).Debug("frame evicted", "k_distance", bestDist)
	return best, true
}

// EvictableCount returns the number of frames currently eligible for
// eviction.
func (r *LRUK) EvictableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictable
}

// Remove discards frameID's history. It fails with NON_EVICTABLE if the
// frame is pinned or was never recorded — per this module's reading of the
// "remove on an unknown frame" open question, such a frame is never in the
// evictable set and so cannot be removed.
func (r *LRUK) Remove(frameID primitives.FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[frameID]
	if !ok || !n.evictable {
		return dberr.NewCore(dberr.CodeNonEvictable, "Remove", "LRUKReplacer",
			"frame is not evictable")
	}
	delete(r.nodes, frameID)
	r.evictable--
	return nil
}
