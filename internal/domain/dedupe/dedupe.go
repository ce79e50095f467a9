// Package dedupe tracks match ids that were already incorporated into storage.
//
// Index is a sparse bitset: the id space is cut into fixed-size segments and
// a segment is allocated only when an id inside it is inserted. Memory is
// bounded by the number of touched segments, not by the id range.
package dedupe

import (
	"context"
	"math/bits"
	"sync"
)

const (
	segmentWords = 128
	wordBits     = 64
	// SegmentBits is the number of ids covered by one segment.
	SegmentBits = segmentWords * wordBits
)

// Deduper records seen match ids so each is fetched at most once.
type Deduper interface {
	// SeenAndRecord checks if id was seen and records it if not, atomically.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id int64) bool

	Size() int64
}

type segment [segmentWords]uint64

func (s *segment) count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// Index is a sparse segmented bitset over match ids.
type Index struct {
	mu       sync.Mutex
	segments map[uint64]*segment // keyed by segment number (base / SegmentBits)
	n        int
}

var _ Deduper = (*Index)(nil)

// New returns an empty index.
func New() *Index {
	return &Index{segments: make(map[uint64]*segment)}
}

func split(id int64) (seg uint64, word int, mask uint64) {
	u := uint64(id)
	off := u % SegmentBits
	return u / SegmentBits, int(off / wordBits), 1 << (off % wordBits)
}

// Insert adds id and reports whether it was already present.
func (x *Index) Insert(id int64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.insertLocked(id)
}

func (x *Index) insertLocked(id int64) bool {
	segNo, word, mask := split(id)
	s, ok := x.segments[segNo]
	if !ok {
		s = new(segment)
		x.segments[segNo] = s
	}
	if s[word]&mask != 0 {
		return true
	}
	s[word] |= mask
	x.n++
	return false
}

// Remove deletes id and reports whether it was present.
func (x *Index) Remove(id int64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	segNo, word, mask := split(id)
	s, ok := x.segments[segNo]
	if !ok || s[word]&mask == 0 {
		return false
	}
	s[word] &^= mask
	x.n--
	return true
}

// Contains reports whether id is present. It never allocates a segment.
func (x *Index) Contains(id int64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	segNo, word, mask := split(id)
	s, ok := x.segments[segNo]
	return ok && s[word]&mask != 0
}

// Len returns the number of ids present.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.n
}

// Density returns the average number of ids per allocated segment.
func (x *Index) Density() float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.segments) == 0 {
		return 0
	}
	return float64(x.n) / float64(len(x.segments))
}

// SeenAndRecord is Insert under the Deduper contract.
func (x *Index) SeenAndRecord(_ context.Context, id int64) bool {
	return x.Insert(id)
}

// Size returns the number of ids present.
func (x *Index) Size() int64 {
	return int64(x.Len())
}
