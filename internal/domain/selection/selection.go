// Package selection picks and orders player records with bounded memory.
package selection

import (
	"container/heap"
	"iter"
	"math"
	"sort"

	"github.com/okian/rankcrawl/internal/domain/model"
)

// RankWindow is the number of records buffered by StreamByRank.
const RankWindow = 1024

// older reports whether a should be refreshed before b. A record that was
// never updated (TS == 0) is older than any timestamped record.
func older(a, b model.PlayerRecord) bool {
	if a.TS != b.TS {
		return a.TS < b.TS
	}
	return a.ID < b.ID
}

// newestFirst is a max-heap on (TS, ID).
type newestFirst []model.PlayerRecord

func (h newestFirst) Len() int           { return len(h) }
func (h newestFirst) Less(i, j int) bool { return older(h[j], h[i]) }
func (h newestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *newestFirst) Push(x any)        { *h = append(*h, x.(model.PlayerRecord)) }
func (h *newestFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// SelectOldest returns the min(k, N) records with the smallest
// (TS, ID), oldest first. It holds at most k records at a time.
func SelectOldest(records iter.Seq[model.PlayerRecord], k int) []model.PlayerRecord {
	if k <= 0 {
		return nil
	}
	h := make(newestFirst, 0, k)
	for r := range records {
		if len(h) < k {
			heap.Push(&h, r)
			continue
		}
		// Most records are not in the bottom k; skip them without touching the heap.
		if !older(r, h[0]) {
			continue
		}
		h[0] = r
		heap.Fix(&h, 0)
	}
	out := []model.PlayerRecord(h)
	sort.Slice(out, func(i, j int) bool { return older(out[i], out[j]) })
	return out
}

// rankKey orders better tiers first; unknown tiers sort last.
func rankKey(t model.Tier) int {
	if o, ok := t.Ordinal(); ok {
		return o
	}
	return math.MaxInt
}

func ranksBefore(a, b model.PlayerRecord) bool {
	ka, kb := rankKey(a.Tier), rankKey(b.Tier)
	if ka != kb {
		return ka < kb
	}
	return a.ID < b.ID
}

type bestFirst []model.PlayerRecord

func (h bestFirst) Len() int           { return len(h) }
func (h bestFirst) Less(i, j int) bool { return ranksBefore(h[i], h[j]) }
func (h bestFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *bestFirst) Push(x any)        { *h = append(*h, x.(model.PlayerRecord)) }
func (h *bestFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// StreamByRank passes every record to emit, roughly grouped by rank: records
// are buffered in a window of the given size and the best-ranked buffered
// record is emitted whenever the window is full. The output is sorted
// whenever the input fits in the window. A window <= 0 uses RankWindow.
// Emission stops at the first emit error.
func StreamByRank(records iter.Seq[model.PlayerRecord], window int, emit func(model.PlayerRecord) error) error {
	if window <= 0 {
		window = RankWindow
	}
	h := make(bestFirst, 0, window)
	for r := range records {
		if len(h) < window {
			heap.Push(&h, r)
			continue
		}
		var next model.PlayerRecord
		if ranksBefore(r, h[0]) {
			next = r
		} else {
			next = h[0]
			h[0] = r
			heap.Fix(&h, 0)
		}
		if err := emit(next); err != nil {
			return err
		}
	}
	for h.Len() > 0 {
		if err := emit(heap.Pop(&h).(model.PlayerRecord)); err != nil {
			return err
		}
	}
	return nil
}
