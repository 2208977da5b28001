package timeline

import (
	"fmt"
	"sort"
)

// Index is a sorted view over the timestamps of a trace's entries. Positions
// returned by its methods are relative to the view.
type Index struct {
	ts []Timestamp
}

// NewIndex validates that ts share one domain and are non-decreasing.
func NewIndex(ts []Timestamp) (*Index, error) {
	for i := 1; i < len(ts); i++ {
		if ts[i].Domain() != ts[0].Domain() {
			return nil, fmt.Errorf("timeline: entry %d is %s, expected %s", i, ts[i].Domain(), ts[0].Domain())
		}
		if ts[i].ValueNs() < ts[i-1].ValueNs() {
			return nil, fmt.Errorf("timeline: entry %d is out of order", i)
		}
	}
	return &Index{ts: ts}, nil
}

// Len returns the number of entries in the view.
func (x *Index) Len() int { return len(x.ts) }

// At returns the timestamp of entry i.
func (x *Index) At(i int) Timestamp { return x.ts[i] }

// Timestamps returns the entries of the view.
func (x *Index) Timestamps() []Timestamp {
	return append([]Timestamp(nil), x.ts...)
}

func (x *Index) firstGreaterOrEqual(t Timestamp) int {
	return sort.Search(len(x.ts), func(i int) bool { return x.ts[i].Compare(t) >= 0 })
}

func (x *Index) firstGreater(t Timestamp) int {
	return sort.Search(len(x.ts), func(i int) bool { return x.ts[i].Compare(t) > 0 })
}

// FindClosest returns the entry nearest to t. Ties go to the later entry.
func (x *Index) FindClosest(t Timestamp) (int, bool) {
	if len(x.ts) == 0 {
		return 0, false
	}
	pos := x.firstGreaterOrEqual(t)
	if pos == len(x.ts) {
		return len(x.ts) - 1, true
	}
	if pos == 0 {
		return 0, true
	}
	if distance(x.ts[pos-1], t) < distance(t, x.ts[pos]) {
		return pos - 1, true
	}
	return pos, true
}

// FindFirstGreaterOrEqual returns the first entry at or after t.
func (x *Index) FindFirstGreaterOrEqual(t Timestamp) (int, bool) {
	pos := x.firstGreaterOrEqual(t)
	return pos, pos < len(x.ts)
}

// FindFirstGreater returns the first entry strictly after t.
func (x *Index) FindFirstGreater(t Timestamp) (int, bool) {
	pos := x.firstGreater(t)
	return pos, pos < len(x.ts)
}

// FindLastLowerOrEqual returns the last entry at or before t.
func (x *Index) FindLastLowerOrEqual(t Timestamp) (int, bool) {
	pos := x.firstGreater(t) - 1
	return pos, pos >= 0
}

// FindLastLower returns the last entry strictly before t.
func (x *Index) FindLastLower(t Timestamp) (int, bool) {
	pos := x.firstGreaterOrEqual(t) - 1
	return pos, pos >= 0
}

// SliceTime returns the entries in [start, end). A nil bound is open.
func (x *Index) SliceTime(start, end *Timestamp) *Index {
	lo, hi := 0, len(x.ts)
	if start != nil {
		lo = x.firstGreaterOrEqual(*start)
	}
	if end != nil {
		hi = x.firstGreaterOrEqual(*end)
	}
	if hi < lo {
		hi = lo
	}
	return &Index{ts: x.ts[lo:hi]}
}

// distance returns b - a for a <= b. The unsigned result cannot overflow.
func distance(a, b Timestamp) uint64 {
	return uint64(b.valueNs) - uint64(a.valueNs)
}
