// Package rowsource reads the flattened trace tables a trace-query engine
// produces: trace entries, the nodes of each entry, their argument rows and
// the clock offsets of the trace.
package rowsource

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("rowsource: not found")

// RealtimeClock names the clock_offsets row holding the realtime offset.
const RealtimeClock = "realtime"

// Entry is one trace entry: a snapshot at a boot-time timestamp.
type Entry struct {
	ID        int64  `json:"id"`
	TraceType string `json:"trace_type"`
	TsNs      int64  `json:"ts"`
	ArgSetID  int64  `json:"arg_set_id"`
}

// Node is one node of a trace entry, such as a view or a layer.
type Node struct {
	ID       int64 `json:"id"`
	EntryID  int64 `json:"entry_id"`
	ArgSetID int64 `json:"arg_set_id"`
}

// Source reads trace rows. Implementations are safe for concurrent use.
type Source interface {
	// Entries returns the entries of a trace type ordered by timestamp.
	Entries(ctx context.Context, traceType string) ([]Entry, error)
	// Nodes returns the nodes of an entry ordered by id.
	Nodes(ctx context.Context, entryID int64) ([]Node, error)
	// Args returns the argument rows of an arg set.
	Args(ctx context.Context, argSetID int64) ([]fakeproto.Row, error)
	// RealtimeOffset returns the nanoseconds to add to a boot-time timestamp
	// to get realtime, or ErrNotFound when the trace has no such offset.
	RealtimeOffset(ctx context.Context) (int64, error)
	Close() error
}

// Fixture is a complete set of trace rows that can be loaded into a source.
type Fixture struct {
	Entries []Entry                   `json:"entries"`
	Nodes   []Node                    `json:"nodes"`
	Args    map[int64][]fakeproto.Row `json:"args"`
	// Offsets maps clock names to offsets in nanoseconds.
	Offsets map[string]int64 `json:"clock_offsets"`
}

// CachedOffset wraps a Source so the realtime offset is queried once for the
// lifetime of the wrapper. Not-found results are cached too; other errors are
// returned and retried on the next call.
type CachedOffset struct {
	Source

	group  singleflight.Group
	mu     sync.Mutex
	done   bool
	offset int64
	err    error
}

// WithCachedOffset returns src with a cached RealtimeOffset.
func WithCachedOffset(src Source) *CachedOffset {
	return &CachedOffset{Source: src}
}

// RealtimeOffset implements Source.
func (c *CachedOffset) RealtimeOffset(ctx context.Context) (int64, error) {
	c.mu.Lock()
	if c.done {
		offset, err := c.offset, c.err
		c.mu.Unlock()
		return offset, err
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(RealtimeClock, func() (any, error) {
		offset, err := c.Source.RealtimeOffset(ctx)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return int64(0), err
		}
		c.mu.Lock()
		c.done, c.offset, c.err = true, offset, err
		c.mu.Unlock()
		return offset, err
	})
	return v.(int64), err
}
