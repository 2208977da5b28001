package rowsource_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/rowsource"
)

func TestMemoryOrdersEntriesAndNodes(t *testing.T) {
	ctx := context.Background()
	m := rowsource.NewMemory(rowsource.Fixture{
		Entries: []rowsource.Entry{
			{ID: 3, TraceType: "viewcapture", TsNs: 300},
			{ID: 2, TraceType: "viewcapture", TsNs: 100},
			{ID: 1, TraceType: "viewcapture", TsNs: 100},
			{ID: 4, TraceType: "surfaceflinger", TsNs: 0},
		},
		Nodes: []rowsource.Node{
			{ID: 9, EntryID: 1},
			{ID: 8, EntryID: 1},
			{ID: 7, EntryID: 2},
		},
	})

	entries, err := m.Entries(ctx, "viewcapture")
	require.NoError(t, err)
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	nodes, err := m.Nodes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, int64(8), nodes[0].ID)
	assert.Equal(t, int64(9), nodes[1].ID)
}

func TestMemoryArgs(t *testing.T) {
	ctx := context.Background()
	m := rowsource.NewMemory(rowsource.Fixture{
		Args: map[int64][]fakeproto.Row{
			1: {{Key: "a", ValueType: fakeproto.ValueInt, IntValue: 1}},
		},
	})
	m.Load(rowsource.Fixture{
		Args: map[int64][]fakeproto.Row{
			1: {{Key: "b", ValueType: fakeproto.ValueInt, IntValue: 2}},
		},
	})

	rows, err := m.Args(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Key)
	assert.Equal(t, "b", rows[1].Key)

	rows[0].Key = "mutated"
	again, err := m.Args(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].Key, "returned rows are a copy")

	_, err = m.Args(ctx, 2)
	assert.ErrorIs(t, err, rowsource.ErrNotFound)
}

func TestMemoryRealtimeOffset(t *testing.T) {
	ctx := context.Background()
	m := rowsource.NewMemory(rowsource.Fixture{})
	_, err := m.RealtimeOffset(ctx)
	assert.ErrorIs(t, err, rowsource.ErrNotFound)

	m.Load(rowsource.Fixture{Offsets: map[string]int64{rowsource.RealtimeClock: 42}})
	v, err := m.RealtimeOffset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

// countingSource counts RealtimeOffset calls and fails the first failures calls.
type countingSource struct {
	*rowsource.Memory
	calls    atomic.Int32
	failures int32
}

var errTransient = errors.New("transient")

func (c *countingSource) RealtimeOffset(ctx context.Context) (int64, error) {
	n := c.calls.Add(1)
	if n <= c.failures {
		return 0, errTransient
	}
	return c.Memory.RealtimeOffset(ctx)
}

func TestCachedOffsetQueriesOnce(t *testing.T) {
	inner := &countingSource{Memory: rowsource.NewMemory(rowsource.Fixture{
		Offsets: map[string]int64{rowsource.RealtimeClock: 5},
	})}
	src := rowsource.WithCachedOffset(inner)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := src.RealtimeOffset(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, int64(5), v)
		}()
	}
	wg.Wait()

	v, err := src.RealtimeOffset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
	assert.LessOrEqual(t, inner.calls.Load(), int32(8))

	before := inner.calls.Load()
	_, _ = src.RealtimeOffset(context.Background())
	assert.Equal(t, before, inner.calls.Load(), "cached value is served without a query")
}

func TestCachedOffsetCachesNotFound(t *testing.T) {
	inner := &countingSource{Memory: rowsource.NewMemory(rowsource.Fixture{})}
	src := rowsource.WithCachedOffset(inner)

	for range 3 {
		_, err := src.RealtimeOffset(context.Background())
		assert.ErrorIs(t, err, rowsource.ErrNotFound)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedOffsetRetriesOtherErrors(t *testing.T) {
	inner := &countingSource{
		Memory:   rowsource.NewMemory(rowsource.Fixture{Offsets: map[string]int64{rowsource.RealtimeClock: 9}}),
		failures: 1,
	}
	src := rowsource.WithCachedOffset(inner)

	_, err := src.RealtimeOffset(context.Background())
	assert.ErrorIs(t, err, errTransient)

	v, err := src.RealtimeOffset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)
	assert.Equal(t, int32(2), inner.calls.Load())
}
