package rowsource

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
)

// Memory is a Source backed by an in-memory fixture.
type Memory struct {
	mu      sync.RWMutex
	fixture Fixture
}

// NewMemory returns a source serving f. The fixture is copied.
func NewMemory(f Fixture) *Memory {
	m := &Memory{}
	m.Load(f)
	return m
}

// Load adds the rows of f.
func (m *Memory) Load(f Fixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixture.Entries = append(m.fixture.Entries, f.Entries...)
	m.fixture.Nodes = append(m.fixture.Nodes, f.Nodes...)
	if m.fixture.Args == nil {
		m.fixture.Args = make(map[int64][]fakeproto.Row)
	}
	for id, rows := range f.Args {
		m.fixture.Args[id] = append(m.fixture.Args[id], rows...)
	}
	if m.fixture.Offsets == nil {
		m.fixture.Offsets = make(map[string]int64)
	}
	for name, v := range f.Offsets {
		m.fixture.Offsets[name] = v
	}
}

// Entries implements Source.
func (m *Memory) Entries(_ context.Context, traceType string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.fixture.Entries {
		if e.TraceType == traceType {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		if a.TsNs != b.TsNs {
			return cmp.Compare(a.TsNs, b.TsNs)
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Nodes implements Source.
func (m *Memory) Nodes(_ context.Context, entryID int64) ([]Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Node
	for _, n := range m.fixture.Nodes {
		if n.EntryID == entryID {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b Node) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Args implements Source.
func (m *Memory) Args(_ context.Context, argSetID int64) ([]fakeproto.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows, ok := m.fixture.Args[argSetID]
	if !ok {
		return nil, fmt.Errorf("rowsource: arg set %d: %w", argSetID, ErrNotFound)
	}
	return slices.Clone(rows), nil
}

// RealtimeOffset implements Source.
func (m *Memory) RealtimeOffset(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.fixture.Offsets[RealtimeClock]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

// Close implements Source.
func (m *Memory) Close() error { return nil }
