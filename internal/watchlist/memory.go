package watchlist

import (
	"context"
	"sort"
	"sync"
	"time"

	"AlphaPulse/internal/model"
)

// MemoryStore is a non-durable Store used when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	seq     uint64
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	addedAt time.Time
	seq     uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Add(_ context.Context, symbol string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[symbol]; ok {
		return AlreadyPresent, nil
	}
	m.insert(symbol)
	return Added, nil
}

func (m *MemoryStore) Remove(_ context.Context, symbol string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[symbol]; !ok {
		return NotPresent, nil
	}
	delete(m.entries, symbol)
	return Removed, nil
}

func (m *MemoryStore) Toggle(_ context.Context, symbol string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[symbol]; ok {
		delete(m.entries, symbol)
		return Removed, nil
	}
	m.insert(symbol)
	return Added, nil
}

func (m *MemoryStore) Contains(_ context.Context, symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[symbol]
	return ok, nil
}

func (m *MemoryStore) List(_ context.Context) ([]model.WatchlistEntry, error) {
	m.mu.Lock()
	type row struct {
		sym string
		memoryEntry
	}
	rows := make([]row, 0, len(m.entries))
	for sym, e := range m.entries {
		rows = append(rows, row{sym, e})
	}
	m.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	out := make([]model.WatchlistEntry, len(rows))
	for i, r := range rows {
		out[i] = model.WatchlistEntry{Symbol: r.sym, AddedAt: r.addedAt}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) insert(symbol string) {
	m.seq++
	m.entries[symbol] = memoryEntry{addedAt: m.now(), seq: m.seq}
}
