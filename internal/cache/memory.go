package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

// MemoryStore keeps encoded values in process memory. Values round-trip
// through JSON so callers get the same semantics as RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]memoryItem
	maxSize int
	now     func() time.Time
}

// NewMemoryStore creates a store holding at most maxSize keys (0 means 1000).
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryStore{
		data:    make(map[string]memoryItem),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	item, ok := m.data[key]
	if ok && !m.now().Before(item.expireAt) {
		delete(m.data, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(item.data, dest)
}

func (m *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; !exists && len(m.data) >= m.maxSize {
		m.evict()
	}
	m.data[key] = memoryItem{data: data, expireAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Len reports the number of stored keys, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// evict drops expired keys first, then the entry closest to expiry.
// Caller holds mu.
func (m *MemoryStore) evict() {
	now := m.now()
	var (
		victim string
		soon   time.Time
	)
	for k, v := range m.data {
		if !now.Before(v.expireAt) {
			delete(m.data, k)
			continue
		}
		if victim == "" || v.expireAt.Before(soon) {
			victim, soon = k, v.expireAt
		}
	}
	if len(m.data) >= m.maxSize && victim != "" {
		delete(m.data, victim)
	}
}
