package store

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryStore is the in-process KeyValueStore used by tests and
// single-process runs. Expired entries are evicted lazily on access.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	lists   map[string][]string
}

type memoryEntry struct {
	data    []byte
	expires time.Time // zero means no expiry
}

var _ KeyValueStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		lists:   make(map[string][]string),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.entries, key)
		return nil, ErrKeyNotFound
	}
	ret := make([]byte, len(e.data))
	copy(ret, e.data)
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (m *MemoryStore) SetWithExpiry(
	_ context.Context,
	key string,
	value []byte,
	ttl time.Duration,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{data: make([]byte, len(value))}
	copy(e.data, value)
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.entries, key)
		delete(m.lists, key)
	}
	return nil
}

// ListPush inserts at the head: index 0 is always the newest entry.
func (m *MemoryStore) ListPush(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

func (m *MemoryStore) ListRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.lists[key]
	lo, hi, ok := resolveRange(start, stop, int64(len(list)))
	if !ok {
		return []string{}, nil
	}
	ret := make([]string, hi-lo+1)
	copy(ret, list[lo:hi+1])
	return ret, nil
}

func (m *MemoryStore) ListTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	lo, hi, ok := resolveRange(start, stop, int64(len(list)))
	if !ok {
		delete(m.lists, key)
		return nil
	}
	m.lists[key] = append([]string{}, list[lo:hi+1]...)
	return nil
}

func (m *MemoryStore) ListLength(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.lists[key])), nil
}

// Keys returns all live keys matching the glob pattern.
func (m *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	ret := []string{}
	for key, e := range m.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(m.entries, key)
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			ret = append(ret, key)
		}
	}
	for key := range m.lists {
		if ok, _ := path.Match(pattern, key); ok {
			ret = append(ret, key)
		}
	}
	return ret, nil
}

// resolveRange maps possibly negative start/stop indices onto [0,size).
func resolveRange(start, stop, size int64) (lo, hi int64, ok bool) {
	if size == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if start > stop || start >= size {
		return 0, 0, false
	}
	return start, stop, true
}
