package cache

import (
	"context"
	"sync"
	"time"

	"github.com/antonio-prism/prism-brain/internal/model"
)

type memKey struct {
	source string
	key    string
}

// Memory is an in-process Cache. It is safe for concurrent use; concurrent
// writers to one key resolve last-writer-wins.
type Memory struct {
	mu      sync.RWMutex
	entries map[memKey]model.CacheEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[memKey]model.CacheEntry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for expiry decisions.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) GetCached(_ context.Context, sourceName, dataKey string) (*model.CacheEntry, error) {
	m.mu.RLock()
	e, ok := m.entries[memKey{sourceName, dataKey}]
	m.mu.RUnlock()
	if !ok || !e.Live(m.now()) {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) PutCached(_ context.Context, entry model.CacheEntry, ttl time.Duration) error {
	now := m.now()
	entry.FetchedAt = now
	entry.ExpiresAt = now.Add(ttl)
	if entry.NumericValue != nil {
		v := *entry.NumericValue
		entry.NumericValue = &v
	}

	m.mu.Lock()
	m.entries[memKey{entry.SourceName, entry.DataKey}] = entry
	m.mu.Unlock()
	return nil
}

func (m *Memory) PurgeExpired(_ context.Context) (int, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, e := range m.entries {
		if !e.Live(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CacheFreshness(_ context.Context) ([]model.CacheFreshness, error) {
	m.mu.RLock()
	all := make([]model.CacheEntry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e)
	}
	m.mu.RUnlock()
	return freshness(all, m.now()), nil
}

// Len returns the number of stored entries, live or expired.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
