// Package cache provides the byte caches behind the skill idempotency cache
// and the semantic filter score cache.
//
// This package contains:
//   - Memory: process-local TTL cache with FIFO eviction
//   - Redis: shared cache on go-redis, values stored with PX expiry
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/skillgate/internal/observability/metrics"
)

// Options configures a Memory cache.
type Options struct {
	// Name labels the cache in metrics.
	Name string
	// MaxEntries bounds the cache; zero means unbounded.
	MaxEntries int
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process cache. Entries expire after the TTL given to Set
// and the oldest insertions are evicted first once MaxEntries is reached.
type Memory struct {
	opts Options
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]*entry
	order []string
}

// NewMemory creates an empty in-memory cache.
func NewMemory(opts Options) *Memory {
	if opts.Name == "" {
		opts.Name = "memory"
	}
	return &Memory{
		opts:  opts,
		now:   time.Now,
		items: make(map[string]*entry),
		order: make([]string, 0, 128),
	}
}

// Get returns a copy of the live value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := m.now()

	m.mu.RLock()
	e, ok := m.items[key]
	if ok && now.Before(e.expiresAt) {
		value := append([]byte(nil), e.value...)
		m.mu.RUnlock()
		metrics.CacheRequests.WithLabelValues(m.opts.Name, metrics.ResultHit).Inc()
		return value, true, nil
	}
	m.mu.RUnlock()

	if ok {
		// Expired: drop it so it no longer counts against MaxEntries.
		m.mu.Lock()
		if e, still := m.items[key]; still && !now.Before(e.expiresAt) {
			delete(m.items, key)
			m.removeFromOrder(key)
		}
		m.mu.Unlock()
	}
	metrics.CacheRequests.WithLabelValues(m.opts.Name, metrics.ResultMiss).Inc()
	return nil, false, nil
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	e := &entry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(ttl),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[key]; !exists {
		m.order = append(m.order, key)
	}
	m.items[key] = e
	m.evictIfNeeded()
	return nil
}

// Delete removes key.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.removeFromOrder(key)
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) removeFromOrder(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *Memory) evictIfNeeded() {
	if m.opts.MaxEntries <= 0 || len(m.items) <= m.opts.MaxEntries {
		return
	}
	excess := len(m.items) - m.opts.MaxEntries
	for excess > 0 && len(m.order) > 0 {
		victim := m.order[0]
		m.order = m.order[1:]
		delete(m.items, victim)
		metrics.CacheEvictions.WithLabelValues(m.opts.Name).Inc()
		excess--
	}
}
