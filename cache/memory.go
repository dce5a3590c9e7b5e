// Package cache provides decision caches for the portcullis engine.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/portcullis"
)

// Compile-time interface check.
var _ portcullis.Cache = (*Memory)(nil)

// Memory is an in-process cache with TTL-based expiration. Entries are
// grouped per actor, so invalidating an actor touches only that actor.
type Memory struct {
	mu      sync.RWMutex
	actors  map[string]map[string]*entry
	size    int
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type entry struct {
	result    portcullis.Result
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		actors:  make(map[string]map[string]*entry),
		ttl:     time.Minute,
		maxSize: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of a cached result.
func (m *Memory) Get(_ context.Context, actorID string, req *portcullis.Request) (*portcullis.Result, bool) {
	key := portcullis.CacheKey(req)
	m.mu.RLock()
	e, ok := m.actors[actorID][key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		m.remove(actorID, key)
		m.mu.Unlock()
		return nil, false
	}
	res := e.result
	return &res, true
}

// Set stores a copy of result.
func (m *Memory) Set(_ context.Context, actorID string, req *portcullis.Request, result *portcullis.Result) {
	key := portcullis.CacheKey(req)
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.actors[actorID]
	if !ok {
		bucket = make(map[string]*entry)
		m.actors[actorID] = bucket
	}
	if _, exists := bucket[key]; !exists {
		if m.size >= m.maxSize {
			m.evictExpired()
			if m.size >= m.maxSize {
				m.evictOne()
			}
			// Eviction may have dropped the bucket.
			if _, ok := m.actors[actorID]; !ok {
				m.actors[actorID] = bucket
			}
		}
		m.size++
	}

	bucket[key] = &entry{
		result:    *result,
		expiresAt: m.now().Add(m.ttl),
	}
}

// InvalidateAll removes every cached result.
func (m *Memory) InvalidateAll(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors = make(map[string]map[string]*entry)
	m.size = 0
}

// InvalidateActor removes all cached results for exactly one actor.
func (m *Memory) InvalidateActor(_ context.Context, actorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size -= len(m.actors[actorID])
	delete(m.actors, actorID)
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// remove drops one entry. Must hold write lock.
func (m *Memory) remove(actorID, key string) {
	bucket, ok := m.actors[actorID]
	if !ok {
		return
	}
	if _, ok := bucket[key]; !ok {
		return
	}
	delete(bucket, key)
	m.size--
	if len(bucket) == 0 {
		delete(m.actors, actorID)
	}
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := m.now()
	for actorID, bucket := range m.actors {
		for k, e := range bucket {
			if now.After(e.expiresAt) {
				m.remove(actorID, k)
			}
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for actorID, bucket := range m.actors {
		for k := range bucket {
			m.remove(actorID, k)
			return
		}
	}
}
