// Package cache holds short-lived read results of the API clients.
//
// Keys follow "entity:operation:params", e.g. "departments:search:name:김".
// Mutations never patch entries; they drop every key of the entity.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is used when Set is called with a non-positive ttl.
const DefaultTTL = 10 * time.Second

// Store is a read cache of encoded results.
type Store interface {
	// Get returns the value for key. Expired entries are reported absent.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// InvalidatePrefix drops every entry whose key starts with prefix and
	// returns how many were removed.
	InvalidatePrefix(ctx context.Context, prefix string) int
}

// Key joins an entity, an operation and its parameters.
func Key(entity, op string, params ...string) string {
	parts := make([]string, 0, 2+len(params))
	parts = append(parts, entity, op)
	parts = append(parts, params...)
	return strings.Join(parts, ":")
}

// EntityPrefix is the prefix shared by all keys of entity.
func EntityPrefix(entity string) string {
	return entity + ":"
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are evicted when read.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) InvalidatePrefix(_ context.Context, prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len is the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Cleanup removes expired entries and returns how many were dropped.
func (m *Memory) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}
