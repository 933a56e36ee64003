// Package ratelimit throttles calls to the hospital backends.
package ratelimit

import (
	"sync"
	"time"

	"hospops/internal/apperr"
)

// DefaultWindow is the minimum spacing between two accepted submits of the
// same mutation key.
const DefaultWindow = 500 * time.Millisecond

// Guard rejects repeated submits of the same mutation key inside a window.
// Only accepted calls move the window; rejected attempts do not.
type Guard struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
	now    func() time.Time
}

// NewGuard creates a guard. A non-positive window falls back to DefaultWindow.
func NewGuard(window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{
		window: window,
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
	return g
}

// Allow records an accepted call for key or returns *apperr.RateLimitedError.
func (g *Guard) Allow(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.last[key]; ok {
		if elapsed := now.Sub(last); elapsed < g.window {
			return &apperr.RateLimitedError{Key: key, RetryAfter: g.window - elapsed}
		}
	}
	g.last[key] = now
	return nil
}

// SetWindow changes the window for subsequent calls.
func (g *Guard) SetWindow(window time.Duration) {
	if window <= 0 {
		window = DefaultWindow
	}
	g.mu.Lock()
	g.window = window
	g.mu.Unlock()
}

// Window returns the current window.
func (g *Guard) Window() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.window
}

// Reset forgets the last accepted call for key.
func (g *Guard) Reset(key string) {
	g.mu.Lock()
	delete(g.last, key)
	g.mu.Unlock()
}
