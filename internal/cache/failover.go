package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Remote is a Store whose failures are visible to the caller.
type Remote interface {
	TryGet(ctx context.Context, key string) ([]byte, bool, error)
	TrySet(ctx context.Context, key string, value []byte, ttl time.Duration) error
	TryInvalidatePrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
}

const defaultRecheck = time.Minute

// Failover serves from a remote store and switches to a local fallback when
// the remote fails. While down, the remote is probed at most once per
// recheck interval. Prefixes invalidated during an outage are replayed on
// the remote before it is used again, so it never serves entries older than
// a mutation it missed.
type Failover struct {
	primary  Remote
	fallback Store
	logger   *zerolog.Logger
	recheck  time.Duration
	now      func() time.Time

	isDown atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	missed    map[string]struct{}
}

func NewFailover(primary Remote, fallback Store, logger *zerolog.Logger) *Failover {
	if fallback == nil {
		fallback = NewMemory()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Failover{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		recheck:  defaultRecheck,
		now:      time.Now,
		missed:   make(map[string]struct{}),
	}
}

// WithRecheck sets how often a failed primary is probed.
func (f *Failover) WithRecheck(d time.Duration) *Failover {
	f.recheck = d
	return f
}

// Down reports whether the fallback is currently serving.
func (f *Failover) Down() bool { return f.isDown.Load() }

func (f *Failover) Get(ctx context.Context, key string) ([]byte, bool) {
	if f.usePrimary(ctx) {
		val, ok, err := f.primary.TryGet(ctx, key)
		if err == nil {
			return val, ok
		}
		f.markDown(err)
	}
	return f.fallback.Get(ctx, key)
}

func (f *Failover) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if f.usePrimary(ctx) {
		err := f.primary.TrySet(ctx, key, value, ttl)
		if err == nil {
			return
		}
		f.markDown(err)
	}
	f.fallback.Set(ctx, key, value, ttl)
}

// InvalidatePrefix always clears the fallback as well, since it may hold
// entries written during an earlier outage.
func (f *Failover) InvalidatePrefix(ctx context.Context, prefix string) int {
	n := f.fallback.InvalidatePrefix(ctx, prefix)
	if f.usePrimary(ctx) {
		m, err := f.primary.TryInvalidatePrefix(ctx, prefix)
		if err == nil {
			return n + m
		}
		f.markDown(err)
	}
	f.mu.Lock()
	f.missed[prefix] = struct{}{}
	f.mu.Unlock()
	return n
}

func (f *Failover) usePrimary(ctx context.Context) bool {
	if !f.isDown.Load() {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.isDown.Load() {
		return true
	}
	if f.now().Sub(f.lastCheck) < f.recheck {
		return false
	}
	f.lastCheck = f.now()

	if err := f.primary.Ping(ctx); err != nil {
		return false
	}
	for prefix := range f.missed {
		if _, err := f.primary.TryInvalidatePrefix(ctx, prefix); err != nil {
			f.logger.Warn().Err(err).Str("prefix", prefix).Msg("cache replay failed")
			return false
		}
		delete(f.missed, prefix)
	}
	f.isDown.Store(false)
	f.logger.Info().Msg("primary cache recovered")
	return true
}

func (f *Failover) markDown(err error) {
	if f.isDown.Swap(true) {
		return
	}
	f.mu.Lock()
	f.lastCheck = f.now()
	f.mu.Unlock()
	f.logger.Warn().Err(err).Msg("primary cache failed, switching to fallback")
}
