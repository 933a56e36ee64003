package reminders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryMarker keeps marks in process.
type MemoryMarker struct {
	mu    sync.Mutex
	marks map[int64]time.Time
	now   func() time.Time
}

func NewMemoryMarker() *MemoryMarker {
	return &MemoryMarker{marks: make(map[int64]time.Time), now: time.Now}
}

func (m *MemoryMarker) TryMark(_ context.Context, id int64, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if exp, ok := m.marks[id]; ok && now.Before(exp) {
		return false, nil
	}
	m.marks[id] = now.Add(ttl)
	return true, nil
}

func (m *MemoryMarker) Unmark(_ context.Context, id int64) error {
	m.mu.Lock()
	delete(m.marks, id)
	m.mu.Unlock()
	return nil
}

// RedisMarker shares marks between instances, so two running clients never
// announce the same reservation twice.
type RedisMarker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisMarker(client redis.UniversalClient, namespace string) *RedisMarker {
	return &RedisMarker{client: client, prefix: namespace + ":reminder:"}
}

func (r *RedisMarker) key(id int64) string {
	return fmt.Sprintf("%s%d", r.prefix, id)
}

func (r *RedisMarker) TryMark(ctx context.Context, id int64, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(id), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark reminder %d: %w", id, err)
	}
	return ok, nil
}

func (r *RedisMarker) Unmark(ctx context.Context, id int64) error {
	return r.client.Del(ctx, r.key(id)).Err()
}
