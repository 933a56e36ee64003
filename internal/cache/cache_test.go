package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "departments:search:name:김", Key("departments", "search", "name", "김"))
	assert.Equal(t, "receptions:list", Key("receptions", "list"))
	assert.Equal(t, "receptions:", EntityPrefix("receptions"))
}

func TestMemoryExpiryEvicts(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), 100*time.Millisecond)
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(150 * time.Millisecond)
	assert.Equal(t, 1, m.Len(), "entry stays until read")

	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len(), "expired entry must be removed on read")
}

func TestMemoryDefaultTTL(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	m.Set(ctx, "k", []byte("v"), 0)
	now = now.Add(DefaultTTL - time.Millisecond)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Millisecond)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryInvalidatePrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, Key("departments", "list"), []byte("1"), time.Minute)
	m.Set(ctx, Key("departments", "search", "name", "김"), []byte("2"), time.Minute)
	m.Set(ctx, Key("departmentsx", "list"), []byte("3"), time.Minute)
	m.Set(ctx, Key("positions", "list"), []byte("4"), time.Minute)

	assert.Equal(t, 2, m.InvalidatePrefix(ctx, EntityPrefix("departments")))

	_, ok := m.Get(ctx, Key("departments", "list"))
	assert.False(t, ok)
	_, ok = m.Get(ctx, Key("departments", "search", "name", "김"))
	assert.False(t, ok)
	_, ok = m.Get(ctx, Key("departmentsx", "list"))
	assert.True(t, ok)
	_, ok = m.Get(ctx, Key("positions", "list"))
	assert.True(t, ok)
}

func TestMemoryCleanup(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	ctx := context.Background()

	m.Set(ctx, "a", []byte("1"), time.Second)
	m.Set(ctx, "b", []byte("2"), time.Minute)
	now = now.Add(2 * time.Second)

	assert.Equal(t, 1, m.Cleanup())
	assert.Equal(t, 1, m.Len())
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "hospops:reception:", nil), mr
}

func TestRedisGetSetExpiry(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "patients:list", []byte(`[{"id":1}]`), 100*time.Millisecond)
	got, ok := r.Get(ctx, "patients:list")
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":1}]`, string(got))
	assert.True(t, mr.Exists("hospops:reception:patients:list"))

	mr.FastForward(150 * time.Millisecond)
	_, ok = r.Get(ctx, "patients:list")
	assert.False(t, ok)
	assert.False(t, mr.Exists("hospops:reception:patients:list"))
}

func TestRedisInvalidatePrefix(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, Key("receptions", "list"), []byte("1"), time.Minute)
	r.Set(ctx, Key("receptions", "get", "7"), []byte("2"), time.Minute)
	r.Set(ctx, Key("patients", "list"), []byte("3"), time.Minute)

	assert.Equal(t, 2, r.InvalidatePrefix(ctx, EntityPrefix("receptions")))
	assert.Equal(t, 0, r.InvalidatePrefix(ctx, EntityPrefix("receptions")))

	_, ok := r.Get(ctx, Key("patients", "list"))
	assert.True(t, ok)
	assert.NoError(t, r.Ping(ctx))

	mr.Close()
	_, ok = r.Get(ctx, Key("patients", "list"))
	assert.False(t, ok)
}
