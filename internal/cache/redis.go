package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis is a Store backed by a shared redis instance. Every key is written
// under namespace so two API bases never see each other's entries.
type Redis struct {
	client    redis.UniversalClient
	namespace string
	logger    *zerolog.Logger
}

// NewRedis wraps client. namespace is prepended to every key, e.g. "hospops:reception:".
func NewRedis(client redis.UniversalClient, namespace string, logger *zerolog.Logger) *Redis {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Redis{client: client, namespace: namespace, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := r.TryGet(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	return val, ok
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.TrySet(ctx, key, value, ttl); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) int {
	n, err := r.TryInvalidatePrefix(ctx, prefix)
	if err != nil {
		r.logger.Warn().Err(err).Str("prefix", prefix).Msg("cache invalidation failed")
	}
	return n
}

// TryGet is Get with the redis error surfaced. A missing key is not an error.
func (r *Redis) TryGet(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *Redis) TrySet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return r.client.Set(ctx, r.namespace+key, value, ttl).Err()
}

func (r *Redis) TryInvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.namespace+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Ping reports whether redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
