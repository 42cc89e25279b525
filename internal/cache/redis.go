package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores JSON-encoded values in Redis under a common key prefix.
type RedisCache[T any] struct {
	client *redis.Client
	ctx    context.Context
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects lazily to addr; the first command dials.
func NewRedisCache[T any](addr, prefix string, ttl time.Duration) *RedisCache[T] {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})
	return &RedisCache[T]{
		client: rdb,
		ctx:    context.Background(),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisCache[T]) key(k string) string {
	return r.prefix + k
}

func (r *RedisCache[T]) Get(key string) (T, bool) {
	var zero T
	raw, err := r.client.Get(r.ctx, r.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("Redis cache get failed", "key", key, "error", err)
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("Redis cache entry undecodable, dropping", "key", key, "error", err)
		r.Delete(key)
		return zero, false
	}
	return v, true
}

func (r *RedisCache[T]) Set(key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.client.Set(r.ctx, r.key(key), raw, r.ttl).Err(); err != nil {
		slog.Warn("Redis cache set failed", "key", key, "error", err)
	}
}

func (r *RedisCache[T]) Delete(key string) {
	if err := r.client.Del(r.ctx, r.key(key)).Err(); err != nil {
		slog.Warn("Redis cache delete failed", "key", key, "error", err)
	}
}

// Size counts keys under the prefix. Errors count as an empty cache.
func (r *RedisCache[T]) Size() int {
	keys, err := r.client.Keys(r.ctx, r.prefix+"*").Result()
	if err != nil {
		return 0
	}
	return len(keys)
}

// Ping checks connectivity for readiness probes.
func (r *RedisCache[T]) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache[T]) Close() error {
	return r.client.Close()
}
