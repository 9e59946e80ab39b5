package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache: miss")

// Cache is the injected caching capability. Connection lifecycle belongs to
// the process bootstrap; data-access code only sees these operations. Any
// implementation error other than ErrMiss is a degradation signal: callers
// fall back to the store rather than failing the request.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// DelPattern removes every key matching a glob pattern.
	DelPattern(ctx context.Context, pattern string) error
}

const opTimeout = 2 * time.Second

// Redis implements Cache over a shared Redis client.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client. All keys are namespaced under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return val, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *Redis) DelPattern(ctx context.Context, pattern string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	iter := r.client.Scan(ctx, 0, r.key(pattern), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Disabled is the no-op cache used when Redis is unreachable at startup.
// Reads always miss and writes are dropped, so the read/write path keeps
// functioning without a cache.
type Disabled struct{}

func (Disabled) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (Disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Disabled) Del(context.Context, ...string) error                     { return nil }
func (Disabled) DelPattern(context.Context, string) error                 { return nil }
