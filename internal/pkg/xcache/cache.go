// Package xcache builds gocache caches backed by memory, redis, or both.
package xcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/pkg/xredis"
)

type Cache[T any] = cachelib.CacheInterface[T]

type SetterCache[T any] = cachelib.SetterCacheInterface[T]

// IsNotFound reports a cache miss from any of the backends.
func IsNotFound(err error) bool {
	return errors.Is(err, store.NotFound{}) || errors.Is(err, redis.Nil)
}

func NewMemory[T any](defaultExpiration, cleanupInterval time.Duration) SetterCache[T] {
	client := gocache.New(defaultExpiration, cleanupInterval)
	return cachelib.New[T](gocache_store.NewGoCache(client, store.WithExpiration(defaultExpiration)))
}

func NewRedis[T any](client *redis.Client, expiration time.Duration) SetterCache[T] {
	return cachelib.New[T](redis_store.NewRedis(client, store.WithExpiration(expiration)))
}

// NewTwoLevel reads memory first and falls back to redis, back-filling memory on a hit.
func NewTwoLevel[T any](memory, remote SetterCache[T]) Cache[T] {
	return cachelib.NewChain[T](memory, remote)
}

// NewFromConfig builds the cache for cfg.Mode; an empty mode means memory.
// The returned close function releases the redis client, if any.
func NewFromConfig[T any](ctx context.Context, cfg Config) (Cache[T], func() error, error) {
	noopClose := func() error { return nil }

	memExpiration := defaultIfZero(cfg.Memory.Expiration, 5*time.Minute)
	memCleanup := defaultIfZero(cfg.Memory.CleanupInterval, 10*time.Minute)

	mode := cfg.Mode
	if mode == "" {
		mode = ModeMemory
	}

	switch mode {
	case ModeMemory:
		log.Info(ctx, "using memory cache")
		return NewMemory[T](memExpiration, memCleanup), noopClose, nil
	case ModeRedis, ModeTwoLevel:
		if !cfg.Redis.IsSet() {
			return nil, nil, fmt.Errorf("cache mode %s requires redis config", mode)
		}

		client, err := xredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}

		rds := NewRedis[T](client, defaultIfZero(cfg.Redis.Expiration, 30*time.Minute))

		if mode == ModeRedis {
			log.Info(ctx, "using redis cache")
			return rds, client.Close, nil
		}

		log.Info(ctx, "using two-level cache")

		return NewTwoLevel[T](NewMemory[T](memExpiration, memCleanup), rds), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache mode: %s", cfg.Mode)
	}
}

func defaultIfZero(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}

	return d
}
