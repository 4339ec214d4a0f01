package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"shortlink/internal/types"
)

// ErrMiss reports that a key is absent, as opposed to Redis being down.
var ErrMiss = errors.New("cache miss")

type Cache struct {
	rdb *redis.Client
}

func ConnectRedis(url, password string) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{rdb: rdb}, nil
}

func resolveKey(host, path string) string {
	return "resolve:" + host + "/" + path
}

// GetResolved returns the cached resolution of a (host, path) pair.
// A miss surfaces as ErrMiss.
func (c *Cache) GetResolved(ctx context.Context, host, path string) (*types.LinkCache, error) {
	raw, err := c.rdb.Get(ctx, resolveKey(host, path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	var lc types.LinkCache
	if err := json.Unmarshal(raw, &lc); err != nil {
		return nil, err
	}
	return &lc, nil
}

func (c *Cache) SetResolved(ctx context.Context, host, path string, lc *types.LinkCache, expiration time.Duration) error {
	raw, err := json.Marshal(lc)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, resolveKey(host, path), raw, expiration).Err()
}

// DeleteResolved drops the cache entry for a (host, path) pair. Required on
// disable, update and delete: a disabled link must never resolve from cache.
func (c *Cache) DeleteResolved(ctx context.Context, host, path string) error {
	return c.rdb.Del(ctx, resolveKey(host, path)).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
