// Package cache wraps ristretto with a fixed TTL for computed account
// metrics. Writes against an account invalidate its keys so the next read
// recomputes from the store.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

type Cache struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func New(maxCost int64, ttl time.Duration) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

func (c *Cache) Get(key string) (any, bool) { return c.c.Get(key) }

func (c *Cache) Set(key string, val any) {
	c.c.SetWithTTL(key, val, 1, c.ttl)
	// Sets are buffered; flush so a read right after a write sees the value.
	c.c.Wait()
}

func (c *Cache) Del(key string) { c.c.Del(key) }

func (c *Cache) Close() { c.c.Close() }
