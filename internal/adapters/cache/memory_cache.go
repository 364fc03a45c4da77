package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kceleski/agent-healthproassist-sub000/internal/domain/providers"
)

// MemoryCache is an in-process CacheProvider used when Redis is disabled.
// Entries share one ttl; the per-call ttl is ignored.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache creates an LRU cache holding at most size entries for ttl
func NewMemoryCache(size int, ttl time.Duration) providers.CacheProvider {
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

// Set stores a value in cache
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Delete removes a value from cache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}
