package memory

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Cache is a process-local stand-in for the Redis cache.
type Cache struct {
	mu   sync.Mutex
	rows map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{rows: map[string]cacheEntry{}}
}

func (c *Cache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.rows[key]
	if !ok {
		return "", nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.rows, key)
		return "", nil
	}
	return entry.value, nil
}

func (c *Cache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.rows[key] = entry
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.rows, key)
	}
	return nil
}

func (c *Cache) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	if entry, ok := c.rows[key]; ok && (entry.expiresAt.IsZero() || time.Now().Before(entry.expiresAt)) {
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	entry := cacheEntry{value: strconv.FormatInt(n, 10)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.rows[key] = entry
	return n, nil
}
