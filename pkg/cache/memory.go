// Package cache stores extracted page content by exact URL for a short TTL.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// DefaultTTL is how long fetched page content stays fresh
const DefaultTTL = 5 * time.Minute

type entry struct {
	content  *domain.ExtractedContent
	storedAt time.Time
}

// MemoryCache is an in-process content cache. Expired entries are evicted when read.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an empty cache; a non-positive ttl uses DefaultTTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the cache's time source
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

// Get returns the content cached for url while it is fresh
func (c *MemoryCache) Get(_ context.Context, url string) (*domain.ExtractedContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, url)
		return nil, false
	}
	return e.content, true
}

// Set stores content under its URL. The last writer wins.
func (c *MemoryCache) Set(_ context.Context, content *domain.ExtractedContent) error {
	if content == nil || content.URL == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[content.URL] = entry{content: content, storedAt: c.now()}
	return nil
}

// Len returns the number of stored entries, fresh or not
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
