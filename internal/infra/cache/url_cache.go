package cache

import (
	"context"
	"sync"
	"time"
)

// CacheEntry represents a cached URL with expiration
type CacheEntry struct {
	URL        string
	ExpiryTime time.Time
}

// URLCache provides thread-safe in-process URL caching
type URLCache struct {
	cache map[string]CacheEntry
	mutex sync.RWMutex
	now   func() time.Time
}

// NewURLCache creates a new URL cache instance
func NewURLCache() *URLCache {
	return &URLCache{
		cache: make(map[string]CacheEntry),
		now:   time.Now,
	}
}

// Get retrieves a URL from cache if not expired
func (c *URLCache) Get(ctx context.Context, key string) (string, bool) {
	c.mutex.RLock()
	entry, found := c.cache[key]
	c.mutex.RUnlock()

	if found && c.now().Before(entry.ExpiryTime) {
		return entry.URL, true
	}

	return "", false
}

// Set stores a URL in cache with expiration time
func (c *URLCache) Set(ctx context.Context, key string, url string, expiry time.Time) error {
	c.mutex.Lock()
	c.cache[key] = CacheEntry{
		URL:        url,
		ExpiryTime: expiry,
	}
	c.mutex.Unlock()
	return nil
}

// Delete drops key whether or not it has expired
func (c *URLCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	delete(c.cache, key)
	c.mutex.Unlock()
	return nil
}

// Clear removes expired entries from cache
func (c *URLCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	for key, entry := range c.cache {
		if c.now().After(entry.ExpiryTime) {
			delete(c.cache, key)
		}
	}
	c.mutex.Unlock()
	return nil
}
