package tmdb

import (
	"time"

	"github.com/coocood/freecache"
)

// Cache stores encoded lookup results. Implementations must be safe for concurrent use.
// Entries older than the TTL passed to Set must not be returned by Get.
type Cache interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) (value []byte, found bool)
}

// DefaultCacheSize is the size of an InMemoryCache created with size 0.
const DefaultCacheSize = 8 * 1024 * 1024

// Minimum size of a freecache cache.
const minCacheSize = 512 * 1024

// InMemoryCache is a Cache with bounded memory.
// When it's full the oldest entries are evicted, expired entries are dropped lazily.
type InMemoryCache struct {
	cache *freecache.Cache
}

var _ Cache = (*InMemoryCache)(nil)

// NewInMemoryCache creates a new InMemoryCache with the given size in bytes.
// 0 means DefaultCacheSize, other sizes below 512 KiB are raised to 512 KiB.
func NewInMemoryCache(size int) *InMemoryCache {
	return &InMemoryCache{cache: freecache.NewCache(cacheSize(size))}
}

func newInMemoryCacheWithTimer(size int, timer freecache.Timer) *InMemoryCache {
	return &InMemoryCache{cache: freecache.NewCacheCustomTimer(cacheSize(size), timer)}
}

func cacheSize(size int) int {
	switch {
	case size == 0:
		return DefaultCacheSize
	case size < minCacheSize:
		return minCacheSize
	}
	return size
}

// Set stores a value. TTLs below one second are raised to one second.
func (c *InMemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return c.cache.Set([]byte(key), value, seconds)
}

// Get returns a value that hasn't expired yet.
func (c *InMemoryCache) Get(key string) ([]byte, bool) {
	value, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return value, true
}
