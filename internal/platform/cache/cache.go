// Package cache holds short-lived response entries in a fixed-size
// in-process cache.
package cache

import (
	"time"
	"unsafe"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog"
)

// Cache stores opaque values for a bounded time.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
}

// New returns a freecache-backed cache of sizeMB megabytes whose entries
// expire after ttl. A non-positive size disables caching.
func New(sizeMB int, ttl time.Duration, logger zerolog.Logger) Cache {
	if sizeMB <= 0 {
		logger.Info().Msg("response cache disabled")
		return noopCache{}
	}
	seconds := max(int(ttl.Seconds()), 1)
	logger.Info().Int("size_mb", sizeMB).Int("ttl_seconds", seconds).Msg("response cache initialized")
	return &FreeCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   seconds,
	}
}

// FreeCache is a Cache over coocood/freecache.
type FreeCache struct {
	cache *freecache.Cache
	ttl   int
}

// unsafeStringToBytes converts s without allocating. freecache copies keys,
// so the result is never written to.
func unsafeStringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func (c *FreeCache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get(unsafeStringToBytes(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores value under key. Entries larger than 1/1024 of the cache size
// are rejected with freecache.ErrLargeEntry.
func (c *FreeCache) Set(key string, value []byte) error {
	return c.cache.Set(unsafeStringToBytes(key), value, c.ttl)
}

// EntryCount returns the number of live entries.
func (c *FreeCache) EntryCount() int64 {
	return c.cache.EntryCount()
}

type noopCache struct{}

func (noopCache) Get(_ string) ([]byte, bool) { return nil, false }
func (noopCache) Set(_ string, _ []byte) error { return nil }
