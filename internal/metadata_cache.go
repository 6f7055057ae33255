package internal

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// MetadataCache is the TTL store for VideoRecords. Every record is stored
// under both its original URL and its videoId, and concurrent misses for the
// same key coalesce into one computation.
type MetadataCache struct {
	store *gocache.Cache
	group singleflight.Group
}

// NewMetadataCache creates a cache with the given TTL. Expired entries are
// treated as misses on read; physical removal is the janitor's job.
func NewMetadataCache(ttl time.Duration) *MetadataCache {
	return &MetadataCache{store: gocache.New(ttl, 0)}
}

// Get returns the live record for a URL or videoId key.
func (c *MetadataCache) Get(key string) (*VideoRecord, bool) {
	if item, found := c.store.Get(key); found {
		if rec, ok := item.(*VideoRecord); ok {
			return rec, true
		}
	}
	return nil, false
}

// Put stores the record under both its URL and videoId keys.
func (c *MetadataCache) Put(rec *VideoRecord) {
	if rec.OriginalURL != "" {
		c.store.SetDefault(rec.OriginalURL, rec)
	}
	if rec.VideoID != "" {
		c.store.SetDefault(rec.VideoID, rec)
	}
}

// DeleteExpired physically removes expired entries.
func (c *MetadataCache) DeleteExpired() {
	c.store.DeleteExpired()
}

// Len returns the number of stored entries (URL and videoId keys counted
// separately, possibly including not-yet-swept expired ones).
func (c *MetadataCache) Len() int {
	return c.store.ItemCount()
}

// GetOrCompute returns the cached record for key or runs fn once, sharing the
// pending result with every concurrent caller of the same key. The computed
// record is stored under both keys. A failed computation is not cached: the
// in-flight slot clears and the next caller retries. The second return value
// reports whether fn actually ran for this caller.
func (c *MetadataCache) GetOrCompute(key string, fn func() (*VideoRecord, error)) (*VideoRecord, bool, error) {
	if rec, ok := c.Get(key); ok {
		return rec, false, nil
	}
	computed := false
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: a racing caller may have populated it.
		if rec, ok := c.Get(key); ok {
			return rec, nil
		}
		computed = true
		rec, err := fn()
		if err != nil {
			return nil, err
		}
		c.Put(rec)
		return rec, nil
	})
	if err != nil {
		return nil, computed, err
	}
	return v.(*VideoRecord), computed, nil
}
