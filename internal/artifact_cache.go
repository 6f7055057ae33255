package internal

import (
	"os"
	"sort"
	"sync"
	"time"
)

// ArtifactCache indexes generated preview files on disk. Entries expire after
// the TTL and aggregate size is kept under a ceiling by evicting oldest-first
// down to a target fraction.
type ArtifactCache struct {
	mu       sync.Mutex
	dir      string
	ttl      time.Duration
	maxBytes int64
	entries  map[string]*ArtifactFile
	now      func() time.Time
}

// evictTarget is the fill fraction a size-ceiling eviction pass drives down to.
const evictTarget = 0.8

func NewArtifactCache(dir string, ttl time.Duration, maxBytes int64) *ArtifactCache {
	return &ArtifactCache{
		dir:      dir,
		ttl:      ttl,
		maxBytes: maxBytes,
		entries:  make(map[string]*ArtifactFile),
		now:      time.Now,
	}
}

// Dir returns the directory artifacts are written into.
func (c *ArtifactCache) Dir() string { return c.dir }

// Get returns the live artifact for a videoId. Expired entries and entries
// whose backing file vanished are treated as misses and dropped.
func (c *ArtifactCache) Get(videoID string) (*ArtifactFile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	art, ok := c.entries[videoID]
	if !ok {
		return nil, false
	}
	if c.now().Sub(art.CreatedAt) >= c.ttl {
		delete(c.entries, videoID)
		os.Remove(art.Path)
		return nil, false
	}
	if _, err := os.Stat(art.Path); err != nil {
		delete(c.entries, videoID)
		return nil, false
	}
	return art, true
}

// Put registers a freshly generated file.
func (c *ArtifactCache) Put(videoID, path string, sizeBytes int64) *ArtifactFile {
	art := &ArtifactFile{
		VideoID:   videoID,
		Path:      path,
		SizeBytes: sizeBytes,
		CreatedAt: c.now(),
	}
	c.mu.Lock()
	c.entries[videoID] = art
	c.mu.Unlock()
	return art
}

// Sweep removes expired artifacts, then enforces the size ceiling
// oldest-first. Returns the evicted entries.
func (c *ArtifactCache) Sweep() []*ArtifactFile {
	c.mu.Lock()
	now := c.now()
	var doomed []*ArtifactFile
	var live []*ArtifactFile
	var total int64
	for id, art := range c.entries {
		if now.Sub(art.CreatedAt) >= c.ttl {
			doomed = append(doomed, art)
			delete(c.entries, id)
			continue
		}
		live = append(live, art)
		total += art.SizeBytes
	}
	if c.maxBytes > 0 && total > c.maxBytes {
		sort.Slice(live, func(i, j int) bool {
			return live[i].CreatedAt.Before(live[j].CreatedAt)
		})
		target := int64(float64(c.maxBytes) * evictTarget)
		for _, art := range live {
			if total <= target {
				break
			}
			doomed = append(doomed, art)
			delete(c.entries, art.VideoID)
			total -= art.SizeBytes
		}
	}
	c.mu.Unlock()
	for _, art := range doomed {
		os.Remove(art.Path)
	}
	return doomed
}

// Len returns the number of indexed artifacts.
func (c *ArtifactCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TotalBytes returns aggregate artifact size on disk.
func (c *ArtifactCache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, art := range c.entries {
		total += art.SizeBytes
	}
	return total
}
