package extract

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/thebtf/remote/pkg/models"
)

const (
	// DefaultCacheSize bounds the number of cached extractions.
	DefaultCacheSize = 10000

	cacheEvictionPercent = 10
)

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// Cache memoizes extraction results per (source, reference day, text).
// Concurrent identical extractions are coalesced into one.
type Cache struct {
	entries map[string]models.ExtractedEntities
	group   singleflight.Group
	maxSize int
	hits    int64
	misses  int64
	mu      sync.RWMutex
}

// NewCache creates a cache holding at most maxSize entries (DefaultCacheSize when <= 0).
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		entries: make(map[string]models.ExtractedEntities),
		maxSize: maxSize,
	}
}

// Extract returns the cached entities of text, extracting them on a miss.
// The returned value is a copy the caller may modify.
func (c *Cache) Extract(ex *Extractor, text string, ref time.Time) models.ExtractedEntities {
	// The source pointer identifies one compiled config; a reload yields a new key space.
	key := fmt.Sprintf("%p|%s|%s", ex.Source(), models.TruncateDay(ref).Format(time.DateOnly), text)

	if cached, ok := c.get(key); ok {
		atomic.AddInt64(&c.hits, 1)
		return cached.Clone()
	}
	atomic.AddInt64(&c.misses, 1)

	v, _, _ := c.group.Do(key, func() (any, error) {
		entities := ex.Extract(text, ref)
		c.put(key, entities)
		return entities, nil
	})
	return v.(models.ExtractedEntities).Clone()
}

// Stats returns hit/miss counters and the current size.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Size:   size,
	}
}

func (c *Cache) get(key string) (models.ExtractedEntities, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entities, ok := c.entries[key]
	return entities, ok
}

func (c *Cache) put(key string, entities models.ExtractedEntities) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random, which is good enough for eviction here.
	if len(c.entries) >= c.maxSize {
		evictCount := max(c.maxSize*cacheEvictionPercent/100, 1)
		evicted := 0
		for k := range c.entries {
			delete(c.entries, k)
			evicted++
			if evicted >= evictCount {
				break
			}
		}
	}
	c.entries[key] = entities
}
