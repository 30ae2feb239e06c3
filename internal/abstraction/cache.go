package abstraction

import (
	"sync"
	"time"

	"harmonia/internal/types"
)

// ResultCache caches unified requirement sets keyed by
// (sorted frameworkIDs, categoryLabel). The pipeline is deterministic,
// so duplicate concurrent computation of the same key is harmless: the
// later insert overwrites with an identical value. Only the map itself
// is locked; misses compute without holding anything.
type ResultCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	maxSize int
}

type cacheEntry struct {
	set      types.UnifiedRequirementSet
	inserted time.Time
}

// NewResultCache creates a cache holding at most maxSize entries.
// maxSize <= 0 means unbounded.
func NewResultCache(maxSize int) *ResultCache {
	return &ResultCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
	}
}

// Get retrieves a cached set.
func (c *ResultCache) Get(key string) (types.UnifiedRequirementSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return types.UnifiedRequirementSet{}, false
	}
	return entry.set, true
}

// Set stores a set, evicting the oldest entry at capacity.
func (c *ResultCache) Set(key string, set types.UnifiedRequirementSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		if _, exists := c.entries[key]; !exists {
			c.evictOldest()
		}
	}

	c.entries[key] = &cacheEntry{set: set, inserted: time.Now()}
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear empties the cache.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// evictOldest removes the oldest cache entry. Caller holds the lock.
func (c *ResultCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.inserted.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.inserted
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
