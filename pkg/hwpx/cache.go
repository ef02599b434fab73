package hwpx

import (
	"container/list"
	"sync"
	"time"
)

// CacheConfig contains configuration options for the byte cache
type CacheConfig struct {
	// MaxSize is the maximum number of entries to cache. 0 disables caching.
	MaxSize int
	// TTL is the time-to-live for cached entries. 0 means no expiration.
	TTL time.Duration
}

// ByteCache is an LRU cache of immutable byte slices with optional expiry.
// It holds raw container bytes only; parsed trees are never shared across
// merges.
type ByteCache struct {
	mu     sync.Mutex
	cache  map[string]*cacheEntry
	lru    *list.List
	config CacheConfig
	now    func() time.Time
}

type cacheEntry struct {
	key     string
	data    []byte
	expiry  time.Time
	element *list.Element
}

// NewByteCache creates a new cache with the given configuration
func NewByteCache(config CacheConfig) *ByteCache {
	return &ByteCache{
		cache:  make(map[string]*cacheEntry),
		lru:    list.New(),
		config: config,
		now:    time.Now,
	}
}

// Get retrieves an entry without loading it
func (c *ByteCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.cache[key]
	if !exists {
		return nil, false
	}

	if c.expired(entry) {
		c.removeLocked(entry)
		return nil, false
	}

	c.lru.MoveToFront(entry.element)
	return entry.data, true
}

// Set adds an entry to the cache
func (c *ByteCache) Set(key string, data []byte) {
	if c.config.MaxSize == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.cache[key]; exists {
		existing.data = data
		existing.expiry = c.expiryFromNow()
		c.lru.MoveToFront(existing.element)
		return
	}

	// Evict least recently used
	for c.lru.Len() >= c.config.MaxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*cacheEntry))
	}

	entry := &cacheEntry{
		key:    key,
		data:   data,
		expiry: c.expiryFromNow(),
	}
	entry.element = c.lru.PushFront(entry)
	c.cache[key] = entry
}

// GetOrLoad returns the cached entry for key, calling load on a miss and
// caching its result when it succeeds.
func (c *ByteCache) GetOrLoad(key string, load func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.Get(key); ok {
		return data, nil
	}

	data, err := load()
	if err != nil {
		return nil, err
	}

	c.Set(key, data)
	return data, nil
}

// Remove removes an entry from the cache
func (c *ByteCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.cache[key]; exists {
		c.removeLocked(entry)
	}
}

// Clear removes all entries from the cache
func (c *ByteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cacheEntry)
	c.lru = list.New()
}

// Size returns the current number of cached entries
func (c *ByteCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *ByteCache) removeLocked(entry *cacheEntry) {
	delete(c.cache, entry.key)
	c.lru.Remove(entry.element)
}

func (c *ByteCache) expired(entry *cacheEntry) bool {
	return c.config.TTL > 0 && c.now().After(entry.expiry)
}

func (c *ByteCache) expiryFromNow() time.Time {
	if c.config.TTL > 0 {
		return c.now().Add(c.config.TTL)
	}
	return time.Time{}
}
