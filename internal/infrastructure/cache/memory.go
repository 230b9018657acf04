package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/giftfinder/scraper/internal/domain"
)

// cacheItem represents a single item in the cache with expiration
type cacheItem struct {
	key        string
	value      interface{}
	expiration time.Time
}

// MemoryCache is a thread-safe in-memory cache with per-entry TTL and a
// max-size bound. Once full, the least-recently-used entry is evicted; reads
// count as use.
type MemoryCache struct {
	data    map[string]*list.Element
	lru     *list.List // front = most recently used
	maxSize int
	mutex   sync.Mutex
}

// NewMemoryCache creates a new bounded in-memory cache. A non-positive
// maxSize falls back to 500 entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 500
	}

	cache := &MemoryCache{
		data:    make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
	}

	// Sweep expired entries every 10 minutes
	go cache.cleanupExpired()

	return cache
}

// Get retrieves a value from the cache and marks it recently used.
func (c *MemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	elem, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}

	item := elem.Value.(*cacheItem)
	if time.Now().After(item.expiration) {
		c.removeElement(elem)
		return nil, domain.ErrCacheMiss
	}

	c.lru.MoveToFront(elem)
	return item.value, nil
}

// Set stores a value in the cache with TTL, evicting the least-recently-used
// entry if the cache is full.
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	expiration := time.Now().Add(ttl)

	if elem, exists := c.data[key]; exists {
		item := elem.Value.(*cacheItem)
		item.value = value
		item.expiration = expiration
		c.lru.MoveToFront(elem)
		return nil
	}

	if c.lru.Len() >= c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	elem := c.lru.PushFront(&cacheItem{key: key, value: value, expiration: expiration})
	c.data[key] = elem
	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if elem, exists := c.data[key]; exists {
		c.removeElement(elem)
	}
	return nil
}

// Exists checks if a key exists in the cache and is not expired. It does not
// refresh recency.
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	elem, exists := c.data[key]
	if !exists {
		return false, nil
	}
	return !time.Now().After(elem.Value.(*cacheItem).expiration), nil
}

// removeElement drops an entry. Caller must hold the mutex.
func (c *MemoryCache) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.data, elem.Value.(*cacheItem).key)
}

// cleanupExpired removes expired entries from the cache periodically
func (c *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mutex.Lock()
		now := time.Now()
		var next *list.Element
		for elem := c.lru.Front(); elem != nil; elem = next {
			next = elem.Next()
			if now.After(elem.Value.(*cacheItem).expiration) {
				c.removeElement(elem)
			}
		}
		c.mutex.Unlock()
	}
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.data)
}

// Clear removes all items from the cache.
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]*list.Element)
	c.lru.Init()
}
