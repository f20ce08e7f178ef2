// Package cache provides a thread-safe, in-memory key-value store with
// TTL-based expiration and size-bounded eviction.
package cache

import (
	"sort"
	"sync"
	"time"

	"imagevault/pkg/logger"
	"imagevault/pkg/utils"
)

const (
	DefaultMaxSize = 16 // MB
	DefaultTTL     = 10 * time.Minute

	// GCInterval: Expired items cleanup frequency.
	GCInterval = 5 * time.Minute
)

type Options struct {
	Enabled     bool
	MaxCapacity int // MB
	TTL         time.Duration
}

type Item struct {
	Value     string
	ExpiresAt time.Time
	Size      int64
}

type MemoryCache struct {
	sync.RWMutex
	items     map[string]Item
	totalSize int64
	maxSize   int64
	ttl       time.Duration
	enabled   bool

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// New initializes the in-memory cache. When enabled it starts a background
// worker that drops expired items; call Close to stop it.
func New(opts Options) *MemoryCache {
	limitMB := int64(opts.MaxCapacity)
	if limitMB <= 0 {
		limitMB = DefaultMaxSize
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &MemoryCache{
		maxSize: limitMB * 1024 * 1024,
		ttl:     ttl,
		enabled: opts.Enabled,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	if c.enabled {
		c.items = make(map[string]Item)
		go c.startGC()
		logger.LogInfo("URL Cache Initialized: %d MB Limit, TTL: %s", limitMB, ttl)
	} else {
		logger.LogWarn("URL Cache is DISABLED via config (Running in pass-through mode).")
	}
	return c
}

// Set stores a value with the configured TTL.
func (c *MemoryCache) Set(key, value string) {
	if !c.enabled {
		return
	}

	c.Lock()
	defer c.Unlock()

	size := int64(len(key) + len(value))

	// A single item shouldn't take more than half of the cache.
	if size > c.maxSize/2 {
		return
	}

	if oldItem, exists := c.items[key]; exists {
		c.totalSize -= oldItem.Size
		delete(c.items, key)
	}

	if c.totalSize+size > c.maxSize {
		c.prune()
	}

	c.items[key] = Item{
		Value:     value,
		ExpiresAt: c.now().Add(c.ttl),
		Size:      size,
	}
	c.totalSize += size
}

// Get retrieves an item if it exists and hasn't expired.
func (c *MemoryCache) Get(key string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	c.RLock()
	defer c.RUnlock()

	item, found := c.items[key]
	if !found {
		return "", false
	}
	if c.now().After(item.ExpiresAt) {
		return "", false
	}
	return item.Value, true
}

// Delete explicitly removes an item from the cache.
func (c *MemoryCache) Delete(key string) {
	if !c.enabled {
		return
	}

	c.Lock()
	defer c.Unlock()

	if item, found := c.items[key]; found {
		delete(c.items, key)
		c.totalSize -= item.Size
	}
}

// Len returns the number of stored items, expired ones included until GC runs.
func (c *MemoryCache) Len() int {
	c.RLock()
	defer c.RUnlock()
	return len(c.items)
}

// Close stops the background worker. Safe to call more than once.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

// prune evicts items that expire soonest until usage drops below 80%.
// Caller holds the write lock.
func (c *MemoryCache) prune() {
	if len(c.items) == 0 {
		return
	}

	targetSize := int64(float64(c.maxSize) * 0.80)

	type candidate struct {
		Key       string
		ExpiresAt time.Time
		Size      int64
	}

	candidates := make([]candidate, 0, len(c.items))
	for k, v := range c.items {
		candidates = append(candidates, candidate{k, v.ExpiresAt, v.Size})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
	})

	for _, cand := range candidates {
		if c.totalSize <= targetSize {
			break
		}

		delete(c.items, cand.Key)
		c.totalSize -= cand.Size
	}
}

// removeExpired drops expired items and reports how many bytes were freed.
func (c *MemoryCache) removeExpired() (int, int64) {
	c.Lock()
	defer c.Unlock()

	now := c.now()
	removedCount := 0
	removedBytes := int64(0)
	for k, v := range c.items {
		if now.After(v.ExpiresAt) {
			delete(c.items, k)
			c.totalSize -= v.Size
			removedBytes += v.Size
			removedCount++
		}
	}
	return removedCount, removedBytes
}

func (c *MemoryCache) startGC() {
	ticker := time.NewTicker(GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n, freed := c.removeExpired(); n > 0 {
				logger.LogDebug("[CACHE] GC: Cleaned %d items (%s freed)", n, utils.FormatBytes(freed))
			}
		}
	}
}
