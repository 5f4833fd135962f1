package nodestore

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a size-bounded LRU of fetched records whose entries expire after
// a TTL. A zero TTL keeps entries until evicted by size.
type Cache struct {
	lru     *expirable.LRU[common.Hash, *Node]
	maxSize int
	ttl     time.Duration

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewCache creates a new LRU cache with the specified configuration.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	c := &Cache{maxSize: maxSize, ttl: ttl}
	c.lru = expirable.NewLRU[common.Hash, *Node](maxSize, func(common.Hash, *Node) {
		c.evictions.Add(1)
	}, ttl)
	return c
}

// Get retrieves a record from the cache.
func (c *Cache) Get(hash common.Hash) (*Node, bool) {
	node, ok := c.lru.Get(hash)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return node, true
}

// Contains reports whether hash is cached without touching recency or stats.
func (c *Cache) Contains(hash common.Hash) bool {
	return c.lru.Contains(hash)
}

// Put stores a record in the cache.
func (c *Cache) Put(node *Node) {
	if node == nil {
		return
	}
	c.lru.Add(node.Hash, node)
}

// Remove removes a record from the cache.
func (c *Cache) Remove(hash common.Hash) {
	c.lru.Remove(hash)
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Size returns the current number of items in the cache.
func (c *Cache) Size() int {
	return c.lru.Len()
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: c.lru.Len(),
		MaxSize:     c.maxSize,
		TTL:         c.ttl,
	}
}

// CacheStats holds statistics about cache performance.
type CacheStats struct {
	Hits        uint64        // Number of cache hits
	Misses      uint64        // Number of cache misses
	Evictions   uint64        // Entries dropped by size, age or removal
	CurrentSize int           // Current number of items
	MaxSize     int           // Maximum number of items
	TTL         time.Duration // Time to live for entries
}

// HitRate returns the cache hit rate as a percentage.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// String returns a string representation of the cache statistics.
func (s CacheStats) String() string {
	return fmt.Sprintf(`Cache Statistics:
  Size: %d/%d items
  Hits: %d, Misses: %d (%.2f%% hit rate)
  Evictions: %d
  TTL: %v`,
		s.CurrentSize, s.MaxSize,
		s.Hits, s.Misses, s.HitRate(),
		s.Evictions,
		s.TTL)
}
