package nodestore

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NegativeCache tracks hashes known to be missing from the store, so repeated
// Contains probes during a copy do not hit the backend. Stores of a hash
// must call Remove.
type NegativeCache struct {
	entries *expirable.LRU[common.Hash, struct{}]
	ttl     time.Duration

	stats struct {
		hits       atomic.Int64
		misses     atomic.Int64
		insertions atomic.Int64
	}
}

// NegativeCacheConfig holds configuration for the negative cache.
type NegativeCacheConfig struct {
	// TTL is the time-to-live for negative cache entries.
	TTL time.Duration

	// MaxSize is the maximum number of entries to cache (0 = unlimited).
	MaxSize int
}

// DefaultNegativeCacheConfig returns a NegativeCacheConfig with sensible defaults.
func DefaultNegativeCacheConfig() *NegativeCacheConfig {
	return &NegativeCacheConfig{
		TTL:     5 * time.Minute,
		MaxSize: 100000,
	}
}

// NewNegativeCache creates a new negative cache with the given TTL.
func NewNegativeCache(ttl time.Duration) *NegativeCache {
	return NewNegativeCacheWithConfig(&NegativeCacheConfig{
		TTL:     ttl,
		MaxSize: 100000,
	})
}

// NewNegativeCacheWithConfig creates a new negative cache with the given configuration.
func NewNegativeCacheWithConfig(config *NegativeCacheConfig) *NegativeCache {
	if config == nil {
		config = DefaultNegativeCacheConfig()
	}
	return &NegativeCache{
		entries: expirable.NewLRU[common.Hash, struct{}](config.MaxSize, nil, config.TTL),
		ttl:     config.TTL,
	}
}

// MarkMissing records that a hash is not present in the store.
func (nc *NegativeCache) MarkMissing(hash common.Hash) {
	if !nc.entries.Contains(hash) {
		nc.stats.insertions.Add(1)
	}
	nc.entries.Add(hash, struct{}{})
}

// IsMissing reports whether hash is known to be missing.
func (nc *NegativeCache) IsMissing(hash common.Hash) bool {
	if _, ok := nc.entries.Get(hash); ok {
		nc.stats.hits.Add(1)
		return true
	}
	nc.stats.misses.Add(1)
	return false
}

// Remove forgets hash. It must be called when the hash is stored.
func (nc *NegativeCache) Remove(hash common.Hash) {
	nc.entries.Remove(hash)
}

// Clear removes all entries.
func (nc *NegativeCache) Clear() {
	nc.entries.Purge()
}

// Size returns the number of tracked hashes.
func (nc *NegativeCache) Size() int {
	return nc.entries.Len()
}

// Stats returns negative cache statistics.
func (nc *NegativeCache) Stats() NegativeCacheStats {
	return NegativeCacheStats{
		Hits:       nc.stats.hits.Load(),
		Misses:     nc.stats.misses.Load(),
		Insertions: nc.stats.insertions.Load(),
		Size:       nc.entries.Len(),
		TTL:        nc.ttl,
	}
}

// NegativeCacheStats holds statistics about negative cache performance.
type NegativeCacheStats struct {
	Hits       int64         // Probes answered as missing
	Misses     int64         // Probes not in the cache
	Insertions int64         // Entries added
	Size       int           // Current number of entries
	TTL        time.Duration // Time to live for entries
}

// HitRate returns the hit rate as a percentage.
func (s NegativeCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// String returns a string representation of the statistics.
func (s NegativeCacheStats) String() string {
	return fmt.Sprintf(`Negative Cache Statistics:
  Size: %d entries (TTL %v)
  Hits: %d, Misses: %d (%.2f%% hit rate)
  Insertions: %d`,
		s.Size, s.TTL,
		s.Hits, s.Misses, s.HitRate(),
		s.Insertions)
}
