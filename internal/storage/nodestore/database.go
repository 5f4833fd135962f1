package nodestore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const negativeCacheTTL = time.Minute

// DatabaseImpl wraps a Backend to implement the Database interface.
type DatabaseImpl struct {
	backend  Backend
	cache    *Cache
	negative *NegativeCache
	stats    struct {
		reads       atomic.Uint64
		cacheHits   atomic.Uint64
		cacheMisses atomic.Uint64
		negativeHit atomic.Uint64
		writes      atomic.Uint64
		readBytes   atomic.Uint64
		writeBytes  atomic.Uint64
	}
}

// NewDatabase creates a new Database from an open Backend. A cacheSize of
// zero disables record caching.
func NewDatabase(backend Backend, cacheSize int, cacheTTL time.Duration) *DatabaseImpl {
	d := &DatabaseImpl{
		backend:  backend,
		negative: NewNegativeCache(negativeCacheTTL),
	}
	if cacheSize > 0 {
		d.cache = NewCache(cacheSize, cacheTTL)
	}
	return d
}

// Backend returns the wrapped backend.
func (d *DatabaseImpl) Backend() Backend {
	return d.backend
}

// Store persists a record.
func (d *DatabaseImpl) Store(ctx context.Context, node *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if node == nil {
		return ErrInvalidNode
	}

	if err := statusError(d.backend.Name(), "store", node.Hash, d.backend.Store(node)); err != nil {
		return err
	}
	d.stored(node)
	return nil
}

// StoreBatch stores multiple records in one backend operation.
func (d *DatabaseImpl) StoreBatch(ctx context.Context, nodes []*Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := statusError(d.backend.Name(), "store batch", common.Hash{}, d.backend.StoreBatch(nodes)); err != nil {
		return err
	}
	for _, node := range nodes {
		if node != nil {
			d.stored(node)
		}
	}
	return nil
}

func (d *DatabaseImpl) stored(node *Node) {
	d.stats.writes.Add(1)
	d.stats.writeBytes.Add(uint64(len(node.Data)))
	d.negative.Remove(node.Hash)
	if d.cache != nil {
		d.cache.Put(node)
	}
}

// Fetch retrieves a record by its hash. A missing record yields nil, nil.
func (d *DatabaseImpl) Fetch(ctx context.Context, hash common.Hash) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.stats.reads.Add(1)

	if d.cache != nil {
		if node, found := d.cache.Get(hash); found {
			d.stats.cacheHits.Add(1)
			return node, nil
		}
		d.stats.cacheMisses.Add(1)
	}
	if d.negative.IsMissing(hash) {
		d.stats.negativeHit.Add(1)
		return nil, nil
	}

	node, status := d.backend.Fetch(hash)
	switch status {
	case OK:
	case NotFound:
		d.negative.MarkMissing(hash)
		return nil, nil
	default:
		return nil, statusError(d.backend.Name(), "fetch", hash, status)
	}

	d.stats.readBytes.Add(uint64(len(node.Data)))
	if d.cache != nil {
		d.cache.Put(node)
	}
	return node, nil
}

// FetchBatch retrieves multiple records; missing ones are nil entries.
func (d *DatabaseImpl) FetchBatch(ctx context.Context, hashes []common.Hash) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodes, status := d.backend.FetchBatch(hashes)
	if status != OK && status != NotFound {
		return nil, statusError(d.backend.Name(), "fetch batch", common.Hash{}, status)
	}
	return nodes, nil
}

// Contains reports whether a record is stored under hash.
func (d *DatabaseImpl) Contains(ctx context.Context, hash common.Hash) (bool, error) {
	if d.cache != nil && d.cache.Contains(hash) {
		return true, nil
	}
	node, err := d.Fetch(ctx, hash)
	return node != nil, err
}

// ForEach visits every stored record.
func (d *DatabaseImpl) ForEach(ctx context.Context, fn func(*Node) error) error {
	return d.backend.ForEach(func(node *Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(node)
	})
}

// Stats returns performance statistics.
func (d *DatabaseImpl) Stats() Statistics {
	stats := Statistics{
		Reads:       d.stats.reads.Load(),
		CacheHits:   d.stats.cacheHits.Load(),
		CacheMisses: d.stats.cacheMisses.Load(),
		NegativeHit: d.stats.negativeHit.Load(),
		ReadBytes:   d.stats.readBytes.Load(),
		Writes:      d.stats.writes.Load(),
		WriteBytes:  d.stats.writeBytes.Load(),
		BackendName: d.backend.Name(),
	}

	if d.cache != nil {
		cacheStats := d.cache.Stats()
		stats.CacheSize = uint64(cacheStats.CurrentSize)
		stats.CacheMaxSize = uint64(cacheStats.MaxSize)
	}
	return stats
}

// Close gracefully closes the database.
func (d *DatabaseImpl) Close() error {
	if d.cache != nil {
		d.cache.Clear()
	}
	d.negative.Clear()
	return d.backend.Close()
}

// Sync forces pending writes to disk.
func (d *DatabaseImpl) Sync() error {
	return statusError(d.backend.Name(), "sync", common.Hash{}, d.backend.Sync())
}
