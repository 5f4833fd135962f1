package nodestore

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/ethereum/go-ethereum/common"
)

const (
	pebbleCacheSize    = 128 << 20
	pebbleMemTableSize = 64 << 20
)

// PebbleBackend stores records in a PebbleDB instance.
type PebbleBackend struct {
	db     *pebble.DB
	codec  recordCodec
	config *Config

	open atomic.Bool

	stats struct {
		reads        atomic.Int64
		writes       atomic.Int64
		bytesRead    atomic.Int64
		bytesWritten atomic.Int64
	}
}

// NewPebbleBackend creates a new PebbleDB backend.
func NewPebbleBackend(config *Config) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}
	codec, err := newRecordCodec(config)
	if err != nil {
		return nil, err
	}
	return &PebbleBackend{codec: codec, config: config}, nil
}

// Name returns the name of this backend.
func (p *PebbleBackend) Name() string {
	return fmt.Sprintf("pebble(%s)", p.config.Path)
}

// Open opens the backend for use.
func (p *PebbleBackend) Open(createIfMissing bool) error {
	if !p.open.CompareAndSwap(false, true) {
		return ErrBackendOpen
	}

	if createIfMissing {
		if err := os.MkdirAll(p.config.Path, 0755); err != nil {
			p.open.Store(false)
			return fmt.Errorf("failed to create directory %s: %w", p.config.Path, err)
		}
	}

	cache := pebble.NewCache(pebbleCacheSize)
	defer cache.Unref()

	db, err := pebble.Open(p.config.Path, p.buildOptions(cache, createIfMissing))
	if err != nil {
		p.open.Store(false)
		return fmt.Errorf("failed to open PebbleDB at %s: %w", p.config.Path, err)
	}
	p.db = db
	return nil
}

// buildOptions tunes pebble for point lookups by hash with app-level
// compression.
func (p *PebbleBackend) buildOptions(cache *pebble.Cache, createIfMissing bool) *pebble.Options {
	opts := &pebble.Options{
		Cache:                       cache,
		ErrorIfNotExists:            !createIfMissing,
		MaxOpenFiles:                1000,
		MemTableSize:                pebbleMemTableSize,
		MemTableStopWritesThreshold: 4,
		MaxConcurrentCompactions: func() int {
			return runtime.NumCPU()
		},
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 20,
		LBaseMaxBytes:         256 << 20,
		Levels:                make([]pebble.LevelOptions, 7),
	}

	for i := range opts.Levels {
		opts.Levels[i] = pebble.LevelOptions{
			BlockSize:      32 << 10,
			IndexBlockSize: 256 << 10,
			FilterPolicy:   bloom.FilterPolicy(10),
			FilterType:     pebble.TableFilter,
			TargetFileSize: int64(8<<20) << uint(i),
			Compression:    pebble.NoCompression,
		}
		if opts.Levels[i].TargetFileSize > 256<<20 {
			opts.Levels[i].TargetFileSize = 256 << 20
		}
	}
	return opts
}

// Close flushes and closes the database.
func (p *PebbleBackend) Close() error {
	if !p.open.CompareAndSwap(true, false) {
		return nil
	}
	if p.db == nil {
		return nil
	}

	err := p.db.Flush()
	if closeErr := p.db.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	p.db = nil
	return err
}

// IsOpen returns true if the backend is currently open.
func (p *PebbleBackend) IsOpen() bool {
	return p.open.Load()
}

// Fetch retrieves a single object by key.
func (p *PebbleBackend) Fetch(key common.Hash) (*Node, Status) {
	if !p.IsOpen() {
		return nil, BackendError
	}

	value, closer, err := p.db.Get(key[:])
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, NotFound
		}
		return nil, BackendError
	}
	defer closer.Close()

	node, err := p.codec.decode(key, value)
	if err != nil {
		return nil, DataCorrupt
	}

	p.stats.reads.Add(1)
	p.stats.bytesRead.Add(int64(len(value)))
	return node, OK
}

// FetchBatch retrieves multiple objects.
func (p *PebbleBackend) FetchBatch(keys []common.Hash) ([]*Node, Status) {
	if !p.IsOpen() {
		return nil, BackendError
	}

	results := make([]*Node, len(keys))
	for i, key := range keys {
		node, status := p.Fetch(key)
		switch status {
		case OK:
			results[i] = node
		case NotFound:
		default:
			return nil, status
		}
	}
	return results, OK
}

// Store saves a single object without waiting for the WAL to sync.
func (p *PebbleBackend) Store(node *Node) Status {
	if node == nil || !p.IsOpen() {
		return BackendError
	}

	value, err := p.codec.encode(node)
	if err != nil {
		return BackendError
	}
	if err := p.db.Set(node.Hash[:], value, pebble.NoSync); err != nil {
		return BackendError
	}

	p.stats.writes.Add(1)
	p.stats.bytesWritten.Add(int64(len(value)))
	return OK
}

// StoreBatch saves multiple objects in one atomic batch.
func (p *PebbleBackend) StoreBatch(nodes []*Node) Status {
	if !p.IsOpen() {
		return BackendError
	}
	if len(nodes) == 0 {
		return OK
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	var totalBytes int64
	for _, node := range nodes {
		if node == nil {
			continue
		}
		value, err := p.codec.encode(node)
		if err != nil {
			return BackendError
		}
		if err := batch.Set(node.Hash[:], value, nil); err != nil {
			return BackendError
		}
		totalBytes += int64(len(value))
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		return BackendError
	}

	p.stats.writes.Add(int64(len(nodes)))
	p.stats.bytesWritten.Add(totalBytes)
	return OK
}

// Sync flushes memtables to disk.
func (p *PebbleBackend) Sync() Status {
	if !p.IsOpen() {
		return BackendError
	}
	if err := p.db.Flush(); err != nil {
		return BackendError
	}
	return OK
}

// ForEach iterates over all records in key order.
func (p *PebbleBackend) ForEach(fn func(*Node) error) error {
	if !p.IsOpen() {
		return ErrBackendClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != common.HashLength {
			continue
		}
		hash := common.BytesToHash(key)
		node, err := p.codec.decode(hash, iter.Value())
		if err != nil {
			return NewError("foreach", p.Name(), hash, err)
		}
		if err := fn(node); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Info returns information about this backend.
func (p *PebbleBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "pebble",
		Description: "LSM-tree database backend",
		Persistent:  true,
		Compression: p.codec.compressor.Name() != "none",
	}
}
