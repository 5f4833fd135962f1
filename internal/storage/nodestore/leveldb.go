package nodestore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBBackend stores records in a goleveldb database.
type LevelDBBackend struct {
	db     *leveldb.DB
	codec  recordCodec
	config *Config

	open atomic.Bool
}

// NewLevelDBBackend creates a new LevelDB backend.
func NewLevelDBBackend(config *Config) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}
	codec, err := newRecordCodec(config)
	if err != nil {
		return nil, err
	}
	return &LevelDBBackend{codec: codec, config: config}, nil
}

// Name returns the name of this backend.
func (l *LevelDBBackend) Name() string {
	return fmt.Sprintf("leveldb(%s)", l.config.Path)
}

// Open opens the backend for use.
func (l *LevelDBBackend) Open(createIfMissing bool) error {
	if !l.open.CompareAndSwap(false, true) {
		return ErrBackendOpen
	}

	db, err := leveldb.OpenFile(l.config.Path, &opt.Options{
		ErrorIfMissing: !createIfMissing,
		Filter:         filter.NewBloomFilter(10),
		// records are compressed before they reach leveldb
		Compression: opt.NoCompression,
	})
	if err != nil {
		l.open.Store(false)
		return fmt.Errorf("failed to open LevelDB at %s: %w", l.config.Path, err)
	}
	l.db = db
	return nil
}

// Close closes the database.
func (l *LevelDBBackend) Close() error {
	if !l.open.CompareAndSwap(true, false) {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// IsOpen returns true if the backend is currently open.
func (l *LevelDBBackend) IsOpen() bool {
	return l.open.Load()
}

// Fetch retrieves a single object by key.
func (l *LevelDBBackend) Fetch(key common.Hash) (*Node, Status) {
	if !l.IsOpen() {
		return nil, BackendError
	}

	data, err := l.db.Get(key[:], nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, NotFound
	}
	if err != nil {
		return nil, BackendError
	}

	node, err := l.codec.decode(key, data)
	if err != nil {
		return nil, DataCorrupt
	}
	return node, OK
}

// FetchBatch retrieves multiple objects.
func (l *LevelDBBackend) FetchBatch(keys []common.Hash) ([]*Node, Status) {
	if !l.IsOpen() {
		return nil, BackendError
	}

	results := make([]*Node, len(keys))
	for i, key := range keys {
		node, status := l.Fetch(key)
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

// Store saves a single object.
func (l *LevelDBBackend) Store(node *Node) Status {
	if node == nil || !l.IsOpen() {
		return BackendError
	}

	value, err := l.codec.encode(node)
	if err != nil {
		return BackendError
	}
	if err := l.db.Put(node.Hash[:], value, nil); err != nil {
		return BackendError
	}
	return OK
}

// StoreBatch saves multiple objects in one leveldb batch.
func (l *LevelDBBackend) StoreBatch(nodes []*Node) Status {
	if !l.IsOpen() {
		return BackendError
	}

	batch := new(leveldb.Batch)
	for _, node := range nodes {
		if node == nil {
			continue
		}
		value, err := l.codec.encode(node)
		if err != nil {
			return BackendError
		}
		batch.Put(node.Hash[:], value)
	}
	if batch.Len() == 0 {
		return OK
	}
	if err := l.db.Write(batch, nil); err != nil {
		return BackendError
	}
	return OK
}

// Sync is a no-op: leveldb writes through its journal on every Put.
func (l *LevelDBBackend) Sync() Status {
	if !l.IsOpen() {
		return BackendError
	}
	return OK
}

// ForEach iterates over all records in key order.
func (l *LevelDBBackend) ForEach(fn func(*Node) error) error {
	if !l.IsOpen() {
		return ErrBackendClosed
	}

	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		key := iter.Key()
		if len(key) != common.HashLength {
			continue
		}
		hash := common.BytesToHash(key)
		node, err := l.codec.decode(hash, iter.Value())
		if err != nil {
			return NewError("foreach", l.Name(), hash, err)
		}
		if err := fn(node); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Info returns information about this backend.
func (l *LevelDBBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "leveldb",
		Description: "goleveldb LSM-tree backend",
		Persistent:  true,
		Compression: l.codec.compressor.Name() != "none",
	}
}
