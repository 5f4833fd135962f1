package nodestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"
)

const boltFileName = "records.db"

var boltBucket = []byte("records")

// BoltBackend stores records in a single bbolt bucket.
type BoltBackend struct {
	db     *bbolt.DB
	codec  recordCodec
	config *Config

	open atomic.Bool
}

// NewBoltBackend creates a new bbolt backend. The database file lives inside
// the configured directory.
func NewBoltBackend(config *Config) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}
	codec, err := newRecordCodec(config)
	if err != nil {
		return nil, err
	}
	return &BoltBackend{codec: codec, config: config}, nil
}

// Name returns the name of this backend.
func (b *BoltBackend) Name() string {
	return fmt.Sprintf("bolt(%s)", b.config.Path)
}

// Open opens the backend for use.
func (b *BoltBackend) Open(createIfMissing bool) error {
	if !b.open.CompareAndSwap(false, true) {
		return ErrBackendOpen
	}

	file := filepath.Join(b.config.Path, boltFileName)
	if createIfMissing {
		if err := os.MkdirAll(b.config.Path, 0755); err != nil {
			b.open.Store(false)
			return fmt.Errorf("failed to create directory %s: %w", b.config.Path, err)
		}
	} else if _, err := os.Stat(file); err != nil {
		b.open.Store(false)
		return fmt.Errorf("bolt database %s: %w", file, err)
	}

	db, err := bbolt.Open(file, 0600, &bbolt.Options{Timeout: time.Second, NoSync: true})
	if err != nil {
		b.open.Store(false)
		return fmt.Errorf("failed to open bolt database %s: %w", file, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		b.open.Store(false)
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	b.db = db
	return nil
}

// Close syncs and closes the database.
func (b *BoltBackend) Close() error {
	if !b.open.CompareAndSwap(true, false) {
		return nil
	}
	err := b.db.Sync()
	if closeErr := b.db.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	b.db = nil
	return err
}

// IsOpen returns true if the backend is currently open.
func (b *BoltBackend) IsOpen() bool {
	return b.open.Load()
}

// Fetch retrieves a single object by key.
func (b *BoltBackend) Fetch(key common.Hash) (*Node, Status) {
	if !b.IsOpen() {
		return nil, BackendError
	}

	var node *Node
	status := OK
	err := b.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(boltBucket).Get(key[:])
		if value == nil {
			status = NotFound
			return nil
		}
		// decode copies out of the mmap before the transaction ends
		n, err := b.codec.decode(key, value)
		if err != nil {
			status = DataCorrupt
			return nil
		}
		node = n
		return nil
	})
	if err != nil {
		return nil, BackendError
	}
	return node, status
}

// FetchBatch retrieves multiple objects in one read transaction.
func (b *BoltBackend) FetchBatch(keys []common.Hash) ([]*Node, Status) {
	if !b.IsOpen() {
		return nil, BackendError
	}

	results := make([]*Node, len(keys))
	status := OK
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for i, key := range keys {
			value := bucket.Get(key[:])
			if value == nil {
				continue
			}
			n, err := b.codec.decode(key, value)
			if err != nil {
				status = DataCorrupt
				return nil
			}
			results[i] = n
		}
		return nil
	})
	if err != nil {
		return nil, BackendError
	}
	if status != OK {
		return nil, status
	}
	return results, OK
}

// Store saves a single object.
func (b *BoltBackend) Store(node *Node) Status {
	if node == nil {
		return BackendError
	}
	return b.StoreBatch([]*Node{node})
}

// StoreBatch saves multiple objects in one write transaction.
func (b *BoltBackend) StoreBatch(nodes []*Node) Status {
	if !b.IsOpen() {
		return BackendError
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, node := range nodes {
			if node == nil {
				continue
			}
			value, err := b.codec.encode(node)
			if err != nil {
				return err
			}
			if err := bucket.Put(node.Hash[:], value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return BackendError
	}
	return OK
}

// Sync fsyncs the database file.
func (b *BoltBackend) Sync() Status {
	if !b.IsOpen() {
		return BackendError
	}
	if err := b.db.Sync(); err != nil {
		return BackendError
	}
	return OK
}

// ForEach iterates over all records in key order inside one read
// transaction.
func (b *BoltBackend) ForEach(fn func(*Node) error) error {
	if !b.IsOpen() {
		return ErrBackendClosed
	}

	return b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(k, v []byte) error {
			if len(k) != common.HashLength {
				return nil
			}
			hash := common.BytesToHash(k)
			node, err := b.codec.decode(hash, v)
			if err != nil {
				return NewError("foreach", b.Name(), hash, err)
			}
			return fn(node)
		})
	})
}

// Info returns information about this backend.
func (b *BoltBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "bolt",
		Description: "bbolt B+tree backend",
		Persistent:  true,
		Compression: b.codec.compressor.Name() != "none",
	}
}
