// Package nodestore provides persistent content-addressed storage for trie
// records. Records are keyed by the keccak-256 hash of their data, and the
// package offers pluggable backends, record caching, and compression.
package nodestore

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Kind tells what a stored record holds.
type Kind uint8

const (
	// KindUnknown represents an unknown or invalid record
	KindUnknown Kind = 0
	// KindTrieNode represents a serialized trie node message
	KindTrieNode Kind = 1
	// KindValue represents an out-of-line trie value
	KindValue Kind = 2
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "Unknown"
	case KindTrieNode:
		return "TrieNode"
	case KindValue:
		return "Value"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Node is a stored record with its content hash.
type Node struct {
	Kind Kind        // What the data encodes
	Hash common.Hash // Keccak-256 of Data, the storage key
	Data []byte      // Raw record bytes
}

// NewNode creates a record of the given kind, hashing data for its key.
func NewNode(kind Kind, data []byte) *Node {
	return &Node{
		Kind: kind,
		Hash: crypto.Keccak256Hash(data),
		Data: data,
	}
}

// Size returns the size of the record data in bytes.
func (n *Node) Size() int {
	return len(n.Data)
}

// IsValid returns true if the record has a known kind and its hash matches
// its data.
func (n *Node) IsValid() bool {
	if n == nil {
		return false
	}
	if n.Kind != KindTrieNode && n.Kind != KindValue {
		return false
	}
	if len(n.Data) == 0 {
		return false
	}
	return n.Hash == crypto.Keccak256Hash(n.Data)
}

// Database defines the main interface for the NodeStore.
type Database interface {
	// Store persists a record.
	Store(ctx context.Context, node *Node) error

	// StoreBatch stores multiple records in a single backend operation.
	StoreBatch(ctx context.Context, nodes []*Node) error

	// Fetch retrieves a record by hash. A missing record yields nil, nil.
	Fetch(ctx context.Context, hash common.Hash) (*Node, error)

	// FetchBatch retrieves multiple records; missing ones are nil entries.
	FetchBatch(ctx context.Context, hashes []common.Hash) ([]*Node, error)

	// Contains reports whether a record is stored under hash.
	Contains(ctx context.Context, hash common.Hash) (bool, error)

	// ForEach visits every stored record.
	ForEach(ctx context.Context, fn func(*Node) error) error

	// Stats returns performance statistics.
	Stats() Statistics

	// Close gracefully closes the database and releases resources.
	Close() error

	// Sync forces any pending writes to be flushed to disk.
	Sync() error
}

// Statistics holds performance metrics for the NodeStore.
type Statistics struct {
	// Read metrics
	Reads       uint64 // Total number of read operations
	CacheHits   uint64 // Number of successful cache hits
	CacheMisses uint64 // Number of cache misses
	NegativeHit uint64 // Reads answered by the missing-record cache
	ReadBytes   uint64 // Total bytes read

	// Write metrics
	Writes     uint64 // Total number of write operations
	WriteBytes uint64 // Total bytes written

	// Cache metrics
	CacheSize    uint64 // Current number of items in cache
	CacheMaxSize uint64 // Maximum cache size

	BackendName string // Name of the storage backend
}

// String returns a formatted string representation of the statistics.
func (s Statistics) String() string {
	cacheHitRate := float64(0)
	if s.Reads > 0 {
		cacheHitRate = float64(s.CacheHits) / float64(s.Reads) * 100
	}

	return fmt.Sprintf(`NodeStore Statistics:
  Backend: %s
  Reads: %d (%.2f%% cache hit rate, %d known missing)
  Cache: %d/%d items
  Writes: %d
  Read Bytes: %d
  Write Bytes: %d`,
		s.BackendName,
		s.Reads, cacheHitRate, s.NegativeHit,
		s.CacheSize, s.CacheMaxSize,
		s.Writes,
		s.ReadBytes,
		s.WriteBytes)
}

// Status represents the status of a backend operation.
type Status int

const (
	// OK indicates the operation was successful
	OK Status = iota
	// NotFound indicates the requested object was not found
	NotFound
	// DataCorrupt indicates the stored data is corrupted
	DataCorrupt
	// BackendError indicates an error in the storage backend
	BackendError
	// Unknown indicates an unknown error occurred
	Unknown
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case DataCorrupt:
		return "DataCorrupt"
	case BackendError:
		return "BackendError"
	case Unknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Backend defines the interface for storage backends.
type Backend interface {
	// Name returns a human-readable name for this backend.
	Name() string

	// Open opens the backend for use.
	Open(createIfMissing bool) error

	// Close closes the backend and releases resources.
	Close() error

	// IsOpen returns true if the backend is currently open.
	IsOpen() bool

	// Fetch retrieves a single object by key.
	Fetch(key common.Hash) (*Node, Status)

	// FetchBatch retrieves multiple objects efficiently.
	FetchBatch(keys []common.Hash) ([]*Node, Status)

	// Store saves a single object.
	Store(node *Node) Status

	// StoreBatch saves multiple objects efficiently.
	StoreBatch(nodes []*Node) Status

	// Sync forces pending writes to be flushed.
	Sync() Status

	// ForEach iterates over all objects in the backend.
	ForEach(fn func(*Node) error) error
}
