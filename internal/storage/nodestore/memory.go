package nodestore

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryBackend implements an in-memory Backend.
// It is safe for concurrent use and serves tests and ephemeral tries.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[common.Hash]*Node

	open atomic.Bool

	stats struct {
		reads        atomic.Int64
		writes       atomic.Int64
		bytesRead    atomic.Int64
		bytesWritten atomic.Int64
	}
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[common.Hash]*Node),
	}
}

// NewMemoryBackendFromConfig creates a new in-memory backend from config.
// The config is ignored for memory backends but required for the BackendFactory signature.
func NewMemoryBackendFromConfig(config *Config) (Backend, error) {
	return NewMemoryBackend(), nil
}

// Name returns the name of this backend.
func (m *MemoryBackend) Name() string {
	return "memory"
}

// Open opens the backend for use.
func (m *MemoryBackend) Open(createIfMissing bool) error {
	if !m.open.CompareAndSwap(false, true) {
		return ErrBackendOpen
	}
	return nil
}

// Close closes the backend and clears all data.
func (m *MemoryBackend) Close() error {
	if !m.open.CompareAndSwap(true, false) {
		return nil
	}

	m.mu.Lock()
	m.data = make(map[common.Hash]*Node)
	m.mu.Unlock()
	return nil
}

// IsOpen returns true if the backend is currently open.
func (m *MemoryBackend) IsOpen() bool {
	return m.open.Load()
}

func cloneNode(node *Node) *Node {
	return &Node{Kind: node.Kind, Hash: node.Hash, Data: common.CopyBytes(node.Data)}
}

// Fetch retrieves a single object by key.
func (m *MemoryBackend) Fetch(key common.Hash) (*Node, Status) {
	if !m.IsOpen() {
		return nil, BackendError
	}

	m.mu.RLock()
	node, found := m.data[key]
	m.mu.RUnlock()

	if !found {
		return nil, NotFound
	}

	m.stats.reads.Add(1)
	m.stats.bytesRead.Add(int64(len(node.Data)))
	return cloneNode(node), OK
}

// FetchBatch retrieves multiple objects efficiently.
func (m *MemoryBackend) FetchBatch(keys []common.Hash) ([]*Node, Status) {
	if !m.IsOpen() {
		return nil, BackendError
	}

	results := make([]*Node, len(keys))

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, key := range keys {
		if node, found := m.data[key]; found {
			results[i] = cloneNode(node)
			m.stats.reads.Add(1)
			m.stats.bytesRead.Add(int64(len(node.Data)))
		}
	}

	return results, OK
}

// Store saves a single object.
func (m *MemoryBackend) Store(node *Node) Status {
	if node == nil || !m.IsOpen() {
		return BackendError
	}

	m.mu.Lock()
	m.data[node.Hash] = cloneNode(node)
	m.mu.Unlock()

	m.stats.writes.Add(1)
	m.stats.bytesWritten.Add(int64(len(node.Data)))
	return OK
}

// StoreBatch saves multiple objects under one lock.
func (m *MemoryBackend) StoreBatch(nodes []*Node) Status {
	if !m.IsOpen() {
		return BackendError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, node := range nodes {
		if node == nil {
			continue
		}
		m.data[node.Hash] = cloneNode(node)
		m.stats.writes.Add(1)
		m.stats.bytesWritten.Add(int64(len(node.Data)))
	}
	return OK
}

// Sync forces pending writes to be flushed (no-op for memory backend).
func (m *MemoryBackend) Sync() Status {
	if !m.IsOpen() {
		return BackendError
	}
	return OK
}

// ForEach iterates over all objects in the backend.
func (m *MemoryBackend) ForEach(fn func(*Node) error) error {
	if !m.IsOpen() {
		return ErrBackendClosed
	}

	m.mu.RLock()
	snapshot := make([]*Node, 0, len(m.data))
	for _, node := range m.data {
		snapshot = append(snapshot, node)
	}
	m.mu.RUnlock()

	for _, node := range snapshot {
		if err := fn(cloneNode(node)); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a record by its hash.
func (m *MemoryBackend) Delete(hash common.Hash) Status {
	if !m.IsOpen() {
		return BackendError
	}

	m.mu.Lock()
	delete(m.data, hash)
	m.mu.Unlock()
	return OK
}

// Size returns the number of records stored in the backend.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// BackendStats holds statistics for a backend.
type BackendStats struct {
	Reads        int64 // Number of read operations
	Writes       int64 // Number of write operations
	BytesRead    int64 // Total bytes read
	BytesWritten int64 // Total bytes written
	NodeCount    int64 // Number of records stored
}

// Stats returns performance statistics.
func (m *MemoryBackend) Stats() BackendStats {
	return BackendStats{
		Reads:        m.stats.reads.Load(),
		Writes:       m.stats.writes.Load(),
		BytesRead:    m.stats.bytesRead.Load(),
		BytesWritten: m.stats.bytesWritten.Load(),
		NodeCount:    int64(m.Size()),
	}
}

// Info returns information about this backend.
func (m *MemoryBackend) Info() BackendInfo {
	return BackendInfo{
		Name:        "memory",
		Description: "In-memory storage backend",
		Persistent:  false,
		Compression: false,
	}
}
