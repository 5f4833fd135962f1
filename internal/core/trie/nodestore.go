package trie

import (
	"context"
	"fmt"

	"github.com/LeJamon/goUnitrie/internal/storage/nodestore"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// DefaultNodeCacheSize is the number of decoded nodes a NodeStore keeps.
	DefaultNodeCacheSize = 8192

	saveBatchSize = 4096
)

// NodeStore persists trie nodes and long values in a nodestore.Database,
// keyed by their keccak hashes. It keeps recently decoded nodes so that
// repeated descents share one in-memory node per hash.
type NodeStore struct {
	db     nodestore.Database
	codec  Codec
	cache  *lru.Cache[common.Hash, *Node]
	logger *zap.Logger
}

// NodeStoreOption configures a NodeStore.
type NodeStoreOption func(*nodeStoreConfig)

type nodeStoreConfig struct {
	codec     Codec
	cacheSize int
	logger    *zap.Logger
}

// WithNodeCodec selects the node format. The default is CanonicalCodec.
func WithNodeCodec(c Codec) NodeStoreOption {
	return func(cfg *nodeStoreConfig) {
		cfg.codec = c
	}
}

// WithNodeCacheSize sets how many decoded nodes are kept.
func WithNodeCacheSize(size int) NodeStoreOption {
	return func(cfg *nodeStoreConfig) {
		cfg.cacheSize = size
	}
}

// WithLogger sets the logger used for store faults and flushes.
func WithLogger(l *zap.Logger) NodeStoreOption {
	return func(cfg *nodeStoreConfig) {
		cfg.logger = l
	}
}

// NewNodeStore returns a Store over db.
func NewNodeStore(db nodestore.Database, opts ...NodeStoreOption) (*NodeStore, error) {
	cfg := nodeStoreConfig{
		codec:     CanonicalCodec,
		cacheSize: DefaultNodeCacheSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache, err := lru.New[common.Hash, *Node](cfg.cacheSize)
	if err != nil {
		return nil, err
	}
	return &NodeStore{
		db:     db,
		codec:  cfg.codec,
		cache:  cache,
		logger: cfg.logger.With(zap.String("codec", cfg.codec.Name())),
	}, nil
}

// NewMemoryNodeStore returns a NodeStore over a fresh in-memory database.
func NewMemoryNodeStore(opts ...NodeStoreOption) (*NodeStore, error) {
	backend := nodestore.NewMemoryBackend()
	if err := backend.Open(true); err != nil {
		return nil, err
	}
	return NewNodeStore(nodestore.NewDatabase(backend, 0, 0), opts...)
}

// Codec returns the node format of the store.
func (s *NodeStore) Codec() Codec {
	return s.codec
}

// Database returns the underlying record database.
func (s *NodeStore) Database() nodestore.Database {
	return s.db
}

// Save persists n and its dirty in-memory descendants in batches, children
// ahead of parents, and marks them saved once durable.
func (s *NodeStore) Save(n *Node) error {
	if n == nil || n.IsSaved() || n.IsEmpty() {
		return nil
	}

	dirty, err := s.dirtyNodes(n)
	if err != nil {
		return err
	}

	ctx := context.Background()
	records := make([]*nodestore.Node, 0, saveBatchSize)
	flushed := 0
	for i, d := range dirty {
		recs, err := s.records(ctx, d)
		if err != nil {
			return err
		}
		records = append(records, recs...)
		if len(records) >= saveBatchSize || i == len(dirty)-1 {
			if err := s.db.StoreBatch(ctx, records); err != nil {
				return err
			}
			for _, done := range dirty[flushed : i+1] {
				done.MarkSaved()
				s.cache.Add(done.Hash(), done)
			}
			flushed = i + 1
			records = records[:0]
		}
	}

	s.logger.Debug("saved trie nodes",
		zap.Stringer("root", n.Hash()),
		zap.Int("nodes", len(dirty)))
	return nil
}

// dirtyNodes lists the unsaved nodes reachable from n through loaded
// children, in post-order.
func (s *NodeStore) dirtyNodes(n *Node) ([]*Node, error) {
	type entry struct {
		node     *Node
		expanded bool
	}
	var out []*Node
	stack := []entry{{node: n}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.expanded {
			out = append(out, e.node)
			continue
		}
		stack = append(stack, entry{node: e.node, expanded: true})
		for i := 0; i < Arity; i++ {
			c := e.node.LoadedChild(i)
			if c != nil && !c.IsSaved() && !c.IsEmpty() {
				stack = append(stack, entry{node: c})
			}
		}
	}
	return out, nil
}

// Write persists the message of n and its long value without looking at
// children or the saved flag.
func (s *NodeStore) Write(n *Node) error {
	if n == nil || n.IsEmpty() {
		return nil
	}
	ctx := context.Background()
	records, err := s.records(ctx, n)
	if err != nil {
		return err
	}
	return s.db.StoreBatch(ctx, records)
}

// records returns the store records of n: its message and, when held in
// memory, its long value. A long value neither in memory nor in the store
// is a consistency fault.
func (s *NodeStore) records(ctx context.Context, n *Node) ([]*nodestore.Node, error) {
	out := []*nodestore.Node{{
		Kind: nodestore.KindTrieNode,
		Hash: n.Hash(),
		Data: s.codec.Encode(n),
	}}
	if !n.value.IsLong() {
		return out, nil
	}

	if body := n.LoadedBody(); body != nil {
		return append(out, &nodestore.Node{
			Kind: nodestore.KindValue,
			Hash: n.value.hash,
			Data: body,
		}), nil
	}
	present, err := s.db.Contains(ctx, n.value.hash)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, s.fault(n.value.hash, "value")
	}
	return out, nil
}

// Retrieve returns the node stored under hash.
func (s *NodeStore) Retrieve(hash common.Hash) (*Node, error) {
	if n, ok := s.cache.Get(hash); ok {
		return n, nil
	}

	rec, err := s.db.Fetch(context.Background(), hash)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, s.fault(hash, "node")
	}
	if rec.Kind != nodestore.KindTrieNode {
		s.logger.Error("record is not a trie node", zap.Stringer("hash", hash), zap.Stringer("kind", rec.Kind))
		return nil, &SerializationError{Codec: s.codec.Name(), Reason: fmt.Sprintf("record %s holds a %s", hash.Hex(), rec.Kind)}
	}

	n, err := s.codec.Decode(rec.Data, s)
	if err != nil {
		s.logger.Error("undecodable trie node", zap.Stringer("hash", hash), zap.Error(err))
		return nil, err
	}
	n.hash.Store(&hash)
	n.MarkSaved()
	s.cache.Add(hash, n)
	return n, nil
}

// RetrieveValue returns the long value stored under hash.
func (s *NodeStore) RetrieveValue(hash common.Hash) ([]byte, error) {
	rec, err := s.db.Fetch(context.Background(), hash)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, s.fault(hash, "value")
	}
	return rec.Data, nil
}

// Contains reports whether a node or value is stored under hash.
func (s *NodeStore) Contains(hash common.Hash) (bool, error) {
	if s.cache.Contains(hash) {
		return true, nil
	}
	return s.db.Contains(context.Background(), hash)
}

// CheckRecord decodes a trie node record with the store's codec. It serves
// as the content check of a store verification.
func (s *NodeStore) CheckRecord(rec *nodestore.Node) error {
	if rec.Kind != nodestore.KindTrieNode {
		return nil
	}
	_, err := s.codec.Decode(rec.Data, s)
	return err
}

// Sync flushes the underlying database.
func (s *NodeStore) Sync() error {
	return s.db.Sync()
}

func (s *NodeStore) fault(hash common.Hash, what string) error {
	s.logger.Error("store consistency fault", zap.String("what", what), zap.Stringer("hash", hash))
	return &StoreConsistencyError{Hash: hash, What: what}
}
