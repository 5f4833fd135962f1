package trie

import "github.com/ethereum/go-ethereum/common"

//go:generate mockgen -source store.go -destination store_mocks.go -package trie

// Store is the content-addressed persistence a trie reads through and
// flushes into.
type Store interface {
	ValueReader

	// Save persists n and every dirty in-memory descendant, children first.
	// Nodes already marked saved are skipped; the empty node is never written.
	Save(n *Node) error

	// Write persists the message of n and its long value, if any, without
	// descending into children or consulting the saved flag.
	Write(n *Node) error

	// Retrieve returns the node stored under hash. A miss is a
	// StoreConsistencyError.
	Retrieve(hash common.Hash) (*Node, error)

	// Contains reports whether a record exists under hash.
	Contains(hash common.Hash) (bool, error)

	// Codec returns the node format of the store.
	Codec() Codec
}
