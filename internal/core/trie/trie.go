// Package trie implements a binary, path-compressed, content-addressed trie.
//
// A Trie is an immutable value: Put and Delete return a new Trie sharing every
// untouched subtree with the receiver, so any held Trie stays valid and
// unaffected by later mutations. Nodes are hashed over their own serialized
// message, whose layout is chosen by the Codec of the trie's Store.
package trie

import (
	"bytes"
	"fmt"

	"github.com/LeJamon/goUnitrie/internal/core/trie/pathcodec"
	"github.com/ethereum/go-ethereum/common"
)

// Trie is a root node together with the store its hashed children live in.
type Trie struct {
	root   *Node // nil for the empty trie
	store  Store
	codec  Codec
	secure bool
}

// Option configures a Trie.
type Option func(*Trie)

// WithStore backs the trie by s and adopts the store's codec.
func WithStore(s Store) Option {
	return func(t *Trie) {
		t.store = s
		if s != nil {
			t.codec = s.Codec()
		}
	}
}

// WithSecure marks nodes created by the trie as secure.
func WithSecure(secure bool) Option {
	return func(t *Trie) {
		t.secure = secure
	}
}

// WithCodec sets the node format of a trie without a store. A trie with a
// store always uses the store's codec.
func WithCodec(c Codec) Option {
	return func(t *Trie) {
		t.codec = c
	}
}

// New returns an empty trie.
func New(opts ...Option) *Trie {
	t := &Trie{codec: CanonicalCodec}
	for _, opt := range opts {
		opt(t)
	}
	if t.store != nil {
		t.codec = t.store.Codec()
	}
	return t
}

// Open returns the trie rooted at root in store.
func Open(store Store, root common.Hash, secure bool) (*Trie, error) {
	return New(WithStore(store), WithSecure(secure)).SnapshotTo(root)
}

func (t *Trie) with(root *Node) *Trie {
	if root != nil && root.IsEmpty() {
		root = nil
	}
	return &Trie{root: root, store: t.store, codec: t.codec, secure: t.secure}
}

// Root returns the root node, or nil for the empty trie.
func (t *Trie) Root() *Node {
	return t.root
}

// Store returns the backing store, possibly nil.
func (t *Trie) Store() Store {
	return t.store
}

// HasStore reports whether the trie is backed by a store.
func (t *Trie) HasStore() bool {
	return t.store != nil
}

// IsSecure reports whether the trie hashes its keys.
func (t *Trie) IsSecure() bool {
	return t.secure
}

// IsEmpty reports whether the trie holds no key.
func (t *Trie) IsEmpty() bool {
	return t.root == nil
}

// Hash returns the root hash. The empty trie hashes to EmptyHash.
func (t *Trie) Hash() common.Hash {
	if t.root == nil {
		return EmptyHash
	}
	return t.root.Hash()
}

// Get returns a copy of the value stored under key, or nil.
func (t *Trie) Get(key []byte) ([]byte, error) {
	n, err := t.find(pathcodec.Expand(key))
	if err != nil || n == nil {
		return nil, err
	}
	v, err := n.valueBytes(t.store)
	if err != nil {
		return nil, err
	}
	return common.CopyBytes(v), nil
}

// ValueLength returns the length of the value under key without fetching a
// long value. Zero means absent.
func (t *Trie) ValueLength(key []byte) (int, error) {
	n, err := t.find(pathcodec.Expand(key))
	if err != nil || n == nil {
		return 0, err
	}
	return n.value.Len(), nil
}

// ValueHash returns the keccak hash of the value under key and whether a
// value is present.
func (t *Trie) ValueHash(key []byte) (common.Hash, bool, error) {
	n, err := t.find(pathcodec.Expand(key))
	if err != nil || n == nil {
		return common.Hash{}, false, err
	}
	h, ok := n.value.Hash()
	return h, ok, nil
}

// Put returns a trie mapping key to value. An empty or nil value deletes key.
func (t *Trie) Put(key, value []byte) (*Trie, error) {
	if len(key) > MaxKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrKeyTooLong, len(key))
	}
	if len(value) > MaxValueSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrValueTooLong, len(value))
	}
	var body []byte
	v := valueOf(value)
	if v.IsLong() {
		body = common.CopyBytes(value)
	}
	root, err := t.put(t.root, pathcodec.Expand(key), 0, v, body)
	if err != nil {
		return nil, err
	}
	if root == t.root {
		return t, nil
	}
	return t.with(root), nil
}

// Delete returns a trie without key.
func (t *Trie) Delete(key []byte) (*Trie, error) {
	return t.Put(key, nil)
}

// DeleteRecursive returns a trie without key and without every key that
// extends it. A key matching nothing leaves the trie unchanged.
func (t *Trie) DeleteRecursive(key []byte) (*Trie, error) {
	root, err := t.deleteSubtree(t.root, pathcodec.Expand(key), 0)
	if err != nil {
		return nil, err
	}
	if root == t.root {
		return t, nil
	}
	return t.with(root), nil
}

// Find returns the node whose full path equals key, or nil.
func (t *Trie) Find(key []byte) (*Node, error) {
	return t.find(pathcodec.Expand(key))
}

// HasDataWithPrefix reports whether some node lies at or below key.
func (t *Trie) HasDataWithPrefix(key []byte) (bool, error) {
	bits := pathcodec.Expand(key)
	n, pos := t.root, 0
	for n != nil {
		rest := bits[pos:]
		if len(rest) <= len(n.path) {
			return bytes.Equal(n.path[:len(rest)], rest), nil
		}
		if !bytes.Equal(n.path, rest[:len(n.path)]) {
			return false, nil
		}
		pos += len(n.path)
		next, err := n.resolveChild(bits[pos], t.store)
		if err != nil {
			return false, err
		}
		n, pos = next, pos+1
	}
	return false, nil
}

// Save persists every dirty node of the trie. A trie without a store has
// nowhere to write and Save returns nil.
func (t *Trie) Save() error {
	if t.store == nil || t.root == nil {
		return nil
	}
	return t.store.Save(t.root)
}

// SnapshotTo returns the trie rooted at hash in the same store.
func (t *Trie) SnapshotTo(hash common.Hash) (*Trie, error) {
	if hash == EmptyHash {
		return t.with(nil), nil
	}
	if t.store == nil {
		return nil, fmt.Errorf("snapshot to %s: %w", hash.Hex(), ErrNoStore)
	}
	root, err := t.store.Retrieve(hash)
	if err != nil {
		return nil, err
	}
	return t.with(root), nil
}

// find descends to the node whose full path equals bits.
func (t *Trie) find(bits []byte) (*Node, error) {
	n, pos := t.root, 0
	for n != nil {
		rest := bits[pos:]
		if len(rest) < len(n.path) || !bytes.Equal(n.path, rest[:len(n.path)]) {
			return nil, nil
		}
		pos += len(n.path)
		if pos == len(bits) {
			return n, nil
		}
		next, err := n.resolveChild(bits[pos], t.store)
		if err != nil {
			return nil, err
		}
		n, pos = next, pos+1
	}
	return nil, nil
}
