package trie

import (
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Arity is the number of children of a node.
const Arity = 2

// child is one slot of a node. hash is fixed at construction; node is filled
// at construction for owned children or lazily when a hashed child is loaded.
type child struct {
	hash *common.Hash
	node atomic.Pointer[Node]
}

// Node is an immutable binary trie node. Every structural change builds a new
// node; only the memo cells (hash, loaded children, long value body, saved)
// are written after construction, each at most once in effect.
type Node struct {
	path     []byte // shared path, one bit per byte
	value    Value
	children [Arity]child
	secure   bool
	codec    Codec

	hash  atomic.Pointer[common.Hash]
	body  atomic.Pointer[[]byte]
	saved atomic.Bool
}

func newNode(codec Codec, secure bool, path []byte, value Value) *Node {
	return &Node{path: path, value: value, secure: secure, codec: codec}
}

// newLeaf builds a node holding value at the end of path. body is the raw
// value when known.
func newLeaf(codec Codec, secure bool, path []byte, value Value, body []byte) *Node {
	n := newNode(codec, secure, path, value)
	if value.IsLong() && body != nil {
		n.body.Store(&body)
	}
	return n
}

// derive returns a dirty copy sharing children and value with n.
func (n *Node) derive() *Node {
	d := newNode(n.codec, n.secure, n.path, n.value)
	for i := range n.children {
		d.children[i].hash = n.children[i].hash
		if c := n.children[i].node.Load(); c != nil {
			d.children[i].node.Store(c)
		}
	}
	if b := n.body.Load(); b != nil {
		d.body.Store(b)
	}
	return d
}

func (n *Node) withPath(path []byte) *Node {
	d := n.derive()
	d.path = path
	return d
}

func (n *Node) withValue(value Value, body []byte) *Node {
	d := n.derive()
	d.value = value
	d.body.Store(nil)
	if value.IsLong() && body != nil {
		d.body.Store(&body)
	}
	return d
}

// withChild replaces slot i by c; nil clears the slot.
func (n *Node) withChild(i byte, c *Node) *Node {
	d := n.derive()
	d.children[i].hash = nil
	d.children[i].node.Store(nil)
	if c != nil && !c.IsEmpty() {
		d.children[i].node.Store(c)
	}
	return d
}

// SharedPath returns a copy of the node's compressed path bits.
func (n *Node) SharedPath() []byte {
	return common.CopyBytes(n.path)
}

// SharedPathLength returns the number of bits in the shared path.
func (n *Node) SharedPathLength() int {
	return len(n.path)
}

// Value returns the node's value descriptor.
func (n *Node) Value() Value {
	return n.value
}

// IsSecure reports whether the node belongs to a secure trie.
func (n *Node) IsSecure() bool {
	return n.secure
}

// Codec returns the serialization strategy the node hashes with.
func (n *Node) Codec() Codec {
	return n.codec
}

// HasChild reports whether slot i is occupied.
func (n *Node) HasChild(i int) bool {
	if n.children[i].hash != nil {
		return true
	}
	c := n.children[i].node.Load()
	return c != nil && !c.IsEmpty()
}

// ChildCount returns the number of occupied child slots.
func (n *Node) ChildCount() int {
	count := 0
	for i := 0; i < Arity; i++ {
		if n.HasChild(i) {
			count++
		}
	}
	return count
}

// ChildHash returns the hash of child i and whether the slot is occupied.
func (n *Node) ChildHash(i int) (common.Hash, bool) {
	if h := n.children[i].hash; h != nil {
		return *h, true
	}
	if c := n.children[i].node.Load(); c != nil && !c.IsEmpty() {
		return c.Hash(), true
	}
	return common.Hash{}, false
}

// LoadedChild returns child i if it is held in memory, without touching the
// store.
func (n *Node) LoadedChild(i int) *Node {
	return n.children[i].node.Load()
}

// IsEmpty reports whether n is the canonical empty node.
func (n *Node) IsEmpty() bool {
	return n.value.IsAbsent() && !n.HasChild(0) && !n.HasChild(1)
}

// IsSaved reports whether the node is known to be durable in its store.
func (n *Node) IsSaved() bool {
	return n.saved.Load()
}

// MarkSaved records that the node is durable. Only stores call it.
func (n *Node) MarkSaved() {
	n.saved.Store(true)
}

// Hash returns the node hash, computing and memoizing it on first use.
// Concurrent first calls compute the same digest; the first one stored wins.
func (n *Node) Hash() common.Hash {
	if h := n.hash.Load(); h != nil {
		return *h
	}
	if n.IsEmpty() {
		return EmptyHash
	}
	h := crypto.Keccak256Hash(n.codec.Encode(n))
	n.hash.CompareAndSwap(nil, &h)
	return *n.hash.Load()
}

// Message returns the node's own serialized bytes.
func (n *Node) Message() []byte {
	return n.codec.Encode(n)
}

// LoadedBody returns the long value bytes if already fetched.
func (n *Node) LoadedBody() []byte {
	if b := n.body.Load(); b != nil {
		return *b
	}
	return nil
}

// resolveChild returns child i, loading it from store when only its hash is
// known. A nil node with nil error means the slot is empty.
func (n *Node) resolveChild(i byte, store Store) (*Node, error) {
	slot := &n.children[i]
	if c := slot.node.Load(); c != nil {
		return c, nil
	}
	if slot.hash == nil {
		return nil, nil
	}
	if store == nil {
		return nil, &StoreConsistencyError{Hash: *slot.hash, What: "node"}
	}
	c, err := store.Retrieve(*slot.hash)
	if err != nil {
		return nil, err
	}
	slot.node.CompareAndSwap(nil, c)
	return slot.node.Load(), nil
}

// valueBytes returns the node's value, fetching a long body through store the
// first time. Absent yields nil.
func (n *Node) valueBytes(store ValueReader) ([]byte, error) {
	switch n.value.kind {
	case Absent:
		return nil, nil
	case Inline:
		return n.value.inline, nil
	}
	if b := n.body.Load(); b != nil {
		return *b, nil
	}
	if store == nil {
		return nil, &StoreConsistencyError{Hash: n.value.hash, What: "value"}
	}
	body, err := store.RetrieveValue(n.value.hash)
	if err != nil {
		return nil, err
	}
	if err := n.value.checkBody(body); err != nil {
		return nil, err
	}
	n.body.CompareAndSwap(nil, &body)
	return *n.body.Load(), nil
}

// String returns a short description for logs and test failures.
func (n *Node) String() string {
	return fmt.Sprintf("node{path:%d bits, value:%s/%d, children:%d}",
		len(n.path), n.value.kind, n.value.length, n.ChildCount())
}
