package trie

import (
	"bytes"

	"github.com/LeJamon/goUnitrie/internal/core/trie/pathcodec"
)

// put returns the subtree rooted at n with key[pos:] mapped to v. A nil
// result is the empty subtree. Returning n itself means nothing changed.
func (t *Trie) put(n *Node, key []byte, pos int, v Value, body []byte) (*Node, error) {
	next, err := t.internalPut(n, key, pos, v, body)
	if err != nil || next == nil || next == n || !v.IsAbsent() {
		return next, err
	}
	if next.IsEmpty() {
		return nil, nil
	}
	if !next.value.IsAbsent() || next.ChildCount() != 1 {
		return next, nil
	}
	return t.coalesce(next)
}

func (t *Trie) internalPut(n *Node, key []byte, pos int, v Value, body []byte) (*Node, error) {
	if n == nil {
		if v.IsAbsent() {
			return nil, nil
		}
		return newLeaf(t.codec, t.secure, key[pos:], v, body), nil
	}

	if k := pathcodec.CommonPrefix(n.path, key[pos:]); k < len(n.path) {
		if v.IsAbsent() {
			return n, nil
		}
		return t.put(t.split(n, k), key, pos, v, body)
	}

	pos += len(n.path)
	if pos == len(key) {
		if n.value.equal(v) {
			return n, nil
		}
		if v.IsAbsent() && n.ChildCount() == 0 {
			return nil, nil
		}
		return n.withValue(v, body), nil
	}

	bit := key[pos]
	c, err := n.resolveChild(bit, t.store)
	if err != nil {
		return nil, err
	}
	if c == nil && v.IsAbsent() {
		return n, nil
	}
	nc, err := t.put(c, key, pos+1, v, body)
	if err != nil {
		return nil, err
	}
	if nc == c {
		return n, nil
	}
	next := n.withChild(bit, nc)
	if next.IsEmpty() {
		return nil, nil
	}
	return next, nil
}

// split cuts the shared path of n at bit k: the new parent keeps path[:k]
// and holds n, shortened to path[k+1:], under the branch bit path[k].
func (t *Trie) split(n *Node, k int) *Node {
	lower := n.withPath(n.path[k+1:])
	top := newNode(n.codec, n.secure, n.path[:k], NoValue)
	top.children[n.path[k]].node.Store(lower)
	return top
}

// coalesce merges a valueless node with its only child.
func (t *Trie) coalesce(n *Node) (*Node, error) {
	var bit byte
	if !n.HasChild(0) {
		bit = 1
	}
	c, err := n.resolveChild(bit, t.store)
	if err != nil {
		return nil, err
	}
	return c.withPath(pathcodec.Concat(n.path, []byte{bit}, c.path)), nil
}

// deleteSubtree detaches the node whose full path starts with key[pos:] and
// coalesces the parent it leaves behind.
func (t *Trie) deleteSubtree(n *Node, key []byte, pos int) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	rest := key[pos:]
	if len(rest) <= len(n.path) {
		if bytes.Equal(n.path[:len(rest)], rest) {
			return nil, nil
		}
		return n, nil
	}
	if !bytes.Equal(n.path, rest[:len(n.path)]) {
		return n, nil
	}

	pos += len(n.path)
	bit := key[pos]
	c, err := n.resolveChild(bit, t.store)
	if err != nil || c == nil {
		return n, err
	}
	nc, err := t.deleteSubtree(c, key, pos+1)
	if err != nil {
		return nil, err
	}
	if nc == c {
		return n, nil
	}
	next := n.withChild(bit, nc)
	switch {
	case next.IsEmpty():
		return nil, nil
	case next.value.IsAbsent() && next.ChildCount() == 1:
		return t.coalesce(next)
	default:
		return next, nil
	}
}
