package trie

import "github.com/LeJamon/goUnitrie/internal/core/trie/pathcodec"

// Order selects the visiting order of an Iterator.
type Order int

const (
	// InOrder visits the 0-subtree, then the node, then the 1-subtree.
	InOrder Order = iota
	// PreOrder visits a node before its subtrees.
	PreOrder
	// PostOrder visits a node after its subtrees.
	PostOrder
)

// String returns the string representation of the Order.
func (o Order) String() string {
	switch o {
	case InOrder:
		return "in-order"
	case PreOrder:
		return "pre-order"
	case PostOrder:
		return "post-order"
	default:
		return "unknown"
	}
}

type frame struct {
	node     *Node
	path     []byte
	expanded bool
}

// Iterator walks the nodes of a trie with an explicit stack, loading hashed
// children from the trie's store on the way.
//
//	it := NewIterator(t, PreOrder)
//	for it.Next() {
//		visit(it.Path(), it.Node())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	store Store
	order Order
	stack []frame
	cur   frame
	err   error
}

// NewIterator returns an iterator over t positioned before the first node.
func NewIterator(t *Trie, order Order) *Iterator {
	it := &Iterator{store: t.store, order: order}
	if t.root != nil {
		it.stack = append(it.stack, frame{node: t.root, path: t.root.path})
	}
	return it
}

// Next advances to the next node and reports whether there is one.
func (it *Iterator) Next() bool {
	for len(it.stack) > 0 {
		f := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]
		if f.expanded {
			it.cur = f
			return true
		}
		if err := it.expand(f); err != nil {
			it.err = err
			it.stack = nil
			break
		}
	}
	it.cur = frame{}
	return false
}

// expand pushes f back as visitable together with its children, in reverse
// of the order they are to be visited.
func (it *Iterator) expand(f frame) error {
	var kids [Arity]*frame
	for i := 0; i < Arity; i++ {
		c, err := f.node.resolveChild(byte(i), it.store)
		if err != nil {
			return err
		}
		if c != nil {
			kids[i] = &frame{node: c, path: pathcodec.Concat(f.path, []byte{byte(i)}, c.path)}
		}
	}
	f.expanded = true

	var seq [3]*frame
	switch it.order {
	case PreOrder:
		seq = [3]*frame{kids[1], kids[0], &f}
	case PostOrder:
		seq = [3]*frame{&f, kids[1], kids[0]}
	default:
		seq = [3]*frame{kids[1], &f, kids[0]}
	}
	for _, s := range seq {
		if s != nil {
			it.stack = append(it.stack, *s)
		}
	}
	return nil
}

// Node returns the current node.
func (it *Iterator) Node() *Node {
	return it.cur.node
}

// Path returns the full bit path of the current node, its own shared path
// included.
func (it *Iterator) Path() []byte {
	return it.cur.path
}

// Key returns the current path packed into bytes. It is a trie key only
// when the node holds a value.
func (it *Iterator) Key() []byte {
	return pathcodec.Encode(it.cur.path)
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}
