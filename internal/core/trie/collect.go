package trie

import (
	"bytes"
	"context"
	"fmt"

	"github.com/LeJamon/goUnitrie/internal/core/trie/pathcodec"
	"golang.org/x/sync/errgroup"
)

// Unbounded makes CollectKeys return keys of any length.
const Unbounded = -1

// copyConcurrency bounds the goroutines CopyTo runs beside the caller.
const copyConcurrency = 16

// Size returns the number of nodes in the trie. The empty trie has none.
func (t *Trie) Size() (int, error) {
	count := 0
	it := NewIterator(t, PreOrder)
	for it.Next() {
		count++
	}
	return count, it.Err()
}

// CollectKeys returns, in ascending order, every key holding a value whose
// length is byteSize bytes, or every key when byteSize is Unbounded.
func (t *Trie) CollectKeys(byteSize int) ([][]byte, error) {
	return t.collect(t.root, nil, byteSize)
}

// CollectKeysFrom returns, in ascending order, every key with a value that
// starts with prefix.
func (t *Trie) CollectKeysFrom(prefix []byte) ([][]byte, error) {
	bits := pathcodec.Expand(prefix)
	n, pos := t.root, 0
	var walked []byte
	for n != nil {
		rest := bits[pos:]
		if len(rest) <= len(n.path) {
			if !bytes.Equal(n.path[:len(rest)], rest) {
				return nil, nil
			}
			return t.collect(n, walked, Unbounded)
		}
		if !bytes.Equal(n.path, rest[:len(n.path)]) {
			return nil, nil
		}
		pos += len(n.path)
		bit := bits[pos]
		next, err := n.resolveChild(bit, t.store)
		if err != nil {
			return nil, err
		}
		walked = pathcodec.Concat(walked, n.path, []byte{bit})
		n, pos = next, pos+1
	}
	return nil, nil
}

// collect walks the subtree at n, whose bit path up to (not including) its
// own shared path is base. Visiting 0 before 1 and a node before its
// subtrees yields keys in byte order. Subtrees deeper than byteSize are cut.
func (t *Trie) collect(n *Node, base []byte, byteSize int) ([][]byte, error) {
	if n == nil {
		return nil, nil
	}
	limit := byteSize * 8

	var keys [][]byte
	stack := []frame{{node: n, path: pathcodec.Concat(base, n.path)}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if byteSize != Unbounded && len(f.path) > limit {
			continue
		}
		if !f.node.value.IsAbsent() && len(f.path)%8 == 0 &&
			(byteSize == Unbounded || len(f.path) == limit) {
			keys = append(keys, pathcodec.Encode(f.path))
		}
		for i := Arity - 1; i >= 0; i-- {
			c, err := f.node.resolveChild(byte(i), t.store)
			if err != nil {
				return nil, err
			}
			if c != nil {
				stack = append(stack, frame{node: c, path: pathcodec.Concat(f.path, []byte{byte(i)}, c.path)})
			}
		}
	}
	return keys, nil
}

// CopyTo makes every node and long value of the trie present in target.
// Subtrees whose root target already holds are skipped; children are
// written before their parent, so a present node implies a complete
// subtree. Sibling subtrees are copied concurrently.
func (t *Trie) CopyTo(ctx context.Context, target Store) error {
	if t.root == nil {
		return nil
	}
	if target.Codec().Name() != t.codec.Name() {
		return fmt.Errorf("%w: copying %s nodes into a %s store", ErrCodecMismatch, t.codec.Name(), target.Codec().Name())
	}
	c := &copier{
		source: t.store,
		target: target,
		slots:  make(chan struct{}, copyConcurrency),
	}
	return c.copy(ctx, t.root)
}

type copier struct {
	source Store
	target Store
	slots  chan struct{}
}

func (c *copier) copy(ctx context.Context, n *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	present, err := c.target.Contains(n.Hash())
	if err != nil || present {
		return err
	}

	if n.value.IsLong() {
		if _, err := n.valueBytes(c.source); err != nil {
			return err
		}
	}

	// A failing subtree cancels its siblings through gctx.
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < Arity; i++ {
		child, err := n.resolveChild(byte(i), c.source)
		if err != nil {
			g.Wait()
			return err
		}
		if child == nil {
			continue
		}
		select {
		case c.slots <- struct{}{}:
			g.Go(func() error {
				defer func() { <-c.slots }()
				return c.copy(gctx, child)
			})
		default:
			if err := c.copy(gctx, child); err != nil {
				g.Wait()
				return err
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return c.target.Write(n)
}
