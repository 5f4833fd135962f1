package state

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TrackingTrie buffers writes over a parent view. Reads see the buffer
// first, then the parent. Commit pushes the buffer into the parent;
// Rollback drops it.
type TrackingTrie struct {
	parent MutableTrie
	// parentMu, when set, guards every access to parent.
	parentMu sync.Locker
	secure   bool
	hasStore bool

	// puts holds buffered values by key; a nil value deletes the key.
	puts map[string][]byte
	// deletes holds key prefixes removed with DeleteRecursive.
	deletes map[string]struct{}
}

// NewTrackingTrie returns an empty buffer over parent.
func NewTrackingTrie(parent MutableTrie) *TrackingTrie {
	return &TrackingTrie{
		parent:   parent,
		secure:   parent.IsSecure(),
		hasStore: parent.HasStore(),
		puts:     make(map[string][]byte),
		deletes:  make(map[string]struct{}),
	}
}

// newGuardedTrackingTrie returns an empty buffer over parent that holds mu
// whenever it reads or writes parent. The caller holds mu.
func newGuardedTrackingTrie(parent MutableTrie, mu sync.Locker) *TrackingTrie {
	t := NewTrackingTrie(parent)
	t.parentMu = mu
	return t
}

// withParent runs fn on the parent under parentMu.
func (t *TrackingTrie) withParent(fn func(MutableTrie) error) error {
	if t.parentMu != nil {
		t.parentMu.Lock()
		defer t.parentMu.Unlock()
	}
	return fn(t.parent)
}

// Pending returns the number of buffered writes.
func (t *TrackingTrie) Pending() int {
	return len(t.puts) + len(t.deletes)
}

func (t *TrackingTrie) IsSecure() bool {
	return t.secure
}

func (t *TrackingTrie) HasStore() bool {
	return t.hasStore
}

// lookup answers from the buffer. found is false when the parent decides.
func (t *TrackingTrie) lookup(key []byte) (value []byte, found bool) {
	k := string(key)
	if v, ok := t.puts[k]; ok {
		return v, true
	}
	for prefix := range t.deletes {
		if strings.HasPrefix(k, prefix) {
			return nil, true
		}
	}
	return nil, false
}

func (t *TrackingTrie) Get(key []byte) ([]byte, error) {
	if v, ok := t.lookup(key); ok {
		return common.CopyBytes(v), nil
	}
	var v []byte
	err := t.withParent(func(p MutableTrie) (err error) {
		v, err = p.Get(key)
		return err
	})
	return v, err
}

func (t *TrackingTrie) ValueLength(key []byte) (int, error) {
	if v, ok := t.lookup(key); ok {
		return len(v), nil
	}
	var n int
	err := t.withParent(func(p MutableTrie) (err error) {
		n, err = p.ValueLength(key)
		return err
	})
	return n, err
}

func (t *TrackingTrie) ValueHash(key []byte) (common.Hash, bool, error) {
	if v, ok := t.lookup(key); ok {
		if v == nil {
			return common.Hash{}, false, nil
		}
		return crypto.Keccak256Hash(v), true, nil
	}
	var (
		h  common.Hash
		ok bool
	)
	err := t.withParent(func(p MutableTrie) (err error) {
		h, ok, err = p.ValueHash(key)
		return err
	})
	return h, ok, err
}

func (t *TrackingTrie) CollectKeys(byteSize int) ([][]byte, error) {
	var keys [][]byte
	err := t.withParent(func(p MutableTrie) (err error) {
		keys, err = p.CollectKeys(byteSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t.merge(keys, func(k string) bool {
		return byteSize == trie.Unbounded || len(k) == byteSize
	}), nil
}

func (t *TrackingTrie) CollectKeysFrom(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := t.withParent(func(p MutableTrie) (err error) {
		keys, err = p.CollectKeysFrom(prefix)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t.merge(keys, func(k string) bool {
		return strings.HasPrefix(k, string(prefix))
	}), nil
}

// merge overlays the buffer on keys collected from the parent and returns
// the result sorted.
func (t *TrackingTrie) merge(parentKeys [][]byte, match func(string) bool) [][]byte {
	out := make([][]byte, 0, len(parentKeys)+len(t.puts))
	for _, k := range parentKeys {
		if _, shadowed := t.lookup(k); !shadowed {
			out = append(out, k)
		}
	}
	for k, v := range t.puts {
		if v != nil && match(k) {
			out = append(out, []byte(k))
		}
	}
	slices.SortFunc(out, bytes.Compare)
	return out
}

func (t *TrackingTrie) Put(key, value []byte) error {
	if len(key) > trie.MaxKeySize {
		return fmt.Errorf("%w: %d bytes", trie.ErrKeyTooLong, len(key))
	}
	if len(value) > trie.MaxValueSize {
		return fmt.Errorf("%w: %d bytes", trie.ErrValueTooLong, len(value))
	}
	if len(value) == 0 {
		t.puts[string(key)] = nil
		return nil
	}
	t.puts[string(key)] = common.CopyBytes(value)
	return nil
}

func (t *TrackingTrie) DeleteRecursive(key []byte) error {
	prefix := string(key)
	for k := range t.puts {
		if strings.HasPrefix(k, prefix) {
			delete(t.puts, k)
		}
	}
	for k := range t.deletes {
		if strings.HasPrefix(k, prefix) {
			delete(t.deletes, k)
		}
	}
	t.deletes[prefix] = struct{}{}
	return nil
}

// Trie returns the parent trie with the buffer applied. The parent is not
// changed.
func (t *TrackingTrie) Trie() (*trie.Trie, error) {
	var base *trie.Trie
	err := t.withParent(func(p MutableTrie) (err error) {
		base, err = p.Trie()
		return err
	})
	if err != nil {
		return nil, err
	}
	target := NewMutableTrie(base)
	if err := t.apply(target); err != nil {
		return nil, err
	}
	return target.Trie()
}

func (t *TrackingTrie) Hash() (common.Hash, error) {
	tr, err := t.Trie()
	if err != nil {
		return common.Hash{}, err
	}
	return tr.Hash(), nil
}

// apply writes the buffer into target: recursive deletes first, then puts,
// each in key order.
func (t *TrackingTrie) apply(target MutableTrie) error {
	prefixes := make([]string, 0, len(t.deletes))
	for p := range t.deletes {
		prefixes = append(prefixes, p)
	}
	slices.Sort(prefixes)
	for _, p := range prefixes {
		if err := target.DeleteRecursive([]byte(p)); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(t.puts))
	for k := range t.puts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := target.Put([]byte(k), t.puts[k]); err != nil {
			return err
		}
	}
	return nil
}

// Commit pushes the buffer into the parent and empties it. On error the
// parent may hold part of the buffer and the buffer is kept.
func (t *TrackingTrie) Commit() error {
	if err := t.withParent(t.apply); err != nil {
		return err
	}
	t.Rollback()
	return nil
}

// Rollback drops the buffer.
func (t *TrackingTrie) Rollback() {
	t.puts = make(map[string][]byte)
	t.deletes = make(map[string]struct{})
}

// Save commits the buffer and saves the parent.
func (t *TrackingTrie) Save() error {
	if err := t.Commit(); err != nil {
		return err
	}
	return t.withParent(MutableTrie.Save)
}

func (t *TrackingTrie) SnapshotTo(root common.Hash) (MutableTrie, error) {
	var mt MutableTrie
	err := t.withParent(func(p MutableTrie) (err error) {
		mt, err = p.SnapshotTo(root)
		return err
	})
	return mt, err
}

func (t *TrackingTrie) SetSnapshotTo(common.Hash) error {
	return fmt.Errorf("move a tracking view: %w", errors.ErrUnsupported)
}
