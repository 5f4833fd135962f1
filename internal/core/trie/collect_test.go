package trie

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyStrings(keys [][]byte) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

func TestIteratorOrders(t *testing.T) {
	tr := New()
	tr = mustPut(t, tr, "", "root")
	tr = mustPut(t, tr, "\x00", "zero")
	tr = mustPut(t, tr, "\x80", "one")

	tests := []struct {
		order Order
		want  []string
	}{
		{PreOrder, []string{"", "\x00", "\x80"}},
		{InOrder, []string{"\x00", "", "\x80"}},
		{PostOrder, []string{"\x00", "\x80", ""}},
	}

	for _, tc := range tests {
		t.Run(tc.order.String(), func(t *testing.T) {
			var got []string
			it := NewIterator(tr, tc.order)
			for it.Next() {
				got = append(got, string(it.Key()))
			}
			require.NoError(t, it.Err())
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIteratorEmptyTrie(t *testing.T) {
	it := NewIterator(New(), PreOrder)
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
	assert.Nil(t, it.Node())
}

func TestIteratorMissingNode(t *testing.T) {
	store, err := NewMemoryNodeStore()
	require.NoError(t, err)
	tr := mustPut(t, mustPut(t, New(WithStore(store)), "\x00", "a"), "\x80", "b")

	// a root decoded from its message knows its children by hash only
	root, err := CanonicalCodec.Decode(tr.Root().Message(), nil)
	require.NoError(t, err)
	detached := tr.with(root)

	it := NewIterator(detached, PreOrder)
	for it.Next() {
	}
	assert.ErrorIs(t, it.Err(), ErrStoreConsistency)
}

func TestCollectKeys(t *testing.T) {
	tr := New()
	for _, k := range []string{"c", "bcd", "a", "b", "ab"} {
		tr = mustPut(t, tr, k, "v")
	}
	long, err := tr.Put([]byte("zz"), bytes.Repeat([]byte{1}, 64))
	require.NoError(t, err)

	all, err := long.CollectKeys(Unbounded)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "ab", "b", "bcd", "c", "zz"}, keyStrings(all))

	one, err := long.CollectKeys(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keyStrings(one))

	two, err := long.CollectKeys(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "zz"}, keyStrings(two))

	none, err := New().CollectKeys(Unbounded)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCollectKeysFrom(t *testing.T) {
	tr := New()
	for _, k := range []string{"acc1", "acc1/code", "acc1/s1", "acc2", "b"} {
		tr = mustPut(t, tr, k, "v")
	}

	got, err := tr.CollectKeysFrom([]byte("acc1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"acc1", "acc1/code", "acc1/s1"}, keyStrings(got))

	got, err = tr.CollectKeysFrom([]byte("acc"))
	require.NoError(t, err)
	assert.Equal(t, []string{"acc1", "acc1/code", "acc1/s1", "acc2"}, keyStrings(got))

	got, err = tr.CollectKeysFrom([]byte("x"))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = tr.CollectKeysFrom(nil)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func buildStoredTrie(t *testing.T, store Store) *Trie {
	t.Helper()
	tr := New(WithStore(store))
	for i := 0; i < 64; i++ {
		key := []byte{byte(i * 4), byte(i)}
		value := bytes.Repeat([]byte{byte(i)}, 1+i)
		var err error
		tr, err = tr.Put(key, value)
		require.NoError(t, err)
	}
	return tr
}

func TestCopyTo(t *testing.T) {
	source, err := NewMemoryNodeStore()
	require.NoError(t, err)
	tr := buildStoredTrie(t, source)
	require.NoError(t, tr.Save())

	loaded, err := Open(source, tr.Hash(), false)
	require.NoError(t, err)

	target, err := NewMemoryNodeStore()
	require.NoError(t, err)
	require.NoError(t, loaded.CopyTo(context.Background(), target))

	copied, err := Open(target, tr.Hash(), false)
	require.NoError(t, err)
	assert.Equal(t, tr.Hash(), copied.Hash())
	for i := 0; i < 64; i++ {
		got, err := copied.Get([]byte{byte(i * 4), byte(i)})
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{byte(i)}, 1+i), got)
	}

	size, err := copied.Size()
	require.NoError(t, err)
	assert.Equal(t, mustSize(t, tr), size)
}

func TestCopyToFromMemory(t *testing.T) {
	tr := mustPut(t, mustPut(t, New(), "cat", "meow"), "dog", string(bytes.Repeat([]byte("w"), 50)))

	target, err := NewMemoryNodeStore()
	require.NoError(t, err)
	require.NoError(t, tr.CopyTo(context.Background(), target))

	copied, err := Open(target, tr.Hash(), false)
	require.NoError(t, err)
	assert.Equal(t, []byte("meow"), mustGet(t, copied, "cat"))
	assert.Equal(t, bytes.Repeat([]byte("w"), 50), mustGet(t, copied, "dog"))
}

func TestCopyToSkipsPresentRoot(t *testing.T) {
	ctrl := gomock.NewController(t)
	target := NewMockStore(ctrl)

	tr := mustPut(t, mustPut(t, New(), "cat", "meow"), "dog", "woof")
	target.EXPECT().Codec().Return(CanonicalCodec).AnyTimes()
	target.EXPECT().Contains(tr.Hash()).Return(true, nil)

	require.NoError(t, tr.CopyTo(context.Background(), target))
}

func TestCopyToSkipsPresentSubtree(t *testing.T) {
	ctrl := gomock.NewController(t)
	target := NewMockStore(ctrl)

	tr := mustPut(t, mustPut(t, New(), "\x00", "a"), "\x80", "b")
	present, ok := tr.Root().ChildHash(0)
	require.True(t, ok)

	target.EXPECT().Codec().Return(CanonicalCodec).AnyTimes()
	target.EXPECT().Contains(gomock.Any()).DoAndReturn(func(h common.Hash) (bool, error) {
		return h == present, nil
	}).Times(3)
	var written []common.Hash
	target.EXPECT().Write(gomock.Any()).DoAndReturn(func(n *Node) error {
		written = append(written, n.Hash())
		return nil
	}).Times(2)

	require.NoError(t, tr.CopyTo(context.Background(), target))
	// the parent goes last
	require.Len(t, written, 2)
	assert.Equal(t, tr.Hash(), written[1])
}

// gatedStore fails Contains for one hash and holds Contains for another
// until the failure has happened, counting lookups below the root.
type gatedStore struct {
	Store
	root       common.Hash
	fail, gate common.Hash
	failed     chan struct{}
	visited    atomic.Int32
	writes     atomic.Int32
}

var errTargetDown = errors.New("target down")

func (s *gatedStore) Codec() Codec { return CanonicalCodec }

func (s *gatedStore) Contains(h common.Hash) (bool, error) {
	switch h {
	case s.fail:
		close(s.failed)
		return false, errTargetDown
	case s.gate:
		<-s.failed
		// leave the failing sibling time to return and cancel the group
		time.Sleep(50 * time.Millisecond)
		return false, nil
	}
	if h != s.root {
		s.visited.Add(1)
	}
	return false, nil
}

func (s *gatedStore) Write(*Node) error {
	s.writes.Add(1)
	return nil
}

func TestCopyToCancelsSiblings(t *testing.T) {
	tr := mustPut(t, mustPut(t, mustPut(t, New(), "\x00", "a"), "\x80", "b"), "\xc0", "c")
	left, ok := tr.Root().ChildHash(0)
	require.True(t, ok)
	right, ok := tr.Root().ChildHash(1)
	require.True(t, ok)

	target := &gatedStore{root: tr.Hash(), fail: left, gate: right, failed: make(chan struct{})}
	err := tr.CopyTo(context.Background(), target)
	assert.ErrorIs(t, err, errTargetDown)
	assert.Zero(t, target.visited.Load(), "the right subtree kept copying after the left one failed")
	assert.Zero(t, target.writes.Load())
}

func TestCopyToErrors(t *testing.T) {
	tr := mustPut(t, New(), "cat", "meow")

	legacy, err := NewMemoryNodeStore(WithNodeCodec(LegacyCodec))
	require.NoError(t, err)
	assert.ErrorIs(t, tr.CopyTo(context.Background(), legacy), ErrCodecMismatch)

	target, err := NewMemoryNodeStore()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tr.CopyTo(ctx, target), context.Canceled)

	assert.NoError(t, New().CopyTo(context.Background(), target))
}
