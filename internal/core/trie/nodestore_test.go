package trie

import (
	"bytes"
	"context"
	"testing"

	"github.com/LeJamon/goUnitrie/internal/storage/nodestore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T, opts ...NodeStoreOption) *NodeStore {
	t.Helper()
	opts = append([]NodeStoreOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	store, err := NewMemoryNodeStore(opts...)
	require.NoError(t, err)
	return store
}

// reopen returns a store over the same database with a cold node cache.
func reopen(t *testing.T, store *NodeStore) *NodeStore {
	t.Helper()
	fresh, err := NewNodeStore(store.Database(), WithNodeCodec(store.Codec()))
	require.NoError(t, err)
	return fresh
}

func TestSaveAndOpen(t *testing.T) {
	store := newTestStore(t)
	long := bytes.Repeat([]byte("body"), 20)

	tr := mustPut(t, New(WithStore(store)), "cat", "meow")
	tr = mustPut(t, tr, "car", "vroom")
	tr, err := tr.Put([]byte("dog"), long)
	require.NoError(t, err)
	require.NoError(t, tr.Save())
	assert.True(t, tr.Root().IsSaved())

	loaded, err := Open(reopen(t, store), tr.Hash(), false)
	require.NoError(t, err)
	assert.Equal(t, tr.Hash(), loaded.Hash())
	assert.Equal(t, []byte("meow"), mustGet(t, loaded, "cat"))
	assert.Equal(t, []byte("vroom"), mustGet(t, loaded, "car"))
	assert.Equal(t, long, mustGet(t, loaded, "dog"))

	// the same edit lands on the same hash whether nodes are loaded or not
	a := mustPut(t, tr, "cow", "moo")
	b := mustPut(t, loaded, "cow", "moo")
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestSaveWritesOnlyDirtyNodes(t *testing.T) {
	store := newTestStore(t)
	tr := New(WithStore(store))
	for _, k := range []string{"cat", "car", "dog"} {
		tr = mustPut(t, tr, k, "v-"+k)
	}
	require.NoError(t, tr.Save())
	writes := store.Database().Stats().Writes
	assert.Equal(t, uint64(mustSize(t, tr)), writes)

	require.NoError(t, tr.Save())
	assert.Equal(t, writes, store.Database().Stats().Writes)

	next := mustPut(t, tr, "dog", "changed")
	require.NoError(t, next.Save())
	// the changed leaf and the root
	assert.Equal(t, writes+2, store.Database().Stats().Writes)
}

func TestSaveWithoutStore(t *testing.T) {
	tr := mustPut(t, New(), "cat", "meow")
	assert.NoError(t, tr.Save())
	assert.False(t, tr.Root().IsSaved())
	assert.NoError(t, New(WithStore(newTestStore(t))).Save())
}

func TestSnapshotTo(t *testing.T) {
	store := newTestStore(t)
	v1 := mustPut(t, New(WithStore(store)), "k", "v1")
	require.NoError(t, v1.Save())
	v2 := mustPut(t, v1, "k", "v2")
	require.NoError(t, v2.Save())

	back, err := v2.SnapshotTo(v1.Hash())
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), mustGet(t, back, "k"))

	empty, err := v2.SnapshotTo(EmptyHash)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = New().SnapshotTo(v1.Hash())
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestRetrieveMissingNode(t *testing.T) {
	store := newTestStore(t)
	_, err := Open(store, crypto.Keccak256Hash([]byte("nowhere")), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreConsistency)
	assert.True(t, IsStoreConsistency(err))

	var fault *StoreConsistencyError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "node", fault.What)
}

func TestMissingLongValue(t *testing.T) {
	store := newTestStore(t)
	long := bytes.Repeat([]byte{9}, 48)

	// a node that knows its value by hash only and was never paired with it
	n := newNode(CanonicalCodec, false, nil, HashedValue(crypto.Keccak256Hash(long), len(long)))
	assert.ErrorIs(t, store.Write(n), ErrStoreConsistency)

	tr, err := New(WithStore(store)).Put([]byte("k"), long)
	require.NoError(t, err)
	require.NoError(t, tr.Save())
	assert.NoError(t, store.Write(n))
}

func TestCorruptValueBody(t *testing.T) {
	store := newTestStore(t)
	long := bytes.Repeat([]byte{9}, 48)
	tr, err := New(WithStore(store)).Put([]byte("k"), long)
	require.NoError(t, err)
	require.NoError(t, tr.Save())

	// a value stored under a hash that claims a different length
	other := bytes.Repeat([]byte{1}, 40)
	n := newNode(CanonicalCodec, false, nil, HashedValue(crypto.Keccak256Hash(long), len(other)))
	_, err = n.valueBytes(store)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestLegacyStore(t *testing.T) {
	store := newTestStore(t, WithNodeCodec(LegacyCodec))
	long := bytes.Repeat([]byte("legacy"), 10)

	tr := New(WithStore(store))
	tr, err := tr.Put([]byte("big"), long)
	require.NoError(t, err)
	tr = mustPut(t, tr, "small", "s")
	require.NoError(t, tr.Save())
	assert.Equal(t, "legacy", tr.Root().Codec().Name())

	loaded, err := Open(reopen(t, store), tr.Hash(), false)
	require.NoError(t, err)
	assert.Equal(t, long, mustGet(t, loaded, "big"))
	assert.Equal(t, []byte("s"), mustGet(t, loaded, "small"))

	length, err := loaded.ValueLength([]byte("big"))
	require.NoError(t, err)
	assert.Equal(t, len(long), length)
}

func TestStoreCodecWins(t *testing.T) {
	store := newTestStore(t, WithNodeCodec(LegacyCodec))
	tr := mustPut(t, New(WithStore(store), WithCodec(CanonicalCodec)), "cat", "meow")
	tr = mustPut(t, tr, "dog", "woof")
	require.NoError(t, tr.Save())

	assert.Equal(t, "legacy", tr.Root().Codec().Name())
	detached := mustPut(t, mustPut(t, New(WithCodec(LegacyCodec)), "cat", "meow"), "dog", "woof")
	assert.Equal(t, detached.Hash(), tr.Hash())

	records := 0
	err := store.Database().ForEach(context.Background(), func(rec *nodestore.Node) error {
		records++
		assert.True(t, rec.IsValid(), "record %s is not keyed by its hash", rec.Hash.Hex())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, mustSize(t, tr), records)
}

func TestRetrieveValueRecordAsNode(t *testing.T) {
	store := newTestStore(t)
	long := bytes.Repeat([]byte("v"), 40)
	tr, err := New(WithStore(store)).Put([]byte("k"), long)
	require.NoError(t, err)
	require.NoError(t, tr.Save())

	_, err = Open(reopen(t, store), crypto.Keccak256Hash(long), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSerialization)
	assert.True(t, IsFatal(err))
}

func TestCheckRecord(t *testing.T) {
	store := newTestStore(t)
	tr := mustPut(t, mustPut(t, New(WithStore(store)), "cat", "meow"), "dog", "woof")

	good := nodestore.NewNode(nodestore.KindTrieNode, tr.Root().Message())
	assert.NoError(t, store.CheckRecord(good))

	bad := nodestore.NewNode(nodestore.KindTrieNode, []byte{0xf0, 0x00, 0x00})
	assert.ErrorIs(t, store.CheckRecord(bad), ErrUnsupportedFormat)

	value := nodestore.NewNode(nodestore.KindValue, []byte{0xf0})
	assert.NoError(t, store.CheckRecord(value))
}

func TestNodeCacheSharesNodes(t *testing.T) {
	store := newTestStore(t)
	tr := mustPut(t, mustPut(t, New(WithStore(store)), "cat", "meow"), "dog", "woof")
	require.NoError(t, tr.Save())

	fresh := reopen(t, store)
	a, err := fresh.Retrieve(tr.Hash())
	require.NoError(t, err)
	b, err := fresh.Retrieve(tr.Hash())
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.True(t, a.IsSaved())

	ok, err := fresh.Contains(tr.Hash())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = fresh.Contains(common.Hash{1})
	require.NoError(t, err)
	assert.False(t, ok)
}
