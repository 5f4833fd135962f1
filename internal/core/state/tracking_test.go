package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingTrieReads(t *testing.T) {
	base := NewMutableTrie(trie.New())
	require.NoError(t, base.Put([]byte("keep"), []byte("parent")))
	require.NoError(t, base.Put([]byte("acc/a"), []byte("1")))
	require.NoError(t, base.Put([]byte("acc/b"), []byte("2")))

	tt := NewTrackingTrie(base)
	require.NoError(t, tt.Put([]byte("new"), []byte("child")))
	require.NoError(t, tt.DeleteRecursive([]byte("acc")))
	require.NoError(t, tt.Put([]byte("acc/c"), []byte("3")))
	require.NoError(t, tt.Put([]byte("keep"), nil))

	get := func(key string) []byte {
		v, err := tt.Get([]byte(key))
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, []byte("child"), get("new"))
	assert.Nil(t, get("keep"))
	assert.Nil(t, get("acc/a"))
	assert.Equal(t, []byte("3"), get("acc/c"))

	length, err := tt.ValueLength([]byte("acc/c"))
	require.NoError(t, err)
	assert.Equal(t, 1, length)
	h, ok, err := tt.ValueHash([]byte("new"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, crypto.Keccak256Hash([]byte("child")), h)
	_, ok, err = tt.ValueHash([]byte("acc/b"))
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := tt.CollectKeys(trie.Unbounded)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("acc/c"), []byte("new")}, keys)

	keys, err = tt.CollectKeysFrom([]byte("acc"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("acc/c")}, keys)

	// the parent is untouched until commit
	v, err := base.Get([]byte("acc/a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
	assert.Equal(t, 4, tt.Pending())
}

func TestTrackingTrieCommit(t *testing.T) {
	base := NewMutableTrie(trie.New())
	require.NoError(t, base.Put([]byte("acc/a"), []byte("1")))
	require.NoError(t, base.Put([]byte("other"), []byte("x")))

	tt := NewTrackingTrie(base)
	require.NoError(t, tt.Put([]byte("acc/z"), []byte("lost")))
	require.NoError(t, tt.DeleteRecursive([]byte("acc")))
	require.NoError(t, tt.Put([]byte("acc/b"), []byte("2")))

	// the view hash equals the parent hash after commit
	viewHash, err := tt.Hash()
	require.NoError(t, err)

	require.NoError(t, tt.Commit())
	assert.Zero(t, tt.Pending())

	committed, err := base.Hash()
	require.NoError(t, err)
	assert.Equal(t, viewHash, committed)

	expected := NewMutableTrie(trie.New())
	require.NoError(t, expected.Put([]byte("acc/b"), []byte("2")))
	require.NoError(t, expected.Put([]byte("other"), []byte("x")))
	want, err := expected.Hash()
	require.NoError(t, err)
	assert.Equal(t, want, committed)
}

func TestTrackingTrieRollback(t *testing.T) {
	base := NewMutableTrie(trie.New())
	require.NoError(t, base.Put([]byte("k"), []byte("v")))
	before, err := base.Hash()
	require.NoError(t, err)

	tt := NewTrackingTrie(base)
	require.NoError(t, tt.Put([]byte("k"), []byte("changed")))
	require.NoError(t, tt.DeleteRecursive([]byte("")))
	tt.Rollback()

	v, err := tt.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
	require.NoError(t, tt.Commit())

	after, err := base.Hash()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestTrackingTrieLimits(t *testing.T) {
	tt := NewTrackingTrie(NewMutableTrie(trie.New()))
	assert.ErrorIs(t, tt.Put(make([]byte, trie.MaxKeySize+1), []byte("v")), trie.ErrKeyTooLong)
	assert.Error(t, tt.SetSnapshotTo(common.Hash{}))
}

func TestRepositoryTracking(t *testing.T) {
	repo, _ := newStoredRepository(t, false)
	_, err := repo.AddBalance(alice, uint256.NewInt(10))
	require.NoError(t, err)
	before, err := repo.GetRoot()
	require.NoError(t, err)

	t.Run("rollback", func(t *testing.T) {
		track, err := repo.StartTracking()
		require.NoError(t, err)
		_, err = track.AddBalance(alice, uint256.NewInt(5))
		require.NoError(t, err)
		require.NoError(t, track.SaveCode(bob, []byte{0x01}))

		balance, err := track.GetBalance(alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(15), balance.Uint64())
		balance, err = repo.GetBalance(alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), balance.Uint64())

		require.NoError(t, track.Rollback())
		require.NoError(t, track.Commit())
		root, err := repo.GetRoot()
		require.NoError(t, err)
		assert.Equal(t, before, root)
	})

	t.Run("commit", func(t *testing.T) {
		track, err := repo.StartTracking()
		require.NoError(t, err)
		_, err = track.AddBalance(alice, uint256.NewInt(5))
		require.NoError(t, err)
		require.NoError(t, track.AddStorageRow(bob, common.HexToHash("0x01"), common.HexToHash("0x09")))

		nested, err := track.StartTracking()
		require.NoError(t, err)
		require.NoError(t, nested.Delete(bob))
		require.NoError(t, nested.Commit())

		exists, err := track.IsExist(bob)
		require.NoError(t, err)
		assert.False(t, exists)

		trackRoot, err := track.GetRoot()
		require.NoError(t, err)
		require.NoError(t, track.Commit())

		root, err := repo.GetRoot()
		require.NoError(t, err)
		assert.Equal(t, trackRoot, root)
		balance, err := repo.GetBalance(alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(15), balance.Uint64())
	})
}

func TestTrackingSurvivesParentSync(t *testing.T) {
	repo, _ := newStoredRepository(t, false)
	_, err := repo.AddBalance(alice, uint256.NewInt(3))
	require.NoError(t, err)
	root, err := repo.GetRoot()
	require.NoError(t, err)

	track, err := repo.StartTracking()
	require.NoError(t, err)
	require.NoError(t, repo.SyncToRoot(root))

	_, err = track.AddBalance(bob, uint256.NewInt(9))
	require.NoError(t, err)
	require.NoError(t, track.Commit())

	balance, err := repo.GetBalance(bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), balance.Uint64())
	balance, err = repo.GetBalance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), balance.Uint64())

	err = track.SyncToRoot(root)
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}

func TestTrackingConcurrentWithParent(t *testing.T) {
	const rounds = 200
	repo, _ := newStoredRepository(t, true)
	track, err := repo.StartTracking()
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := repo.AddBalance(alice, uint256.NewInt(1)); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := track.AddBalance(bob, uint256.NewInt(1)); err != nil {
				t.Error(err)
				return
			}
			if err := track.Commit(); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()

	balance, err := repo.GetBalance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(rounds), balance.Uint64())
	balance, err = repo.GetBalance(bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(rounds), balance.Uint64())
}
