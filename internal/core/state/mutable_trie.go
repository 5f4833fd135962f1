package state

import (
	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/ethereum/go-ethereum/common"
)

// MutableTrie is a trie view whose current root moves with every write.
// Commit and Rollback act on buffered writes, if the view buffers any.
type MutableTrie interface {
	// Trie returns the persistent trie holding every write made so far.
	Trie() (*trie.Trie, error)
	Hash() (common.Hash, error)
	IsSecure() bool
	HasStore() bool

	Get(key []byte) ([]byte, error)
	ValueLength(key []byte) (int, error)
	ValueHash(key []byte) (common.Hash, bool, error)
	CollectKeys(byteSize int) ([][]byte, error)
	CollectKeysFrom(prefix []byte) ([][]byte, error)

	Put(key, value []byte) error
	DeleteRecursive(key []byte) error

	Save() error
	Commit() error
	Rollback()

	// SnapshotTo returns a view of the state committed under root.
	SnapshotTo(root common.Hash) (MutableTrie, error)
	// SetSnapshotTo moves this view to root.
	SetSnapshotTo(root common.Hash) error
}

// trieView is the MutableTrie over a persistent trie. Writes take effect
// immediately, so Commit and Rollback have nothing to do.
type trieView struct {
	trie *trie.Trie
}

// NewMutableTrie returns a view starting at t.
func NewMutableTrie(t *trie.Trie) MutableTrie {
	return &trieView{trie: t}
}

func (v *trieView) Trie() (*trie.Trie, error) {
	return v.trie, nil
}

func (v *trieView) Hash() (common.Hash, error) {
	return v.trie.Hash(), nil
}

func (v *trieView) IsSecure() bool {
	return v.trie.IsSecure()
}

func (v *trieView) HasStore() bool {
	return v.trie.HasStore()
}

func (v *trieView) Get(key []byte) ([]byte, error) {
	return v.trie.Get(key)
}

func (v *trieView) ValueLength(key []byte) (int, error) {
	return v.trie.ValueLength(key)
}

func (v *trieView) ValueHash(key []byte) (common.Hash, bool, error) {
	return v.trie.ValueHash(key)
}

func (v *trieView) CollectKeys(byteSize int) ([][]byte, error) {
	return v.trie.CollectKeys(byteSize)
}

func (v *trieView) CollectKeysFrom(prefix []byte) ([][]byte, error) {
	return v.trie.CollectKeysFrom(prefix)
}

func (v *trieView) Put(key, value []byte) error {
	next, err := v.trie.Put(key, value)
	if err != nil {
		return err
	}
	v.trie = next
	return nil
}

func (v *trieView) DeleteRecursive(key []byte) error {
	next, err := v.trie.DeleteRecursive(key)
	if err != nil {
		return err
	}
	v.trie = next
	return nil
}

func (v *trieView) Save() error {
	return v.trie.Save()
}

func (v *trieView) Commit() error {
	return nil
}

func (v *trieView) Rollback() {}

func (v *trieView) SnapshotTo(root common.Hash) (MutableTrie, error) {
	t, err := v.trie.SnapshotTo(root)
	if err != nil {
		return nil, err
	}
	return NewMutableTrie(t), nil
}

func (v *trieView) SetSnapshotTo(root common.Hash) error {
	t, err := v.trie.SnapshotTo(root)
	if err != nil {
		return err
	}
	v.trie = t
	return nil
}
