// Package state maps the account model onto a unitrie: account records,
// contract code and storage cells under keys derived by a KeyCodec, with
// buffered views for nested transactions.
package state

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/LeJamon/goUnitrie/internal/core/trie"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// EmptyCodeHash is the code hash of an account without code.
var EmptyCodeHash = crypto.Keccak256Hash(nil)

// Repository is the account state over one moving trie root. All methods
// are serialized by a single lock.
type Repository struct {
	mu sync.Mutex

	trie   MutableTrie
	keys   *KeyCodec
	lookup *KeyLookup
	logger *zap.Logger
	closed bool
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithRepositoryLogger sets the repository logger.
func WithRepositoryLogger(l *zap.Logger) RepositoryOption {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithKeyLookup records every account and storage key written into l.
func WithKeyLookup(l *KeyLookup) RepositoryOption {
	return func(r *Repository) {
		r.lookup = l
	}
}

// NewRepository returns a repository starting at t.
func NewRepository(t *trie.Trie, opts ...RepositoryOption) *Repository {
	return newRepository(NewMutableTrie(t), opts...)
}

func newRepository(mt MutableTrie, opts ...RepositoryOption) *Repository {
	r := &Repository{
		trie:   mt,
		keys:   NewKeyCodec(mt.IsSecure()),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MutableTrie returns the view the repository writes through.
func (r *Repository) MutableTrie() MutableTrie {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trie
}

// Close marks the repository closed. Later calls fail with
// ErrRepositoryClosed.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

// IsClosed reports whether Close was called.
func (r *Repository) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// lock acquires the repository lock and fails on a closed repository. The
// caller must unlock when err is nil.
func (r *Repository) lock() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRepositoryClosed
	}
	return nil
}

// CreateAccount writes a fresh account at addr, replacing any existing
// record, and returns it.
func (r *Repository) CreateAccount(addr common.Address) (*AccountState, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	return r.createAccount(addr)
}

func (r *Repository) createAccount(addr common.Address) (*AccountState, error) {
	account := NewAccountState()
	if err := r.updateAccountState(addr, account); err != nil {
		return nil, err
	}
	return account, nil
}

// IsExist reports whether an account record exists at addr.
func (r *Repository) IsExist(addr common.Address) (bool, error) {
	if err := r.lock(); err != nil {
		return false, err
	}
	defer r.mu.Unlock()
	return r.isExist(addr)
}

func (r *Repository) isExist(addr common.Address) (bool, error) {
	n, err := r.trie.ValueLength(r.keys.AccountKey(addr))
	return n > 0, err
}

// GetAccountState returns the account at addr, or nil.
func (r *Repository) GetAccountState(addr common.Address) (*AccountState, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	return r.getAccountState(addr)
}

func (r *Repository) getAccountState(addr common.Address) (*AccountState, error) {
	data, err := r.trie.Get(r.keys.AccountKey(addr))
	if err != nil || len(data) == 0 {
		return nil, err
	}
	return DecodeAccountState(data)
}

func (r *Repository) getOrCreateAccount(addr common.Address) (*AccountState, error) {
	account, err := r.getAccountState(addr)
	if err != nil || account != nil {
		return account, err
	}
	return r.createAccount(addr)
}

// UpdateAccountState writes account at addr.
func (r *Repository) UpdateAccountState(addr common.Address, account *AccountState) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()
	return r.updateAccountState(addr, account)
}

func (r *Repository) updateAccountState(addr common.Address, account *AccountState) error {
	data, err := account.Encode()
	if err != nil {
		return fmt.Errorf("encode account %s: %w", addr.Hex(), err)
	}
	key := r.keys.AccountKey(addr)
	if err := r.trie.Put(key, data); err != nil {
		return err
	}
	if r.lookup != nil {
		r.lookup.AddAddress(key, addr)
	}
	return nil
}

// UpdateBatch writes or deletes every account of accounts, in address
// order, and empties the map.
func (r *Repository) UpdateBatch(accounts map[common.Address]*AccountState) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	r.logger.Debug("updating batch", zap.Int("accounts", len(accounts)))

	addrs := make([]common.Address, 0, len(accounts))
	for addr := range accounts {
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, func(a, b common.Address) int {
		return bytes.Compare(a[:], b[:])
	})

	for _, addr := range addrs {
		account := accounts[addr]
		if account.Deleted {
			if err := r.trie.DeleteRecursive(r.keys.AccountKey(addr)); err != nil {
				return err
			}
			r.logger.Debug("deleted account", zap.Stringer("address", addr))
			continue
		}
		if err := r.updateAccountState(addr, account); err != nil {
			return err
		}
	}
	clear(accounts)
	return nil
}

// Delete removes the account at addr together with its code and storage.
func (r *Repository) Delete(addr common.Address) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()
	return r.trie.DeleteRecursive(r.keys.AccountKey(addr))
}

// Hibernate sets the hibernated flag of the account at addr, creating it if
// needed.
func (r *Repository) Hibernate(addr common.Address) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	account, err := r.getOrCreateAccount(addr)
	if err != nil {
		return err
	}
	account.Hibernate()
	return r.updateAccountState(addr, account)
}

// GetBalance returns the balance at addr; a missing account has none.
func (r *Repository) GetBalance(addr common.Address) (*uint256.Int, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	account, err := r.getAccountState(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return new(uint256.Int), nil
	}
	return account.Balance, nil
}

// AddBalance credits value to addr, creating the account if needed, and
// returns the new balance.
func (r *Repository) AddBalance(addr common.Address, value *uint256.Int) (*uint256.Int, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	account, err := r.getOrCreateAccount(addr)
	if err != nil {
		return nil, err
	}
	balance, err := account.AddBalance(value)
	if err != nil {
		return nil, err
	}
	return balance, r.updateAccountState(addr, account)
}

// SubBalance debits value from addr and returns the new balance.
func (r *Repository) SubBalance(addr common.Address, value *uint256.Int) (*uint256.Int, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	account, err := r.getOrCreateAccount(addr)
	if err != nil {
		return nil, err
	}
	balance, err := account.SubBalance(value)
	if err != nil {
		return nil, err
	}
	return balance, r.updateAccountState(addr, account)
}

// GetNonce returns the nonce at addr without creating the account.
func (r *Repository) GetNonce(addr common.Address) (uint64, error) {
	if err := r.lock(); err != nil {
		return 0, err
	}
	defer r.mu.Unlock()

	account, err := r.getAccountState(addr)
	if err != nil || account == nil {
		return 0, err
	}
	return account.Nonce, nil
}

// SetNonce sets the nonce of addr, creating the account if needed.
func (r *Repository) SetNonce(addr common.Address, nonce uint64) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	account, err := r.getOrCreateAccount(addr)
	if err != nil {
		return err
	}
	account.Nonce = nonce
	return r.updateAccountState(addr, account)
}

// IncreaseNonce increments the nonce of addr and returns it.
func (r *Repository) IncreaseNonce(addr common.Address) (uint64, error) {
	if err := r.lock(); err != nil {
		return 0, err
	}
	defer r.mu.Unlock()

	account, err := r.getOrCreateAccount(addr)
	if err != nil {
		return 0, err
	}
	nonce := account.IncrementNonce()
	return nonce, r.updateAccountState(addr, account)
}

// SaveCode stores code for addr. Empty code for a missing account does
// nothing; otherwise the account is created if needed.
func (r *Repository) SaveCode(addr common.Address, code []byte) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	exists, err := r.isExist(addr)
	if err != nil {
		return err
	}
	if len(code) == 0 && !exists {
		return nil
	}
	if err := r.trie.Put(r.keys.CodeKey(addr), code); err != nil {
		return err
	}
	if !exists {
		_, err = r.createAccount(addr)
	}
	return err
}

// codeAccount returns the account at addr if it may expose code.
func (r *Repository) codeAccount(addr common.Address) (bool, error) {
	account, err := r.getAccountState(addr)
	if err != nil || account == nil {
		return false, err
	}
	return !account.IsHibernated(), nil
}

// GetCode returns the code of addr. Missing and hibernated accounts have
// none.
func (r *Repository) GetCode(addr common.Address) ([]byte, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	ok, err := r.codeAccount(addr)
	if err != nil || !ok {
		return nil, err
	}
	return r.trie.Get(r.keys.CodeKey(addr))
}

// GetCodeHash returns the keccak hash of the code of addr, EmptyCodeHash
// for an account without code, and false for a missing or hibernated
// account.
func (r *Repository) GetCodeHash(addr common.Address) (common.Hash, bool, error) {
	if err := r.lock(); err != nil {
		return common.Hash{}, false, err
	}
	defer r.mu.Unlock()

	ok, err := r.codeAccount(addr)
	if err != nil || !ok {
		return common.Hash{}, false, err
	}
	h, present, err := r.trie.ValueHash(r.keys.CodeKey(addr))
	if err != nil {
		return common.Hash{}, false, err
	}
	if !present {
		return EmptyCodeHash, true, nil
	}
	return h, true, nil
}

// GetCodeLength returns the code length of addr without reading the code.
func (r *Repository) GetCodeLength(addr common.Address) (int, error) {
	if err := r.lock(); err != nil {
		return 0, err
	}
	defer r.mu.Unlock()

	ok, err := r.codeAccount(addr)
	if err != nil || !ok {
		return 0, err
	}
	return r.trie.ValueLength(r.keys.CodeKey(addr))
}

// SetupContract writes the contract marker at the storage prefix of addr.
func (r *Repository) SetupContract(addr common.Address) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()
	return r.setupContract(addr)
}

func (r *Repository) setupContract(addr common.Address) error {
	return r.trie.Put(r.keys.StoragePrefix(addr), contractFlag)
}

// ContractHasStorage reports whether addr carries the contract marker.
func (r *Repository) ContractHasStorage(addr common.Address) (bool, error) {
	if err := r.lock(); err != nil {
		return false, err
	}
	defer r.mu.Unlock()

	v, err := r.trie.Get(r.keys.StoragePrefix(addr))
	return v != nil, err
}

// GetStorageStateRoot returns the hash of the node at the storage prefix of
// addr, or the empty hash when the account has no storage subtree. The
// node includes the contract marker.
func (r *Repository) GetStorageStateRoot(addr common.Address) (common.Hash, error) {
	if err := r.lock(); err != nil {
		return common.Hash{}, err
	}
	defer r.mu.Unlock()

	t, err := r.trie.Trie()
	if err != nil {
		return common.Hash{}, err
	}
	n, err := t.Find(r.keys.StoragePrefix(addr))
	if err != nil {
		return common.Hash{}, err
	}
	if n == nil {
		return trie.EmptyHash, nil
	}
	return n.Hash(), nil
}

// AddStorageRow stores a 32-byte cell with its leading zeros stripped. A
// zero value deletes the cell.
func (r *Repository) AddStorageRow(addr common.Address, key, value common.Hash) error {
	return r.AddStorageBytes(addr, key, bytes.TrimLeft(value[:], "\x00"))
}

// AddStorageBytes stores value under storage key of addr, creating the
// account as a contract if needed. An empty value deletes the cell.
func (r *Repository) AddStorageBytes(addr common.Address, key common.Hash, value []byte) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	exists, err := r.isExist(addr)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := r.createAccount(addr); err != nil {
			return err
		}
		if err := r.setupContract(addr); err != nil {
			return err
		}
	}

	trieKey := r.keys.StorageKey(addr, key)
	if r.lookup != nil {
		r.lookup.AddStorageKey(trieKey, key)
	}
	return r.trie.Put(trieKey, value)
}

// GetStorageValue returns the cell at key of addr left-padded to 32 bytes,
// and whether it exists.
func (r *Repository) GetStorageValue(addr common.Address, key common.Hash) (common.Hash, bool, error) {
	if err := r.lock(); err != nil {
		return common.Hash{}, false, err
	}
	defer r.mu.Unlock()

	v, err := r.trie.Get(r.keys.StorageKey(addr, key))
	if err != nil || v == nil {
		return common.Hash{}, false, err
	}
	return common.BytesToHash(v), true, nil
}

// GetStorageBytes returns the raw cell at key of addr, or nil.
func (r *Repository) GetStorageBytes(addr common.Address, key common.Hash) ([]byte, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()
	return r.trie.Get(r.keys.StorageKey(addr, key))
}

// GetStorageKeys returns the storage subkeys of addr in trie order.
func (r *Repository) GetStorageKeys(addr common.Address) ([]common.Hash, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	keys, err := r.trie.CollectKeysFrom(r.keys.StoragePrefix(addr))
	if err != nil {
		return nil, err
	}
	size := r.keys.StorageKeySize()
	out := make([]common.Hash, 0, len(keys))
	for _, k := range keys {
		// the subkey closes the storage key in both layouts
		if len(k) == size {
			out = append(out, common.BytesToHash(k[size-StorageKeySize:]))
		}
	}
	return out, nil
}

// GetAccountsKeys returns the addresses of every account. Secure keys are
// mapped back through lookup, which must then be non-nil and know every
// key.
func (r *Repository) GetAccountsKeys(lookup *KeyLookup) ([]common.Address, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	keys, err := r.trie.CollectKeys(r.keys.AccountKeySize())
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(keys))
	for _, k := range keys {
		if k[0] != domainPrefix[0] {
			continue
		}
		if !r.keys.IsSecure() {
			out = append(out, common.BytesToAddress(k[len(domainPrefix):]))
			continue
		}
		if lookup == nil {
			return nil, fmt.Errorf("%w: secure trie needs a lookup", ErrMissingKeyLookup)
		}
		addr, ok := lookup.Address(k)
		if !ok {
			return nil, fmt.Errorf("%w: %x", ErrMissingKeyLookup, k)
		}
		out = append(out, addr)
	}
	return out, nil
}

// GetRoot saves the trie when it has a store and returns its root hash.
func (r *Repository) GetRoot() (common.Hash, error) {
	if err := r.lock(); err != nil {
		return common.Hash{}, err
	}
	defer r.mu.Unlock()

	if r.trie.HasStore() {
		if err := r.trie.Save(); err != nil {
			return common.Hash{}, err
		}
	}
	root, err := r.trie.Hash()
	if err != nil {
		return common.Hash{}, err
	}
	r.logger.Debug("repository root", zap.Stringer("root", root))
	return root, nil
}

// Flush persists the current state through the trie store.
func (r *Repository) Flush() error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()
	return r.trie.Save()
}

// StartTracking returns a repository buffering its writes over this one.
// Commit on it pushes the writes here; Rollback drops them. The tracking
// repository takes this repository's lock whenever it reads or writes
// through, so the two may be used from different goroutines.
func (r *Repository) StartTracking() (*Repository, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	return newRepository(newGuardedTrackingTrie(r.trie, &r.mu),
		WithRepositoryLogger(r.logger),
		WithKeyLookup(r.lookup)), nil
}

// Commit pushes buffered writes into the parent repository.
func (r *Repository) Commit() error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()
	return r.trie.Commit()
}

// Rollback drops buffered writes.
func (r *Repository) Rollback() error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()
	r.trie.Rollback()
	return nil
}

// GetSnapshotTo returns an independent repository over the state committed
// under root.
func (r *Repository) GetSnapshotTo(root common.Hash) (*Repository, error) {
	if err := r.lock(); err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	mt, err := r.trie.SnapshotTo(root)
	if err != nil {
		return nil, err
	}
	return newRepository(mt, WithRepositoryLogger(r.logger), WithKeyLookup(r.lookup)), nil
}

// SyncToRoot moves this repository to the state committed under root.
// Unsaved changes are dropped. The view is moved in place, so tracking
// repositories started earlier stay attached to it.
func (r *Repository) SyncToRoot(root common.Hash) error {
	if err := r.lock(); err != nil {
		return err
	}
	defer r.mu.Unlock()

	if err := r.trie.SetSnapshotTo(root); err != nil {
		return err
	}
	r.logger.Debug("synced to root", zap.Stringer("root", root))
	return nil
}
