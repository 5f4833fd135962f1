package state

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// KeyLookup maps trie keys back to the addresses and storage subkeys they
// were derived from. Secure keys embed a truncated hash, so listing the
// accounts of a secure trie needs a lookup filled while writing.
type KeyLookup struct {
	mu        sync.RWMutex
	addresses map[string]common.Address
	storage   map[string]common.Hash
}

// NewKeyLookup returns an empty lookup.
func NewKeyLookup() *KeyLookup {
	return &KeyLookup{
		addresses: make(map[string]common.Address),
		storage:   make(map[string]common.Hash),
	}
}

// AddAddress records that key is the account key of addr.
func (l *KeyLookup) AddAddress(key []byte, addr common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addresses[string(key)] = addr
}

// AddStorageKey records that key is the trie key of storage cell subkey.
func (l *KeyLookup) AddStorageKey(key []byte, subkey common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.storage[string(key)] = subkey
}

// Address returns the address whose account key is key.
func (l *KeyLookup) Address(key []byte) (common.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	addr, ok := l.addresses[string(key)]
	return addr, ok
}

// StorageKey returns the subkey whose storage key is key.
func (l *KeyLookup) StorageKey(key []byte) (common.Hash, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sub, ok := l.storage[string(key)]
	return sub, ok
}

// Len returns the number of recorded keys.
func (l *KeyLookup) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.addresses) + len(l.storage)
}
