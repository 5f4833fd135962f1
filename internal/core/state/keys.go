package state

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Key layout constants, in bytes.
const (
	SecureKeySize  = 10
	AddressLength  = common.AddressLength
	StorageKeySize = common.HashLength
)

var (
	domainPrefix  = []byte{0x00}
	codeMarker    = []byte{0x80} // MSB 1 branches away from storage
	storageMarker = []byte{0x00} // MSB 0
	contractFlag  = []byte{0x01}
)

// KeyCodec derives trie keys for accounts, their code and their storage.
//
//	account = 0x00 | [keccak(addr)[:10]] | addr
//	storage = account | 0x00 | [keccak(subkey)[:10]] | subkey
//	code    = account | 0x80
//
// The bracketed parts are present in secure mode only. The most recently
// derived account key is kept, since storage operations tend to hit one
// contract many times in a row.
type KeyCodec struct {
	secure bool

	mu       sync.Mutex
	lastAddr common.Address
	lastKey  []byte
}

// NewKeyCodec returns a codec for secure or plain keys.
func NewKeyCodec(secure bool) *KeyCodec {
	return &KeyCodec{secure: secure}
}

// IsSecure reports whether keys carry hashed infixes.
func (c *KeyCodec) IsSecure() bool {
	return c.secure
}

// AccountKeySize returns the length of an account key.
func (c *KeyCodec) AccountKeySize() int {
	if c.secure {
		return len(domainPrefix) + SecureKeySize + AddressLength
	}
	return len(domainPrefix) + AddressLength
}

// AccountKey returns the key of the account record of addr.
func (c *KeyCodec) AccountKey(addr common.Address) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastKey == nil || addr != c.lastAddr {
		c.lastKey = accountKey(addr, c.secure)
		c.lastAddr = addr
	}
	return common.CopyBytes(c.lastKey)
}

// StoragePrefix returns the key under which all storage of addr lives. The
// contract marker is stored at this key.
func (c *KeyCodec) StoragePrefix(addr common.Address) []byte {
	return append(c.AccountKey(addr), storageMarker...)
}

// StorageKey returns the key of storage cell subkey of addr.
func (c *KeyCodec) StorageKey(addr common.Address, subkey common.Hash) []byte {
	return append(c.StoragePrefix(addr), StorageTailKey(subkey[:], c.secure)...)
}

// StorageKeySize returns the length of a storage cell key.
func (c *KeyCodec) StorageKeySize() int {
	size := c.AccountKeySize() + len(storageMarker) + StorageKeySize
	if c.secure {
		size += SecureKeySize
	}
	return size
}

// CodeKey returns the key of the code of addr.
func (c *KeyCodec) CodeKey(addr common.Address) []byte {
	return append(c.AccountKey(addr), codeMarker...)
}

// StorageTailKey returns the part of a storage key following the storage
// marker.
func StorageTailKey(subkey []byte, secure bool) []byte {
	if !secure {
		return common.CopyBytes(subkey)
	}
	tail := make([]byte, 0, SecureKeySize+len(subkey))
	tail = append(tail, crypto.Keccak256(subkey)[:SecureKeySize]...)
	return append(tail, subkey...)
}

func accountKey(addr common.Address, secure bool) []byte {
	key := make([]byte, 0, len(domainPrefix)+SecureKeySize+AddressLength)
	key = append(key, domainPrefix...)
	if secure {
		key = append(key, crypto.Keccak256(addr[:])[:SecureKeySize]...)
	}
	return append(key, addr[:]...)
}
