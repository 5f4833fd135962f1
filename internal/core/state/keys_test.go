package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestPlainKeys(t *testing.T) {
	c := NewKeyCodec(false)
	sub := common.HexToHash("0x01")

	account := c.AccountKey(alice)
	require.Len(t, account, 21)
	assert.Equal(t, byte(0x00), account[0])
	assert.Equal(t, alice[:], account[1:])
	assert.Equal(t, 21, c.AccountKeySize())

	code := c.CodeKey(alice)
	assert.Equal(t, append(account, 0x80), code)

	prefix := c.StoragePrefix(alice)
	assert.Equal(t, append(account, 0x00), prefix)

	storage := c.StorageKey(alice, sub)
	assert.Equal(t, append(common.CopyBytes(prefix), sub[:]...), storage)
	assert.Len(t, storage, c.StorageKeySize())
}

func TestSecureKeys(t *testing.T) {
	c := NewKeyCodec(true)
	sub := common.HexToHash("0x02")

	account := c.AccountKey(alice)
	require.Len(t, account, 31)
	assert.Equal(t, crypto.Keccak256(alice[:])[:SecureKeySize], account[1:11])
	assert.Equal(t, alice[:], account[11:])

	storage := c.StorageKey(alice, sub)
	require.Len(t, storage, c.StorageKeySize())
	tail := storage[len(account)+1:]
	assert.Equal(t, crypto.Keccak256(sub[:])[:SecureKeySize], tail[:SecureKeySize])
	assert.Equal(t, sub[:], tail[SecureKeySize:])
}

func TestAccountKeyCache(t *testing.T) {
	c := NewKeyCodec(true)
	first := c.AccountKey(alice)
	first[0] = 0xff // callers own the returned slice

	assert.Equal(t, byte(0x00), c.AccountKey(alice)[0])
	assert.NotEqual(t, c.AccountKey(alice), c.AccountKey(bob))
	assert.Equal(t, accountKey(alice, true), c.AccountKey(alice))
}

func TestCodeAndStorageBranchApart(t *testing.T) {
	c := NewKeyCodec(false)
	code := c.CodeKey(alice)
	prefix := c.StoragePrefix(alice)
	// the byte after the account key differs in its first bit
	assert.Equal(t, byte(0x80), code[len(code)-1]^prefix[len(prefix)-1])
}
