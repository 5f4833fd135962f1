package trie

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	// MaxInlineValueSize is the largest value stored inside its node message.
	MaxInlineValueSize = 32

	// MaxValueSize is the largest value whose length fits the uint24 field.
	MaxValueSize = 1<<24 - 1

	// MaxKeySize is the largest key, in bytes, whose bit path fits the uint16 field.
	MaxKeySize = (1<<16 - 1) / 8
)

// EmptyHash is the hash of the canonical empty node, keccak256 of the RLP
// empty string.
var EmptyHash = crypto.Keccak256Hash(rlp.EmptyString)

// ValueKind tells how a node carries its value.
type ValueKind uint8

const (
	// Absent means the node holds no value.
	Absent ValueKind = iota
	// Inline means the value bytes are part of the node message.
	Inline
	// ByHash means the value is stored out of line under its hash.
	ByHash
)

// String returns the string representation of the ValueKind.
func (k ValueKind) String() string {
	switch k {
	case Absent:
		return "Absent"
	case Inline:
		return "Inline"
	case ByHash:
		return "ByHash"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is the payload of a node. It is immutable; the bytes of a ByHash
// value are fetched lazily and memoized on the owning node.
type Value struct {
	kind   ValueKind
	inline []byte
	hash   common.Hash
	length int
}

// NoValue is the Absent value.
var NoValue = Value{}

// InlineValue returns a value carried inside the node message.
func InlineValue(data []byte) Value {
	return Value{kind: Inline, inline: common.CopyBytes(data), length: len(data)}
}

// HashedValue returns a value known by hash and length only.
func HashedValue(hash common.Hash, length int) Value {
	return Value{kind: ByHash, hash: hash, length: length}
}

// valueOf classifies raw bytes. An empty slice is Absent.
func valueOf(data []byte) Value {
	switch {
	case len(data) == 0:
		return NoValue
	case len(data) > MaxInlineValueSize:
		return HashedValue(crypto.Keccak256Hash(data), len(data))
	default:
		return InlineValue(data)
	}
}

// Kind returns how the value is carried.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsAbsent reports whether there is no value.
func (v Value) IsAbsent() bool {
	return v.kind == Absent
}

// IsLong reports whether the value is stored out of line.
func (v Value) IsLong() bool {
	return v.kind == ByHash
}

// Len returns the value length without fetching the value.
func (v Value) Len() int {
	return v.length
}

// Hash returns the keccak hash of the value. Inline values are hashed on
// demand; Absent yields the zero hash and false.
func (v Value) Hash() (common.Hash, bool) {
	switch v.kind {
	case ByHash:
		return v.hash, true
	case Inline:
		return crypto.Keccak256Hash(v.inline), true
	default:
		return common.Hash{}, false
	}
}

// equal compares two values without fetching long bodies.
func (v Value) equal(o Value) bool {
	if v.kind != o.kind || v.length != o.length {
		return false
	}
	switch v.kind {
	case Inline:
		return bytes.Equal(v.inline, o.inline)
	case ByHash:
		return v.hash == o.hash
	default:
		return true
	}
}

// checkBody verifies that fetched bytes match the recorded bookkeeping.
func (v Value) checkBody(body []byte) error {
	if body == nil && v.length != 0 {
		return newInvariantError("value %s of length %d has no body", v.hash.Hex(), v.length)
	}
	if len(body) != v.length {
		return newInvariantError("value length %d, recorded %d", len(body), v.length)
	}
	return nil
}
