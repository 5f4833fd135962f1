package trie

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// valueMap serves long values to decoders that need them.
type valueMap map[common.Hash][]byte

func (m valueMap) RetrieveValue(hash common.Hash) ([]byte, error) {
	if v, ok := m[hash]; ok {
		return v, nil
	}
	return nil, &StoreConsistencyError{Hash: hash, What: "value"}
}

// countingCodec records how many messages it produced.
type countingCodec struct {
	Codec
	encodes int
}

func (c *countingCodec) Encode(n *Node) []byte {
	c.encodes++
	return c.Codec.Encode(n)
}

func TestCanonicalLayout(t *testing.T) {
	short := mustPut(t, New(), "\xab", "x")
	assert.Equal(t, []byte{0x00, 0x00, 0x08, 0xab, 'x'}, short.Root().Message())

	long := bytes.Repeat([]byte{7}, 40)
	tr, err := New().Put([]byte{0xab}, long)
	require.NoError(t, err)
	h := crypto.Keccak256Hash(long)
	want := append([]byte{flagLongValue, 0x00, 0x08, 0xab}, h[:]...)
	want = append(want, 0x00, 0x00, 40)
	assert.Equal(t, want, tr.Root().Message())

	// root branch on the first bit with an empty shared path
	branch := mustPut(t, mustPut(t, New(), "\x00", "a"), "\x80", "b")
	msg := branch.Root().Message()
	require.Len(t, msg, canonicalHeader+2*hashLength)
	assert.Equal(t, byte(flagChild0|flagChild1), msg[0])
	assert.Equal(t, []byte{0x00, 0x00}, msg[1:3])
}

func TestLegacyLayout(t *testing.T) {
	short := mustPut(t, New(WithCodec(LegacyCodec)), "\xab", "x")
	assert.Equal(t, []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x08, 0xab, 'x'}, short.Root().Message())

	canonical := mustPut(t, New(), "\xab", "x")
	assert.NotEqual(t, canonical.Hash(), short.Hash())
}

func TestCodecRoundTrip(t *testing.T) {
	long := bytes.Repeat([]byte("long value "), 8)
	values := valueMap{crypto.Keccak256Hash(long): long}

	for _, codec := range []Codec{CanonicalCodec, LegacyCodec} {
		t.Run(codec.Name(), func(t *testing.T) {
			cases := map[string]*Trie{}
			cases["short leaf"] = mustPut(t, New(WithCodec(codec)), "key", "short")
			longLeaf, err := New(WithCodec(codec)).Put([]byte("key"), long)
			require.NoError(t, err)
			cases["long leaf"] = longLeaf
			cases["branch"] = mustPut(t, mustPut(t, New(WithCodec(codec)), "\x00", "a"), "\x80", "b")
			cases["branch with value"] = mustPut(t, mustPut(t, New(WithCodec(codec)), "ca", "v"), "cat", "meow")
			cases["secure"] = mustPut(t, New(WithCodec(codec), WithSecure(true)), "key", "short")

			for name, tr := range cases {
				msg := tr.Root().Message()
				decoded, err := codec.Decode(msg, values)
				require.NoError(t, err, name)
				assert.Equal(t, msg, decoded.Message(), name)
				assert.Equal(t, tr.Hash(), decoded.Hash(), name)
				assert.Equal(t, tr.Root().Value().Kind(), decoded.Value().Kind(), name)
				assert.Equal(t, tr.Root().Value().Len(), decoded.Value().Len(), name)
				assert.Equal(t, tr.Root().ChildCount(), decoded.ChildCount(), name)
			}
		})
	}
}

func TestEmptyNodeIsNotEncoded(t *testing.T) {
	codec := &countingCodec{Codec: CanonicalCodec}
	n := newNode(codec, false, nil, NoValue)
	assert.Equal(t, EmptyHash, n.Hash())
	assert.Zero(t, codec.encodes)

	tr := New(WithCodec(codec))
	assert.Equal(t, EmptyHash, tr.Hash())
	assert.Zero(t, codec.encodes)
}

func TestHashIsMemoized(t *testing.T) {
	codec := &countingCodec{Codec: CanonicalCodec}
	tr := mustPut(t, New(WithCodec(codec)), "cat", "meow")
	first := tr.Hash()
	encodes := codec.encodes
	assert.Equal(t, first, tr.Hash())
	assert.Equal(t, encodes, codec.encodes)
}

func TestDecodeErrors(t *testing.T) {
	h := crypto.Keccak256Hash([]byte("x"))

	tests := []struct {
		name  string
		codec Codec
		msg   []byte
		want  error
	}{
		{"short header", CanonicalCodec, []byte{0x00, 0x00}, ErrSerialization},
		{"truncated path", CanonicalCodec, []byte{0x00, 0x00, 0x10, 0xab}, ErrSerialization},
		{"truncated child hash", CanonicalCodec, append([]byte{flagChild0, 0x00, 0x00}, h[:10]...), ErrSerialization},
		{"truncated long value", CanonicalCodec, append([]byte{flagLongValue, 0x00, 0x00}, h[:]...), ErrSerialization},
		{"non-zero padding", CanonicalCodec, []byte{0x00, 0x00, 0x04, 0xab}, ErrSerialization},
		{"unknown flags", CanonicalCodec, []byte{0x40, 0x00, 0x00}, ErrUnsupportedFormat},
		{"long value too short", CanonicalCodec, append(append([]byte{flagLongValue, 0x00, 0x00}, h[:]...), 0x00, 0x00, 10), ErrInvariantViolation},
		{"inline value too long", CanonicalCodec, append([]byte{0x00, 0x00, 0x00}, bytes.Repeat([]byte{1}, 33)...), ErrInvariantViolation},
		{"legacy arity", LegacyCodec, []byte{0x04, 0x00, 0x00, 0x00, 0x00, 0x00}, ErrUnsupportedFormat},
		{"legacy bitmap", LegacyCodec, []byte{0x02, 0x00, 0x00, 0x04, 0x00, 0x00}, ErrUnsupportedFormat},
		{"legacy short header", LegacyCodec, []byte{0x02, 0x00}, ErrSerialization},
		{"legacy missing value", LegacyCodec, append([]byte{0x02, legacyFlagLong, 0x00, 0x00, 0x00, 0x00}, h[:]...), ErrStoreConsistency},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.codec.Decode(tc.msg, valueMap{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsFatal(err))
		})
	}
}

func TestCodecRegistry(t *testing.T) {
	c, err := CodecByName("unitrie")
	require.NoError(t, err)
	assert.Equal(t, CanonicalCodec, c)

	c, err = CodecByName("legacy")
	require.NoError(t, err)
	assert.Equal(t, LegacyCodec, c)

	_, err = CodecByName("nibble")
	assert.Error(t, err)
}
