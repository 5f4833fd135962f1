package trie

import (
	"encoding/binary"
	"fmt"

	"github.com/LeJamon/goUnitrie/internal/core/trie/pathcodec"
	"github.com/ethereum/go-ethereum/common"
)

// Codec is the serialization strategy of a node's own fields. The hash of a
// node is the keccak of its encoding, so a trie uses one codec throughout.
type Codec interface {
	// Name identifies the format in configuration and logs.
	Name() string

	// Encode returns the message of n. Child hashes are computed as needed.
	Encode(n *Node) []byte

	// Decode parses a message produced by Encode. values serves formats that
	// need to fetch an out-of-line value while parsing.
	Decode(msg []byte, values ValueReader) (*Node, error)
}

// ValueReader fetches out-of-line values by content hash.
type ValueReader interface {
	RetrieveValue(hash common.Hash) ([]byte, error)
}

const (
	flagSecure    = 0x01
	flagLongValue = 0x02
	flagChild0    = 0x04
	flagChild1    = 0x08
	flagsKnown    = flagSecure | flagLongValue | flagChild0 | flagChild1

	hashLength      = common.HashLength
	uint24Length    = 3
	canonicalHeader = 1 + 2
)

var (
	// CanonicalCodec is the default node format.
	CanonicalCodec Codec = canonicalCodec{}

	codecs = map[string]Codec{}
)

func init() {
	RegisterCodec(CanonicalCodec)
	RegisterCodec(LegacyCodec)
}

// RegisterCodec makes a codec available through CodecByName.
func RegisterCodec(c Codec) {
	codecs[c.Name()] = c
}

// CodecByName returns a registered codec.
func CodecByName(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unknown node codec: %s", name)
	}
	return c, nil
}

// canonicalCodec lays a node out as
//
//	flags(1) | pathBits(2) | path | childHash* | value
//
// where value is the inline bytes, or hash(32) | length(3) for long values.
type canonicalCodec struct{}

func (canonicalCodec) Name() string {
	return "unitrie"
}

func (canonicalCodec) Encode(n *Node) []byte {
	encodedPath := pathcodec.Encode(n.path)

	var flags byte
	if n.secure {
		flags |= flagSecure
	}
	if n.value.IsLong() {
		flags |= flagLongValue
	}

	var hashes [Arity]common.Hash
	present := 0
	for i := 0; i < Arity; i++ {
		if h, ok := n.ChildHash(i); ok {
			hashes[present] = h
			present++
			flags |= flagChild0 << i
		}
	}

	size := canonicalHeader + len(encodedPath) + present*hashLength
	if n.value.IsLong() {
		size += hashLength + uint24Length
	} else {
		size += n.value.length
	}

	msg := make([]byte, 0, size)
	msg = append(msg, flags)
	msg = binary.BigEndian.AppendUint16(msg, uint16(len(n.path)))
	msg = append(msg, encodedPath...)
	for i := 0; i < present; i++ {
		msg = append(msg, hashes[i][:]...)
	}
	switch n.value.kind {
	case ByHash:
		msg = append(msg, n.value.hash[:]...)
		msg = appendUint24(msg, n.value.length)
	case Inline:
		msg = append(msg, n.value.inline...)
	}
	return msg
}

func (c canonicalCodec) Decode(msg []byte, _ ValueReader) (*Node, error) {
	if len(msg) < canonicalHeader {
		return nil, newSerializationError(c.Name(), fmt.Sprintf("message size %d below header size %d", len(msg), canonicalHeader), nil)
	}

	flags := msg[0]
	if flags&^flagsKnown != 0 {
		return nil, &UnsupportedFormatError{Codec: c.Name(), Header: flags, Reason: "unknown flag bits"}
	}

	pathBits := int(binary.BigEndian.Uint16(msg[1:3]))
	r := reader{codec: c.Name(), msg: msg, pos: canonicalHeader}

	path, err := r.path(pathBits)
	if err != nil {
		return nil, err
	}

	n := newNode(c, flags&flagSecure != 0, path, NoValue)
	for i := 0; i < Arity; i++ {
		if flags&(flagChild0<<i) == 0 {
			continue
		}
		h, err := r.hash()
		if err != nil {
			return nil, err
		}
		n.children[i].hash = &h
	}

	if flags&flagLongValue != 0 {
		h, err := r.hash()
		if err != nil {
			return nil, err
		}
		length, err := r.uint24()
		if err != nil {
			return nil, err
		}
		if r.remaining() != 0 {
			return nil, newSerializationError(c.Name(), fmt.Sprintf("%d trailing bytes after long value", r.remaining()), nil)
		}
		if length <= MaxInlineValueSize {
			return nil, newInvariantError("long value flag with length %d", length)
		}
		n.value = HashedValue(h, length)
		return n, nil
	}

	if inline := r.rest(); len(inline) > 0 {
		if len(inline) > MaxInlineValueSize {
			return nil, newInvariantError("inline value of %d bytes exceeds %d", len(inline), MaxInlineValueSize)
		}
		n.value = InlineValue(inline)
	}
	return n, nil
}

// reader walks a message with bounds checks that report SerializationError.
type reader struct {
	codec string
	msg   []byte
	pos   int
}

func (r *reader) remaining() int {
	return len(r.msg) - r.pos
}

func (r *reader) take(n int, what string) ([]byte, error) {
	if r.remaining() < n {
		return nil, newSerializationError(r.codec,
			fmt.Sprintf("truncated %s: need %d bytes, have %d", what, n, r.remaining()), nil)
	}
	b := r.msg[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) path(bits int) ([]byte, error) {
	if bits == 0 {
		return nil, nil
	}
	encoded, err := r.take(pathcodec.EncodedLength(bits), "shared path")
	if err != nil {
		return nil, err
	}
	if !pathcodec.PaddingIsZero(encoded, bits) {
		return nil, newSerializationError(r.codec, "non-zero shared path padding", nil)
	}
	return pathcodec.Decode(encoded, bits), nil
}

func (r *reader) hash() (common.Hash, error) {
	b, err := r.take(hashLength, "hash")
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b), nil
}

func (r *reader) uint24() (int, error) {
	b, err := r.take(uint24Length, "value length")
	if err != nil {
		return 0, err
	}
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2]), nil
}

func (r *reader) rest() []byte {
	b := r.msg[r.pos:]
	r.pos = len(r.msg)
	return b
}

func appendUint24(b []byte, v int) []byte {
	return append(b, byte(v>>16), byte(v>>8), byte(v))
}
