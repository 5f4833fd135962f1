package trie

import (
	"encoding/binary"
	"fmt"

	"github.com/LeJamon/goUnitrie/internal/core/trie/pathcodec"
	"github.com/ethereum/go-ethereum/common"
)

const (
	legacyArity       = 2
	legacyFlagSecure  = 0x01
	legacyFlagLong    = 0x02
	legacyFlagsKnown  = legacyFlagSecure | legacyFlagLong
	legacyHeaderBytes = 1 + 1 + 2 + 2
)

// LegacyCodec reads and writes the pre-unitrie node layout:
//
//	arity(1) | flags(1) | childBitmap(2) | pathBits(2) | path | childHash* | value
//
// A long value is written as its hash alone, so decoding one fetches the body
// to learn its length.
var LegacyCodec Codec = legacyCodec{}

type legacyCodec struct{}

func (legacyCodec) Name() string {
	return "legacy"
}

func (legacyCodec) Encode(n *Node) []byte {
	encodedPath := pathcodec.Encode(n.path)

	var flags byte
	if n.secure {
		flags |= legacyFlagSecure
	}
	if n.value.IsLong() {
		flags |= legacyFlagLong
	}

	var bitmap uint16
	var hashes []common.Hash
	for i := 0; i < Arity; i++ {
		if h, ok := n.ChildHash(i); ok {
			bitmap |= 1 << i
			hashes = append(hashes, h)
		}
	}

	msg := make([]byte, 0, legacyHeaderBytes+len(encodedPath)+len(hashes)*hashLength+hashLength)
	msg = append(msg, legacyArity, flags)
	msg = binary.BigEndian.AppendUint16(msg, bitmap)
	msg = binary.BigEndian.AppendUint16(msg, uint16(len(n.path)))
	msg = append(msg, encodedPath...)
	for _, h := range hashes {
		msg = append(msg, h[:]...)
	}
	switch n.value.kind {
	case ByHash:
		msg = append(msg, n.value.hash[:]...)
	case Inline:
		msg = append(msg, n.value.inline...)
	}
	return msg
}

func (c legacyCodec) Decode(msg []byte, values ValueReader) (*Node, error) {
	if len(msg) < legacyHeaderBytes {
		return nil, newSerializationError(c.Name(), fmt.Sprintf("message size %d below header size %d", len(msg), legacyHeaderBytes), nil)
	}
	if msg[0] != legacyArity {
		return nil, &UnsupportedFormatError{Codec: c.Name(), Header: msg[0], Reason: "invalid arity"}
	}
	flags := msg[1]
	if flags&^legacyFlagsKnown != 0 {
		return nil, &UnsupportedFormatError{Codec: c.Name(), Header: flags, Reason: "unknown flag bits"}
	}
	bitmap := binary.BigEndian.Uint16(msg[2:4])
	if bitmap&^0x03 != 0 {
		return nil, &UnsupportedFormatError{Codec: c.Name(), Header: byte(bitmap), Reason: "child bitmap beyond binary arity"}
	}
	pathBits := int(binary.BigEndian.Uint16(msg[4:6]))

	r := reader{codec: c.Name(), msg: msg, pos: legacyHeaderBytes}
	path, err := r.path(pathBits)
	if err != nil {
		return nil, err
	}

	n := newNode(c, flags&legacyFlagSecure != 0, path, NoValue)
	for i := 0; i < Arity; i++ {
		if bitmap&(1<<i) == 0 {
			continue
		}
		h, err := r.hash()
		if err != nil {
			return nil, err
		}
		n.children[i].hash = &h
	}

	if flags&legacyFlagLong == 0 {
		if inline := r.rest(); len(inline) > 0 {
			if len(inline) > MaxInlineValueSize {
				return nil, newInvariantError("inline value of %d bytes exceeds %d", len(inline), MaxInlineValueSize)
			}
			n.value = InlineValue(inline)
		}
		return n, nil
	}

	h, err := r.hash()
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, newSerializationError(c.Name(), fmt.Sprintf("%d trailing bytes after value hash", r.remaining()), nil)
	}
	if values == nil {
		return nil, &StoreConsistencyError{Hash: h, What: "value"}
	}
	body, err := values.RetrieveValue(h)
	if err != nil {
		return nil, err
	}
	if len(body) <= MaxInlineValueSize {
		return nil, newInvariantError("long value flag with length %d", len(body))
	}
	n.value = HashedValue(h, len(body))
	n.body.Store(&body)
	return n, nil
}
