package nodestore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestRecordRoundTrip(t *testing.T) {
	rc, err := newRecordCodec(DefaultConfig())
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	for _, data := range [][]byte{[]byte("short"), bytes.Repeat([]byte("long record "), 64)} {
		node := NewNode(KindTrieNode, data)
		framed, err := rc.encode(node)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := rc.decode(node.Hash, framed)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(got.Data, data) || got.Kind != KindTrieNode {
			t.Errorf("round trip changed the record of %d bytes", len(data))
		}
	}
}

func TestRecordLengthBound(t *testing.T) {
	rc, err := newRecordCodec(DefaultConfig())
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	hash := crypto.Keccak256Hash([]byte("x"))

	tests := []struct {
		name    string
		flag    byte
		rawSize uint32
	}{
		{"compressed over the record bound", 1, MaxRecordSize + 1},
		{"compressed near 4 GiB", 1, 0xffffffff},
		{"compressed beyond the lz4 ratio", 1, 4096},
		{"raw over the record bound", 0, MaxRecordSize + 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			framed := make([]byte, recordHeaderSize+4)
			framed[0] = byte(KindValue)
			framed[1] = tc.flag
			binary.LittleEndian.PutUint32(framed[2:6], tc.rawSize)

			_, err := rc.decode(hash, framed)
			if !errors.Is(err, ErrDataCorrupt) {
				t.Errorf("expected ErrDataCorrupt, got %v", err)
			}
		})
	}
}
