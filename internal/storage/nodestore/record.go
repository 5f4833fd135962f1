package nodestore

import (
	"encoding/binary"
	"fmt"

	"github.com/LeJamon/goUnitrie/internal/storage/nodestore/compression"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// kind(1) | compressed(1) | rawLength(4, little endian) | payload
	recordHeaderSize = 1 + 1 + 4

	// Records at or below this size are stored raw.
	minCompressionSize = 128

	// MaxRecordSize bounds the raw length of a record. Trie values are
	// shorter than 1<<24 bytes and node messages far shorter.
	MaxRecordSize = 1 << 24
)

// recordCodec frames records for the on-disk backends.
type recordCodec struct {
	compressor compression.Compressor
	level      int
}

func newRecordCodec(config *Config) (recordCodec, error) {
	if config == nil {
		config = DefaultConfig()
	}
	c, err := compression.Get(config.Compressor)
	if err != nil {
		return recordCodec{}, fmt.Errorf("%w: %v", ErrUnsupportedCompressor, err)
	}
	return recordCodec{compressor: c, level: config.CompressionLevel}, nil
}

func (rc recordCodec) encode(node *Node) ([]byte, error) {
	payload := node.Data
	var compressed byte
	if len(node.Data) > minCompressionSize {
		out, err := rc.compressor.Compress(node.Data, rc.level)
		if err != nil {
			return nil, &CompressionError{Compressor: rc.compressor.Name(), Operation: "compress", DataSize: len(node.Data), Cause: err}
		}
		if out != nil && len(out) < len(node.Data)*9/10 {
			payload = out
			compressed = 1
		}
	}

	buf := make([]byte, recordHeaderSize+len(payload))
	buf[0] = byte(node.Kind)
	buf[1] = compressed
	binary.LittleEndian.PutUint32(buf[2:6], uint32(len(node.Data)))
	copy(buf[recordHeaderSize:], payload)
	return buf, nil
}

// decode parses a framed record. data may be backend-owned memory; the
// returned record never aliases it.
func (rc recordCodec) decode(hash common.Hash, data []byte) (*Node, error) {
	if len(data) < recordHeaderSize {
		return nil, fmt.Errorf("%w: record of %d bytes", ErrDataCorrupt, len(data))
	}
	kind := Kind(data[0])
	rawSize := int(binary.LittleEndian.Uint32(data[2:6]))
	payload := data[recordHeaderSize:]
	if rawSize > MaxRecordSize {
		return nil, fmt.Errorf("%w: header length %d exceeds %d", ErrDataCorrupt, rawSize, MaxRecordSize)
	}

	var raw []byte
	switch data[1] {
	case 0:
		if len(payload) != rawSize {
			return nil, fmt.Errorf("%w: payload %d bytes, header %d", ErrDataCorrupt, len(payload), rawSize)
		}
		raw = common.CopyBytes(payload)
	case 1:
		out, err := rc.compressor.Decompress(payload, rawSize)
		if err != nil {
			return nil, &CompressionError{Compressor: rc.compressor.Name(), Operation: "decompress", DataSize: len(payload), Cause: err}
		}
		raw = out
	default:
		return nil, fmt.Errorf("%w: compression flag %d", ErrDataCorrupt, data[1])
	}

	return &Node{Kind: kind, Hash: hash, Data: raw}, nil
}
