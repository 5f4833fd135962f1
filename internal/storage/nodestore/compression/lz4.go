package compression

import (
	"fmt"

	"github.com/pierrec/lz4"
)

// NoCompressor stores data as is.
type NoCompressor struct{}

// Name returns the name of the compressor.
func (c *NoCompressor) Name() string {
	return "none"
}

// Compress reports every input as incompressible.
func (c *NoCompressor) Compress(data []byte, level int) ([]byte, error) {
	return nil, nil
}

// Decompress returns a copy of data.
func (c *NoCompressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// MaxCompressedSize returns the same size since no compression is performed.
func (c *NoCompressor) MaxCompressedSize(uncompressedSize int) int {
	return uncompressedSize
}

// lz4MaxRatio bounds how many output bytes one input byte of an LZ4 block
// can produce.
const lz4MaxRatio = 255

// LZ4Compressor implements LZ4 block compression.
type LZ4Compressor struct{}

// Name returns the name of the compressor.
func (c *LZ4Compressor) Name() string {
	return "lz4"
}

// Compress compresses data using LZ4.
func (c *LZ4Compressor) Compress(data []byte, level int) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	// lz4 reports incompressible input as a zero length block
	if n == 0 || n >= len(data) {
		return nil, nil
	}
	return compressed[:n], nil
}

// Decompress decompresses an LZ4 block into exactly rawSize bytes.
func (c *LZ4Compressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	if rawSize == 0 {
		return []byte{}, nil
	}
	if rawSize < 0 || rawSize > len(data)*lz4MaxRatio+16 {
		return nil, fmt.Errorf("lz4 block of %d bytes cannot expand to %d", len(data), rawSize)
	}

	decompressed := make([]byte, rawSize)
	n, err := lz4.UncompressBlock(data, decompressed)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	if n != rawSize {
		return nil, fmt.Errorf("lz4 decompression produced %d bytes, expected %d", n, rawSize)
	}
	return decompressed, nil
}

// MaxCompressedSize returns the maximum compressed size for a given uncompressed size using LZ4.
func (c *LZ4Compressor) MaxCompressedSize(uncompressedSize int) int {
	return lz4.CompressBlockBound(uncompressedSize)
}
