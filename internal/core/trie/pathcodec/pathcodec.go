// Package pathcodec converts between byte keys and the bit paths used to
// address nodes of the binary trie.
//
// A bit path is a []byte whose elements are 0 or 1, most significant bit of
// each source byte first.
package pathcodec

// Expand returns the bit path of key, 8 bits per byte, MSB first.
func Expand(key []byte) []byte {
	bits := make([]byte, len(key)*8)
	for i, b := range key {
		for j := 0; j < 8; j++ {
			bits[i*8+j] = (b >> (7 - j)) & 0x01
		}
	}
	return bits
}

// EncodedLength returns the number of bytes needed to pack bitLen bits.
func EncodedLength(bitLen int) int {
	return (bitLen + 7) / 8
}

// Encode packs bits MSB first. Unused low bits of the last byte are zero.
func Encode(bits []byte) []byte {
	encoded := make([]byte, EncodedLength(len(bits)))
	for i, bit := range bits {
		if bit != 0 {
			encoded[i/8] |= 0x80 >> (i % 8)
		}
	}
	return encoded
}

// Decode unpacks the first bitLen bits of encoded. The caller guarantees that
// encoded holds at least EncodedLength(bitLen) bytes.
func Decode(encoded []byte, bitLen int) []byte {
	bits := make([]byte, bitLen)
	for i := 0; i < bitLen; i++ {
		bits[i] = (encoded[i/8] >> (7 - i%8)) & 0x01
	}
	return bits
}

// PaddingIsZero reports whether every bit of encoded past bitLen is zero.
// Decode(Encode(x)) only round-trips when this holds.
func PaddingIsZero(encoded []byte, bitLen int) bool {
	for i := bitLen; i < len(encoded)*8; i++ {
		if (encoded[i/8]>>(7-i%8))&0x01 != 0 {
			return false
		}
	}
	return true
}

// CommonPrefix returns the length of the longest common prefix of a and b.
func CommonPrefix(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// Concat returns a new path made of the given parts in order.
func Concat(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
