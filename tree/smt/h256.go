// Package smt implements a sparse Merkle tree of height 256: an
// authenticated dictionary keyed by a 32-byte hash, where absent keys map to
// a canonical zero value. Branch nodes compress runs of zero siblings, so
// the tree stays compact even though the key space is astronomically larger
// than any real key set.
//
// The package also provides the canonical SMT accumulator engine; the
// smtlive and archive packages build their variants on the same core.
package smt

// H256 is a 32-byte tree key or node hash.
//
// Bit order: bit i lives in byte i/8 at position i%8 (least significant bit
// first), so bit 255 is the most significant bit of the last byte. Bit 255
// is the first branching decision below the root.
type H256 [32]byte

// IsZero reports whether h is all zero.
func (h H256) IsZero() bool {
	return h == H256{}
}

// Bit returns the bit of h at the given height.
func (h H256) Bit(height int) bool {
	return h[height/8]>>(height%8)&1 == 1
}

// SetBit sets the bit of h at the given height.
func (h *H256) SetBit(height int) {
	h[height/8] |= 1 << (height % 8)
}

// ParentPath returns the key of h's ancestor just above the given height:
// h with all bits at or below the height cleared.
func (h H256) ParentPath(height int) H256 {
	if height == 255 {
		return H256{}
	}
	return h.copyBits(height + 1)
}

// copyBits returns h with every bit below the given height cleared.
func (h H256) copyBits(start int) H256 {
	var out H256
	startByte := start / 8
	copy(out[startByte:], h[startByte:])
	if rem := start % 8; rem > 0 {
		out[startByte] &= 0xff << rem
	}
	return out
}

// LowBits returns h with every bit at or above the given height cleared.
func (h H256) LowBits(start int) H256 {
	var out H256
	startByte := start / 8
	copy(out[:startByte], h[:startByte])
	if rem := start % 8; rem > 0 {
		out[startByte] = h[startByte] & ^(byte(0xff) << rem)
	}
	return out
}

// ForkHeight returns the height of the lowest common ancestor of h and
// other: the highest bit at which they differ, or 0 if they are equal.
func (h H256) ForkHeight(other H256) int {
	for height := 255; height >= 0; height-- {
		if h.Bit(height) != other.Bit(height) {
			return height
		}
	}
	return 0
}

// Cmp compares two keys in tree order, which decides from the highest bit
// down: the byte arrays are compared in reverse.
func (h H256) Cmp(other H256) int {
	for i := 31; i >= 0; i-- {
		if h[i] < other[i] {
			return -1
		} else if h[i] > other[i] {
			return 1
		}
	}
	return 0
}
