// Package mmr implements the Merkle mountain range engine: an append-only
// forest of perfect binary trees over one flat, 0-based position space.
// Leaves and internal nodes are interleaved in insertion order, so a node's
// height and relationships are pure functions of its position.
package mmr

import "math/bits"

// allOnes reports whether n is of the form 2^k - 1. Positions of this form
// (1-based) lie on the leftmost edge of a perfect tree.
func allOnes(n uint64) bool {
	return n != 0 && bits.OnesCount64(n) == bits.Len64(n)
}

// jumpLeft moves a 1-based position to the same offset within the previous
// perfect tree of one less height.
func jumpLeft(pos uint64) uint64 {
	msb := uint64(1) << (bits.Len64(pos) - 1)
	return pos - (msb - 1)
}

// posHeight returns the height of the node at the given 0-based position.
func posHeight(pos uint64) int {
	pos++
	for !allOnes(pos) {
		pos = jumpLeft(pos)
	}
	return bits.Len64(pos) - 1
}

// parentOffset is the distance from a left child at the given height to its
// parent.
func parentOffset(height int) uint64 {
	return 2 << height
}

// siblingOffset is the distance between two siblings at the given height.
func siblingOffset(height int) uint64 {
	return (2 << height) - 1
}

// peakPosByHeight returns the position of the leftmost peak of the given
// height.
func peakPosByHeight(height int) uint64 {
	return (1 << (height + 1)) - 2
}

// leftPeak returns the height and position of the leftmost (tallest) peak of
// an MMR of the given size.
func leftPeak(mmrSize uint64) (int, uint64) {
	height := 1
	var prev uint64
	for pos := peakPosByHeight(height); pos < mmrSize; pos = peakPosByHeight(height) {
		height++
		prev = pos
	}
	return height - 1, prev
}

// rightPeak returns the next peak to the right of the peak at the given
// height and position, or false if it is the last one.
func rightPeak(height int, pos, mmrSize uint64) (int, uint64, bool) {
	// Jump to the right sibling, then descend left children until the
	// position lands inside the MMR.
	pos += siblingOffset(height)
	for pos > mmrSize-1 {
		if height == 0 {
			return 0, 0, false
		}
		height--
		pos -= parentOffset(height)
	}
	return height, pos, true
}

// peaks returns the positions of all peaks of an MMR of the given size, left
// to right.
func peaks(mmrSize uint64) []uint64 {
	if mmrSize == 0 {
		return nil
	}
	height, pos := leftPeak(mmrSize)
	out := []uint64{pos}
	for height > 0 {
		var ok bool
		if height, pos, ok = rightPeak(height, pos, mmrSize); !ok {
			break
		}
		out = append(out, pos)
	}
	return out
}
