// Package crypto implements the hashing primitives shared by all of the
// accumulator engines.
package crypto

import (
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of all digests used by this module, in bytes.
const HashSize = 32

// Hash is a 32-byte BLAKE2b digest.
type Hash [HashSize]byte

// IsZero reports whether h is the all-zero digest.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// NewHasher returns an unkeyed BLAKE2b-256 hasher.
func NewHasher() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // Only fails with an invalid key.
	}
	return h
}

// Sum hashes the concatenation of the given chunks.
func Sum(chunks ...[]byte) Hash {
	h := NewHasher()
	for _, chunk := range chunks {
		h.Write(chunk)
	}

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
