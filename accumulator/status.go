package accumulator

import (
	"encoding/binary"

	"github.com/Bren2010/cella/crypto"
)

// CellStatus records the lifecycle of an element: the sequence it was
// created at, followed by the sequence it was consumed at. Both fields are
// little-endian uint64s. A freshly created status has its consumed field set
// to the all-0xff sentinel, meaning the element is still live.
//
// The all-zero CellStatus is reserved as the "absent" sentinel for SMT
// leaves and never describes a real element: see MarkDead.
type CellStatus [16]byte

// NewLive returns the status of an element created at the given sequence and
// not yet consumed.
func NewLive(createdBy uint64) CellStatus {
	var s CellStatus
	for i := 8; i < 16; i++ {
		s[i] = 0xff
	}
	binary.LittleEndian.PutUint64(s[:8], createdBy)
	return s
}

// NewDead returns the status of an element created at one sequence and
// consumed at another.
func NewDead(createdBy, consumedBy uint64) CellStatus {
	s := NewLive(createdBy)
	binary.LittleEndian.PutUint64(s[8:], consumedBy)
	return s
}

// IsLive reports whether the element has not been consumed yet.
func (s CellStatus) IsLive() bool {
	for i := 8; i < 16; i++ {
		if s[i] != 0xff {
			return false
		}
	}
	return true
}

// IsZero reports whether s is the all-zero "absent" sentinel.
func (s CellStatus) IsZero() bool {
	return s == CellStatus{}
}

// MarkDead sets the consumed field to the given sequence. It must be called
// at most once per status.
func (s *CellStatus) MarkDead(consumedBy uint64) {
	binary.LittleEndian.PutUint64(s[8:], consumedBy)
}

// CreatedBy returns the sequence the element was created at.
func (s CellStatus) CreatedBy() uint64 {
	return binary.LittleEndian.Uint64(s[:8])
}

// ConsumedBy returns the sequence the element was consumed at. Only
// meaningful when IsLive is false.
func (s CellStatus) ConsumedBy() uint64 {
	return binary.LittleEndian.Uint64(s[8:])
}

// LeafHash returns the 32-byte leaf digest of the status: the zero digest
// for the absent sentinel, H(status) otherwise.
func (s CellStatus) LeafHash() crypto.Hash {
	if s.IsZero() {
		return crypto.Hash{}
	}
	return crypto.Sum(s[:])
}

// BlockNumber is the leaf value type of the live-SMT engine: a single
// little-endian sequence number. The all-0xff sentinel is the absent value
// and hashes to the zero digest.
type BlockNumber [8]byte

// MaxBlockNumber is the absent sentinel for BlockNumber leaves.
var MaxBlockNumber = BlockNumber{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// NewBlockNumber returns the little-endian encoding of seq.
func NewBlockNumber(seq uint64) BlockNumber {
	var b BlockNumber
	binary.LittleEndian.PutUint64(b[:], seq)
	return b
}

// LeafHash returns the zero digest for the absent sentinel, H(b) otherwise.
func (b BlockNumber) LeafHash() crypto.Hash {
	if b == MaxBlockNumber {
		return crypto.Hash{}
	}
	return crypto.Sum(b[:])
}
