package accumulator

import (
	"encoding/binary"

	"github.com/Bren2010/cella/crypto"
)

// OutPoint identifies an element by the hash of its origin and an output
// index. It is immutable once created.
type OutPoint struct {
	TxHash [32]byte
	Index  uint32
}

// Hash returns the element's identity hash, H(tx_hash || index_le). This is
// the key under which the element appears in the keyed engines.
func (o OutPoint) Hash() crypto.Hash {
	var index [4]byte
	binary.LittleEndian.PutUint32(index[:], o.Index)
	return crypto.Sum(o.TxHash[:], index[:])
}
