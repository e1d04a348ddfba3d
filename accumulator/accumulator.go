// Package accumulator defines the element model and the common contract
// implemented by each of the accumulator engines.
//
// An accumulator tracks a set of elements over a series of blocks. Elements
// are added and deleted in batches, and Commit seals the current block,
// returning a Commitment that later proofs are generated and verified
// against. Accumulator instances are not safe for concurrent use; read-only
// views opened at past sequences may be used concurrently with a writer.
package accumulator

import "github.com/Bren2010/cella/crypto"

// Commitment identifies a specific historical state of an accumulator. Two
// commitments are equal only if both the root and the sequence match; a root
// is meaningless without the sequence it was captured at.
type Commitment struct {
	Root     crypto.Hash
	Sequence uint64
}

// Element pairs an out-point with the lifecycle status being claimed for it,
// as presented to proof verification.
type Element struct {
	OutPoint OutPoint
	Status   CellStatus
}

// Writer is the mutating half of the accumulator contract.
type Writer interface {
	// Add inserts the given elements as live cells created at the current
	// sequence.
	Add(elements []OutPoint) error
	// Delete marks the given elements as consumed at the current sequence.
	// The whole batch is validated before any mutation is applied.
	Delete(elements []OutPoint) error
	// Commit seals the current block: it snapshots the root and sequence and
	// advances the underlying store's sequence counter.
	Commit() (Commitment, error)
}

// Reader generates proofs against a previously returned commitment.
type Reader interface {
	// Prove returns a proof of the lifecycle status of the given elements.
	// The commitment's root must match the accumulator's current root.
	Prove(commitment Commitment, elements []OutPoint) (Proof, error)
}

// Proof is a self-contained proof tying a commitment to a set of elements
// and their claimed statuses. Verification performs no store access.
type Proof interface {
	// Verify reports whether the proof authenticates all of the given
	// elements against the commitment's root. A proof that was checked and
	// failed returns (false, nil); an error means the proof could not be
	// checked at all.
	Verify(commitment Commitment, elements []Element) (bool, error)
}
