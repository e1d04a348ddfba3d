package smt

import (
	"fmt"

	"github.com/Bren2010/cella/accumulator"
	"github.com/Bren2010/cella/crypto"
	"github.com/Bren2010/cella/db"
)

// Accumulator is the canonical engine: each element's full lifecycle status
// is a leaf of a versioned bottom-up tree, keyed by the element's identity
// hash. Consuming an element rewrites its leaf in place, and the versioned
// store keeps every sealed state of the tree reachable.
type Accumulator struct {
	v    *db.Versioned
	tree *Tree
}

func newAccumulator(v *db.Versioned) (*Accumulator, error) {
	tree, err := NewTree(NewVersionedStore(v, CanonicalCodec))
	if err != nil {
		return nil, err
	}
	return &Accumulator{v: v, tree: tree}, nil
}

// New opens the accumulator stored in the given store, at its latest
// committed sequence.
func New(store db.Store) (*Accumulator, error) {
	v, err := db.NewVersioned(store)
	if err != nil {
		return nil, err
	}
	return newAccumulator(v)
}

// NewAt opens a read-only view of the accumulator as of a past sequence.
func NewAt(r db.Reader, seq uint64) (*Accumulator, error) {
	v, err := db.NewVersionedAt(r, seq)
	if err != nil {
		return nil, err
	}
	return newAccumulator(v)
}

// status returns the stored lifecycle status of a key, or the zero status if
// the key is absent.
func (a *Accumulator) status(key H256) (accumulator.CellStatus, error) {
	raw, err := a.tree.store.GetLeaf(key)
	if err != nil {
		return accumulator.CellStatus{}, err
	} else if raw == nil {
		return accumulator.CellStatus{}, nil
	} else if len(raw) != 16 {
		panic(fmt.Sprintf("stored cell status is %d bytes, not 16", len(raw)))
	}
	return accumulator.CellStatus(raw), nil
}

// Add inserts the given elements as live cells created at the current
// sequence. The whole batch is rejected if any element is already present.
func (a *Accumulator) Add(elements []accumulator.OutPoint) error {
	updates := make([]LeafUpdate, 0, len(elements))
	for i, op := range elements {
		key := H256(op.Hash())

		status, err := a.status(key)
		if err != nil {
			return err
		} else if !status.IsZero() {
			return accumulator.ElementExistsError{Index: i}
		}

		s := accumulator.NewLive(a.v.Sequence())
		updates = append(updates, LeafUpdate{
			Key:       key,
			ValueHash: H256(s.LeafHash()),
			Raw:       s[:],
		})
	}
	return a.tree.UpdateAll(updates)
}

// Delete marks the given elements as consumed at the current sequence. The
// whole batch is validated before any leaf is touched.
func (a *Accumulator) Delete(elements []accumulator.OutPoint) error {
	updates := make([]LeafUpdate, 0, len(elements))
	for i, op := range elements {
		key := H256(op.Hash())

		status, err := a.status(key)
		if err != nil {
			return err
		} else if status.IsZero() || !status.IsLive() {
			return accumulator.ElementNotFoundError{Index: i}
		}

		status.MarkDead(a.v.Sequence())
		if status.IsZero() {
			// Created and consumed at sequence zero would collide with the
			// absent sentinel.
			return fmt.Errorf("element status would collide with the absent sentinel")
		}
		updates = append(updates, LeafUpdate{
			Key:       key,
			ValueHash: H256(status.LeafHash()),
			Raw:       status[:],
		})
	}
	return a.tree.UpdateAll(updates)
}

// Commit seals the current block and returns its commitment.
func (a *Accumulator) Commit() (accumulator.Commitment, error) {
	c := accumulator.Commitment{
		Root:     crypto.Hash(a.tree.Root()),
		Sequence: a.v.Sequence(),
	}
	if err := a.v.Commit(); err != nil {
		return accumulator.Commitment{}, err
	}
	return c, nil
}

// Prove returns a proof of the current lifecycle status of the given
// elements. The commitment must carry the accumulator's current root.
func (a *Accumulator) Prove(commitment accumulator.Commitment, elements []accumulator.OutPoint) (accumulator.Proof, error) {
	if H256(commitment.Root) != a.tree.Root() {
		return nil, accumulator.ErrInvalidCommitment
	}

	keys := make([]H256, 0, len(elements))
	for i, op := range elements {
		key := H256(op.Hash())

		status, err := a.status(key)
		if err != nil {
			return nil, err
		} else if status.IsZero() {
			return nil, accumulator.ElementNotFoundError{Index: i}
		}
		keys = append(keys, key)
	}

	inner, err := a.tree.MerkleProof(keys)
	if err != nil {
		return nil, err
	}
	return &Proof{inner: inner}, nil
}

// Proof proves the lifecycle statuses of a set of elements against a single
// commitment.
type Proof struct {
	inner *MerkleProof
}

// NewProof wraps a raw tree proof. The append-only engine produces proofs in
// the same format and shares this verifier.
func NewProof(inner *MerkleProof) *Proof {
	return &Proof{inner: inner}
}

// Verify reports whether the proof authenticates the claimed statuses of the
// given elements against the commitment's root.
func (p *Proof) Verify(commitment accumulator.Commitment, elements []accumulator.Element) (bool, error) {
	leaves := make([]Leaf, 0, len(elements))
	for _, e := range elements {
		leaves = append(leaves, Leaf{
			Key:       H256(e.OutPoint.Hash()),
			ValueHash: H256(e.Status.LeafHash()),
		})
	}
	return p.inner.Verify(H256(commitment.Root), leaves)
}
