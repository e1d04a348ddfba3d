package archive

import (
	"fmt"

	"github.com/Bren2010/cella/accumulator"
	"github.com/Bren2010/cella/crypto"
	"github.com/Bren2010/cella/db"
	"github.com/Bren2010/cella/tree/smt"
)

// Accumulator is the append-only engine. Leaves carry the same lifecycle
// statuses as the canonical engine and proofs verify identically; what
// differs is the storage: branches are immutable and content-addressed, so
// every write appends a fresh path instead of rewriting 256 levels in the
// versioned keyspace.
type Accumulator struct {
	store *Store
	tree  *Tree
}

// New opens the accumulator stored in the given store, at its latest
// committed sequence.
func New(s db.Store) (*Accumulator, error) {
	store, err := NewStore(s)
	if err != nil {
		return nil, err
	}
	return newAccumulator(store)
}

// NewAt opens a read-only view of the accumulator as of a past sequence.
func NewAt(r db.Reader, seq uint64) (*Accumulator, error) {
	store, err := NewStoreAt(r, seq)
	if err != nil {
		return nil, err
	}
	return newAccumulator(store)
}

func newAccumulator(store *Store) (*Accumulator, error) {
	tree, err := NewTree(store)
	if err != nil {
		return nil, err
	}
	return &Accumulator{store: store, tree: tree}, nil
}

// status returns the latest stored lifecycle status of a key, or the zero
// status. Only the write paths may rely on it: leaf records are not
// versioned, so on a historical view it can run ahead of the tree.
func (a *Accumulator) status(key smt.H256) (accumulator.CellStatus, error) {
	raw, err := a.store.GetLeaf(key)
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
	updates := make([]smt.LeafUpdate, 0, len(elements))
	for i, op := range elements {
		key := smt.H256(op.Hash())

		status, err := a.status(key)
		if err != nil {
			return err
		} else if !status.IsZero() {
			return accumulator.ElementExistsError{Index: i}
		}

		s := accumulator.NewLive(a.store.Sequence())
		updates = append(updates, smt.LeafUpdate{
			Key:       key,
			ValueHash: smt.H256(s.LeafHash()),
			Raw:       s[:],
		})
	}
	return a.tree.UpdateAll(updates)
}

// Delete marks the given elements as consumed at the current sequence. The
// whole batch is validated before any path is appended.
func (a *Accumulator) Delete(elements []accumulator.OutPoint) error {
	updates := make([]smt.LeafUpdate, 0, len(elements))
	for i, op := range elements {
		key := smt.H256(op.Hash())

		status, err := a.status(key)
		if err != nil {
			return err
		} else if status.IsZero() || !status.IsLive() {
			return accumulator.ElementNotFoundError{Index: i}
		}

		status.MarkDead(a.store.Sequence())
		if status.IsZero() {
			return fmt.Errorf("element status would collide with the absent sentinel")
		}
		updates = append(updates, smt.LeafUpdate{
			Key:       key,
			ValueHash: smt.H256(status.LeafHash()),
			Raw:       status[:],
		})
	}
	return a.tree.UpdateAll(updates)
}

// Commit seals the current block and returns its commitment.
func (a *Accumulator) Commit() (accumulator.Commitment, error) {
	c := accumulator.Commitment{
		Root:     crypto.Hash(a.tree.Root()),
		Sequence: a.store.Sequence(),
	}
	if err := a.store.Commit(a.tree.root); err != nil {
		return accumulator.Commitment{}, err
	}
	return c, nil
}

// Prove returns a proof of the lifecycle status of the given elements as of
// the accumulator's sequence. The commitment must carry its current root.
// Presence is judged by the tree itself, not the leaf records, so views
// opened at past sequences prove exactly what they committed to.
func (a *Accumulator) Prove(commitment accumulator.Commitment, elements []accumulator.OutPoint) (accumulator.Proof, error) {
	if smt.H256(commitment.Root) != a.tree.Root() {
		return nil, accumulator.ErrInvalidCommitment
	}

	keys := make([]smt.H256, 0, len(elements))
	for i, op := range elements {
		key := smt.H256(op.Hash())

		p, err := a.tree.descend(key)
		if err != nil {
			return nil, err
		} else if p.leafHash.IsZero() {
			return nil, accumulator.ElementNotFoundError{Index: i}
		}
		keys = append(keys, key)
	}

	inner, err := a.tree.MerkleProof(keys)
	if err != nil {
		return nil, err
	}
	return smt.NewProof(inner), nil
}
