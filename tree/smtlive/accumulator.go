package smtlive

import (
	"encoding/binary"
	"fmt"

	"github.com/Bren2010/cella/accumulator"
	"github.com/Bren2010/cella/crypto"
	"github.com/Bren2010/cella/db"
	"github.com/Bren2010/cella/tree/smt"
)

// elementPrefix namespaces the side records that track element lifecycles:
// 'e' || tx_hash || index_le maps to the creation sequence (8 bytes), with
// the consumption sequence appended once the element is consumed.
const elementPrefix = 'e'

// Accumulator is the live-set engine. The tree holds one leaf per live
// element, valued by its creation sequence; consuming an element removes its
// leaf. A commitment therefore authenticates exactly the live set of its
// block, and a full lifecycle proof combines a membership proof in the
// creation block with a non-membership proof in the consumption block.
type Accumulator struct {
	backing db.Reader
	v       *db.Versioned
	tree    *smt.Tree
}

func newAccumulator(backing db.Reader, v *db.Versioned) (*Accumulator, error) {
	tree, err := smt.NewTree(smt.NewVersionedStore(v, codec))
	if err != nil {
		return nil, err
	}
	return &Accumulator{backing: backing, v: v, tree: tree}, nil
}

// New opens the accumulator stored in the given store, at its latest
// committed sequence.
func New(store db.Store) (*Accumulator, error) {
	v, err := db.NewVersioned(store)
	if err != nil {
		return nil, err
	}
	return newAccumulator(store, v)
}

// NewAt opens a read-only view of the accumulator as of a past sequence.
func NewAt(r db.Reader, seq uint64) (*Accumulator, error) {
	v, err := db.NewVersionedAt(r, seq)
	if err != nil {
		return nil, err
	}
	return newAccumulator(r, v)
}

func elementKey(op accumulator.OutPoint) []byte {
	out := make([]byte, 0, 37)
	out = append(out, elementPrefix)
	out = append(out, op.TxHash[:]...)
	return binary.LittleEndian.AppendUint32(out, op.Index)
}

// record returns the element's lifecycle as recorded by its side record, or
// false if the element was never added.
func (a *Accumulator) record(op accumulator.OutPoint) (accumulator.CellStatus, bool, error) {
	raw, ok, err := a.v.Get(elementKey(op))
	if err != nil {
		return accumulator.CellStatus{}, false, err
	} else if !ok || len(raw) == 0 {
		return accumulator.CellStatus{}, false, nil
	}

	switch len(raw) {
	case 8:
		return accumulator.NewLive(binary.LittleEndian.Uint64(raw)), true, nil
	case 16:
		created := binary.LittleEndian.Uint64(raw[:8])
		consumed := binary.LittleEndian.Uint64(raw[8:])
		return accumulator.NewDead(created, consumed), true, nil
	default:
		panic(fmt.Sprintf("element record is %d bytes, not 8 or 16", len(raw)))
	}
}

// Add inserts the given elements as live cells created at the current
// sequence.
func (a *Accumulator) Add(elements []accumulator.OutPoint) error {
	seq := a.v.Sequence()

	var created [8]byte
	binary.LittleEndian.PutUint64(created[:], seq)

	updates := make([]smt.LeafUpdate, 0, len(elements))
	for _, op := range elements {
		if err := a.v.Put(elementKey(op), created[:]); err != nil {
			return err
		}
		b := accumulator.NewBlockNumber(seq)
		updates = append(updates, smt.LeafUpdate{
			Key:       smt.H256(op.Hash()),
			ValueHash: smt.H256(b.LeafHash()),
			Raw:       b[:],
		})
	}
	return a.tree.UpdateAll(updates)
}

// Delete marks the given elements as consumed at the current sequence,
// removing their leaves from the live set. The whole batch is validated
// before anything is written.
func (a *Accumulator) Delete(elements []accumulator.OutPoint) error {
	seq := a.v.Sequence()

	type pending struct {
		key    []byte
		record []byte
	}
	writes := make([]pending, 0, len(elements))
	updates := make([]smt.LeafUpdate, 0, len(elements))
	for i, op := range elements {
		key := elementKey(op)

		raw, ok, err := a.v.Get(key)
		if err != nil {
			return err
		} else if !ok || len(raw) != 8 {
			// Never added, or already consumed.
			return accumulator.ElementNotFoundError{Index: i}
		}

		record := make([]byte, 0, 16)
		record = append(record, raw...)
		record = binary.LittleEndian.AppendUint64(record, seq)
		writes = append(writes, pending{key: key, record: record})
		updates = append(updates, smt.LeafUpdate{Key: smt.H256(op.Hash())})
	}

	for _, w := range writes {
		if err := a.v.Put(w.key, w.record); err != nil {
			return err
		}
	}
	return a.tree.UpdateAll(updates)
}

// Commit seals the current block and returns its commitment, whose root
// authenticates the block's live set.
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

// treeAt opens the live tree as it was at a past sequence.
func (a *Accumulator) treeAt(seq uint64) (*smt.Tree, error) {
	v, err := db.NewVersionedAt(a.backing, seq)
	if err != nil {
		return nil, err
	}
	return smt.NewTree(smt.NewVersionedStore(v, codec))
}

// Prove returns a full lifecycle proof for the given elements: for each, a
// membership proof in its creation block and, if it has been consumed, a
// non-membership proof in its consumption block. The commitment must carry
// the accumulator's current root.
func (a *Accumulator) Prove(commitment accumulator.Commitment, elements []accumulator.OutPoint) (*Proof, error) {
	if smt.H256(commitment.Root) != a.tree.Root() {
		return nil, accumulator.ErrInvalidCommitment
	}

	proofs := make([]ElementProof, 0, len(elements))
	for i, op := range elements {
		status, ok, err := a.record(op)
		if err != nil {
			return nil, err
		} else if !ok {
			return nil, accumulator.ElementNotFoundError{Index: i}
		}
		key := smt.H256(op.Hash())

		createTree, err := a.treeAt(status.CreatedBy())
		if err != nil {
			return nil, err
		}
		ep := ElementProof{}
		if ep.Create, err = createTree.MerkleProof([]smt.H256{key}); err != nil {
			return nil, err
		}

		if !status.IsLive() {
			consumeTree, err := a.treeAt(status.ConsumedBy())
			if err != nil {
				return nil, err
			}
			if ep.Consume, err = consumeTree.MerkleProof([]smt.H256{key}); err != nil {
				return nil, err
			}
		}
		proofs = append(proofs, ep)
	}
	return &Proof{elements: proofs}, nil
}

// ElementProof is the proof material for one element: a membership proof in
// the tree of its creation block and, once consumed, a non-membership proof
// in the tree of its consumption block.
type ElementProof struct {
	Create  *smt.MerkleProof
	Consume *smt.MerkleProof
}

// CommitmentPair names the commitments one element's proofs are checked
// against. Consume is nil for an element claimed to still be live.
type CommitmentPair struct {
	Create  accumulator.Commitment
	Consume *accumulator.Commitment
}

// Proof proves the lifecycle statuses of a set of elements. Unlike the
// single-tree engines, each element is checked against the commitments of
// its own creation and consumption blocks, so the verifier supplies one
// commitment pair per element.
type Proof struct {
	elements []ElementProof
}

// Verify reports whether the proof authenticates the claimed status of every
// element against its commitment pair. A wrong claim, a commitment whose
// sequence does not match the claimed status, or a missing consumption proof
// returns (false, nil).
func (p *Proof) Verify(commitments []CommitmentPair, elements []accumulator.Element) (bool, error) {
	if len(commitments) != len(p.elements) || len(elements) != len(p.elements) {
		return false, nil
	}

	for i, ep := range p.elements {
		e := elements[i]
		key := smt.H256(e.OutPoint.Hash())
		status := e.Status

		if commitments[i].Create.Sequence != status.CreatedBy() {
			return false, nil
		}
		b := accumulator.NewBlockNumber(status.CreatedBy())
		ok, err := ep.Create.Verify(smt.H256(commitments[i].Create.Root), []smt.Leaf{
			{Key: key, ValueHash: smt.H256(b.LeafHash())},
		})
		if err != nil {
			return false, err
		} else if !ok {
			return false, nil
		}

		if status.IsLive() {
			continue
		}
		if ep.Consume == nil || commitments[i].Consume == nil {
			return false, nil
		} else if commitments[i].Consume.Sequence != status.ConsumedBy() {
			return false, nil
		}
		ok, err = ep.Consume.Verify(smt.H256(commitments[i].Consume.Root), []smt.Leaf{{Key: key}})
		if err != nil {
			return false, err
		} else if !ok {
			return false, nil
		}
	}
	return true, nil
}
