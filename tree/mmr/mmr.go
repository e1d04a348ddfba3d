package mmr

import (
	"encoding/binary"
	"fmt"

	"github.com/Bren2010/cella/accumulator"
	"github.com/Bren2010/cella/crypto"
	"github.com/Bren2010/cella/db"
)

// Key namespaces within the versioned keyspace: node hashes by position,
// element records by identity hash, and the MMR size.
const (
	nodePrefix    = 'p'
	elementPrefix = 'e'
)

var sizeKey = []byte{'s'}

// merge combines two child hashes into their parent's hash.
func merge(left, right crypto.Hash) crypto.Hash {
	return crypto.Sum(left[:], right[:])
}

// Accumulator is the MMR engine. Elements are appended as leaves hashed over
// their out-point and status; consuming an element rewrites its leaf hash in
// place and recomputes the path to its peak. An element record maps each
// identity hash to its leaf position and current status.
type Accumulator struct {
	v    *db.Versioned
	size uint64
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

func newAccumulator(v *db.Versioned) (*Accumulator, error) {
	a := &Accumulator{v: v}

	raw, ok, err := v.Get(sizeKey)
	if err != nil {
		return nil, err
	} else if ok && len(raw) > 0 {
		if len(raw) != 8 {
			panic(fmt.Sprintf("stored mmr size is %d bytes, not 8", len(raw)))
		}
		a.size = binary.LittleEndian.Uint64(raw)
	}
	return a, nil
}

func nodeKey(pos uint64) []byte {
	out := make([]byte, 0, 9)
	out = append(out, nodePrefix)
	return binary.LittleEndian.AppendUint64(out, pos)
}

func (a *Accumulator) getNode(pos uint64) (crypto.Hash, error) {
	raw, ok, err := a.v.Get(nodeKey(pos))
	if err != nil {
		return crypto.Hash{}, err
	} else if !ok || len(raw) != crypto.HashSize {
		return crypto.Hash{}, fmt.Errorf("mmr node %d is missing", pos)
	}
	return crypto.Hash(raw), nil
}

func (a *Accumulator) setNode(pos uint64, h crypto.Hash) error {
	return a.v.Put(nodeKey(pos), h[:])
}

// elementRecord is the per-element index entry: the element's leaf position
// and its current status.
type elementRecord struct {
	Pos    uint64
	Status accumulator.CellStatus
}

func elementKey(op accumulator.OutPoint) []byte {
	hash := op.Hash()
	out := make([]byte, 0, 33)
	out = append(out, elementPrefix)
	return append(out, hash[:]...)
}

func (a *Accumulator) getElement(op accumulator.OutPoint) (elementRecord, bool, error) {
	raw, ok, err := a.v.Get(elementKey(op))
	if err != nil {
		return elementRecord{}, false, err
	} else if !ok || len(raw) == 0 {
		return elementRecord{}, false, nil
	} else if len(raw) != 24 {
		panic(fmt.Sprintf("element record is %d bytes, not 24", len(raw)))
	}
	return elementRecord{
		Pos:    binary.LittleEndian.Uint64(raw[:8]),
		Status: accumulator.CellStatus(raw[8:]),
	}, true, nil
}

func (a *Accumulator) setElement(op accumulator.OutPoint, rec elementRecord) error {
	out := make([]byte, 0, 24)
	out = binary.LittleEndian.AppendUint64(out, rec.Pos)
	out = append(out, rec.Status[:]...)
	return a.v.Put(elementKey(op), out)
}

// leafHash binds an element's identity and status into its leaf.
func leafHash(op accumulator.OutPoint, status accumulator.CellStatus) crypto.Hash {
	var index [4]byte
	binary.LittleEndian.PutUint32(index[:], op.Index)
	return crypto.Sum(op.TxHash[:], index[:], status[:])
}

// push appends a leaf, merging up as long as the new position completes a
// perfect subtree, and returns the leaf's position.
func (a *Accumulator) push(leaf crypto.Hash) (uint64, error) {
	pos := a.size
	if err := a.setNode(pos, leaf); err != nil {
		return 0, err
	}

	next, height := pos, 0
	for posHeight(next+1) > height {
		next++

		leftPos := next - parentOffset(height)
		rightPos := leftPos + siblingOffset(height)
		left, err := a.getNode(leftPos)
		if err != nil {
			return 0, err
		}
		right, err := a.getNode(rightPos)
		if err != nil {
			return 0, err
		}
		if err := a.setNode(next, merge(left, right)); err != nil {
			return 0, err
		}
		height++
	}

	a.size = next + 1
	return pos, nil
}

// update rewrites the leaf at the given position and recomputes its
// ancestors up to the peak of its tree.
func (a *Accumulator) update(pos uint64, leaf crypto.Hash) error {
	if err := a.setNode(pos, leaf); err != nil {
		return err
	}

	cur, height := pos, 0
	for {
		var siblingPos, parentPos uint64
		onRight := posHeight(cur+1) > height
		if onRight {
			siblingPos, parentPos = cur-siblingOffset(height), cur+1
		} else {
			siblingPos, parentPos = cur+siblingOffset(height), cur+parentOffset(height)
		}
		if parentPos >= a.size {
			return nil // cur is a peak.
		}

		curHash, err := a.getNode(cur)
		if err != nil {
			return err
		}
		sibling, err := a.getNode(siblingPos)
		if err != nil {
			return err
		}
		parent := merge(curHash, sibling)
		if onRight {
			parent = merge(sibling, curHash)
		}
		if err := a.setNode(parentPos, parent); err != nil {
			return err
		}
		cur, height = parentPos, height+1
	}
}

// root bags the peaks from right to left into a single hash. The empty MMR's
// root is the zero hash.
func (a *Accumulator) root() (crypto.Hash, error) {
	positions := peaks(a.size)
	if len(positions) == 0 {
		return crypto.Hash{}, nil
	}

	acc, err := a.getNode(positions[len(positions)-1])
	if err != nil {
		return crypto.Hash{}, err
	}
	for i := len(positions) - 2; i >= 0; i-- {
		peak, err := a.getNode(positions[i])
		if err != nil {
			return crypto.Hash{}, err
		}
		acc = merge(peak, acc)
	}
	return acc, nil
}

// Add appends the given elements as live cells created at the current
// sequence.
func (a *Accumulator) Add(elements []accumulator.OutPoint) error {
	seq := a.v.Sequence()
	for _, op := range elements {
		status := accumulator.NewLive(seq)
		pos, err := a.push(leafHash(op, status))
		if err != nil {
			return err
		}
		if err := a.setElement(op, elementRecord{Pos: pos, Status: status}); err != nil {
			return err
		}
	}
	return nil
}

// Delete marks the given elements as consumed at the current sequence,
// rewriting their leaves in place. The whole batch is validated before any
// node is touched.
func (a *Accumulator) Delete(elements []accumulator.OutPoint) error {
	seq := a.v.Sequence()

	records := make([]elementRecord, 0, len(elements))
	for i, op := range elements {
		rec, ok, err := a.getElement(op)
		if err != nil {
			return err
		} else if !ok || !rec.Status.IsLive() {
			return accumulator.ElementNotFoundError{Index: i}
		}
		rec.Status.MarkDead(seq)
		records = append(records, rec)
	}

	for i, op := range elements {
		rec := records[i]
		if err := a.update(rec.Pos, leafHash(op, rec.Status)); err != nil {
			return err
		}
		if err := a.setElement(op, rec); err != nil {
			return err
		}
	}
	return nil
}

// Commit seals the current block and returns its commitment, persisting the
// MMR size alongside it.
func (a *Accumulator) Commit() (accumulator.Commitment, error) {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], a.size)
	if err := a.v.Put(sizeKey, raw[:]); err != nil {
		return accumulator.Commitment{}, err
	}

	root, err := a.root()
	if err != nil {
		return accumulator.Commitment{}, err
	}
	c := accumulator.Commitment{Root: root, Sequence: a.v.Sequence()}
	if err := a.v.Commit(); err != nil {
		return accumulator.Commitment{}, err
	}
	return c, nil
}
