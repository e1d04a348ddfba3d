package mmr

import (
	"fmt"
	"sort"

	"github.com/Bren2010/cella/accumulator"
	"github.com/Bren2010/cella/crypto"
)

// Prove returns a proof of the current status of the given elements. The
// commitment must carry the accumulator's current root.
func (a *Accumulator) Prove(commitment accumulator.Commitment, elements []accumulator.OutPoint) (accumulator.Proof, error) {
	root, err := a.root()
	if err != nil {
		return nil, err
	} else if commitment.Root != root {
		return nil, accumulator.ErrInvalidCommitment
	}

	positions := make([]uint64, 0, len(elements))
	for i, op := range elements {
		rec, ok, err := a.getElement(op)
		if err != nil {
			return nil, err
		} else if !ok {
			return nil, accumulator.ElementNotFoundError{Index: i}
		}
		positions = append(positions, rec.Pos)
	}

	items, err := a.genProof(positions)
	if err != nil {
		return nil, err
	}
	return &Proof{mmrSize: a.size, positions: positions, items: items}, nil
}

type queued struct {
	pos    uint64
	height int
}

// genProof walks each peak's subtree bottom-up from the proven positions,
// emitting every sibling hash the verifier cannot compute itself. Peaks with
// no proven positions under them contribute their hash as a single item.
func (a *Accumulator) genProof(positions []uint64) ([]crypto.Hash, error) {
	sorted := make([]uint64, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, fmt.Errorf("duplicate position in proof request")
		}
	}

	var items []crypto.Hash
	idx := 0
	for _, peakPos := range peaks(a.size) {
		var group []queued
		for idx < len(sorted) && sorted[idx] <= peakPos {
			group = append(group, queued{pos: sorted[idx]})
			idx++
		}

		if len(group) == 0 {
			h, err := a.getNode(peakPos)
			if err != nil {
				return nil, err
			}
			items = append(items, h)
			continue
		}
		var err error
		if items, err = a.genPeakProof(peakPos, group, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (a *Accumulator) genPeakProof(peakPos uint64, queue []queued, items []crypto.Hash) ([]crypto.Hash, error) {
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if e.pos == peakPos {
			break
		}

		var siblingPos, parentPos uint64
		if posHeight(e.pos+1) > e.height {
			siblingPos, parentPos = e.pos-siblingOffset(e.height), e.pos+1
		} else {
			siblingPos, parentPos = e.pos+siblingOffset(e.height), e.pos+parentOffset(e.height)
		}

		// The sibling of a proven node may itself be proven, in which case
		// the verifier already has it.
		if len(queue) > 0 && queue[0].pos == siblingPos {
			queue = queue[1:]
		} else {
			h, err := a.getNode(siblingPos)
			if err != nil {
				return nil, err
			}
			items = append(items, h)
		}
		queue = append(queue, queued{pos: parentPos, height: e.height + 1})
	}
	return items, nil
}

// Proof proves the statuses of a set of elements against a commitment. The
// proven positions are kept in the order the elements were passed to Prove,
// and Verify expects its elements in the same order.
type Proof struct {
	mmrSize   uint64
	positions []uint64
	items     []crypto.Hash
}

type provenLeaf struct {
	pos    uint64
	hash   crypto.Hash
	height int
}

// Verify reports whether the proof authenticates the claimed statuses of the
// given elements against the commitment's root.
func (p *Proof) Verify(commitment accumulator.Commitment, elements []accumulator.Element) (bool, error) {
	if len(elements) != len(p.positions) {
		return false, accumulator.ErrInvalidProof
	}

	leaves := make([]provenLeaf, 0, len(elements))
	for i, e := range elements {
		leaves = append(leaves, provenLeaf{
			pos:  p.positions[i],
			hash: leafHash(e.OutPoint, e.Status),
		})
	}
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].pos < leaves[j].pos })
	for i := 1; i < len(leaves); i++ {
		if leaves[i].pos == leaves[i-1].pos {
			return false, accumulator.ErrInvalidProof
		}
	}

	positions := peaks(p.mmrSize)
	if len(positions) == 0 {
		return false, accumulator.ErrInvalidProof
	}

	peakHashes := make([]crypto.Hash, 0, len(positions))
	itemIdx, leafIdx := 0, 0
	for _, peakPos := range positions {
		var group []provenLeaf
		for leafIdx < len(leaves) && leaves[leafIdx].pos <= peakPos {
			group = append(group, leaves[leafIdx])
			leafIdx++
		}

		if len(group) == 0 {
			if itemIdx >= len(p.items) {
				return false, accumulator.ErrInvalidProof
			}
			peakHashes = append(peakHashes, p.items[itemIdx])
			itemIdx++
			continue
		}
		h, err := computePeakRoot(peakPos, group, p.items, &itemIdx)
		if err != nil {
			return false, accumulator.ErrInvalidProof
		}
		peakHashes = append(peakHashes, h)
	}
	if leafIdx != len(leaves) || itemIdx != len(p.items) {
		return false, accumulator.ErrInvalidProof
	}

	root := peakHashes[len(peakHashes)-1]
	for i := len(peakHashes) - 2; i >= 0; i-- {
		root = merge(peakHashes[i], root)
	}
	return root == commitment.Root, nil
}

// computePeakRoot replays the generator's walk, pulling sibling hashes from
// the proof items.
func computePeakRoot(peakPos uint64, queue []provenLeaf, items []crypto.Hash, itemIdx *int) (crypto.Hash, error) {
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if e.pos == peakPos {
			if len(queue) != 0 {
				return crypto.Hash{}, fmt.Errorf("leaves left over after reaching the peak")
			}
			return e.hash, nil
		}

		var siblingPos, parentPos uint64
		onRight := posHeight(e.pos+1) > e.height
		if onRight {
			siblingPos, parentPos = e.pos-siblingOffset(e.height), e.pos+1
		} else {
			siblingPos, parentPos = e.pos+siblingOffset(e.height), e.pos+parentOffset(e.height)
		}

		var sibling crypto.Hash
		if len(queue) > 0 && queue[0].pos == siblingPos {
			sibling = queue[0].hash
			queue = queue[1:]
		} else {
			if *itemIdx >= len(items) {
				return crypto.Hash{}, fmt.Errorf("proof has too few items")
			}
			sibling = items[*itemIdx]
			*itemIdx = *itemIdx + 1
		}

		parent := merge(e.hash, sibling)
		if onRight {
			parent = merge(sibling, e.hash)
		}
		queue = append(queue, provenLeaf{pos: parentPos, hash: parent, height: e.height + 1})
	}
	return crypto.Hash{}, fmt.Errorf("no leaves under the peak")
}
