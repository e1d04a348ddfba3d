package smt

import (
	"fmt"
	"sort"
)

// SiblingSource yields the summary of the sibling subtree along a key's
// path: the child of the branch at ParentPath(height) on the opposite side
// of the key. A zero summary means the sibling is empty.
type SiblingSource interface {
	Sibling(key H256, height int) (MergeValue, error)
}

// Sibling implements SiblingSource against the stored branch nodes.
func (t *Tree) Sibling(key H256, height int) (MergeValue, error) {
	branch, err := t.store.GetBranch(BranchKey{Height: uint8(height), NodeKey: key.ParentPath(height)})
	if err != nil {
		return MergeValue{}, err
	} else if branch == nil {
		return MergeValue{}, nil
	}
	if key.Bit(height) {
		return branch.Left, nil
	}
	return branch.Right, nil
}

// MerkleProof proves the leaf digests of a set of keys against a root. The
// bitmaps record, per key in tree order, the heights at which the key's path
// has a non-empty sibling; Siblings holds those siblings in the order the
// verifier consumes them. Siblings shared between proven keys appear once:
// paths are merged where they meet.
type MerkleProof struct {
	LeavesBitmap []H256
	Siblings     []MergeValue
}

// GenerateProof builds a proof for the given keys from a sibling source.
// Keys must be distinct.
func GenerateProof(src SiblingSource, keys []H256) (*MerkleProof, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("no keys to prove")
	}
	keys = sortKeys(keys)
	for i := 1; i < len(keys); i++ {
		if keys[i] == keys[i-1] {
			return nil, fmt.Errorf("duplicate key in proof request")
		}
	}

	bitmaps := make([]H256, len(keys))
	for i, key := range keys {
		for height := 0; height < 256; height++ {
			sibling, err := src.Sibling(key, height)
			if err != nil {
				return nil, err
			} else if !sibling.IsZero() {
				bitmaps[i].SetBit(height)
			}
		}
	}

	// Simulate the verifier's merge order: climb each key to the height where
	// it joins the next key's path, emitting a sibling wherever the bitmap
	// says there is one and no previously merged subtree covers it.
	var siblings []MergeValue
	var stackForkHeight []int
	for i, key := range keys {
		forkHeight := 255
		if i+1 < len(keys) {
			forkHeight = key.ForkHeight(keys[i+1])
		}
		for height := 0; height <= forkHeight; height++ {
			if height == forkHeight && i+1 < len(keys) {
				break // The next key supplies the sibling at the fork.
			}
			if n := len(stackForkHeight); n > 0 && stackForkHeight[n-1] == height {
				stackForkHeight = stackForkHeight[:n-1]
			} else if bitmaps[i].Bit(height) {
				sibling, err := src.Sibling(key, height)
				if err != nil {
					return nil, err
				} else if sibling.IsZero() {
					panic("sibling vanished while generating proof")
				}
				siblings = append(siblings, sibling)
			}
		}
		stackForkHeight = append(stackForkHeight, forkHeight)
	}

	return &MerkleProof{LeavesBitmap: bitmaps, Siblings: siblings}, nil
}

// MerkleProof builds a proof of the current leaf digests of the given keys.
func (t *Tree) MerkleProof(keys []H256) (*MerkleProof, error) {
	return GenerateProof(t, keys)
}

// ComputeRoot returns the root implied by the proof and the claimed leaves.
// An error means the proof does not structurally fit the leaves.
func (p *MerkleProof) ComputeRoot(leaves []Leaf) (H256, error) {
	if len(leaves) == 0 {
		return H256{}, fmt.Errorf("no leaves to compute root over")
	} else if len(leaves) != len(p.LeavesBitmap) {
		return H256{}, fmt.Errorf("proof covers %d leaves, not %d", len(p.LeavesBitmap), len(leaves))
	}
	leaves = sortLeaves(leaves)

	type pending struct {
		key        H256
		node       MergeValue
		forkHeight int
	}
	var stack []pending
	proofIndex := 0

	for i, leaf := range leaves {
		forkHeight := 255
		if i+1 < len(leaves) {
			forkHeight = leaf.Key.ForkHeight(leaves[i+1].Key)
		}

		key, node := leaf.Key, MergeValueFromH256(leaf.ValueHash)
		for height := 0; height <= forkHeight; height++ {
			if height == forkHeight && i+1 < len(leaves) {
				break // Merge with the next leaf's subtree later.
			}

			var sibling MergeValue
			if n := len(stack); n > 0 && stack[n-1].forkHeight == height {
				sibling = stack[n-1].node
				stack = stack[:n-1]
			} else if p.LeavesBitmap[i].Bit(height) {
				if proofIndex >= len(p.Siblings) {
					return H256{}, fmt.Errorf("proof has too few siblings")
				}
				sibling = p.Siblings[proofIndex]
				proofIndex++
			}

			parent := key.ParentPath(height)
			if key.Bit(height) {
				node = Merge(height, parent, sibling, node)
			} else {
				node = Merge(height, parent, node, sibling)
			}
			key = parent
		}
		stack = append(stack, pending{key: key, node: node, forkHeight: forkHeight})
	}

	if len(stack) != 1 || proofIndex != len(p.Siblings) {
		return H256{}, fmt.Errorf("proof does not resolve to a single root")
	}
	return stack[0].node.Hash(), nil
}

// Verify reports whether the proof authenticates the claimed leaves against
// the given root.
func (p *MerkleProof) Verify(root H256, leaves []Leaf) (bool, error) {
	computed, err := p.ComputeRoot(leaves)
	if err != nil {
		return false, err
	}
	return computed == root, nil
}

func sortKeys(keys []H256) []H256 {
	out := make([]H256, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

func sortLeaves(leaves []Leaf) []Leaf {
	out := make([]Leaf, len(leaves))
	copy(out, leaves)
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Cmp(out[j].Key) < 0 })
	return out
}
