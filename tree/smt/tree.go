package smt

import (
	"fmt"
	"sort"
)

// Tree is the bottom-up sparse Merkle tree: updates start at the leaf and
// climb all 256 levels to the root, rewriting the branch node at every
// level. This keeps a materialized path for every key ever written, which
// the proof generator walks directly.
type Tree struct {
	store Store
	root  H256
}

// NewTree opens the tree stored in the given store, recovering the current
// root from the top branch node. An empty store is an empty tree.
func NewTree(store Store) (*Tree, error) {
	t := &Tree{store: store}

	top, err := store.GetBranch(BranchKey{Height: 255})
	if err != nil {
		return nil, err
	} else if top != nil {
		t.root = Merge(255, H256{}, top.Left, top.Right).Hash()
	}
	return t, nil
}

// Root returns the current root hash. The empty tree's root is the zero
// hash.
func (t *Tree) Root() H256 {
	return t.root
}

// Leaf is one key and the leaf digest claimed for it. The zero digest claims
// the key is absent.
type Leaf struct {
	Key       H256
	ValueHash H256
}

// LeafUpdate is one pending leaf write: the digest that will authenticate
// the leaf and the raw value stored alongside it. A zero digest removes the
// leaf.
type LeafUpdate struct {
	Key       H256
	ValueHash H256
	Raw       []byte
}

// Update writes one leaf and recomputes the path above it.
func (t *Tree) Update(u LeafUpdate) error {
	node := MergeValueFromH256(u.ValueHash)
	if node.IsZero() {
		if err := t.store.RemoveLeaf(u.Key); err != nil {
			return err
		}
	} else if err := t.store.SetLeaf(u.Key, u.Raw); err != nil {
		return err
	}

	key := u.Key
	for height := 0; height < 256; height++ {
		parent := key.ParentPath(height)
		bk := BranchKey{Height: uint8(height), NodeKey: parent}

		// Replace our side of the parent branch, keeping the sibling.
		var left, right MergeValue
		branch, err := t.store.GetBranch(bk)
		if err != nil {
			return err
		}
		if key.Bit(height) {
			right = node
			if branch != nil {
				left = branch.Left
			}
		} else {
			left = node
			if branch != nil {
				right = branch.Right
			}
		}

		if left.IsZero() && right.IsZero() {
			if err := t.store.RemoveBranch(bk); err != nil {
				return err
			}
		} else if err := t.store.SetBranch(bk, BranchNode{Left: left, Right: right}); err != nil {
			return err
		}

		key = parent
		node = Merge(height, parent, left, right)
	}

	t.root = node.Hash()
	return nil
}

// UpdateAll applies a batch of leaf writes in tree order. Keys must be
// distinct.
func (t *Tree) UpdateAll(updates []LeafUpdate) error {
	sorted := make([]LeafUpdate, len(updates))
	copy(sorted, updates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key.Cmp(sorted[j].Key) < 0
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Key == sorted[i-1].Key {
			return fmt.Errorf("duplicate key in update batch")
		}
	}

	for _, u := range sorted {
		if err := t.Update(u); err != nil {
			return err
		}
	}
	return nil
}
