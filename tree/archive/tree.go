package archive

import (
	"fmt"
	"sort"

	"github.com/Bren2010/cella/tree/smt"
)

// Tree is the top-down archive tree. Updates descend from the root to the
// key, collecting the sibling summary at every height, then fold back up,
// appending only the branches whose two children are both non-empty. Zero
// runs are crossed in one step by following the merge-with-zero child
// pointer, so both reads and writes are proportional to the number of
// occupied forks on the path rather than the tree height.
type Tree struct {
	store *Store
	root  smt.MergeValue
}

// NewTree opens the tree at the store's sequence.
func NewTree(store *Store) (*Tree, error) {
	root, err := store.Root()
	if err != nil {
		return nil, err
	}
	return &Tree{store: store, root: root}, nil
}

// Root returns the current root hash.
func (t *Tree) Root() smt.H256 {
	return t.root.Hash()
}

// path is the result of descending from the root toward one key: the sibling
// summary at every height, and the key's leaf digest if it is present.
type path struct {
	siblings [256]smt.MergeValue
	leafHash smt.H256
}

func (t *Tree) descend(key smt.H256) (*path, error) {
	p := &path{}

	cur := t.root
	top := 256 // cur summarizes the subtree spanning heights [0, top).
	for {
		if cur.IsZero() {
			return p, nil
		}
		switch cur.Kind {
		case smt.KindValue:
			if top == 0 {
				p.leafHash = cur.Value
				return p, nil
			}
			branch, err := t.store.GetBranch(cur.Value)
			if err != nil {
				return nil, err
			} else if branch == nil {
				panic("missing branch node for a committed root")
			}
			if key.Bit(top - 1) {
				p.siblings[top-1], cur = branch.Left, branch.Right
			} else {
				p.siblings[top-1], cur = branch.Right, branch.Left
			}
			top--

		case smt.KindMergeWithZero:
			run := int(cur.ZeroCount)
			if run == 0 { // A full-height run wraps the count byte.
				run = 256
			}
			bottom := top - run

			// The run's zero bits record, per height, which side the occupied
			// subtree is on. Find where the key leaves it.
			diverge := -1
			for h := top - 1; h >= bottom; h-- {
				if key.Bit(h) != cur.ZeroBits.Bit(h) {
					diverge = h
					break
				}
			}
			if diverge == -1 {
				// The key follows the run down to the node beneath it.
				cur = smt.MergeValueFromH256(cur.Value)
				top = bottom
				continue
			}

			// The key falls off the run into empty space: its sibling at the
			// divergence is the occupied subtree folded up to that height,
			// and everything below is empty.
			if diverge == bottom {
				p.siblings[diverge] = smt.MergeValueFromH256(cur.Value)
			} else {
				p.siblings[diverge] = smt.MergeValue{
					Kind:      smt.KindMergeWithZero,
					Value:     cur.Value,
					BaseNode:  cur.BaseNode,
					ZeroBits:  cur.ZeroBits.LowBits(diverge),
					ZeroCount: uint8(diverge - bottom),
				}
			}
			return p, nil

		default:
			panic("archive tree root has an unexpected kind")
		}
	}
}

// Update writes one leaf and appends the rebuilt path above it.
func (t *Tree) Update(u smt.LeafUpdate) error {
	p, err := t.descend(u.Key)
	if err != nil {
		return err
	}

	node := smt.MergeValueFromH256(u.ValueHash)
	if err := t.store.SetLeaf(u.Key, u.Raw); err != nil {
		return err
	}

	key := u.Key
	for height := 0; height < 256; height++ {
		parent := key.ParentPath(height)
		sibling := p.siblings[height]

		var left, right smt.MergeValue
		if key.Bit(height) {
			left, right = sibling, node
		} else {
			left, right = node, sibling
		}
		node = smt.Merge(height, parent, left, right)

		// Only real forks become branch records; zero runs stay symbolic
		// inside the parent's merge value.
		if !left.IsZero() && !right.IsZero() {
			if err := t.store.SetBranch(node.Hash(), smt.BranchNode{Left: left, Right: right}); err != nil {
				return err
			}
		}
		key = parent
	}

	t.root = node
	return nil
}

// UpdateAll applies a batch of leaf writes in tree order. Keys must be
// distinct.
func (t *Tree) UpdateAll(updates []smt.LeafUpdate) error {
	sorted := make([]smt.LeafUpdate, len(updates))
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

// pathSource adapts precomputed descents to the proof generator.
type pathSource map[smt.H256]*path

func (s pathSource) Sibling(key smt.H256, height int) (smt.MergeValue, error) {
	return s[key].siblings[height], nil
}

// MerkleProof builds a proof of the current leaf digests of the given keys.
func (t *Tree) MerkleProof(keys []smt.H256) (*smt.MerkleProof, error) {
	src := make(pathSource, len(keys))
	for _, key := range keys {
		p, err := t.descend(key)
		if err != nil {
			return nil, err
		}
		src[key] = p
	}
	return smt.GenerateProof(src, keys)
}
