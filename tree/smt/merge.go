package smt

import "github.com/Bren2010/cella/crypto"

// Domain separators for the two internal node hashes.
const (
	mergeNormal byte = 0x01
	mergeZeros  byte = 0x02
)

// MergeValueKind discriminates the three representations of a subtree
// summary.
type MergeValueKind uint8

const (
	// KindValue is a plain node hash: a leaf digest, or the hash of a branch
	// with two non-zero children. The zero hash means an empty subtree.
	KindValue MergeValueKind = iota
	// KindMergeWithZero summarizes a subtree whose top is a run of merges
	// against empty siblings. The run is kept symbolic instead of being
	// hashed step by step, so climbing through sparse regions is O(1).
	KindMergeWithZero
	// KindShortCut summarizes a subtree containing exactly one leaf by the
	// leaf itself. It hashes identically to the merge-with-zero fold of that
	// leaf up to its height.
	KindShortCut
)

// MergeValue is the summary of one subtree, as stored in the child slots of
// branch nodes and carried through proofs. Which fields are meaningful
// depends on Kind:
//
//   - KindValue: Value.
//   - KindMergeWithZero: BaseNode, ZeroBits, ZeroCount, and Value, which
//     points at the node hash beneath the zero run. The pointer does not
//     contribute to the hash; the append-only engine uses it to descend
//     through the run.
//   - KindShortCut: Key, Value (the leaf digest), and Height.
type MergeValue struct {
	Kind MergeValueKind

	Value H256

	BaseNode  H256
	ZeroBits  H256
	ZeroCount uint8

	Key    H256
	Height uint8
}

// MergeValueFromH256 returns the plain-hash summary of a node.
func MergeValueFromH256(v H256) MergeValue {
	return MergeValue{Kind: KindValue, Value: v}
}

// IsZero reports whether the summary is of an empty subtree.
func (m MergeValue) IsZero() bool {
	return m.Kind == KindValue && m.Value.IsZero()
}

// Hash returns the node hash of the summarized subtree.
func (m MergeValue) Hash() H256 {
	switch m.Kind {
	case KindValue:
		return m.Value
	case KindMergeWithZero:
		count := [1]byte{m.ZeroCount}
		return H256(crypto.Sum([]byte{mergeZeros}, m.BaseNode[:], m.ZeroBits[:], count[:]))
	case KindShortCut:
		return m.asMergeWithZero().Hash()
	default:
		panic("unknown merge value kind")
	}
}

// asMergeWithZero rewrites a shortcut as the equivalent fold of its leaf
// against empty siblings from height 0 up to the shortcut's height.
func (m MergeValue) asMergeWithZero() MergeValue {
	if m.Height == 0 {
		return MergeValueFromH256(m.Value)
	}
	var bits H256
	for height := 0; height < int(m.Height); height++ {
		if m.Key.Bit(height) {
			bits.SetBit(height)
		}
	}
	return MergeValue{
		Kind:      KindMergeWithZero,
		Value:     m.Value,
		BaseNode:  hashBaseNode(0, m.Key.ParentPath(0), m.Value),
		ZeroBits:  bits,
		ZeroCount: m.Height,
	}
}

// hashBaseNode hashes the anchor of a zero run: the height, node key, and
// node hash at the bottom of the run.
func hashBaseNode(height int, key, value H256) H256 {
	h := [1]byte{byte(height)}
	return H256(crypto.Sum(h[:], key[:], value[:]))
}

// Merge combines the summaries of the two children of the node at the given
// height and key into the summary of that node.
func Merge(height int, nodeKey H256, lhs, rhs MergeValue) MergeValue {
	lhsZero, rhsZero := lhs.IsZero(), rhs.IsZero()

	if lhsZero && rhsZero {
		return MergeValue{}
	} else if lhsZero {
		return mergeWithZero(height, nodeKey, rhs, true)
	} else if rhsZero {
		return mergeWithZero(height, nodeKey, lhs, false)
	}
	h, n, l, r := [1]byte{byte(height)}, nodeKey, lhs.Hash(), rhs.Hash()
	return MergeValueFromH256(H256(crypto.Sum([]byte{mergeNormal}, h[:], n[:], l[:], r[:])))
}

// mergeWithZero extends (or starts) a zero run with one more level. setBit
// is true when the empty sibling is on the left, which is exactly when the
// occupied subtree's keys have a one bit at this height.
func mergeWithZero(height int, nodeKey H256, value MergeValue, setBit bool) MergeValue {
	switch value.Kind {
	case KindValue:
		var bits H256
		if setBit {
			bits.SetBit(height)
		}
		return MergeValue{
			Kind:      KindMergeWithZero,
			Value:     value.Value,
			BaseNode:  hashBaseNode(height, nodeKey, value.Value),
			ZeroBits:  bits,
			ZeroCount: 1,
		}
	case KindMergeWithZero:
		bits := value.ZeroBits
		if setBit {
			bits.SetBit(height)
		}
		return MergeValue{
			Kind:      KindMergeWithZero,
			Value:     value.Value,
			BaseNode:  value.BaseNode,
			ZeroBits:  bits,
			ZeroCount: value.ZeroCount + 1,
		}
	case KindShortCut:
		return mergeWithZero(height, nodeKey, value.asMergeWithZero(), setBit)
	default:
		panic("unknown merge value kind")
	}
}

// BranchKey addresses a branch node by its height and the key of its
// position, with all bits at or below the height cleared.
type BranchKey struct {
	Height  uint8
	NodeKey H256
}

// BranchNode holds the summaries of a node's two children. At least one of
// them is non-zero; fully empty nodes are never stored.
type BranchNode struct {
	Left  MergeValue
	Right MergeValue
}
