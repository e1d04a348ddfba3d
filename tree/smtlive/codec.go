// Package smtlive implements the live-set engine: a sparse Merkle tree that
// only ever authenticates the set of currently live elements. Creation and
// consumption history lives in side records next to the tree, and proofs
// about past lifecycles are built from historical views of the tree.
package smtlive

import (
	"fmt"

	"github.com/Bren2010/cella/tree/smt"
)

// Branch serialization tags. The live tree may persist all three merge value
// kinds, so the tag space covers every kind pair.
const (
	tagValueValue byte = iota
	tagValueZeros
	tagZerosValue
	tagZerosZeros
	tagValueShortCut
	tagShortCutValue
	tagShortCutShortCut
	tagZerosShortCut
	tagShortCutZeros
)

var codec = smt.Codec{Encode: encodeBranch, Decode: decodeBranch}

func tagOf(l, r smt.MergeValueKind) byte {
	switch {
	case l == smt.KindValue && r == smt.KindValue:
		return tagValueValue
	case l == smt.KindMergeWithZero && r == smt.KindValue:
		return tagZerosValue
	case l == smt.KindValue && r == smt.KindMergeWithZero:
		return tagValueZeros
	case l == smt.KindMergeWithZero && r == smt.KindMergeWithZero:
		return tagZerosZeros
	case l == smt.KindValue && r == smt.KindShortCut:
		return tagValueShortCut
	case l == smt.KindShortCut && r == smt.KindValue:
		return tagShortCutValue
	case l == smt.KindShortCut && r == smt.KindShortCut:
		return tagShortCutShortCut
	case l == smt.KindMergeWithZero && r == smt.KindShortCut:
		return tagZerosShortCut
	default:
		return tagShortCutZeros
	}
}

func kindsOf(tag byte) (smt.MergeValueKind, smt.MergeValueKind, error) {
	switch tag {
	case tagValueValue:
		return smt.KindValue, smt.KindValue, nil
	case tagZerosValue:
		return smt.KindMergeWithZero, smt.KindValue, nil
	case tagValueZeros:
		return smt.KindValue, smt.KindMergeWithZero, nil
	case tagZerosZeros:
		return smt.KindMergeWithZero, smt.KindMergeWithZero, nil
	case tagValueShortCut:
		return smt.KindValue, smt.KindShortCut, nil
	case tagShortCutValue:
		return smt.KindShortCut, smt.KindValue, nil
	case tagShortCutShortCut:
		return smt.KindShortCut, smt.KindShortCut, nil
	case tagZerosShortCut:
		return smt.KindMergeWithZero, smt.KindShortCut, nil
	case tagShortCutZeros:
		return smt.KindShortCut, smt.KindMergeWithZero, nil
	default:
		return 0, 0, fmt.Errorf("branch node has unknown tag: %d", tag)
	}
}

func childSize(kind smt.MergeValueKind) int {
	if kind == smt.KindValue {
		return 32
	}
	return 65
}

func appendChild(out []byte, m smt.MergeValue) []byte {
	switch m.Kind {
	case smt.KindValue:
		return append(out, m.Value[:]...)
	case smt.KindMergeWithZero:
		out = append(out, m.BaseNode[:]...)
		out = append(out, m.ZeroBits[:]...)
		return append(out, m.ZeroCount)
	case smt.KindShortCut:
		out = append(out, m.Key[:]...)
		out = append(out, m.Value[:]...)
		return append(out, m.Height)
	default:
		panic("unknown merge value kind")
	}
}

func decodeChild(kind smt.MergeValueKind, raw []byte) smt.MergeValue {
	m := smt.MergeValue{Kind: kind}
	switch kind {
	case smt.KindValue:
		copy(m.Value[:], raw)
	case smt.KindMergeWithZero:
		copy(m.BaseNode[:], raw[:32])
		copy(m.ZeroBits[:], raw[32:64])
		m.ZeroCount = raw[64]
	case smt.KindShortCut:
		copy(m.Key[:], raw[:32])
		copy(m.Value[:], raw[32:64])
		m.Height = raw[64]
	}
	return m
}

func encodeBranch(node smt.BranchNode) []byte {
	out := make([]byte, 0, 132)
	out = append(out, tagOf(node.Left.Kind, node.Right.Kind))
	out = appendChild(out, node.Left)
	return appendChild(out, node.Right)
}

func decodeBranch(raw []byte) (smt.BranchNode, error) {
	if len(raw) == 0 {
		return smt.BranchNode{}, fmt.Errorf("branch node is empty")
	}
	lKind, rKind, err := kindsOf(raw[0])
	if err != nil {
		return smt.BranchNode{}, err
	}

	body := raw[1:]
	lSize := childSize(lKind)
	if len(body) != lSize+childSize(rKind) {
		return smt.BranchNode{}, fmt.Errorf("branch node has unexpected length")
	}
	return smt.BranchNode{
		Left:  decodeChild(lKind, body[:lSize]),
		Right: decodeChild(rKind, body[lSize:]),
	}, nil
}
