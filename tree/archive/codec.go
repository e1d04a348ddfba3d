// Package archive implements the append-only engine: a sparse Merkle tree
// whose branch nodes are content-addressed by their own hash and never
// rewritten. Only the branches along an updated path are appended per write,
// and a per-sequence root record is the sole entry point into each
// historical tree.
package archive

import (
	"fmt"

	"github.com/Bren2010/cella/tree/smt"
)

// Branch serialization tags. Unlike the bottom-up trees, merge-with-zero
// children carry a fourth field: the hash of the node beneath the zero run,
// which descent follows instead of walking the run level by level.
const (
	tagValueValue byte = iota
	tagValueZeros
	tagZerosValue
	tagZerosZeros
)

// Root record tags.
const (
	rootTagValue byte = iota
	rootTagZeros
)

func appendZeros(out []byte, m smt.MergeValue) []byte {
	out = append(out, m.BaseNode[:]...)
	out = append(out, m.ZeroBits[:]...)
	out = append(out, m.ZeroCount)
	return append(out, m.Value[:]...)
}

func decodeZeros(raw []byte) smt.MergeValue {
	m := smt.MergeValue{Kind: smt.KindMergeWithZero, ZeroCount: raw[64]}
	copy(m.BaseNode[:], raw[:32])
	copy(m.ZeroBits[:], raw[32:64])
	copy(m.Value[:], raw[65:])
	return m
}

func encodeBranch(node smt.BranchNode) []byte {
	l, r := node.Left, node.Right
	out := make([]byte, 0, 196)

	switch {
	case l.Kind == smt.KindValue && r.Kind == smt.KindValue:
		out = append(out, tagValueValue)
		out = append(out, l.Value[:]...)
		out = append(out, r.Value[:]...)
	case l.Kind == smt.KindMergeWithZero && r.Kind == smt.KindValue:
		out = append(out, tagZerosValue)
		out = appendZeros(out, l)
		out = append(out, r.Value[:]...)
	case l.Kind == smt.KindValue && r.Kind == smt.KindMergeWithZero:
		out = append(out, tagValueZeros)
		out = append(out, l.Value[:]...)
		out = appendZeros(out, r)
	case l.Kind == smt.KindMergeWithZero && r.Kind == smt.KindMergeWithZero:
		out = append(out, tagZerosZeros)
		out = appendZeros(out, l)
		out = appendZeros(out, r)
	default:
		panic("branch node child has a kind the archive tree never stores")
	}
	return out
}

func decodeBranch(raw []byte) (smt.BranchNode, error) {
	if len(raw) == 0 {
		return smt.BranchNode{}, fmt.Errorf("branch node is empty")
	}
	var node smt.BranchNode

	switch tag, body := raw[0], raw[1:]; tag {
	case tagValueValue:
		if len(body) != 64 {
			return smt.BranchNode{}, fmt.Errorf("branch node has unexpected length")
		}
		node.Left.Kind, node.Right.Kind = smt.KindValue, smt.KindValue
		copy(node.Left.Value[:], body[:32])
		copy(node.Right.Value[:], body[32:])
	case tagZerosValue:
		if len(body) != 129 {
			return smt.BranchNode{}, fmt.Errorf("branch node has unexpected length")
		}
		node.Left = decodeZeros(body[:97])
		node.Right.Kind = smt.KindValue
		copy(node.Right.Value[:], body[97:])
	case tagValueZeros:
		if len(body) != 129 {
			return smt.BranchNode{}, fmt.Errorf("branch node has unexpected length")
		}
		node.Left.Kind = smt.KindValue
		copy(node.Left.Value[:], body[:32])
		node.Right = decodeZeros(body[32:])
	case tagZerosZeros:
		if len(body) != 194 {
			return smt.BranchNode{}, fmt.Errorf("branch node has unexpected length")
		}
		node.Left = decodeZeros(body[:97])
		node.Right = decodeZeros(body[97:])
	default:
		return smt.BranchNode{}, fmt.Errorf("branch node has unknown tag: %d", tag)
	}
	return node, nil
}

// encodeRoot serializes a root record. The full merge value is kept, not
// just its hash: descent needs to know whether the root is a plain branch
// hash or the top of a zero run.
func encodeRoot(m smt.MergeValue) []byte {
	out := make([]byte, 0, 98)
	switch m.Kind {
	case smt.KindValue:
		out = append(out, rootTagValue)
		return append(out, m.Value[:]...)
	case smt.KindMergeWithZero:
		out = append(out, rootTagZeros)
		return appendZeros(out, m)
	default:
		panic("root has a kind the archive tree never stores")
	}
}

func decodeRoot(raw []byte) (smt.MergeValue, error) {
	if len(raw) == 0 {
		return smt.MergeValue{}, fmt.Errorf("root record is empty")
	}
	switch tag, body := raw[0], raw[1:]; tag {
	case rootTagValue:
		if len(body) != 32 {
			return smt.MergeValue{}, fmt.Errorf("root record has unexpected length")
		}
		var m smt.MergeValue
		copy(m.Value[:], body)
		return m, nil
	case rootTagZeros:
		if len(body) != 97 {
			return smt.MergeValue{}, fmt.Errorf("root record has unexpected length")
		}
		return decodeZeros(body), nil
	default:
		return smt.MergeValue{}, fmt.Errorf("root record has unknown tag: %d", tag)
	}
}
