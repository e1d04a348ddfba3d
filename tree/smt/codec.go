package smt

import "fmt"

// Branch serialization tags. The tag encodes the kinds of the two children;
// the fields of each child follow in order, so every tag has exactly one
// valid length.
const (
	tagValueValue byte = iota
	tagValueZeros
	tagZerosValue
	tagZerosZeros
)

// CanonicalCodec serializes the branch nodes of the canonical tree, whose
// children are only ever plain hashes or merge-with-zero runs.
var CanonicalCodec = Codec{Encode: encodeCanonical, Decode: decodeCanonical}

func appendZeros(out []byte, m MergeValue) []byte {
	out = append(out, m.BaseNode[:]...)
	out = append(out, m.ZeroBits[:]...)
	return append(out, m.ZeroCount)
}

func decodeZeros(raw []byte) MergeValue {
	m := MergeValue{Kind: KindMergeWithZero, ZeroCount: raw[64]}
	copy(m.BaseNode[:], raw[:32])
	copy(m.ZeroBits[:], raw[32:64])
	return m
}

func encodeCanonical(node BranchNode) []byte {
	l, r := node.Left, node.Right
	out := make([]byte, 0, 132)

	switch {
	case l.Kind == KindValue && r.Kind == KindValue:
		out = append(out, tagValueValue)
		out = append(out, l.Value[:]...)
		out = append(out, r.Value[:]...)
	case l.Kind == KindMergeWithZero && r.Kind == KindValue:
		out = append(out, tagZerosValue)
		out = appendZeros(out, l)
		out = append(out, r.Value[:]...)
	case l.Kind == KindValue && r.Kind == KindMergeWithZero:
		out = append(out, tagValueZeros)
		out = append(out, l.Value[:]...)
		out = appendZeros(out, r)
	case l.Kind == KindMergeWithZero && r.Kind == KindMergeWithZero:
		out = append(out, tagZerosZeros)
		out = appendZeros(out, l)
		out = appendZeros(out, r)
	default:
		panic("branch node child has a kind the canonical tree never stores")
	}
	return out
}

func decodeCanonical(raw []byte) (BranchNode, error) {
	if len(raw) == 0 {
		return BranchNode{}, fmt.Errorf("branch node is empty")
	}
	var node BranchNode

	switch tag, body := raw[0], raw[1:]; tag {
	case tagValueValue:
		if len(body) != 64 {
			return BranchNode{}, fmt.Errorf("branch node has unexpected length")
		}
		node.Left.Kind, node.Right.Kind = KindValue, KindValue
		copy(node.Left.Value[:], body[:32])
		copy(node.Right.Value[:], body[32:])
	case tagZerosValue:
		if len(body) != 97 {
			return BranchNode{}, fmt.Errorf("branch node has unexpected length")
		}
		node.Left = decodeZeros(body[:65])
		node.Right.Kind = KindValue
		copy(node.Right.Value[:], body[65:])
	case tagValueZeros:
		if len(body) != 97 {
			return BranchNode{}, fmt.Errorf("branch node has unexpected length")
		}
		node.Left.Kind = KindValue
		copy(node.Left.Value[:], body[:32])
		node.Right = decodeZeros(body[32:])
	case tagZerosZeros:
		if len(body) != 130 {
			return BranchNode{}, fmt.Errorf("branch node has unexpected length")
		}
		node.Left = decodeZeros(body[:65])
		node.Right = decodeZeros(body[65:])
	default:
		return BranchNode{}, fmt.Errorf("branch node has unknown tag: %d", tag)
	}
	return node, nil
}
