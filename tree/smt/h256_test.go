package smt

import "testing"

func TestBitOrder(t *testing.T) {
	var h H256
	h.SetBit(0)
	if h[0] != 0x01 {
		t.Fatal("bit 0 is the least significant bit of the first byte")
	}
	h = H256{}
	h.SetBit(255)
	if h[31] != 0x80 {
		t.Fatal("bit 255 is the most significant bit of the last byte")
	}
	for i := 0; i < 256; i++ {
		var h H256
		h.SetBit(i)
		for j := 0; j < 256; j++ {
			if h.Bit(j) != (i == j) {
				t.Fatalf("bit %d misread after setting bit %d", j, i)
			}
		}
	}
}

func TestParentPath(t *testing.T) {
	var h H256
	for i := range h {
		h[i] = 0xff
	}

	p := h.ParentPath(0)
	if p.Bit(0) || !p.Bit(1) {
		t.Fatal("parent path above height 0 clears only bit 0")
	}
	if p = h.ParentPath(255); !p.IsZero() {
		t.Fatal("parent path above height 255 is the root key")
	}
	p = h.ParentPath(7)
	if p[0] != 0x00 || p[1] != 0xff {
		t.Fatal("parent path above height 7 clears the first byte")
	}
}

func TestLowBits(t *testing.T) {
	var h H256
	for i := range h {
		h[i] = 0xff
	}
	l := h.LowBits(9)
	if l[0] != 0xff || l[1] != 0x01 || l[2] != 0x00 {
		t.Fatal("low bits below height 9 keep bits 0 through 8")
	}
	if !h.LowBits(0).IsZero() {
		t.Fatal("low bits below height 0 is empty")
	}
}

func TestForkHeight(t *testing.T) {
	var a, b H256
	b.SetBit(200)
	if h := a.ForkHeight(b); h != 200 {
		t.Fatalf("expected fork height 200, got %d", h)
	}
	b.SetBit(13)
	if h := a.ForkHeight(b); h != 200 {
		t.Fatalf("expected fork height 200, got %d", h)
	}
	if h := a.ForkHeight(a); h != 0 {
		t.Fatalf("expected fork height 0 for equal keys, got %d", h)
	}
}

func TestCmp(t *testing.T) {
	var a, b H256
	a[0] = 0xff // Low bits lose to...
	b[31] = 0x01 // ...high bits.
	if a.Cmp(b) != -1 || b.Cmp(a) != 1 {
		t.Fatal("tree order compares from the last byte down")
	}
	if a.Cmp(a) != 0 {
		t.Fatal("a key compares equal to itself")
	}
}

func TestShortCutHashMatchesFold(t *testing.T) {
	key := testKey(7)
	value := testValue(7)

	// Fold the leaf by hand from height 0 to 10 and check the shortcut's
	// hash summarizes the same subtree.
	folded := MergeValueFromH256(value)
	nodeKey := key
	for height := 0; height < 10; height++ {
		parent := nodeKey.ParentPath(height)
		if nodeKey.Bit(height) {
			folded = Merge(height, parent, MergeValue{}, folded)
		} else {
			folded = Merge(height, parent, folded, MergeValue{})
		}
		nodeKey = parent
	}

	sc := MergeValue{Kind: KindShortCut, Key: key, Value: value, Height: 10}
	if sc.Hash() != folded.Hash() {
		t.Fatal("shortcut hash does not match the folded leaf")
	}

	sc.Height = 0
	if sc.Hash() != value {
		t.Fatal("a height-zero shortcut is the leaf itself")
	}
}

func TestMergeZeros(t *testing.T) {
	if !Merge(42, H256{}, MergeValue{}, MergeValue{}).IsZero() {
		t.Fatal("merging two empty subtrees is empty")
	}

	left := MergeValueFromH256(testValue(1))
	a := Merge(0, H256{}, left, MergeValue{})
	b := Merge(0, H256{}, MergeValue{}, left)
	if a.Hash() == b.Hash() {
		t.Fatal("the empty sibling's side must affect the hash")
	}
}
