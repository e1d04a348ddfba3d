package accumulator

import "testing"

func TestCellStatus(t *testing.T) {
	s := NewLive(7)
	if !s.IsLive() {
		t.Fatal("fresh status must be live")
	} else if s.CreatedBy() != 7 {
		t.Fatal("wrong creation sequence")
	} else if s.IsZero() {
		t.Fatal("a real status is never the absent sentinel")
	}

	s.MarkDead(9)
	if s.IsLive() {
		t.Fatal("consumed status must not be live")
	} else if s.CreatedBy() != 7 || s.ConsumedBy() != 9 {
		t.Fatal("wrong lifecycle sequences")
	}
	if s != NewDead(7, 9) {
		t.Fatal("MarkDead and NewDead disagree")
	}

	if !NewDead(0, 0).IsZero() {
		t.Fatal("created and consumed at zero is the absent sentinel")
	}
	if !(CellStatus{}).LeafHash().IsZero() {
		t.Fatal("the absent sentinel must hash to the zero digest")
	}
	if NewLive(0).LeafHash().IsZero() {
		t.Fatal("a real status must not hash to the zero digest")
	}
}

func TestBlockNumber(t *testing.T) {
	if !MaxBlockNumber.LeafHash().IsZero() {
		t.Fatal("the absent sentinel must hash to the zero digest")
	}
	if NewBlockNumber(3).LeafHash().IsZero() {
		t.Fatal("a real block number must not hash to the zero digest")
	}
	if NewBlockNumber(3) == NewBlockNumber(4) {
		t.Fatal("distinct sequences must encode differently")
	}
}

func TestOutPointHash(t *testing.T) {
	a := OutPoint{Index: 1}
	b := OutPoint{Index: 2}
	if a.Hash() == b.Hash() {
		t.Fatal("the index must contribute to the identity hash")
	}
	b.TxHash[0] = 1
	b.Index = 1
	if a.Hash() == b.Hash() {
		t.Fatal("the origin hash must contribute to the identity hash")
	}
	if a.Hash() != a.Hash() {
		t.Fatal("identity hashing must be deterministic")
	}
}
