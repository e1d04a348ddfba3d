package archive

import (
	"errors"
	"testing"

	"github.com/Bren2010/cella/accumulator"
	"github.com/Bren2010/cella/crypto"
	"github.com/Bren2010/cella/db"
)

func testOutPoint(n byte) accumulator.OutPoint {
	return accumulator.OutPoint{TxHash: crypto.Sum([]byte{'c', n}), Index: uint32(n)}
}

func TestAccumulatorLifecycle(t *testing.T) {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	acc, err := New(ldb)
	if err != nil {
		t.Fatal(err)
	}
	a, b, c := testOutPoint(1), testOutPoint(2), testOutPoint(3)

	// Block 0: create a and b. Block 1: create c. Block 2: consume b.
	if err := acc.Add([]accumulator.OutPoint{a, b}); err != nil {
		t.Fatal(err)
	}
	c0, err := acc.Commit()
	if err != nil {
		t.Fatal(err)
	}
	if err := acc.Add([]accumulator.OutPoint{c}); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := acc.Delete([]accumulator.OutPoint{b}); err != nil {
		t.Fatal(err)
	}
	c2, err := acc.Commit()
	if err != nil {
		t.Fatal(err)
	}

	proof, err := acc.Prove(c2, []accumulator.OutPoint{a, b, c})
	if err != nil {
		t.Fatal(err)
	}
	elements := []accumulator.Element{
		{OutPoint: a, Status: accumulator.NewLive(0)},
		{OutPoint: b, Status: accumulator.NewDead(0, 2)},
		{OutPoint: c, Status: accumulator.NewLive(1)},
	}
	ok, err := proof.Verify(c2, elements)
	if err != nil {
		t.Fatal(err)
	} else if !ok {
		t.Fatal("valid proof rejected")
	}

	elements[1].Status = accumulator.NewLive(0)
	ok, err = proof.Verify(c2, elements)
	if err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("proof accepted a stale status")
	}

	// A stale commitment is rejected at proving time.
	if _, err := acc.Prove(c0, []accumulator.OutPoint{a}); !errors.Is(err, accumulator.ErrInvalidCommitment) {
		t.Fatalf("expected ErrInvalidCommitment, got %v", err)
	}
}

func TestHistoricalViewIgnoresLaterWrites(t *testing.T) {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	acc, err := New(ldb)
	if err != nil {
		t.Fatal(err)
	}

	a, b := testOutPoint(1), testOutPoint(2)
	if err := acc.Add([]accumulator.OutPoint{a, b}); err != nil {
		t.Fatal(err)
	}
	c0, err := acc.Commit()
	if err != nil {
		t.Fatal(err)
	}
	if err := acc.Delete([]accumulator.OutPoint{b}); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Commit(); err != nil {
		t.Fatal(err)
	}

	// Even though b's leaf record was rewritten by the later consumption,
	// the view at sequence 0 proves b as it stood then: live.
	view, err := NewAt(ldb, c0.Sequence)
	if err != nil {
		t.Fatal(err)
	}
	proof, err := view.Prove(c0, []accumulator.OutPoint{b})
	if err != nil {
		t.Fatal(err)
	}
	ok, err := proof.Verify(c0, []accumulator.Element{{OutPoint: b, Status: accumulator.NewLive(0)}})
	if err != nil {
		t.Fatal(err)
	} else if !ok {
		t.Fatal("valid historical proof rejected")
	}
	ok, err = proof.Verify(c0, []accumulator.Element{{OutPoint: b, Status: accumulator.NewDead(0, 1)}})
	if err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("historical proof accepted the later status")
	}
}

func TestAddRejectsExisting(t *testing.T) {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	acc, err := New(ldb)
	if err != nil {
		t.Fatal(err)
	}

	a := testOutPoint(1)
	if err := acc.Add([]accumulator.OutPoint{a}); err != nil {
		t.Fatal(err)
	}

	var exists accumulator.ElementExistsError
	err = acc.Add([]accumulator.OutPoint{testOutPoint(2), a})
	if !errors.As(err, &exists) || exists.Index != 1 {
		t.Fatalf("expected ElementExistsError at index 1, got %v", err)
	}
}

func TestDeleteValidatesBatch(t *testing.T) {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	acc, err := New(ldb)
	if err != nil {
		t.Fatal(err)
	}

	a := testOutPoint(1)
	if err := acc.Add([]accumulator.OutPoint{a}); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Commit(); err != nil {
		t.Fatal(err)
	}
	root := acc.tree.Root()

	var missing accumulator.ElementNotFoundError
	err = acc.Delete([]accumulator.OutPoint{a, testOutPoint(2)})
	if !errors.As(err, &missing) || missing.Index != 1 {
		t.Fatalf("expected ElementNotFoundError at index 1, got %v", err)
	}
	if acc.tree.Root() != root {
		t.Fatal("failed delete batch mutated the tree")
	}

	if err := acc.Delete([]accumulator.OutPoint{a}); err != nil {
		t.Fatal(err)
	}
	if !errors.As(acc.Delete([]accumulator.OutPoint{a}), &missing) {
		t.Fatal("expected a second delete to report the element missing")
	}
}
