package smt

import (
	"testing"

	"github.com/Bren2010/cella/crypto"
	"github.com/Bren2010/cella/db"
)

func testKey(n byte) H256 {
	return H256(crypto.Sum([]byte{'k', n}))
}

func testValue(n byte) H256 {
	return H256(crypto.Sum([]byte{'v', n}))
}

func testTree(t *testing.T) (*Tree, *db.LDB) {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	v, err := db.NewVersioned(ldb)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewTree(NewVersionedStore(v, CanonicalCodec))
	if err != nil {
		t.Fatal(err)
	}
	return tree, ldb
}

func mustUpdate(t *testing.T, tree *Tree, key, value H256) {
	if err := tree.Update(LeafUpdate{Key: key, ValueHash: value}); err != nil {
		t.Fatal(err)
	}
}

func TestEmptyTreeRoot(t *testing.T) {
	tree, _ := testTree(t)
	if !tree.Root().IsZero() {
		t.Fatal("empty tree must have the zero root")
	}
}

func TestUpdateChangesRoot(t *testing.T) {
	tree, _ := testTree(t)

	var roots []H256
	for n := byte(0); n < 8; n++ {
		mustUpdate(t, tree, testKey(n), testValue(n))
		root := tree.Root()
		if root.IsZero() {
			t.Fatal("non-empty tree has the zero root")
		}
		for _, prev := range roots {
			if root == prev {
				t.Fatal("root repeated after an insert")
			}
		}
		roots = append(roots, root)
	}

	// Removing the leaves in a different order returns to the empty root.
	for n := byte(0); n < 8; n++ {
		mustUpdate(t, tree, testKey(7-n), H256{})
	}
	if !tree.Root().IsZero() {
		t.Fatal("tree with all leaves removed must have the zero root")
	}
}

func TestRootIsOrderIndependent(t *testing.T) {
	a, _ := testTree(t)
	b, _ := testTree(t)

	for n := byte(0); n < 8; n++ {
		mustUpdate(t, a, testKey(n), testValue(n))
		mustUpdate(t, b, testKey(7-n), testValue(7-n))
	}
	if a.Root() != b.Root() {
		t.Fatal("insertion order changed the root")
	}
}

func TestRootRecovery(t *testing.T) {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	v, err := db.NewVersioned(ldb)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewTree(NewVersionedStore(v, CanonicalCodec))
	if err != nil {
		t.Fatal(err)
	}
	for n := byte(0); n < 4; n++ {
		mustUpdate(t, tree, testKey(n), testValue(n))
	}

	reopened, err := NewTree(NewVersionedStore(v, CanonicalCodec))
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Root() != tree.Root() {
		t.Fatal("reopened tree recovered a different root")
	}
}

func TestHistoricalRoots(t *testing.T) {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	v, err := db.NewVersioned(ldb)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewTree(NewVersionedStore(v, CanonicalCodec))
	if err != nil {
		t.Fatal(err)
	}

	var roots []H256
	for n := byte(0); n < 4; n++ {
		mustUpdate(t, tree, testKey(n), testValue(n))
		roots = append(roots, tree.Root())
		if err := v.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	for seq, want := range roots {
		view, err := db.NewVersionedAt(ldb, uint64(seq))
		if err != nil {
			t.Fatal(err)
		}
		old, err := NewTree(NewVersionedStore(view, CanonicalCodec))
		if err != nil {
			t.Fatal(err)
		}
		if old.Root() != want {
			t.Fatalf("view at sequence %d recovered the wrong root", seq)
		}
	}
}

func TestUpdateAllRejectsDuplicates(t *testing.T) {
	tree, _ := testTree(t)

	err := tree.UpdateAll([]LeafUpdate{
		{Key: testKey(1), ValueHash: testValue(1)},
		{Key: testKey(1), ValueHash: testValue(2)},
	})
	if err == nil {
		t.Fatal("expected duplicate keys to be rejected")
	}
}
