package archive

import (
	"testing"

	"github.com/Bren2010/cella/crypto"
	"github.com/Bren2010/cella/db"
	"github.com/Bren2010/cella/tree/smt"
)

func testKey(n byte) smt.H256 {
	return smt.H256(crypto.Sum([]byte{'k', n}))
}

func testValue(n byte) smt.H256 {
	return smt.H256(crypto.Sum([]byte{'v', n}))
}

func testTree(t *testing.T) (*Tree, *Store) {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	store, err := NewStore(ldb)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewTree(store)
	if err != nil {
		t.Fatal(err)
	}
	return tree, store
}

// referenceTree is a bottom-up tree over the same merge rules, used as the
// ground truth for roots.
func referenceTree(t *testing.T) *smt.Tree {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	v, err := db.NewVersioned(ldb)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := smt.NewTree(smt.NewVersionedStore(v, smt.CanonicalCodec))
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func TestRootMatchesBottomUpTree(t *testing.T) {
	tree, _ := testTree(t)
	ref := referenceTree(t)

	for n := byte(0); n < 16; n++ {
		u := smt.LeafUpdate{Key: testKey(n), ValueHash: testValue(n)}
		if err := tree.Update(u); err != nil {
			t.Fatal(err)
		}
		if err := ref.Update(u); err != nil {
			t.Fatal(err)
		}
		if tree.Root() != ref.Root() {
			t.Fatalf("roots diverged after %d inserts", n+1)
		}
	}

	// Overwrites must agree too.
	for n := byte(0); n < 16; n += 2 {
		u := smt.LeafUpdate{Key: testKey(n), ValueHash: testValue(n + 100)}
		if err := tree.Update(u); err != nil {
			t.Fatal(err)
		}
		if err := ref.Update(u); err != nil {
			t.Fatal(err)
		}
		if tree.Root() != ref.Root() {
			t.Fatal("roots diverged after an overwrite")
		}
	}
}

func TestDescend(t *testing.T) {
	tree, _ := testTree(t)
	for n := byte(0); n < 8; n++ {
		if err := tree.Update(smt.LeafUpdate{Key: testKey(n), ValueHash: testValue(n)}); err != nil {
			t.Fatal(err)
		}
	}

	p, err := tree.descend(testKey(3))
	if err != nil {
		t.Fatal(err)
	}
	if p.leafHash != testValue(3) {
		t.Fatal("descent found the wrong leaf digest")
	}

	p, err = tree.descend(testKey(200))
	if err != nil {
		t.Fatal(err)
	}
	if !p.leafHash.IsZero() {
		t.Fatal("descent found a digest for an absent key")
	}
}

func TestProofs(t *testing.T) {
	tree, _ := testTree(t)
	for n := byte(0); n < 16; n++ {
		if err := tree.Update(smt.LeafUpdate{Key: testKey(n), ValueHash: testValue(n)}); err != nil {
			t.Fatal(err)
		}
	}

	keys := []smt.H256{testKey(1), testKey(7), testKey(200)}
	leaves := []smt.Leaf{
		{Key: testKey(1), ValueHash: testValue(1)},
		{Key: testKey(7), ValueHash: testValue(7)},
		{Key: testKey(200)},
	}

	proof, err := tree.MerkleProof(keys)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := proof.Verify(tree.Root(), leaves)
	if err != nil {
		t.Fatal(err)
	} else if !ok {
		t.Fatal("valid proof rejected")
	}

	leaves[0].ValueHash = testValue(2)
	ok, err = proof.Verify(tree.Root(), leaves)
	if err != nil {
		t.Fatal(err)
	} else if ok {
		t.Fatal("proof accepted a wrong leaf value")
	}
}

func TestHistoricalRoots(t *testing.T) {
	ldb, err := db.OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	store, err := NewStore(ldb)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewTree(store)
	if err != nil {
		t.Fatal(err)
	}

	var roots []smt.H256
	for n := byte(0); n < 4; n++ {
		if err := tree.Update(smt.LeafUpdate{Key: testKey(n), ValueHash: testValue(n)}); err != nil {
			t.Fatal(err)
		}
		roots = append(roots, tree.Root())
		if err := store.Commit(tree.root); err != nil {
			t.Fatal(err)
		}
	}

	for seq, want := range roots {
		view, err := NewStoreAt(ldb, uint64(seq))
		if err != nil {
			t.Fatal(err)
		}
		old, err := NewTree(view)
		if err != nil {
			t.Fatal(err)
		}
		if old.Root() != want {
			t.Fatalf("view at sequence %d recovered the wrong root", seq)
		}

		// Proofs generated from the historical view must verify against the
		// historical root.
		proof, err := old.MerkleProof([]smt.H256{testKey(0)})
		if err != nil {
			t.Fatal(err)
		}
		ok, err := proof.Verify(want, []smt.Leaf{{Key: testKey(0), ValueHash: testValue(0)}})
		if err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatal("valid historical proof rejected")
		}
	}
}

func TestSingleLeafTree(t *testing.T) {
	// A single leaf folds into a zero run spanning the whole height, which
	// exercises the wrapped run length and the root record format.
	tree, store := testTree(t)
	ref := referenceTree(t)

	u := smt.LeafUpdate{Key: testKey(1), ValueHash: testValue(1)}
	if err := tree.Update(u); err != nil {
		t.Fatal(err)
	}
	if err := ref.Update(u); err != nil {
		t.Fatal(err)
	}
	if tree.Root() != ref.Root() {
		t.Fatal("single-leaf roots diverged")
	}
	if err := store.Commit(tree.root); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewTree(store)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Root() != tree.Root() {
		t.Fatal("reopened tree recovered a different root")
	}

	p, err := reopened.descend(testKey(1))
	if err != nil {
		t.Fatal(err)
	}
	if p.leafHash != testValue(1) {
		t.Fatal("descent through a full-height run found the wrong digest")
	}
}
