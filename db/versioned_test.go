package db

import (
	"bytes"
	"testing"
)

func testVersioned(t *testing.T) (*Versioned, *LDB) {
	ldb, err := OpenMem()
	if err != nil {
		t.Fatal(err)
	}
	v, err := NewVersioned(ldb)
	if err != nil {
		t.Fatal(err)
	}
	return v, ldb
}

func mustGet(t *testing.T, v *Versioned, key string) ([]byte, bool) {
	raw, ok, err := v.Get([]byte(key))
	if err != nil {
		t.Fatal(err)
	}
	return raw, ok
}

func TestGetLatestValue(t *testing.T) {
	v, _ := testVersioned(t)

	if _, ok := mustGet(t, v, "alpha"); ok {
		t.Fatal("found a key that was never written")
	}

	if err := v.Put([]byte("alpha"), []byte("one")); err != nil {
		t.Fatal(err)
	}
	if raw, ok := mustGet(t, v, "alpha"); !ok || !bytes.Equal(raw, []byte("one")) {
		t.Fatal("read back the wrong value")
	}

	// Overwriting at the same sequence replaces the value.
	if err := v.Put([]byte("alpha"), []byte("two")); err != nil {
		t.Fatal(err)
	}
	if raw, _ := mustGet(t, v, "alpha"); !bytes.Equal(raw, []byte("two")) {
		t.Fatal("overwrite at the same sequence was not observed")
	}
}

func TestHistoricalReads(t *testing.T) {
	v, ldb := testVersioned(t)

	// Write a new value for the key at sequences 0, 1, and 2.
	for i, value := range []string{"one", "two", "three"} {
		if err := v.Put([]byte("alpha"), []byte(value)); err != nil {
			t.Fatal(err)
		}
		if err := v.Commit(); err != nil {
			t.Fatal(err)
		}
		if v.Sequence() != uint64(i)+1 {
			t.Fatal("commit did not advance the sequence")
		}
	}

	for seq, want := range []string{"one", "two", "three"} {
		view, err := NewVersionedAt(ldb, uint64(seq))
		if err != nil {
			t.Fatal(err)
		}
		if raw, ok := mustGet(t, view, "alpha"); !ok || !bytes.Equal(raw, []byte(want)) {
			t.Fatalf("view at sequence %d read %q, want %q", seq, raw, want)
		}
	}

	// Writes from later sequences are invisible to earlier views.
	if err := v.Put([]byte("beta"), []byte("late")); err != nil {
		t.Fatal(err)
	}
	view, err := NewVersionedAt(ldb, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mustGet(t, view, "beta"); ok {
		t.Fatal("view observed a write from a later sequence")
	}
}

func TestTombstones(t *testing.T) {
	v, ldb := testVersioned(t)

	if err := v.Put([]byte("alpha"), []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := v.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := v.Delete([]byte("alpha")); err != nil {
		t.Fatal(err)
	}
	if err := v.Commit(); err != nil {
		t.Fatal(err)
	}

	// The deletion is an empty value at the newer sequence; the old value
	// stays reachable underneath it.
	if raw, ok := mustGet(t, v, "alpha"); !ok || len(raw) != 0 {
		t.Fatal("expected an empty tombstone")
	}
	view, err := NewVersionedAt(ldb, 0)
	if err != nil {
		t.Fatal(err)
	}
	if raw, _ := mustGet(t, view, "alpha"); !bytes.Equal(raw, []byte("one")) {
		t.Fatal("tombstone destroyed the key's history")
	}
}

func TestKeysDoNotBleed(t *testing.T) {
	v, _ := testVersioned(t)

	// "alpha" is a prefix of "alphabet"; reads of one must never resolve to
	// the other.
	if err := v.Put([]byte("alphabet"), []byte("long")); err != nil {
		t.Fatal(err)
	}
	if _, ok := mustGet(t, v, "alpha"); ok {
		t.Fatal("read resolved to a longer key")
	}
	if err := v.Put([]byte("alpha"), []byte("short")); err != nil {
		t.Fatal(err)
	}
	if raw, _ := mustGet(t, v, "alphabet"); !bytes.Equal(raw, []byte("long")) {
		t.Fatal("read resolved to a shorter key")
	}
}

func TestViewValidation(t *testing.T) {
	v, ldb := testVersioned(t)

	if err := v.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := NewVersionedAt(ldb, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := NewVersionedAt(ldb, 2); err == nil {
		t.Fatal("opened a view ahead of the stored sequence")
	}
}

func TestSequenceRecovery(t *testing.T) {
	v, ldb := testVersioned(t)
	for i := 0; i < 3; i++ {
		if err := v.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	reopened, err := NewVersioned(ldb)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Sequence() != 3 {
		t.Fatalf("reopened at sequence %d, want 3", reopened.Sequence())
	}
}
