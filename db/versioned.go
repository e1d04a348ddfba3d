package db

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// sequenceKey is the reserved key the current sequence number is persisted
// under. It is the only key written without a sequence suffix, and no
// logical namespace may start with 'S'.
var sequenceKey = []byte("SEQUENCE")

func dup(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// Versioned adapts an ordered key-value store into a multi-version one.
//
// Every logical key is stored under the physical key `logical || seq_be`,
// where seq is the adapter's sequence at the time of the write. A read
// resolves "the value as of the adapter's sequence" with a reverse range
// scan, so historical values stay reachable forever and no structure is
// duplicated per sequence. Commit is the only operation that advances the
// sequence.
//
// A Versioned bound to a read-only view has a nil writer; Put, Delete, and
// Commit must not be called on it.
type Versioned struct {
	r   Reader
	w   Writer
	seq uint64
}

// NewVersioned returns an adapter bound to the store's latest committed
// sequence, or 0 for a fresh store.
func NewVersioned(store Store) (*Versioned, error) {
	seq, err := storedSequence(store)
	if err != nil {
		return nil, err
	}
	return &Versioned{r: store, w: store, seq: seq}, nil
}

// NewVersionedAt returns a read-only adapter bound to the given past
// sequence. It is an error to request a sequence beyond the latest committed
// one: a view may only be opened at or before the present, never ahead of it.
func NewVersionedAt(r Reader, seq uint64) (*Versioned, error) {
	stored, err := storedSequence(r)
	if err != nil {
		return nil, err
	}
	if seq > stored {
		return nil, fmt.Errorf("requested sequence %d is ahead of the stored sequence %d", seq, stored)
	}
	return &Versioned{r: r, seq: seq}, nil
}

func storedSequence(r Reader) (uint64, error) {
	raw, err := r.Get(sequenceKey)
	if err != nil {
		return 0, fmt.Errorf("reading sequence number: %w", err)
	} else if raw == nil {
		return 0, nil
	} else if len(raw) != 8 {
		panic(fmt.Sprintf("stored sequence number is %d bytes, not 8", len(raw)))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Sequence returns the sequence the adapter is bound to.
func (v *Versioned) Sequence() uint64 {
	return v.seq
}

// Get returns the value of the logical key as of the adapter's sequence: the
// value written at the greatest sequence less than or equal to it. The
// second return is false if the key was never written. An empty value is a
// deletion tombstone and is returned as written.
func (v *Versioned) Get(key []byte) ([]byte, bool, error) {
	start := v.physical(key)

	iter := v.r.NewIterator()
	defer iter.Release()

	// Position on the greatest physical key <= start.
	ok := iter.Seek(start)
	if ok && !bytes.Equal(iter.Key(), start) {
		ok = iter.Prev()
	} else if !ok {
		ok = iter.Last()
	}
	if !ok || !bytes.HasPrefix(iter.Key(), key) {
		return nil, false, iter.Error()
	}
	return dup(iter.Value()), true, iter.Error()
}

// Put writes the value under the logical key at the current sequence.
func (v *Versioned) Put(key, value []byte) error {
	return v.w.Put(v.physical(key), value)
}

// Delete writes an empty tombstone under the logical key at the current
// sequence, preserving the key's history.
func (v *Versioned) Delete(key []byte) error {
	return v.w.Put(v.physical(key), []byte{})
}

// Commit advances the sequence and persists it. Writes made after Commit
// land at the new sequence and are invisible to views bound to earlier ones.
func (v *Versioned) Commit() error {
	v.seq++

	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], v.seq)
	return v.w.Put(sequenceKey, raw[:])
}

func (v *Versioned) physical(key []byte) []byte {
	out := make([]byte, 0, len(key)+8)
	out = append(out, key...)
	out = binary.BigEndian.AppendUint64(out, v.seq)
	return out
}
