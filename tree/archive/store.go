package archive

import (
	"encoding/binary"
	"fmt"

	"github.com/Bren2010/cella/db"
	"github.com/Bren2010/cella/tree/smt"
)

// Key namespaces. Branches are content-addressed and immutable, leaf records
// hold only the latest status, and the root records are the only
// per-sequence index into the tree's history.
const (
	branchPrefix = 'n'
	leafPrefix   = 'v'
	rootPrefix   = 'r'
)

var sequenceKey = []byte("SEQUENCE")

// Store persists the archive tree directly in an ordered key-value store.
// It keeps its own sequence counter rather than going through the versioned
// adapter: history is captured structurally, by never overwriting a branch,
// instead of by versioning keys.
type Store struct {
	r   db.Reader
	w   db.Writer
	seq uint64
}

// NewStore opens the store at its latest committed sequence, or 0 for a
// fresh store.
func NewStore(s db.Store) (*Store, error) {
	seq, err := storedSequence(s)
	if err != nil {
		return nil, err
	}
	return &Store{r: s, w: s, seq: seq}, nil
}

// NewStoreAt opens a read-only view of the store as of a past sequence.
func NewStoreAt(r db.Reader, seq uint64) (*Store, error) {
	stored, err := storedSequence(r)
	if err != nil {
		return nil, err
	}
	if seq > stored {
		return nil, fmt.Errorf("requested sequence %d is ahead of the stored sequence %d", seq, stored)
	}
	return &Store{r: r, seq: seq}, nil
}

func storedSequence(r db.Reader) (uint64, error) {
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

// Sequence returns the sequence the store is bound to.
func (s *Store) Sequence() uint64 {
	return s.seq
}

// GetBranch returns the branch node stored under the given hash.
func (s *Store) GetBranch(hash smt.H256) (*smt.BranchNode, error) {
	key := make([]byte, 0, 33)
	key = append(key, branchPrefix)
	key = append(key, hash[:]...)

	raw, err := s.r.Get(key)
	if err != nil {
		return nil, err
	} else if raw == nil {
		return nil, nil
	}
	node, err := decodeBranch(raw)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// SetBranch stores a branch node under its own hash. Writing the same hash
// twice is harmless: the content is identical by construction.
func (s *Store) SetBranch(hash smt.H256, node smt.BranchNode) error {
	key := make([]byte, 0, 33)
	key = append(key, branchPrefix)
	key = append(key, hash[:]...)
	return s.w.Put(key, encodeBranch(node))
}

// GetLeaf returns the latest raw value recorded for a key, or nil. Leaf
// records are not versioned; historical leaf digests are recovered from the
// tree itself.
func (s *Store) GetLeaf(key smt.H256) ([]byte, error) {
	k := make([]byte, 0, 33)
	k = append(k, leafPrefix)
	k = append(k, key[:]...)

	raw, err := s.r.Get(k)
	if err != nil {
		return nil, err
	} else if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func (s *Store) SetLeaf(key smt.H256, value []byte) error {
	k := make([]byte, 0, 33)
	k = append(k, leafPrefix)
	k = append(k, key[:]...)
	return s.w.Put(k, value)
}

func rootKey(seq uint64) []byte {
	out := make([]byte, 0, 9)
	out = append(out, rootPrefix)
	return binary.BigEndian.AppendUint64(out, seq)
}

// Root returns the root the store is positioned at: the root committed at
// its sequence or, for a writer whose sequence is still open, the previous
// one. Every commit writes a root record, so at most the open sequence
// lacks one.
func (s *Store) Root() (smt.MergeValue, error) {
	for _, seq := range []uint64{s.seq, s.seq - 1} {
		if seq > s.seq { // Underflow: the store is empty and at sequence 0.
			break
		}
		raw, err := s.r.Get(rootKey(seq))
		if err != nil {
			return smt.MergeValue{}, err
		} else if raw != nil {
			return decodeRoot(raw)
		}
	}
	return smt.MergeValue{}, nil
}

// Commit records the given root under the current sequence and advances the
// counter.
func (s *Store) Commit(root smt.MergeValue) error {
	if err := s.w.Put(rootKey(s.seq), encodeRoot(root)); err != nil {
		return err
	}
	s.seq++

	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], s.seq)
	return s.w.Put(sequenceKey, raw[:])
}
