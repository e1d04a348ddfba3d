package smt

import "github.com/Bren2010/cella/db"

// Store is the persistence interface of the bottom-up tree. A nil branch or
// leaf return with no error means "not present".
type Store interface {
	GetBranch(key BranchKey) (*BranchNode, error)
	SetBranch(key BranchKey, node BranchNode) error
	RemoveBranch(key BranchKey) error

	GetLeaf(key H256) ([]byte, error)
	SetLeaf(key H256, value []byte) error
	RemoveLeaf(key H256) error
}

// Key namespaces within the versioned keyspace. Each logical key is
// fixed-length for its namespace, so no key is a prefix of another.
const (
	branchPrefix = 'b'
	leafPrefix   = 'v'
)

// Codec serializes branch nodes. The canonical and live engines share the
// store layout but not the set of merge value kinds they may persist, so the
// codec is injected.
type Codec struct {
	Encode func(BranchNode) []byte
	Decode func([]byte) (BranchNode, error)
}

// VersionedStore is a Store over a versioned keyspace: branches under
// 'b' || height || node_key and leaf values under 'v' || key. Removals write
// tombstones, so every committed version of the tree stays readable.
type VersionedStore struct {
	v     *db.Versioned
	codec Codec
}

func NewVersionedStore(v *db.Versioned, codec Codec) *VersionedStore {
	return &VersionedStore{v: v, codec: codec}
}

func branchKey(key BranchKey) []byte {
	out := make([]byte, 0, 34)
	out = append(out, branchPrefix, key.Height)
	return append(out, key.NodeKey[:]...)
}

func leafKey(key H256) []byte {
	out := make([]byte, 0, 33)
	out = append(out, leafPrefix)
	return append(out, key[:]...)
}

func (s *VersionedStore) GetBranch(key BranchKey) (*BranchNode, error) {
	raw, ok, err := s.v.Get(branchKey(key))
	if err != nil {
		return nil, err
	} else if !ok || len(raw) == 0 { // Never written, or tombstoned.
		return nil, nil
	}
	node, err := s.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *VersionedStore) SetBranch(key BranchKey, node BranchNode) error {
	return s.v.Put(branchKey(key), s.codec.Encode(node))
}

func (s *VersionedStore) RemoveBranch(key BranchKey) error {
	return s.v.Delete(branchKey(key))
}

func (s *VersionedStore) GetLeaf(key H256) ([]byte, error) {
	raw, ok, err := s.v.Get(leafKey(key))
	if err != nil {
		return nil, err
	} else if !ok || len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func (s *VersionedStore) SetLeaf(key H256, value []byte) error {
	return s.v.Put(leafKey(key), value)
}

func (s *VersionedStore) RemoveLeaf(key H256) error {
	return s.v.Delete(leafKey(key))
}
