// Package db implements database wrappers that match a common interface.
//
// The accumulator engines never talk to a database directly: they go through
// the Versioned adapter in this package, which owns the sequence counter and
// turns an ordinary ordered key-value store into a temporal one.
package db

// Iterator iterates over the keyspace in lexicographic byte order. It
// matches the subset of the goleveldb iterator that the versioned adapter
// needs, so concrete iterators can be passed through without wrapping.
type Iterator interface {
	// Seek moves the iterator to the first key at or after the given key,
	// returning false if no such key exists.
	Seek(key []byte) bool
	// Prev moves the iterator to the previous key.
	Prev() bool
	// Last moves the iterator to the last key in the keyspace.
	Last() bool

	Key() []byte
	Value() []byte

	Release()
	Error() error
}

// Reader is point and ordered-range read access to a keyspace.
type Reader interface {
	// Get returns the value stored under key, or nil if there is none.
	Get(key []byte) ([]byte, error)
	// NewIterator returns an iterator over the whole keyspace.
	NewIterator() Iterator
}

// Writer is point write access to a keyspace.
type Writer interface {
	Put(key, value []byte) error
}

// Store combines read and write access to a single keyspace.
type Store interface {
	Reader
	Writer
}

// Txn is a transactional unit over a Store. Writes made through a Txn are
// not durable until Commit; Discard drops them. Reads through a Txn observe
// its own uncommitted writes.
type Txn interface {
	Store
	Commit() error
	Discard()
}
