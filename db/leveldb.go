package db

import (
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LDB is a Store backed by a LevelDB database. Writes go straight to the
// database; callers that need a transactional unit use Begin.
type LDB struct {
	conn *leveldb.DB
}

// Open opens (or creates) a LevelDB database at the given path, recovering
// it if it was corrupted by an unclean shutdown.
func Open(file string) (*LDB, error) {
	conn, err := leveldb.OpenFile(file, nil)
	if ldberrors.IsCorrupted(err) {
		conn, err = leveldb.RecoverFile(file, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LDB{conn: conn}, nil
}

// OpenMem opens a fresh in-memory LevelDB database. It behaves identically
// to a disk-backed one and is intended for tests and benchmarks.
func OpenMem() (*LDB, error) {
	conn, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LDB{conn: conn}, nil
}

func (s *LDB) Get(key []byte) ([]byte, error) {
	value, err := s.conn.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *LDB) Put(key, value []byte) error {
	return s.conn.Put(key, value, nil)
}

func (s *LDB) NewIterator() Iterator {
	return s.conn.NewIterator(nil, nil)
}

// Snapshot returns a consistent read-only view of the database as it is
// right now. The returned release function must be called when done.
func (s *LDB) Snapshot() (Reader, func(), error) {
	snap, err := s.conn.GetSnapshot()
	if err != nil {
		return nil, nil, err
	}
	return &ldbSnapshot{snap}, snap.Release, nil
}

// Begin opens a transaction. Only one transaction may be open at a time.
func (s *LDB) Begin() (Txn, error) {
	tx, err := s.conn.OpenTransaction()
	if err != nil {
		return nil, err
	}
	return &ldbTxn{tx}, nil
}

// Close closes the underlying database.
func (s *LDB) Close() error {
	return s.conn.Close()
}

// ldbSnapshot implements Reader over a LevelDB snapshot.
type ldbSnapshot struct {
	snap *leveldb.Snapshot
}

func (s *ldbSnapshot) Get(key []byte) ([]byte, error) {
	value, err := s.snap.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *ldbSnapshot) NewIterator() Iterator {
	return s.snap.NewIterator(nil, nil)
}

// ldbTxn implements Txn over a LevelDB transaction. Reads through the
// transaction observe its own uncommitted writes, which the tree engines
// rely on between block commits.
type ldbTxn struct {
	tx *leveldb.Transaction
}

func (t *ldbTxn) Get(key []byte) ([]byte, error) {
	value, err := t.tx.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return value, nil
}

func (t *ldbTxn) Put(key, value []byte) error {
	return t.tx.Put(key, value, nil)
}

func (t *ldbTxn) NewIterator() Iterator {
	return t.tx.NewIterator(nil, nil)
}

func (t *ldbTxn) Commit() error {
	return t.tx.Commit()
}

func (t *ldbTxn) Discard() {
	t.tx.Discard()
}
