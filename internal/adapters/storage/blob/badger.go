// Package blob stores immutable dataset snapshots in BadgerDB.
package blob

import (
	"context"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Store keeps snapshot blobs in an embedded Badger database. Snapshots are
// write-once: a ref is never overwritten after upload.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the Badger database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) PutSnapshot(ctx context.Context, ref string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(ref))
		if err == nil {
			return fmt.Errorf("snapshot %s already exists", ref)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set([]byte(ref), data)
	})
}

func (s *Store) GetSnapshot(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ref))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("snapshot %s not found", ref)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
