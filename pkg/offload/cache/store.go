package cache

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Store wraps Badger with the root+relpath key scheme.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates a store at the given path.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logging is noise here

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves the entry for relPath under root.
func (s *Store) Get(root, relPath string) (*Entry, error) {
	key := makeKey(root, relPath)
	var entry Entry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores a single entry.
func (s *Store) Put(root, relPath string, entry Entry) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(root, relPath), value)
	})
}

// PutBatch stores entries for a root in a single write batch.
func (s *Store) PutBatch(root string, entries map[string]Entry) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for relPath, entry := range entries {
		value, err := entry.Encode()
		if err != nil {
			return err
		}
		if err := wb.Set(makeKey(root, relPath), value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// DeletePrefix removes every entry under root.
func (s *Store) DeletePrefix(root string) error {
	prefix := keyPrefix(root)

	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DropAll removes every entry in the store.
func (s *Store) DropAll() error {
	return s.db.DropAll()
}
