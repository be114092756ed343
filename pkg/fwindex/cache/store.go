package cache

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a cache entry doesn't exist.
var ErrNotFound = errors.New("cache entry not found")

// Store wraps Badger for hash cache operations.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates a cache store at the given path.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening hash cache: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves a cached entry by root and relative path.
func (s *Store) Get(root, relPath string) (*HashEntry, error) {
	key := MakeKey(root, relPath)
	var entry HashEntry

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

// Lookup returns the cached digest for a file when the entry still matches
// its size, mtime, and algorithm.
func (s *Store) Lookup(root, relPath string, size, mtime int64, algorithm string) (string, bool) {
	entry, err := s.Get(root, relPath)
	if err != nil || !entry.Matches(size, mtime, algorithm) {
		return "", false
	}
	return entry.Digest, true
}

// Put stores a cached entry.
func (s *Store) Put(root, relPath string, entry *HashEntry) error {
	entry.Version = CacheVersion
	value, err := entry.Encode()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MakeKey(root, relPath), value)
	})
}

// PutBatch stores multiple entries in a single write batch.
func (s *Store) PutBatch(root string, entries map[string]*HashEntry) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for relPath, entry := range entries {
		entry.Version = CacheVersion
		value, err := entry.Encode()
		if err != nil {
			return err
		}
		if err := wb.Set(MakeKey(root, relPath), value); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Retain deletes every entry under root whose relative path is not in keep.
// It returns the number of entries removed.
func (s *Store) Retain(root string, keep map[string]struct{}) (int, error) {
	prefix := MakeKeyPrefix(root)
	var stale [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, rel := ParseKey(key); rel != "" {
				if _, ok := keep[rel]; ok {
					continue
				}
			}
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// DeletePrefix removes all entries under root.
func (s *Store) DeletePrefix(root string) error {
	return s.db.DropPrefix(MakeKeyPrefix(root))
}
