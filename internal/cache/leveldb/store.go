// Package leveldb implements domain.KVStore on an embedded LevelDB database,
// giving the cache a durable on-device backend that survives restarts.
package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// Store wraps a LevelDB handle. The database is opened once and shared.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if needed) the LevelDB database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Get returns the stored value or domain.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("leveldb: get %s: %w", key, err)
	}
	return v, nil
}

// Set writes value under key, replacing any previous value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if err := s.db.Put([]byte(key), value, nil); err != nil {
		return fmt.Errorf("leveldb: put %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key succeeds.
func (s *Store) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldb: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Compile-time interface check.
var _ domain.KVStore = (*Store)(nil)
