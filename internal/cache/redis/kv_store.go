package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// KVStore implements domain.KVStore with plain Redis strings. Keys carry no
// Redis TTL; freshness is decided by the timestamp inside each entry.
//
// Key schema:
//
//	{prefix}{key} - raw entry bytes
type KVStore struct {
	rdb    *redis.Client
	prefix string
}

// NewKVStore creates a KVStore whose keys are namespaced by prefix.
func NewKVStore(c *Client, prefix string) *KVStore {
	return &KVStore{rdb: c.rdb, prefix: prefix}
}

func (s *KVStore) key(k string) string { return s.prefix + k }

// Get returns the stored value or domain.ErrNotFound.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return v, nil
}

// Set writes value under key.
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: del %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.KVStore = (*KVStore)(nil)
