// Package cache provides a lazily expiring, JSON-encoded cache layered over
// a pluggable domain.KVStore. Expiry is checked on read only; nothing runs
// in the background and expired entries are left in place until they are
// overwritten or invalidated.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// Keys used for marketplace data.
const (
	ModelsKey     = "modelsCache"
	bidsKeyPrefix = "bidCache_"
)

// BidsKey returns the cache key for one model's bid list.
func BidsKey(modelBlockchainID string) string {
	return bidsKeyPrefix + modelBlockchainID
}

// Expiring stores domain.CacheEntry values of type T with a fixed expiry
// window measured from the entry's timestamp.
type Expiring[T any] struct {
	store domain.KVStore
	ttl   time.Duration
	now   func() time.Time
}

// NewExpiring creates an Expiring cache over store. If now is nil,
// time.Now is used.
func NewExpiring[T any](store domain.KVStore, ttl time.Duration, now func() time.Time) *Expiring[T] {
	if now == nil {
		now = time.Now
	}
	return &Expiring[T]{store: store, ttl: ttl, now: now}
}

// TTL returns the expiry window.
func (e *Expiring[T]) TTL() time.Duration { return e.ttl }

// Get returns the payload stored under key if the entry is still within its
// expiry window. A missing or expired entry yields ok == false and no error.
func (e *Expiring[T]) Get(ctx context.Context, key string) (payload T, ok bool, err error) {
	data, err := e.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return payload, false, nil
		}
		return payload, false, fmt.Errorf("cache: get %s: %w", key, err)
	}

	var entry domain.CacheEntry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		return payload, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}

	if !e.fresh(entry.Timestamp) {
		return payload, false, nil
	}
	return entry.Payload, true, nil
}

// Put replaces the entry under key. fetchedAt should be the time the
// payload's fetch completed.
func (e *Expiring[T]) Put(ctx context.Context, key string, payload T, fetchedAt time.Time) error {
	data, err := json.Marshal(domain.CacheEntry[T]{
		Timestamp: fetchedAt.UnixMilli(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if err := e.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Invalidate removes the entry under key. Removing a missing key is a no-op.
func (e *Expiring[T]) Invalidate(ctx context.Context, key string) error {
	if err := e.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

func (e *Expiring[T]) fresh(timestampMs int64) bool {
	return e.now().UnixMilli()-timestampMs < e.ttl.Milliseconds()
}
