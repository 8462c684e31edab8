package domain

import (
	"context"
)

// KVStore is the backing key-value store for cached marketplace data.
// Get returns ErrNotFound when the key is absent. Delete of a missing key is
// not an error.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SignalBus carries ephemeral notifications between components.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RefreshLog keeps a durable history of marketplace refreshes.
type RefreshLog interface {
	Append(ctx context.Context, ev RefreshEvent) error
	Recent(ctx context.Context, limit int) ([]RefreshEvent, error)
}
