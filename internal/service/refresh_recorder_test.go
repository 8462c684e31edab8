package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/stakecalc/internal/cache/memory"
	"github.com/alanyoungcy/stakecalc/internal/domain"
)

type fakeRefreshLog struct {
	mu     sync.Mutex
	events []domain.RefreshEvent
	err    error
}

func (f *fakeRefreshLog) Append(_ context.Context, ev domain.RefreshEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeRefreshLog) Recent(_ context.Context, limit int) ([]domain.RefreshEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(limit, len(f.events))
	return append([]domain.RefreshEvent(nil), f.events[:n]...), nil
}

func (f *fakeRefreshLog) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestRefreshRecorderAppendsPublishedEvents(t *testing.T) {
	bus := memory.NewSignalBus()
	log := &fakeRefreshLog{}
	rec := NewRefreshRecorder(bus, log, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	payload, err := json.Marshal(domain.RefreshEvent{Resource: "bids", ModelID: "0xabc", Count: 3, FetchedAtMs: 42})
	require.NoError(t, err)

	// The subscription is registered asynchronously; keep publishing until
	// the first event lands.
	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, domain.ChannelMarketplace, payload)
		return log.len() > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	events, err := log.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshEvent{Resource: "bids", ModelID: "0xabc", Count: 3, FetchedAtMs: 42}, events[0])
}

func TestRefreshRecorderRejectsBadEvents(t *testing.T) {
	log := &fakeRefreshLog{}
	rec := NewRefreshRecorder(memory.NewSignalBus(), log, discardLogger())
	ctx := context.Background()

	assert.Error(t, rec.record(ctx, []byte("{")))
	assert.Error(t, rec.record(ctx, []byte(`{"count":1}`)))
	assert.Zero(t, log.len())

	boom := errors.New("db down")
	log.err = boom
	assert.ErrorIs(t, rec.record(ctx, []byte(`{"resource":"models","count":1}`)), boom)
}

// closedBus hands out subscriptions that are already closed.
type closedBus struct{}

func (closedBus) Publish(context.Context, string, []byte) error { return nil }

func (closedBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func TestRefreshRecorderStopResult(t *testing.T) {
	// Cancellation closes the memory subscription too; both wake-ups must
	// report the cancellation.
	for range 50 {
		rec := NewRefreshRecorder(memory.NewSignalBus(), &fakeRefreshLog{}, discardLogger())
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- rec.Run(ctx) }()
		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	}

	rec := NewRefreshRecorder(closedBus{}, &fakeRefreshLog{}, discardLogger())
	assert.NoError(t, rec.Run(context.Background()))
}
