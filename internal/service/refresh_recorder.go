package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/stakecalc/internal/domain"
)

// RefreshRecorder subscribes to marketplace refresh events and appends each
// one to a durable RefreshLog.
type RefreshRecorder struct {
	bus    domain.SignalBus
	log    domain.RefreshLog
	logger *slog.Logger
}

// NewRefreshRecorder creates a RefreshRecorder.
func NewRefreshRecorder(bus domain.SignalBus, log domain.RefreshLog, logger *slog.Logger) *RefreshRecorder {
	return &RefreshRecorder{
		bus:    bus,
		log:    log,
		logger: logger.With(slog.String("component", "refresh_recorder")),
	}
}

// Run consumes events until ctx is done or the subscription closes. It
// returns ctx.Err(), which is nil when the bus closed the subscription on
// its own. A malformed event or a failed append is logged and skipped.
func (r *RefreshRecorder) Run(ctx context.Context) error {
	ch, err := r.bus.Subscribe(ctx, domain.ChannelMarketplace)
	if err != nil {
		return fmt.Errorf("service: subscribe %s: %w", domain.ChannelMarketplace, err)
	}
	r.logger.InfoContext(ctx, "refresh recorder started")
	defer r.logger.Info("refresh recorder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return ctx.Err()
			}
			if err := r.record(ctx, data); err != nil {
				r.logger.WarnContext(ctx, "refresh recorder: dropping event",
					slog.String("error", err.Error()),
					slog.Int("payload_len", len(data)),
				)
			}
		}
	}
}

func (r *RefreshRecorder) record(ctx context.Context, data []byte) error {
	var ev domain.RefreshEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	if ev.Resource == "" {
		return fmt.Errorf("event without resource")
	}
	return r.log.Append(ctx, ev)
}
