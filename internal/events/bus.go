package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/serieshub/channels/pkg/logging"
)

// Topic is the single in-process topic all engagement events flow through.
const Topic = "channels.events"

// Event types published by the counter store and the aggregator.
const (
	TypeViewRecorded      = "view_recorded"
	TypeFavoriteToggled   = "favorite_toggled"
	TypeSubscribed        = "subscribed"
	TypeUnsubscribed      = "unsubscribed"
	TypePopularityRebuilt = "popularity_rebuilt"
)

// Event is a domain event emitted after a successful mutation or an
// aggregation pass. Consumers must not assume delivery: publishing is
// fire-and-forget and never blocks the mutation that caused it.
type Event struct {
	Type         string    `json:"type"`
	UserID       int64     `json:"user_id,omitempty"`
	ItemID       int64     `json:"item_id,omitempty"`
	ItemType     string    `json:"item_type,omitempty"`
	Favorited    bool      `json:"favorited,omitempty"`
	ItemsScored  int       `json:"items_scored,omitempty"`
	SeriesRanked int       `json:"series_ranked,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Bus is an in-process publish/subscribe channel for domain events
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger
}

// NewBus creates a new in-process event bus
func NewBus() *Bus {
	logger := logging.WithComponent("events")
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		&watermillZap{logger: logger},
	)
	return &Bus{pubsub: pubsub, logger: logger}
}

// Publish emits an event. Failures are logged and swallowed: event
// delivery must never fail the mutation that produced the event.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("Failed to marshal event", zap.String("type", evt.Type), zap.Error(err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		b.logger.Error("Failed to publish event", zap.String("type", evt.Type), zap.Error(err))
	}
}

// Subscribe returns a channel of decoded events. Undecodable messages
// are acked and dropped.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, error) {
	messages, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for msg := range messages {
			var evt Event
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				b.logger.Warn("Dropping undecodable event", zap.Error(err))
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close shuts the bus down, closing all subscriber channels
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	return b.pubsub.Close()
}

// watermillZap adapts zap to watermill's logger interface
type watermillZap struct {
	logger *zap.Logger
}

func (w *watermillZap) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (w *watermillZap) Info(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, zapFields(fields)...)
}

func (w *watermillZap) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, zapFields(fields)...)
}

func (w *watermillZap) Trace(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, zapFields(fields)...)
}

func (w *watermillZap) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillZap{logger: w.logger.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
