package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/serieshub/channels/internal/events"
	"github.com/serieshub/channels/internal/models"
	"github.com/serieshub/channels/pkg/logging"
)

// NotificationStore persists notifications for downstream delivery
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Notifier consumes engagement events and persists notification rows.
// Delivery (email, push) is a downstream concern reading the table; the
// notifier only records that something notification-worthy happened.
type Notifier struct {
	store  NotificationStore
	bus    *events.Bus
	logger *zap.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(store NotificationStore, bus *events.Bus) *Notifier {
	return &Notifier{
		store:  store,
		bus:    bus,
		logger: logging.WithComponent("notifier"),
	}
}

// Run consumes events until the context is cancelled or the bus closes.
func (n *Notifier) Run(ctx context.Context) error {
	eventsCh, err := n.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	n.logger.Info("Notifier started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-eventsCh:
			if !ok {
				n.logger.Info("Event bus closed, notifier stopping")
				return nil
			}
			n.handle(ctx, evt)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, evt events.Event) {
	switch evt.Type {
	case events.TypeSubscribed, events.TypeUnsubscribed:
		n.persist(ctx, evt)
	case events.TypeFavoriteToggled:
		// Only favoriting is notification-worthy; unfavoriting is not.
		if evt.Favorited {
			n.persist(ctx, evt)
		}
	case events.TypePopularityRebuilt:
		n.logger.Info("Popularity rebuilt",
			zap.Int("items_scored", evt.ItemsScored),
			zap.Int("series_ranked", evt.SeriesRanked))
	case events.TypeViewRecorded:
		n.logger.Debug("View recorded",
			zap.Int64("user_id", evt.UserID),
			zap.Int64("item_id", evt.ItemID))
	}
}

func (n *Notifier) persist(ctx context.Context, evt events.Event) {
	createdAt := evt.OccurredAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := n.store.Create(ctx, &models.Notification{
		Type:      evt.Type,
		UserID:    evt.UserID,
		ItemID:    evt.ItemID,
		ItemType:  evt.ItemType,
		CreatedAt: createdAt,
	})
	if err != nil {
		// Notifications are best-effort; a failed write never ripples
		// back into the mutation path.
		n.logger.Error("Failed to persist notification",
			zap.String("type", evt.Type),
			zap.Int64("user_id", evt.UserID),
			zap.Error(err))
	}
}
