package counter

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/serieshub/channels/internal/events"
	"github.com/serieshub/channels/internal/models"
	"github.com/serieshub/channels/pkg/logging"
)

var (
	// ErrNotFound is returned for mutations against unknown items
	ErrNotFound = errors.New("item not found")
	// ErrInvalidKind is returned for an unknown item type
	ErrInvalidKind = errors.New("unknown item type")
)

// ArticleStore is the article access the counter store needs
type ArticleStore interface {
	GetByID(ctx context.Context, id int64) (*models.Article, error)
	IncrementViewCount(ctx context.Context, id int64) error
	AdjustFavoriteCount(ctx context.Context, id int64, delta int64) error
}

// SeriesStore is the series access the counter store needs
type SeriesStore interface {
	GetByID(ctx context.Context, id int64) (*models.Series, error)
}

// ViewLogStore tracks per-(user, article) last-seen timestamps
type ViewLogStore interface {
	LastSeen(ctx context.Context, userID, articleID int64) (*models.ViewLog, error)
	Touch(ctx context.Context, userID, articleID int64, when time.Time) error
}

// FavoriteStore persists per-user favorite sets
type FavoriteStore interface {
	Get(ctx context.Context, userID int64, kind string) (*models.FavoriteSet, error)
	Save(ctx context.Context, set *models.FavoriteSet) error
}

// SubscriptionStore persists (user, series) subscription edges
type SubscriptionStore interface {
	Exists(ctx context.Context, userID, seriesID int64) (bool, error)
	Create(ctx context.Context, sub *models.Subscription) error
	Delete(ctx context.Context, userID, seriesID int64) error
	CountBySeries(ctx context.Context, seriesID int64) (int64, error)
	SeriesIDsByUser(ctx context.Context, userID int64) ([]int64, error)
	UserIDsBySeries(ctx context.Context, seriesID int64) ([]int64, error)
}

// Store owns all engagement counters: view totals, favorite sets and
// counts, and series subscriptions. Every successful mutation publishes
// a domain event; publishing is fire-and-forget.
type Store struct {
	articles  ArticleStore
	series    SeriesStore
	viewLog   ViewLogStore
	favorites FavoriteStore
	subs      SubscriptionStore
	bus       *events.Bus
	window    time.Duration
	now       func() time.Time
	logger    *zap.Logger

	// Serializes favorite-set read-modify-write within the process.
	// Last write wins across processes; the article counter is adjusted
	// with clamped SQL arithmetic so it cannot drift negative.
	favMu sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the store's time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a new counter store. The window is the minimum
// interval between counted views for the same (user, article) pair.
func NewStore(articles ArticleStore, series SeriesStore, viewLog ViewLogStore, favorites FavoriteStore, subs SubscriptionStore, bus *events.Bus, window time.Duration, opts ...Option) *Store {
	s := &Store{
		articles:  articles,
		series:    series,
		viewLog:   viewLog,
		favorites: favorites,
		subs:      subs,
		bus:       bus,
		window:    window,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logging.WithComponent("counter"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordView counts a view for an article unless the same user viewed it
// within the tracking window. Returns whether the view was counted.
func (s *Store) RecordView(ctx context.Context, articleID, userID int64) (bool, error) {
	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return false, err
	}
	if article == nil || !article.IsPublished {
		return false, ErrNotFound
	}

	last, err := s.viewLog.LastSeen(ctx, userID, articleID)
	if err != nil {
		return false, err
	}

	now := s.now()
	if last != nil && now.Sub(last.LastSeenAt) <= s.window {
		return false, nil
	}

	if err := s.viewLog.Touch(ctx, userID, articleID, now); err != nil {
		return false, err
	}
	if err := s.articles.IncrementViewCount(ctx, articleID); err != nil {
		return false, err
	}

	s.bus.Publish(events.Event{
		Type:     events.TypeViewRecorded,
		UserID:   userID,
		ItemID:   articleID,
		ItemType: "post",
	})

	return true, nil
}

// ToggleFavorite flips an article's membership in the user's favorite set
// and adjusts the article's favorite counter to match. Returns the new
// membership state.
func (s *Store) ToggleFavorite(ctx context.Context, userID, articleID int64, kind string) (bool, error) {
	if kind != models.FavoriteKindPost {
		return false, ErrInvalidKind
	}

	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return false, err
	}
	if article == nil || !article.IsPublished {
		return false, ErrNotFound
	}

	s.favMu.Lock()
	defer s.favMu.Unlock()

	set, err := s.favorites.Get(ctx, userID, kind)
	if err != nil {
		return false, err
	}
	if set == nil {
		set = &models.FavoriteSet{UserID: userID, Kind: kind, ItemIDs: "[]"}
	}

	ids := set.IDs()
	favorited := false
	idx := -1
	for i, id := range ids {
		if id == articleID {
			idx = i
			break
		}
	}

	var delta int64
	if idx >= 0 {
		ids = append(ids[:idx], ids[idx+1:]...)
		delta = -1
	} else {
		ids = append(ids, articleID)
		favorited = true
		delta = 1
	}

	if err := set.SetIDs(ids); err != nil {
		return false, err
	}
	set.UpdatedAt = s.now()

	if err := s.favorites.Save(ctx, set); err != nil {
		return false, err
	}
	if err := s.articles.AdjustFavoriteCount(ctx, articleID, delta); err != nil {
		return false, err
	}

	s.bus.Publish(events.Event{
		Type:      events.TypeFavoriteToggled,
		UserID:    userID,
		ItemID:    articleID,
		ItemType:  "post",
		Favorited: favorited,
	})

	return favorited, nil
}

// IsFavorited reports whether an article is in the user's favorite set
func (s *Store) IsFavorited(ctx context.Context, userID, articleID int64, kind string) (bool, error) {
	set, err := s.favorites.Get(ctx, userID, kind)
	if err != nil {
		return false, err
	}
	if set == nil {
		return false, nil
	}
	for _, id := range set.IDs() {
		if id == articleID {
			return true, nil
		}
	}
	return false, nil
}

// FavoriteIDs returns the user's favorites in insertion order
func (s *Store) FavoriteIDs(ctx context.Context, userID int64, kind string) ([]int64, error) {
	set, err := s.favorites.Get(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return nil, nil
	}
	return set.IDs(), nil
}

// Subscribe adds a (user, series) edge. Subscribing twice is a no-op.
func (s *Store) Subscribe(ctx context.Context, userID, seriesID int64) error {
	series, err := s.series.GetByID(ctx, seriesID)
	if err != nil {
		return err
	}
	if series == nil {
		return ErrNotFound
	}

	exists, err := s.subs.Exists(ctx, userID, seriesID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.subs.Create(ctx, &models.Subscription{
		UserID:    userID,
		SeriesID:  seriesID,
		CreatedAt: s.now(),
	}); err != nil {
		return err
	}

	s.bus.Publish(events.Event{
		Type:     events.TypeSubscribed,
		UserID:   userID,
		ItemID:   seriesID,
		ItemType: "series",
	})

	return nil
}

// Unsubscribe removes a (user, series) edge. Unsubscribing a
// non-subscriber is a no-op and leaves the subscriber count untouched.
func (s *Store) Unsubscribe(ctx context.Context, userID, seriesID int64) error {
	exists, err := s.subs.Exists(ctx, userID, seriesID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	if err := s.subs.Delete(ctx, userID, seriesID); err != nil {
		return err
	}

	s.bus.Publish(events.Event{
		Type:     events.TypeUnsubscribed,
		UserID:   userID,
		ItemID:   seriesID,
		ItemType: "series",
	})

	return nil
}

// IsSubscribed reports whether the user is subscribed to the series
func (s *Store) IsSubscribed(ctx context.Context, userID, seriesID int64) (bool, error) {
	return s.subs.Exists(ctx, userID, seriesID)
}

// SubscriberCount returns the number of subscribers of a series
func (s *Store) SubscriberCount(ctx context.Context, seriesID int64) (int64, error) {
	return s.subs.CountBySeries(ctx, seriesID)
}

// SubscribedSeriesIDs returns the series a user is subscribed to
func (s *Store) SubscribedSeriesIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.subs.SeriesIDsByUser(ctx, userID)
}

// SubscribersOf returns the users subscribed to a series
func (s *Store) SubscribersOf(ctx context.Context, seriesID int64) ([]int64, error) {
	return s.subs.UserIDsBySeries(ctx, seriesID)
}
