package counter

import (
	"context"

	"github.com/serieshub/channels/internal/models"
)

// FavoriteTarget is the unified "favorite" surface over the two
// mechanisms behind it: a post favorite flips set membership, a series
// favorite is a subscription. Callers toggle without caring which.
type FavoriteTarget interface {
	// Toggle flips the favorite state and returns the new state.
	Toggle(ctx context.Context, userID int64) (bool, error)
	// Active reports the current favorite state for the user.
	Active(ctx context.Context, userID int64) (bool, error)
	// Count returns the item's reciprocal counter (favorites or
	// subscribers).
	Count(ctx context.Context) (int64, error)
}

// TargetFor resolves an item type to its favorite mechanism.
func (s *Store) TargetFor(itemType string, itemID int64) (FavoriteTarget, error) {
	switch itemType {
	case "post":
		return &postFavorite{store: s, articleID: itemID}, nil
	case "series":
		return &seriesSubscription{store: s, seriesID: itemID}, nil
	default:
		return nil, ErrInvalidKind
	}
}

type postFavorite struct {
	store     *Store
	articleID int64
}

func (p *postFavorite) Toggle(ctx context.Context, userID int64) (bool, error) {
	return p.store.ToggleFavorite(ctx, userID, p.articleID, models.FavoriteKindPost)
}

func (p *postFavorite) Active(ctx context.Context, userID int64) (bool, error) {
	return p.store.IsFavorited(ctx, userID, p.articleID, models.FavoriteKindPost)
}

func (p *postFavorite) Count(ctx context.Context) (int64, error) {
	article, err := p.store.articles.GetByID(ctx, p.articleID)
	if err != nil {
		return 0, err
	}
	if article == nil {
		return 0, ErrNotFound
	}
	return article.FavoriteCount, nil
}

type seriesSubscription struct {
	store    *Store
	seriesID int64
}

func (t *seriesSubscription) Toggle(ctx context.Context, userID int64) (bool, error) {
	subscribed, err := t.store.IsSubscribed(ctx, userID, t.seriesID)
	if err != nil {
		return false, err
	}

	if subscribed {
		if err := t.store.Unsubscribe(ctx, userID, t.seriesID); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := t.store.Subscribe(ctx, userID, t.seriesID); err != nil {
		return false, err
	}
	return true, nil
}

func (t *seriesSubscription) Active(ctx context.Context, userID int64) (bool, error) {
	return t.store.IsSubscribed(ctx, userID, t.seriesID)
}

func (t *seriesSubscription) Count(ctx context.Context) (int64, error) {
	return t.store.SubscriberCount(ctx, t.seriesID)
}
