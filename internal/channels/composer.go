package channels

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/serieshub/channels/internal/models"
	"github.com/serieshub/channels/pkg/config"
	"github.com/serieshub/channels/pkg/logging"
	"github.com/serieshub/channels/pkg/telemetry"
)

// Row keys the composer resolves. The categories and favorites keys
// expand in place into multiple rows.
const (
	RowFeatured          = "featured"
	RowPopularArticles   = "popular_articles"
	RowPopularSeries     = "popular_series"
	RowRecentlyPublished = "recently_published"
	RowCategories        = "categories"
	RowFavorites         = "favorites"
)

// DefaultRowKeys is the row set served when the request names none.
var DefaultRowKeys = []string{RowFeatured, RowPopularArticles, RowPopularSeries}

// ArticleReader is the article access the composer needs
type ArticleReader interface {
	ListFeatured(ctx context.Context, limit int) ([]*models.Article, error)
	ListByScore(ctx context.Context, limit int) ([]*models.Article, error)
	ListByViews(ctx context.Context, limit int) ([]*models.Article, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Article, error)
	ListBySeriesIDs(ctx context.Context, seriesIDs []int64, limit int) ([]*models.Article, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.Article, error)
}

// SeriesReader is the series access the composer needs
type SeriesReader interface {
	ListFeatured(ctx context.Context, limit int) ([]*models.Series, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*models.Series, error)
	ListByCategory(ctx context.Context, categoryID int64) ([]*models.Series, error)
}

// CategoryReader lists the category taxonomy
type CategoryReader interface {
	ListAll(ctx context.Context) ([]*models.Category, error)
}

// SnapshotSource serves the ranked popularity snapshot, rebuilding
// lazily when none exists
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*models.PopularitySnapshot, error)
}

// Personalizer resolves a viewer's favorite and subscription state
type Personalizer interface {
	FavoriteIDs(ctx context.Context, userID int64, kind string) ([]int64, error)
	SubscribedSeriesIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Composer assembles the row-based feed response. Each requested row
// key resolves independently; a row that fails is omitted rather than
// failing the whole response.
type Composer struct {
	articles   ArticleReader
	series     SeriesReader
	categories CategoryReader
	popularity SnapshotSource
	viewers    Personalizer
	cfg        config.ChannelsConfig
	logger     *zap.Logger
}

// NewComposer creates a new feed composer
func NewComposer(articles ArticleReader, series SeriesReader, categories CategoryReader, popularity SnapshotSource, viewers Personalizer, cfg config.ChannelsConfig) *Composer {
	return &Composer{
		articles:   articles,
		series:     series,
		categories: categories,
		popularity: popularity,
		viewers:    viewers,
		cfg:        cfg,
		logger:     logging.WithComponent("channels"),
	}
}

// Compose resolves the requested row keys in order into titled rows.
// Unknown, disabled and failed rows are dropped; viewerID 0 means
// anonymous, with personalization flags defaulting to false.
func (c *Composer) Compose(ctx context.Context, keys []string, viewerID int64) ([]Row, error) {
	ctx, span := telemetry.StartSpan(ctx, "channels.compose")
	defer span.End()

	viewer := c.loadViewer(ctx, viewerID)

	rows := make([]Row, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" || !c.cfg.RowEnabled(key) {
			continue
		}

		resolved, err := c.resolveRow(ctx, key, viewerID, viewer)
		if err != nil {
			c.logger.Warn("Dropping feed row",
				zap.String("row", key),
				zap.Error(err))
			continue
		}
		rows = append(rows, resolved...)
	}
	return rows, nil
}

func (c *Composer) resolveRow(ctx context.Context, key string, viewerID int64, viewer *viewerState) ([]Row, error) {
	switch key {
	case RowFeatured:
		return c.featuredRow(ctx, viewer)
	case RowPopularArticles:
		return c.popularArticlesRow(ctx, viewer)
	case RowPopularSeries:
		return c.popularSeriesRow(ctx, viewer)
	case RowRecentlyPublished:
		return c.recentRow(ctx, viewer)
	case RowCategories:
		return c.categoryRows(ctx, viewer)
	case RowFavorites:
		return c.favoriteRows(ctx, viewerID, viewer)
	default:
		return nil, fmt.Errorf("unknown row key %q", key)
	}
}

// featuredRow collects editorially flagged posts and series, newest
// first, falling back to the score ranking when nothing is flagged. An
// empty result is a valid empty row, never an error.
func (c *Composer) featuredRow(ctx context.Context, viewer *viewerState) ([]Row, error) {
	limit := c.cfg.FeaturedCarouselLimit

	articles, err := c.articles.ListFeatured(ctx, limit)
	if err != nil {
		return nil, err
	}
	series, err := c.series.ListFeatured(ctx, limit)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, limit)
	for _, a := range articles {
		items = append(items, postItem(a, viewer))
	}
	for _, s := range series {
		items = append(items, seriesItem(s, s.IconURL, viewer))
	}

	if len(items) == 0 {
		ranked, err := c.articles.ListByScore(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, a := range ranked {
			items = append(items, postItem(a, viewer))
		}
	}

	if len(items) > limit {
		items = items[:limit]
	}

	return []Row{{
		Key:        RowFeatured,
		Title:      "Featured Posts",
		Items:      items,
		RotationMS: c.cfg.CarouselRotationMS,
	}}, nil
}

// popularArticlesRow ranks by cached score, falling back to raw view
// counts when no score has ever been computed.
func (c *Composer) popularArticlesRow(ctx context.Context, viewer *viewerState) ([]Row, error) {
	articles, err := c.articles.ListByScore(ctx, c.cfg.RowItemLimit)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		articles, err = c.articles.ListByViews(ctx, c.cfg.RowItemLimit)
		if err != nil {
			return nil, err
		}
	}

	items := make([]Item, 0, len(articles))
	for _, a := range articles {
		items = append(items, postItem(a, viewer))
	}
	return []Row{{Key: RowPopularArticles, Title: "Most Popular", Items: items}}, nil
}

// popularSeriesRow serves the ranked snapshot, resolving each entry to
// its series with a best-effort thumbnail: explicit icon, then the
// first sample article's image, then blank.
func (c *Composer) popularSeriesRow(ctx context.Context, viewer *viewerState) ([]Row, error) {
	snapshot, err := c.popularity.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	entries := snapshot.Items
	if len(entries) > c.cfg.RowItemLimit {
		entries = entries[:c.cfg.RowItemLimit]
	}

	ids := make([]int64, 0, len(entries))
	samples := make(map[int64][]int64, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.SeriesID)
		samples[entry.SeriesID] = entry.SampleArticleIDs
	}

	series, err := c.series.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	thumbs := c.sampleThumbnails(ctx, series, samples)

	items := make([]Item, 0, len(series))
	for _, s := range series {
		image := s.IconURL
		if image == "" {
			image = thumbs[s.ID]
		}
		items = append(items, seriesItem(s, image, viewer))
	}
	return []Row{{Key: RowPopularSeries, Title: "Most Popular", Items: items}}, nil
}

// sampleThumbnails resolves fallback images for icon-less series from
// their snapshot sample articles, one batched fetch for the lot.
// Thumbnails are decoration; a lookup failure degrades to blank.
func (c *Composer) sampleThumbnails(ctx context.Context, series []*models.Series, samples map[int64][]int64) map[int64]string {
	var wanted []int64
	for _, s := range series {
		if s.IconURL == "" {
			wanted = append(wanted, samples[s.ID]...)
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	articles, err := c.articles.ListByIDs(ctx, wanted)
	if err != nil {
		c.logger.Warn("Failed to resolve sample thumbnails", zap.Error(err))
		return nil
	}

	imageByID := make(map[int64]string, len(articles))
	for _, a := range articles {
		imageByID[a.ID] = a.Thumbnail()
	}

	thumbs := make(map[int64]string, len(series))
	for _, s := range series {
		for _, sampleID := range samples[s.ID] {
			if image := imageByID[sampleID]; image != "" {
				thumbs[s.ID] = image
				break
			}
		}
	}
	return thumbs
}

func (c *Composer) recentRow(ctx context.Context, viewer *viewerState) ([]Row, error) {
	articles, err := c.articles.ListRecent(ctx, c.cfg.RowItemLimit)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(articles))
	for _, a := range articles {
		items = append(items, postItem(a, viewer))
	}
	return []Row{{Key: RowRecentlyPublished, Title: "Most Recent", Items: items}}, nil
}

// categoryRows expands into one row per category: the category's series
// first, then their member articles newest first. Categories with no
// series produce no row at all.
func (c *Composer) categoryRows(ctx context.Context, viewer *viewerState) ([]Row, error) {
	categories, err := c.categories.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(categories))
	for _, cat := range categories {
		series, err := c.series.ListByCategory(ctx, cat.ID)
		if err != nil {
			c.logger.Warn("Dropping category row",
				zap.Int64("category_id", cat.ID),
				zap.Error(err))
			continue
		}
		if len(series) == 0 {
			continue
		}

		seriesIDs := make([]int64, 0, len(series))
		items := make([]Item, 0, len(series)+c.cfg.RowItemLimit)
		for _, s := range series {
			seriesIDs = append(seriesIDs, s.ID)
			items = append(items, seriesItem(s, s.IconURL, viewer))
		}

		articles, err := c.articles.ListBySeriesIDs(ctx, seriesIDs, c.cfg.RowItemLimit)
		if err != nil {
			c.logger.Warn("Dropping category row",
				zap.Int64("category_id", cat.ID),
				zap.Error(err))
			continue
		}
		for _, a := range articles {
			items = append(items, postItem(a, viewer))
		}

		rows = append(rows, Row{
			Key:   RowCategories + ":" + cat.Slug,
			Title: cat.Name,
			Items: items,
		})
	}
	return rows, nil
}

// favoriteRows expands into up to two rows: the viewer's favorited
// articles in insertion order, then their subscribed series. The id
// lists come from the viewer state loaded once for the request.
// Anonymous viewers and empty sub-rows produce nothing.
func (c *Composer) favoriteRows(ctx context.Context, viewerID int64, viewer *viewerState) ([]Row, error) {
	if viewerID == 0 {
		return nil, nil
	}

	rows := make([]Row, 0, 2)

	favoriteIDs := viewer.favoriteOrder
	if len(favoriteIDs) > c.cfg.FavoritesLimit {
		favoriteIDs = favoriteIDs[:c.cfg.FavoritesLimit]
	}
	if len(favoriteIDs) > 0 {
		articles, err := c.articles.ListByIDs(ctx, favoriteIDs)
		if err != nil {
			return nil, err
		}
		items := make([]Item, 0, len(articles))
		for _, a := range articles {
			items = append(items, postItem(a, viewer))
		}
		if len(items) > 0 {
			rows = append(rows, Row{Key: "favorite_articles", Title: "My Favorites", Items: items})
		}
	}

	if len(viewer.seriesOrder) > 0 {
		series, err := c.series.ListByIDs(ctx, viewer.seriesOrder)
		if err != nil {
			return nil, err
		}
		items := make([]Item, 0, len(series))
		for _, s := range series {
			items = append(items, seriesItem(s, s.IconURL, viewer))
		}
		if len(items) > 0 {
			rows = append(rows, Row{Key: "favorite_series", Title: "My Favorites", Items: items})
		}
	}

	return rows, nil
}

// loadViewer resolves the viewer's favorite and subscription sets once
// for the request. Lookup failures degrade to the anonymous state; the
// feed still renders, just unpersonalized.
func (c *Composer) loadViewer(ctx context.Context, viewerID int64) *viewerState {
	state := &viewerState{
		favoriteIDs: make(map[int64]bool),
		seriesIDs:   make(map[int64]bool),
	}
	if viewerID == 0 {
		return state
	}

	favoriteIDs, err := c.viewers.FavoriteIDs(ctx, viewerID, models.FavoriteKindPost)
	if err != nil {
		c.logger.Warn("Failed to load viewer favorites",
			zap.Int64("user_id", viewerID),
			zap.Error(err))
	}
	state.favoriteOrder = favoriteIDs
	for _, id := range favoriteIDs {
		state.favoriteIDs[id] = true
	}

	seriesIDs, err := c.viewers.SubscribedSeriesIDs(ctx, viewerID)
	if err != nil {
		c.logger.Warn("Failed to load viewer subscriptions",
			zap.Int64("user_id", viewerID),
			zap.Error(err))
	}
	state.seriesOrder = seriesIDs
	for _, id := range seriesIDs {
		state.seriesIDs[id] = true
	}

	return state
}
