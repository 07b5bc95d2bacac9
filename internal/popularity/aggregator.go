package popularity

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/serieshub/channels/internal/cache"
	"github.com/serieshub/channels/internal/events"
	"github.com/serieshub/channels/internal/models"
	"github.com/serieshub/channels/pkg/config"
	"github.com/serieshub/channels/pkg/logging"
	"github.com/serieshub/channels/pkg/telemetry"
)

// snapshotKey is the cache key for the ranked series snapshot.
const snapshotKey = "popularity:series"

// ArticleSource is the article access the aggregator needs
type ArticleSource interface {
	ListPublishedSince(ctx context.Context, cutoff time.Time, limit int) ([]*models.Article, error)
	UpdateScore(ctx context.Context, id int64, score float64) error
}

// SeriesScoreWriter persists aggregated series scores
type SeriesScoreWriter interface {
	UpdateScore(ctx context.Context, id int64, score float64) error
}

// CommentSource counts recent comments per article
type CommentSource interface {
	CountRecent(ctx context.Context, articleID int64, cutoff time.Time) (int64, error)
}

// SubscriberSource counts subscribers per series
type SubscriberSource interface {
	CountBySeries(ctx context.Context, seriesID int64) (int64, error)
}

// Aggregator batch-recomputes article scores and maintains the ranked
// series snapshot. The snapshot is single-writer: a rebuild assembles
// the full ranking before publishing it in one swap, so readers never
// observe a partial list.
type Aggregator struct {
	articles ArticleSource
	series   SeriesScoreWriter
	comments CommentSource
	subs     SubscriberSource
	cache    *cache.Cache
	bus      *events.Bus
	cfg      config.PopularityConfig
	logger   *zap.Logger
	now      func() time.Time

	mem     atomic.Pointer[models.PopularitySnapshot]
	group   singleflight.Group
	limiter *rate.Limiter
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock overrides the aggregator's time source
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates a new aggregator
func NewAggregator(articles ArticleSource, series SeriesScoreWriter, comments CommentSource, subs SubscriberSource, redisCache *cache.Cache, bus *events.Bus, cfg config.PopularityConfig, opts ...Option) *Aggregator {
	a := &Aggregator{
		articles: articles,
		series:   series,
		comments: comments,
		subs:     subs,
		cache:    redisCache,
		bus:      bus,
		cfg:      cfg,
		logger:   logging.WithComponent("popularity"),
		now:      func() time.Time { return time.Now().UTC() },
		// One stale-triggered rebuild per 30s is plenty; the daily
		// schedule does the routine work.
		limiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RebuildAll recomputes every eligible article's score, rolls the scores
// up into a ranked series snapshot and publishes it.
func (a *Aggregator) RebuildAll(ctx context.Context) (*models.PopularitySnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, "popularity.rebuild_all")
	defer span.End()

	now := a.now()
	cutoff := now.AddDate(0, 0, -a.cfg.LookbackDays)

	articles, err := a.articles.ListPublishedSince(ctx, cutoff, a.cfg.MaxBatch)
	if err != nil {
		return nil, err
	}

	weights := a.cfg.Weights()

	type seriesAcc struct {
		score   float64
		samples []int64
	}
	seriesScores := make(map[int64]*seriesAcc)
	seriesOrder := make([]int64, 0)
	scored := 0

	for _, article := range articles {
		in, err := a.collectInputs(ctx, article, cutoff, now)
		if err != nil {
			// Partial results beat no results: skip the article and
			// keep the batch going.
			a.logger.Warn("Skipping article in rebuild",
				zap.Int64("article_id", article.ID),
				zap.Error(err))
			continue
		}

		score := Score(in, weights, a.cfg.LookbackDays)
		if err := a.articles.UpdateScore(ctx, article.ID, score); err != nil {
			a.logger.Warn("Failed to persist article score",
				zap.Int64("article_id", article.ID),
				zap.Error(err))
		}
		scored++

		for _, s := range article.Series {
			acc, ok := seriesScores[s.ID]
			if !ok {
				acc = &seriesAcc{}
				seriesScores[s.ID] = acc
				seriesOrder = append(seriesOrder, s.ID)
			}
			acc.score += score
			if len(acc.samples) < 3 {
				acc.samples = append(acc.samples, article.ID)
			}
		}
	}

	ranked := make([]models.RankedSeries, 0, len(seriesOrder))
	for _, id := range seriesOrder {
		acc := seriesScores[id]
		ranked = append(ranked, models.RankedSeries{
			SeriesID:         id,
			Score:            round4(acc.score),
			SampleArticleIDs: acc.samples,
		})
	}

	// Equal scores fall back to series id so the ranking is stable
	// across rebuilds.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].SeriesID < ranked[j].SeriesID
	})

	if len(ranked) > a.cfg.TopSeries {
		ranked = ranked[:a.cfg.TopSeries]
	}

	for _, entry := range ranked {
		if err := a.series.UpdateScore(ctx, entry.SeriesID, entry.Score); err != nil {
			a.logger.Warn("Failed to persist series score",
				zap.Int64("series_id", entry.SeriesID),
				zap.Error(err))
		}
	}

	snapshot := &models.PopularitySnapshot{
		ComputedAt:   now,
		LookbackDays: a.cfg.LookbackDays,
		ItemsScored:  scored,
		Items:        ranked,
	}
	a.publish(snapshot)

	a.logger.Info("Popularity rebuild complete",
		zap.Int("articles_scored", scored),
		zap.Int("series_ranked", len(ranked)))

	a.bus.Publish(events.Event{
		Type:         events.TypePopularityRebuilt,
		ItemsScored:  scored,
		SeriesRanked: len(ranked),
	})

	return snapshot, nil
}

func (a *Aggregator) collectInputs(ctx context.Context, article *models.Article, cutoff, now time.Time) (Inputs, error) {
	comments, err := a.comments.CountRecent(ctx, article.ID, cutoff)
	if err != nil {
		return Inputs{}, err
	}

	var subscribers int64
	for _, s := range article.Series {
		count, err := a.subs.CountBySeries(ctx, s.ID)
		if err != nil {
			return Inputs{}, err
		}
		subscribers += count
	}

	return Inputs{
		TotalViews:     article.ViewCount,
		RecentComments: comments,
		Subscribers:    subscribers,
		Favorites:      article.FavoriteCount,
		AgeDays:        AgeDays(article.PublishedAt, now),
	}, nil
}

// publish swaps in the new snapshot and mirrors it to Redis. The memory
// copy is authoritative for this process; Redis carries it across
// restarts and to sibling processes.
func (a *Aggregator) publish(snapshot *models.PopularitySnapshot) {
	a.mem.Store(snapshot)
	if err := a.cache.SetJSON(snapshotKey, snapshot, a.cfg.CacheTTL); err != nil && err != cache.ErrCacheDisabled {
		a.logger.Warn("Failed to cache popularity snapshot", zap.Error(err))
	}
}

// Snapshot returns the current ranked snapshot, rebuilding lazily when
// none is usable. Concurrent cold readers share a single rebuild; a
// merely-expired snapshot is served stale when a rebuild ran recently.
func (a *Aggregator) Snapshot(ctx context.Context) (*models.PopularitySnapshot, error) {
	if snap := a.mem.Load(); !snap.Empty() {
		if a.now().Sub(snap.ComputedAt) <= a.cfg.CacheTTL {
			return snap, nil
		}
		// Expired but usable. Rebuild unless one just happened.
		if !a.limiter.Allow() {
			return snap, nil
		}
		return a.rebuildShared(ctx)
	}

	var cached models.PopularitySnapshot
	if err := a.cache.GetJSON(snapshotKey, &cached); err == nil && !cached.Empty() {
		a.mem.Store(&cached)
		return &cached, nil
	}

	return a.rebuildShared(ctx)
}

// rebuildShared funnels concurrent rebuild requests into one pass.
func (a *Aggregator) rebuildShared(ctx context.Context) (*models.PopularitySnapshot, error) {
	result, err, _ := a.group.Do("rebuild", func() (interface{}, error) {
		return a.RebuildAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.PopularitySnapshot), nil
}
