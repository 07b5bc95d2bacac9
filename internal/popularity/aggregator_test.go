package popularity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serieshub/channels/internal/models"
	"github.com/serieshub/channels/pkg/config"
)

type fakeArticleSource struct {
	articles []*models.Article
	scores   map[int64]float64
}

func (f *fakeArticleSource) ListPublishedSince(ctx context.Context, cutoff time.Time, limit int) ([]*models.Article, error) {
	var out []*models.Article
	for _, a := range f.articles {
		if !a.PublishedAt.Before(cutoff) {
			out = append(out, a)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeArticleSource) UpdateScore(ctx context.Context, id int64, score float64) error {
	f.scores[id] = score
	return nil
}

type fakeSeriesWriter struct {
	scores map[int64]float64
}

func (f *fakeSeriesWriter) UpdateScore(ctx context.Context, id int64, score float64) error {
	f.scores[id] = score
	return nil
}

type fakeCommentSource struct {
	counts map[int64]int64
	errFor int64
}

func (f *fakeCommentSource) CountRecent(ctx context.Context, articleID int64, cutoff time.Time) (int64, error) {
	if f.errFor != 0 && articleID == f.errFor {
		return 0, errors.New("comment store timeout")
	}
	return f.counts[articleID], nil
}

type fakeSubscriberSource struct {
	counts map[int64]int64
}

func (f *fakeSubscriberSource) CountBySeries(ctx context.Context, seriesID int64) (int64, error) {
	return f.counts[seriesID], nil
}

func testConfig() config.PopularityConfig {
	return config.PopularityConfig{
		LookbackDays:        120,
		MaxBatch:            2000,
		TopSeries:           50,
		CacheTTL:            24 * time.Hour,
		WeightViews:         1.0,
		WeightComments:      1.0,
		WeightSubscriptions: 1.0,
		WeightFavorites:     1.5,
		WeightRecency:       0.5,
	}
}

func newTestAggregator(articles *fakeArticleSource, comments *fakeCommentSource, subs *fakeSubscriberSource, now time.Time) (*Aggregator, *fakeSeriesWriter) {
	seriesWriter := &fakeSeriesWriter{scores: map[int64]float64{}}
	agg := NewAggregator(
		articles,
		seriesWriter,
		comments,
		subs,
		nil,
		nil,
		testConfig(),
		WithClock(func() time.Time { return now }),
	)
	return agg, seriesWriter
}

func TestRebuildAllRanksSeries(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	seriesA := models.Series{ID: 1, Name: "A"}
	seriesB := models.Series{ID: 2, Name: "B"}

	articles := &fakeArticleSource{
		scores: map[int64]float64{},
		articles: []*models.Article{
			{ID: 100, ViewCount: 50, PublishedAt: now.AddDate(0, 0, -120), Series: []models.Series{seriesA}},
			{ID: 101, ViewCount: 200, PublishedAt: now.AddDate(0, 0, -120), Series: []models.Series{seriesB}},
			{ID: 102, ViewCount: 30, PublishedAt: now.AddDate(0, 0, -120), Series: []models.Series{seriesA, seriesB}},
		},
	}
	comments := &fakeCommentSource{counts: map[int64]int64{}}
	subs := &fakeSubscriberSource{counts: map[int64]int64{}}

	agg, seriesWriter := newTestAggregator(articles, comments, subs, now)

	snapshot, err := agg.RebuildAll(context.Background())
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}

	if len(snapshot.Items) != 2 {
		t.Fatalf("Expected 2 ranked series, got %d", len(snapshot.Items))
	}

	// Ages beyond the horizon zero out recency, so scores are raw views:
	// B = 200 + 30 = 230, A = 50 + 30 = 80
	if snapshot.Items[0].SeriesID != 2 {
		t.Errorf("Expected series 2 ranked first, got %d", snapshot.Items[0].SeriesID)
	}
	if snapshot.Items[0].Score != 230.0 {
		t.Errorf("Expected top score 230.0, got %f", snapshot.Items[0].Score)
	}
	if snapshot.Items[1].Score != 80.0 {
		t.Errorf("Expected second score 80.0, got %f", snapshot.Items[1].Score)
	}

	// Article scores persisted
	if articles.scores[101] != 200.0 {
		t.Errorf("Expected article 101 score 200.0, got %f", articles.scores[101])
	}

	// Series scores persisted
	if seriesWriter.scores[2] != 230.0 {
		t.Errorf("Expected series 2 score 230.0, got %f", seriesWriter.scores[2])
	}
}

func TestRebuildAllTieBreakBySeriesID(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	published := now.AddDate(0, 0, -120)

	// Insert in descending id order to prove the tie-break is by id,
	// not accumulation order.
	articles := &fakeArticleSource{
		scores: map[int64]float64{},
		articles: []*models.Article{
			{ID: 100, ViewCount: 10, PublishedAt: published, Series: []models.Series{{ID: 5}}},
			{ID: 101, ViewCount: 10, PublishedAt: published, Series: []models.Series{{ID: 3}}},
			{ID: 102, ViewCount: 10, PublishedAt: published, Series: []models.Series{{ID: 4}}},
		},
	}
	agg, _ := newTestAggregator(articles, &fakeCommentSource{counts: map[int64]int64{}}, &fakeSubscriberSource{counts: map[int64]int64{}}, now)

	snapshot, err := agg.RebuildAll(context.Background())
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}

	want := []int64{3, 4, 5}
	for i, entry := range snapshot.Items {
		if entry.SeriesID != want[i] {
			t.Errorf("Position %d: expected series %d, got %d", i, want[i], entry.SeriesID)
		}
	}
}

func TestRebuildAllSampleArticlesFirstSeen(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	published := now.AddDate(0, 0, -120)
	series := models.Series{ID: 1}

	articles := &fakeArticleSource{scores: map[int64]float64{}}
	for id := int64(100); id < 105; id++ {
		articles.articles = append(articles.articles, &models.Article{
			ID: id, ViewCount: 1, PublishedAt: published, Series: []models.Series{series},
		})
	}

	agg, _ := newTestAggregator(articles, &fakeCommentSource{counts: map[int64]int64{}}, &fakeSubscriberSource{counts: map[int64]int64{}}, now)

	snapshot, err := agg.RebuildAll(context.Background())
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}

	samples := snapshot.Items[0].SampleArticleIDs
	if len(samples) != 3 {
		t.Fatalf("Expected 3 sample articles, got %d", len(samples))
	}
	for i, want := range []int64{100, 101, 102} {
		if samples[i] != want {
			t.Errorf("Sample %d: expected article %d, got %d", i, want, samples[i])
		}
	}
}

func TestRebuildAllSkipsFailingArticle(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	published := now.AddDate(0, 0, -120)

	articles := &fakeArticleSource{
		scores: map[int64]float64{},
		articles: []*models.Article{
			{ID: 100, ViewCount: 10, PublishedAt: published, Series: []models.Series{{ID: 1}}},
			{ID: 101, ViewCount: 20, PublishedAt: published, Series: []models.Series{{ID: 1}}},
		},
	}
	comments := &fakeCommentSource{counts: map[int64]int64{}, errFor: 100}

	agg, _ := newTestAggregator(articles, comments, &fakeSubscriberSource{counts: map[int64]int64{}}, now)

	snapshot, err := agg.RebuildAll(context.Background())
	if err != nil {
		t.Fatalf("A single failing article must not abort the batch: %v", err)
	}

	if _, ok := articles.scores[100]; ok {
		t.Error("Failing article should not have been scored")
	}
	if snapshot.Items[0].Score != 20.0 {
		t.Errorf("Expected series score from surviving article only (20.0), got %f", snapshot.Items[0].Score)
	}
}

func TestRebuildAllSubscriberAndCommentSignals(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	articles := &fakeArticleSource{
		scores: map[int64]float64{},
		articles: []*models.Article{
			{ID: 100, ViewCount: 100, FavoriteCount: 5, PublishedAt: now, Series: []models.Series{{ID: 1}}},
		},
	}
	comments := &fakeCommentSource{counts: map[int64]int64{100: 4}}
	subs := &fakeSubscriberSource{counts: map[int64]int64{1: 8}}

	agg, _ := newTestAggregator(articles, comments, subs, now)

	if _, err := agg.RebuildAll(context.Background()); err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}

	// 1.0*100 + 1.0*4 + 1.0*8 + 1.5*5 + 0.5*1.0 = 120.0
	if got := articles.scores[100]; got != 120.0 {
		t.Errorf("Expected score 120.0, got %f", got)
	}
}

func TestSnapshotLazyRebuild(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	published := now.AddDate(0, 0, -10)

	articles := &fakeArticleSource{
		scores: map[int64]float64{},
		articles: []*models.Article{
			{ID: 100, ViewCount: 10, PublishedAt: published, Series: []models.Series{{ID: 1}}},
		},
	}
	agg, _ := newTestAggregator(articles, &fakeCommentSource{counts: map[int64]int64{}}, &fakeSubscriberSource{counts: map[int64]int64{}}, now)

	// No snapshot anywhere: the read blocks on a rebuild
	snapshot, err := agg.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snapshot.Empty() {
		t.Fatal("Expected lazily rebuilt snapshot")
	}

	// A second read serves the cached snapshot
	again, err := agg.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if again != snapshot {
		t.Error("Expected the in-memory snapshot to be reused")
	}
}

func TestRebuildAllTruncatesToTopSeries(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	published := now.AddDate(0, 0, -120)

	articles := &fakeArticleSource{scores: map[int64]float64{}}
	for id := int64(1); id <= 60; id++ {
		articles.articles = append(articles.articles, &models.Article{
			ID: 1000 + id, ViewCount: id, PublishedAt: published,
			Series: []models.Series{{ID: id}},
		})
	}

	agg, _ := newTestAggregator(articles, &fakeCommentSource{counts: map[int64]int64{}}, &fakeSubscriberSource{counts: map[int64]int64{}}, now)

	snapshot, err := agg.RebuildAll(context.Background())
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}
	if len(snapshot.Items) != 50 {
		t.Errorf("Expected ranking truncated to 50, got %d", len(snapshot.Items))
	}
	// Highest-view series first
	if snapshot.Items[0].SeriesID != 60 {
		t.Errorf("Expected series 60 first, got %d", snapshot.Items[0].SeriesID)
	}
}
