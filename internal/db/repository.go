package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/serieshub/channels/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ArticleRepository provides article-related database operations
type ArticleRepository struct {
	*Repository
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(repo *Repository) *ArticleRepository {
	return &ArticleRepository{Repository: repo}
}

// GetByID retrieves a published article by ID
func (r *ArticleRepository) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	var article models.Article
	if err := r.db.WithContext(ctx).Preload("Series").First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &article, nil
}

// ListPublishedSince retrieves published articles newer than the cutoff,
// newest first, bounded by limit
func (r *ArticleRepository) ListPublishedSince(ctx context.Context, cutoff time.Time, limit int) ([]*models.Article, error) {
	var articles []*models.Article
	if err := r.db.WithContext(ctx).
		Preload("Series").
		Where("is_published = ? AND published_at > ?", true, cutoff).
		Order("published_at DESC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// ListFeatured retrieves featured articles, newest first
func (r *ArticleRepository) ListFeatured(ctx context.Context, limit int) ([]*models.Article, error) {
	var articles []*models.Article
	if err := r.db.WithContext(ctx).
		Preload("Series").
		Where("is_published = ? AND is_featured = ?", true, true).
		Order("published_at DESC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// ListByScore retrieves published articles ranked by cached score
func (r *ArticleRepository) ListByScore(ctx context.Context, limit int) ([]*models.Article, error) {
	var articles []*models.Article
	if err := r.db.WithContext(ctx).
		Preload("Series").
		Where("is_published = ? AND score > 0", true).
		Order("score DESC, id ASC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// ListByViews retrieves published articles ranked by raw view count
func (r *ArticleRepository) ListByViews(ctx context.Context, limit int) ([]*models.Article, error) {
	var articles []*models.Article
	if err := r.db.WithContext(ctx).
		Preload("Series").
		Where("is_published = ?", true).
		Order("view_count DESC, id ASC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// ListRecent retrieves published articles newest first
func (r *ArticleRepository) ListRecent(ctx context.Context, limit int) ([]*models.Article, error) {
	var articles []*models.Article
	if err := r.db.WithContext(ctx).
		Preload("Series").
		Where("is_published = ?", true).
		Order("published_at DESC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// ListBySeriesIDs retrieves published articles belonging to any of the
// given series, newest first
func (r *ArticleRepository) ListBySeriesIDs(ctx context.Context, seriesIDs []int64, limit int) ([]*models.Article, error) {
	if len(seriesIDs) == 0 {
		return nil, nil
	}
	var articles []*models.Article
	if err := r.db.WithContext(ctx).
		Preload("Series").
		Joins("JOIN article_series ON article_series.article_id = articles.id").
		Where("articles.is_published = ? AND article_series.series_id IN ?", true, seriesIDs).
		Group("articles.id").
		Order("articles.published_at DESC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

// ListByIDs retrieves published articles by id, returned in the order the
// ids were given
func (r *ArticleRepository) ListByIDs(ctx context.Context, ids []int64) ([]*models.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var articles []*models.Article
	if err := r.db.WithContext(ctx).
		Preload("Series").
		Where("is_published = ? AND id IN ?", true, ids).
		Find(&articles).Error; err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}
	ordered := make([]*models.Article, 0, len(articles))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

// UpdateScore persists an article's cached popularity score
func (r *ArticleRepository) UpdateScore(ctx context.Context, id int64, score float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("score", score).Error
}

// IncrementViewCount atomically bumps an article's total view counter
func (r *ArticleRepository) IncrementViewCount(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// AdjustFavoriteCount atomically adjusts an article's favorite counter,
// clamped at zero
func (r *ArticleRepository) AdjustFavoriteCount(ctx context.Context, id int64, delta int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("favorite_count", gorm.Expr("GREATEST(favorite_count + ?, 0)", delta)).Error
}

// SeriesRepository provides series-related database operations
type SeriesRepository struct {
	*Repository
}

// NewSeriesRepository creates a new series repository
func NewSeriesRepository(repo *Repository) *SeriesRepository {
	return &SeriesRepository{Repository: repo}
}

// GetByID retrieves a series by ID
func (r *SeriesRepository) GetByID(ctx context.Context, id int64) (*models.Series, error) {
	var series models.Series
	if err := r.db.WithContext(ctx).First(&series, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &series, nil
}

// ListByIDs retrieves series by id, returned in the order the ids were given
func (r *SeriesRepository) ListByIDs(ctx context.Context, ids []int64) ([]*models.Series, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var series []*models.Series
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&series).Error; err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Series, len(series))
	for _, s := range series {
		byID[s.ID] = s
	}
	ordered := make([]*models.Series, 0, len(series))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}

// ListFeatured retrieves featured series
func (r *SeriesRepository) ListFeatured(ctx context.Context, limit int) ([]*models.Series, error) {
	var series []*models.Series
	if err := r.db.WithContext(ctx).
		Where("is_featured = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&series).Error; err != nil {
		return nil, err
	}
	return series, nil
}

// ListByCategory retrieves the series belonging to a category
func (r *SeriesRepository) ListByCategory(ctx context.Context, categoryID int64) ([]*models.Series, error) {
	var series []*models.Series
	if err := r.db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("name ASC").
		Find(&series).Error; err != nil {
		return nil, err
	}
	return series, nil
}

// UpdateScore persists a series' cached aggregate score
func (r *SeriesRepository) UpdateScore(ctx context.Context, id int64, score float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Series{}).
		Where("id = ?", id).
		UpdateColumn("score", score).Error
}

// CategoryRepository provides category-related database operations
type CategoryRepository struct {
	*Repository
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(repo *Repository) *CategoryRepository {
	return &CategoryRepository{Repository: repo}
}

// ListAll retrieves all categories ordered by name
func (r *CategoryRepository) ListAll(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// CommentRepository provides comment-related database operations
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// CountRecent counts approved comments on an article newer than the cutoff
func (r *CommentRepository) CountRecent(ctx context.Context, articleID int64, cutoff time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("article_id = ? AND is_approved = ? AND created_at > ?", articleID, true, cutoff).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SubscriptionRepository provides subscription edge operations
type SubscriptionRepository struct {
	*Repository
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(repo *Repository) *SubscriptionRepository {
	return &SubscriptionRepository{Repository: repo}
}

// Exists reports whether the (user, series) edge is present
func (r *SubscriptionRepository) Exists(ctx context.Context, userID, seriesID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ? AND series_id = ?", userID, seriesID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a subscription edge. The unique pair constraint makes a
// concurrent duplicate a no-op rather than a second row.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(sub).Error
}

// Delete removes a subscription edge
func (r *SubscriptionRepository) Delete(ctx context.Context, userID, seriesID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND series_id = ?", userID, seriesID).
		Delete(&models.Subscription{}).Error
}

// CountBySeries returns the number of subscribers of a series
func (r *SubscriptionRepository) CountBySeries(ctx context.Context, seriesID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("series_id = ?", seriesID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SeriesIDsByUser returns the series a user is subscribed to, oldest
// subscription first
func (r *SubscriptionRepository) SeriesIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("series_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// UserIDsBySeries returns the subscribers of a series
func (r *SubscriptionRepository) UserIDsBySeries(ctx context.Context, seriesID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("series_id = ?", seriesID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FavoriteSetRepository provides favorite set operations
type FavoriteSetRepository struct {
	*Repository
}

// NewFavoriteSetRepository creates a new favorite set repository
func NewFavoriteSetRepository(repo *Repository) *FavoriteSetRepository {
	return &FavoriteSetRepository{Repository: repo}
}

// Get retrieves a user's favorite set for a kind
func (r *FavoriteSetRepository) Get(ctx context.Context, userID int64, kind string) (*models.FavoriteSet, error) {
	var set models.FavoriteSet
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		First(&set).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &set, nil
}

// Save upserts a user's favorite set
func (r *FavoriteSetRepository) Save(ctx context.Context, set *models.FavoriteSet) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}},
			UpdateAll: true,
		}).
		Create(set).Error
}

// ViewLogRepository provides per-(user, article) last-seen operations
type ViewLogRepository struct {
	*Repository
}

// NewViewLogRepository creates a new view log repository
func NewViewLogRepository(repo *Repository) *ViewLogRepository {
	return &ViewLogRepository{Repository: repo}
}

// LastSeen retrieves the last-seen record for a (user, article) pair
func (r *ViewLogRepository) LastSeen(ctx context.Context, userID, articleID int64) (*models.ViewLog, error) {
	var log models.ViewLog
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND article_id = ?", userID, articleID).
		First(&log).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}

// Touch upserts the last-seen timestamp for a (user, article) pair
func (r *ViewLogRepository) Touch(ctx context.Context, userID, articleID int64, when time.Time) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "article_id"}},
			UpdateAll: true,
		}).
		Create(&models.ViewLog{UserID: userID, ArticleID: articleID, LastSeenAt: when}).Error
}

// NotificationRepository provides notification persistence
type NotificationRepository struct {
	*Repository
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(repo *Repository) *NotificationRepository {
	return &NotificationRepository{Repository: repo}
}

// Create persists a notification
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}
