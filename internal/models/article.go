package models

import (
	"time"
)

// Article represents a published content unit
type Article struct {
	ID            int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Title         string    `gorm:"type:varchar(255);not null;column:title"`
	Permalink     string    `gorm:"type:varchar(1024);not null;column:permalink"`
	Excerpt       string    `gorm:"type:text;column:excerpt"`
	ImageURL      string    `gorm:"type:varchar(1024);not null;default:'';column:img_url"`
	OverrideImage string    `gorm:"type:varchar(1024);not null;default:'';column:override_img_url"`
	PublishedAt   time.Time `gorm:"not null;column:published_at"`
	IsPublished   bool      `gorm:"not null;default:true;column:is_published"`
	IsFeatured    bool      `gorm:"not null;default:false;column:is_featured"`
	ViewCount     int64     `gorm:"not null;default:0;column:view_count"`
	FavoriteCount int64     `gorm:"not null;default:0;column:favorite_count"`
	Score         float64   `gorm:"type:float;not null;default:0;column:score"`

	// Relationships
	Series []Series `gorm:"many2many:article_series;"`
}

// TableName specifies the table name for Article
func (Article) TableName() string {
	return "articles"
}

// Thumbnail returns the image to display, preferring the editorial
// override over the regular thumbnail.
func (a *Article) Thumbnail() string {
	if a.OverrideImage != "" {
		return a.OverrideImage
	}
	return a.ImageURL
}

// SeriesIDs returns the ids of the series the article belongs to.
func (a *Article) SeriesIDs() []int64 {
	ids := make([]int64, 0, len(a.Series))
	for _, s := range a.Series {
		ids = append(ids, s.ID)
	}
	return ids
}

// SeriesNames returns the names of the series the article belongs to.
func (a *Article) SeriesNames() []string {
	names := make([]string, 0, len(a.Series))
	for _, s := range a.Series {
		names = append(names, s.Name)
	}
	return names
}

// Comment represents a reader comment on an article
type Comment struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	ArticleID  int64     `gorm:"not null;index;column:article_id"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`
	IsApproved bool      `gorm:"not null;default:true;column:is_approved"`

	// Relationships
	Article *Article `gorm:"foreignKey:ArticleID;references:ID"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}
