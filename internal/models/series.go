package models

import (
	"database/sql"
	"time"
)

// Series represents a named grouping of articles that users may
// subscribe to
type Series struct {
	ID          int64         `gorm:"primaryKey;autoIncrement;column:id"`
	Name        string        `gorm:"type:varchar(255);not null;uniqueIndex:series_ux1;column:name"`
	Slug        string        `gorm:"type:varchar(255);not null;column:slug"`
	Description string        `gorm:"type:varchar(5000);not null;default:'';column:description"`
	Permalink   string        `gorm:"type:varchar(1024);not null;default:'';column:permalink"`
	IconURL     string        `gorm:"type:varchar(1024);not null;default:'';column:icon_url"`
	IsFeatured  bool          `gorm:"not null;default:false;column:is_featured"`
	Score       float64       `gorm:"type:float;not null;default:0;column:score"`
	CategoryID  sql.NullInt64 `gorm:"column:category_id"`
	CreatedAt   time.Time     `gorm:"not null;column:created_at"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID;references:ID"`
}

// TableName specifies the table name for Series
func (Series) TableName() string {
	return "series"
}

// Category represents a grouping of series used to build dynamic feed rows
type Category struct {
	ID   int64  `gorm:"primaryKey;autoIncrement;column:id"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex:categories_ux1;column:name"`
	Slug string `gorm:"type:varchar(255);not null;column:slug"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "categories"
}

// Subscription represents a user's subscription to a series
type Subscription struct {
	UserID    int64     `gorm:"primaryKey;column:user_id"`
	SeriesID  int64     `gorm:"primaryKey;column:series_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Relationships
	Series *Series `gorm:"foreignKey:SeriesID;references:ID"`
}

// TableName specifies the table name for Subscription
func (Subscription) TableName() string {
	return "series_subscriptions"
}
