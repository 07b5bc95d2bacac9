package models

import (
	"encoding/json"
	"time"
)

// Favorite kinds. Series favorites are represented by Subscription rows,
// so the set mechanism only ever holds posts.
const (
	FavoriteKindPost = "post"
)

// FavoriteSet holds one user's ordered favorite ids for a kind as a
// single JSON document. Insertion order is preserved so the favorites
// feed row can list items in the order they were favorited.
type FavoriteSet struct {
	UserID    int64     `gorm:"primaryKey;column:user_id"`
	Kind      string    `gorm:"primaryKey;type:varchar(16);column:kind"`
	ItemIDs   string    `gorm:"type:text;not null;default:'[]';column:item_ids"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for FavoriteSet
func (FavoriteSet) TableName() string {
	return "favorite_sets"
}

// IDs decodes the stored id list. A corrupt document decodes to empty
// rather than failing the caller.
func (f *FavoriteSet) IDs() []int64 {
	var ids []int64
	if err := json.Unmarshal([]byte(f.ItemIDs), &ids); err != nil {
		return nil
	}
	return ids
}

// SetIDs encodes the id list back into the stored document.
func (f *FavoriteSet) SetIDs(ids []int64) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	f.ItemIDs = string(raw)
	return nil
}

// ViewLog records when a user last viewed an article. Only the latest
// sighting is kept per pair; the article's total counter carries the
// aggregate.
type ViewLog struct {
	UserID     int64     `gorm:"primaryKey;column:user_id"`
	ArticleID  int64     `gorm:"primaryKey;column:article_id"`
	LastSeenAt time.Time `gorm:"not null;column:last_seen_at"`
}

// TableName specifies the table name for ViewLog
func (ViewLog) TableName() string {
	return "view_log"
}

// Notification represents a persisted engagement notification for
// downstream delivery
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Type      string    `gorm:"type:varchar(32);not null;column:type"`
	UserID    int64     `gorm:"not null;index;column:user_id"`
	ItemID    int64     `gorm:"not null;column:item_id"`
	ItemType  string    `gorm:"type:varchar(16);not null;column:item_type"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	IsRead    bool      `gorm:"not null;default:false;column:is_read"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}
