package entity

import "time"

const (
	KindAudio = "audio"
	KindVideo = "video"
)

// Content is one uploaded media item. After upload the row only changes
// through view-counter increments and the retention sweep's active flag.
type Content struct {
	ID          string    `db:"id" json:"id"`
	CreatorID   int64     `db:"creator_id" json:"creator_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ObjectKey   string    `db:"object_key" json:"-"`
	MediaKind   string    `db:"media_kind" json:"media_kind"`
	FileSize    int64     `db:"file_size" json:"file_size"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	Views       int64     `db:"views" json:"views"`
	PaidViews   int64     `db:"paid_views" json:"paid_views"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the item is past its retention window.
func (c *Content) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ListItem is the catalogue projection with the creator's display name.
type ListItem struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	MediaKind   string    `db:"media_kind" json:"media_kind"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	CreatorName string    `db:"creator_name" json:"creator_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
}
