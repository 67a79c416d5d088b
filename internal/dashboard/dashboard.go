// Package dashboard serves the creator and viewer summary views. It only
// reads: content and earnings rows are owned by their own packages, purchases
// come from a join over the access grants.
package dashboard

import "time"

// CreatorItem is one catalogue entry on the creator dashboard.
type CreatorItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Views     int64     `json:"views"`
	PaidViews int64     `json:"paid_views"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreatorDashboard summarizes a creator's live catalogue and unpaid balance.
type CreatorDashboard struct {
	ContentCount       int           `json:"content_count"`
	TotalEarningsCents int64         `json:"total_earnings_cents"`
	ContentItems       []CreatorItem `json:"content_items"`
}

// Purchase is one unlocked item on the viewer dashboard. Playable goes false
// once the item expires or the retention sweep takes it down.
type Purchase struct {
	ContentID   string    `db:"content_id" json:"id"`
	Title       string    `db:"title" json:"title"`
	MediaKind   string    `db:"media_kind" json:"media_kind"`
	CreatorName string    `db:"creator_name" json:"creator_name"`
	GrantedAt   time.Time `db:"granted_at" json:"granted_at"`
	Active      bool      `db:"active" json:"-"`
	ExpiresAt   time.Time `db:"expires_at" json:"-"`
	Playable    bool      `db:"-" json:"playable"`
}

// UserDashboard lists everything the viewer has paid to unlock.
type UserDashboard struct {
	PurchasedCount   int        `json:"purchased_count"`
	PurchasedContent []Purchase `json:"purchased_content"`
}
