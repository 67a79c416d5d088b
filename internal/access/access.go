package access

import (
	"context"
	"time"
)

// Grant records that a user has unlocked one content item. The composite key
// (user_id, content_id) makes the unlock at-most-once no matter how many
// payments reference the pair.
type Grant struct {
	UserID         int64     `db:"user_id" json:"user_id"`
	ContentID      string    `db:"content_id" json:"content_id"`
	TransactionRef string    `db:"transaction_ref" json:"transaction_ref"`
	GrantedAt      time.Time `db:"granted_at" json:"granted_at"`
}

// Store is the access-grant storage consumed by payment confirmation, media
// delivery and dashboards.
type Store interface {
	// Grant records an unlock. Granting an existing pair is a no-op; the bool
	// reports whether a new grant was written.
	Grant(ctx context.Context, userID int64, contentID, transactionRef string) (bool, error)
	HasAccess(ctx context.Context, userID int64, contentID string) (bool, error)
	ListForUser(ctx context.Context, userID int64) ([]Grant, error)
}
