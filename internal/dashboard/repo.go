package dashboard

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// PostgresPurchases reads the viewer's unlocked items by joining grants to
// the catalogue and its creators.
type PostgresPurchases struct {
	db *sqlx.DB
}

func NewPostgresPurchases(db *sqlx.DB) *PostgresPurchases { return &PostgresPurchases{db: db} }

func (r *PostgresPurchases) ListPurchases(ctx context.Context, userID int64) ([]Purchase, error) {
	const q = `SELECT g.content_id,
	       c.title,
	       c.media_kind,
	       COALESCE(u.creator_name, u.username) AS creator_name,
	       g.granted_at,
	       c.active,
	       c.expires_at
	  FROM access_grants g
	  JOIN content c ON c.id = g.content_id
	  JOIN users u ON u.id = c.creator_id
	 WHERE g.user_id = $1
	 ORDER BY g.granted_at DESC`
	purchases := []Purchase{}
	if err := r.db.SelectContext(ctx, &purchases, q, userID); err != nil {
		return nil, err
	}
	return purchases, nil
}
