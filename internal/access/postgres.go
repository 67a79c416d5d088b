package access

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists grants in the access_grants table.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore { return &PostgresStore{db: db} }

// EnsureTable creates the access_grants table if it does not already exist.
// The composite primary key is the storage-level defense against duplicate
// grants; confirmation logic relies on it.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	const tbl = `
	CREATE TABLE IF NOT EXISTS access_grants (
		user_id BIGINT NOT NULL,
		content_id VARCHAR(27) NOT NULL,
		transaction_ref TEXT NOT NULL DEFAULT '',
		granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, content_id)
	);
	`
	if _, err := s.db.ExecContext(ctx, tbl); err != nil {
		return err
	}

	const idx = `
	CREATE INDEX IF NOT EXISTS idx_access_grants_content ON access_grants (content_id);
	`
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) Grant(ctx context.Context, userID int64, contentID, transactionRef string) (bool, error) {
	const q = `INSERT INTO access_grants (user_id, content_id, transaction_ref)
	           VALUES ($1, $2, $3) ON CONFLICT (user_id, content_id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, q, userID, contentID, transactionRef)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStore) HasAccess(ctx context.Context, userID int64, contentID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM access_grants WHERE user_id=$1 AND content_id=$2)`
	var ok bool
	if err := s.db.GetContext(ctx, &ok, q, userID, contentID); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID int64) ([]Grant, error) {
	const q = `SELECT user_id, content_id, transaction_ref, granted_at
	           FROM access_grants WHERE user_id=$1 ORDER BY granted_at DESC`
	grants := []Grant{}
	if err := s.db.SelectContext(ctx, &grants, q, userID); err != nil {
		return nil, err
	}
	return grants, nil
}
