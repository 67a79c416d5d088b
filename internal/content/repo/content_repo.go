package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sautihub/core-api/internal/content/entity"
)

// ContentRepo provides data access for the content table using sqlx.
type ContentRepo struct {
	db *sqlx.DB
}

func NewContentRepo(db *sqlx.DB) *ContentRepo { return &ContentRepo{db: db} }

// EnsureTable creates the content table if not exists (idempotent).
func (r *ContentRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS content (
  id VARCHAR(27) PRIMARY KEY,
  creator_id BIGINT NOT NULL REFERENCES users(id),
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  object_key TEXT NOT NULL,
  media_kind TEXT NOT NULL,
  file_size BIGINT NOT NULL DEFAULT 0,
  price_cents BIGINT NOT NULL,
  views BIGINT NOT NULL DEFAULT 0,
  paid_views BIGINT NOT NULL DEFAULT 0,
  active BOOLEAN NOT NULL DEFAULT true,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_content_creator ON content (creator_id);
CREATE INDEX IF NOT EXISTS idx_content_active_expiry ON content (active, expires_at);
CREATE INDEX IF NOT EXISTS idx_content_created ON content (created_at DESC);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a catalogue row. The ID is generated by the caller.
func (r *ContentRepo) Create(ctx context.Context, c *entity.Content) error {
	const q = `INSERT INTO content (id,creator_id,title,description,object_key,media_kind,file_size,price_cents,active,expires_at)
		  VALUES (:id,:creator_id,:title,:description,:object_key,:media_kind,:file_size,:price_cents,:active,:expires_at)`
	_, err := r.db.NamedExecContext(ctx, q, c)
	return err
}

const contentColumns = `id, creator_id, title, description, object_key, media_kind,
	file_size, price_cents, views, paid_views, active, created_at, expires_at`

// GetByID fetches a content row or sql.ErrNoRows.
func (r *ContentRepo) GetByID(ctx context.Context, id string) (*entity.Content, error) {
	const q = `SELECT ` + contentColumns + ` FROM content WHERE id=$1`
	var row entity.Content
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// ListActive returns the catalogue page: active, unexpired items, newest
// first, with the creator display name joined in.
func (r *ContentRepo) ListActive(ctx context.Context, skip, limit int) ([]entity.ListItem, error) {
	const q = `SELECT c.id, c.title, c.description, c.media_kind, c.price_cents,
			COALESCE(u.creator_name, u.username) AS creator_name, c.created_at, c.expires_at
		FROM content c
		JOIN users u ON u.id = c.creator_id
		WHERE c.active AND c.expires_at > NOW()
		ORDER BY c.created_at DESC
		OFFSET $1 LIMIT $2`
	items := []entity.ListItem{}
	if err := r.db.SelectContext(ctx, &items, q, skip, limit); err != nil {
		return nil, err
	}
	return items, nil
}

// ListByCreator returns all of a creator's items, newest first.
func (r *ContentRepo) ListByCreator(ctx context.Context, creatorID int64) ([]entity.Content, error) {
	const q = `SELECT ` + contentColumns + ` FROM content WHERE creator_id=$1 ORDER BY created_at DESC`
	items := []entity.Content{}
	if err := r.db.SelectContext(ctx, &items, q, creatorID); err != nil {
		return nil, err
	}
	return items, nil
}

// IncrementViews bumps the free view counter.
func (r *ContentRepo) IncrementViews(ctx context.Context, id string) error {
	const q = `UPDATE content SET views = views + 1 WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// ExpiredItem is the projection the retention sweep works on.
type ExpiredItem struct {
	ID        string `db:"id"`
	ObjectKey string `db:"object_key"`
}

// ListExpiredActive returns items past their expiry that still hold an
// object, up to limit.
func (r *ContentRepo) ListExpiredActive(ctx context.Context, limit int) ([]ExpiredItem, error) {
	const q = `SELECT id, object_key FROM content WHERE active AND expires_at < NOW() LIMIT $1`
	items := []ExpiredItem{}
	if err := r.db.SelectContext(ctx, &items, q, limit); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkInactive clears the active flag once the stored object is gone.
func (r *ContentRepo) MarkInactive(ctx context.Context, id string) error {
	const q = `UPDATE content SET active=false WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
