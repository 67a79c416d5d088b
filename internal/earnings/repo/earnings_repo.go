package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sautihub/core-api/internal/earnings/entity"
)

// EarningsRepo reads the earnings table. Rows are written exclusively by the
// payment ledger's confirmation transaction; this side only aggregates them.
type EarningsRepo struct {
	db *sqlx.DB
}

func NewEarningsRepo(db *sqlx.DB) *EarningsRepo { return &EarningsRepo{db: db} }

// WeeklyTotals aggregates unpaid accruals for the week starting weekStart,
// one row per creator.
func (r *EarningsRepo) WeeklyTotals(ctx context.Context, weekStart time.Time) ([]entity.WeeklyCreatorTotal, error) {
	const q = `SELECT e.creator_id,
	       COALESCE(u.creator_name, u.username) AS creator_name,
	       u.phone_number,
	       SUM(e.creator_share_cents) AS total_cents,
	       COUNT(*) AS content_count
	  FROM earnings e
	  JOIN users u ON u.id = e.creator_id
	 WHERE e.week_start = $1 AND e.paid_out = false
	 GROUP BY e.creator_id, u.creator_name, u.username, u.phone_number
	 ORDER BY total_cents DESC`
	totals := []entity.WeeklyCreatorTotal{}
	if err := r.db.SelectContext(ctx, &totals, q, weekStart); err != nil {
		return nil, err
	}
	return totals, nil
}

// ExportRows returns the unpaid accruals for the week, one row per unlock,
// in the shape the payout spreadsheet wants.
func (r *EarningsRepo) ExportRows(ctx context.Context, weekStart time.Time) ([]entity.ExportRow, error) {
	const q = `SELECT COALESCE(u.creator_name, u.username) AS creator_name,
	       u.phone_number,
	       c.title AS content_title,
	       e.creator_share_cents AS amount_cents,
	       e.week_start, e.week_end
	  FROM earnings e
	  JOIN users u ON u.id = e.creator_id
	  JOIN content c ON c.id = e.content_id
	 WHERE e.week_start = $1 AND e.paid_out = false
	 ORDER BY creator_name, c.title`
	rows := []entity.ExportRow{}
	if err := r.db.SelectContext(ctx, &rows, q, weekStart); err != nil {
		return nil, err
	}
	return rows, nil
}

// UnpaidTotalForCreator sums a creator's accruals that have not been settled.
func (r *EarningsRepo) UnpaidTotalForCreator(ctx context.Context, creatorID int64) (int64, error) {
	const q = `SELECT COALESCE(SUM(creator_share_cents), 0) FROM earnings
	 WHERE creator_id = $1 AND paid_out = false`
	var total int64
	if err := r.db.GetContext(ctx, &total, q, creatorID); err != nil {
		return 0, err
	}
	return total, nil
}

// MarkWeekPaid settles every unpaid accrual in the week and reports how many
// rows it flipped.
func (r *EarningsRepo) MarkWeekPaid(ctx context.Context, weekStart time.Time) (int64, error) {
	const q = `UPDATE earnings SET paid_out = true
	 WHERE week_start = $1 AND paid_out = false`
	res, err := r.db.ExecContext(ctx, q, weekStart)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
