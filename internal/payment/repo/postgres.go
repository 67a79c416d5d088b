package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sautihub/core-api/internal/payment/entity"
)

// PostgresLedger persists pending payments in the payments table and runs the
// confirmation transitions as conditional updates.
type PostgresLedger struct {
	db *sqlx.DB
}

func NewPostgresLedger(db *sqlx.DB) *PostgresLedger { return &PostgresLedger{db: db} }

// EnsureTable creates the payments and earnings tables if not exists
// (idempotent). Earnings live here because confirmation writes them in the
// same transaction as the payment transition.
func (l *PostgresLedger) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS payments (
  transaction_ref TEXT PRIMARY KEY,
  merchant_ref TEXT NOT NULL,
  user_id BIGINT NOT NULL,
  content_id VARCHAR(27) NOT NULL,
  amount_cents BIGINT NOT NULL,
  msisdn TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'initiated',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_payments_user_content ON payments (user_id, content_id);
CREATE INDEX IF NOT EXISTS idx_payments_status_created ON payments (status, created_at);

CREATE TABLE IF NOT EXISTS earnings (
  id BIGSERIAL PRIMARY KEY,
  transaction_ref TEXT NOT NULL UNIQUE,
  creator_id BIGINT NOT NULL,
  content_id VARCHAR(27) NOT NULL,
  creator_share_cents BIGINT NOT NULL,
  platform_share_cents BIGINT NOT NULL,
  week_start DATE NOT NULL,
  week_end DATE NOT NULL,
  paid_out BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_earnings_creator_unpaid ON earnings (creator_id, paid_out);
CREATE INDEX IF NOT EXISTS idx_earnings_week ON earnings (week_start);
`
	_, err := l.db.ExecContext(ctx, ddl)
	return err
}

const paymentColumns = `transaction_ref, merchant_ref, user_id, content_id,
	amount_cents, msisdn, status, created_at, completed_at`

func (l *PostgresLedger) Insert(ctx context.Context, p *entity.PendingPayment) error {
	const q = `INSERT INTO payments (transaction_ref,merchant_ref,user_id,content_id,amount_cents,msisdn,status,created_at)
		  VALUES (:transaction_ref,:merchant_ref,:user_id,:content_id,:amount_cents,:msisdn,:status,:created_at)`
	_, err := l.db.NamedExecContext(ctx, q, p)
	return err
}

func (l *PostgresLedger) GetByRef(ctx context.Context, ref string) (*entity.PendingPayment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_ref=$1`
	var row entity.PendingPayment
	if err := l.db.GetContext(ctx, &row, q, ref); err != nil {
		return nil, err
	}
	return &row, nil
}

// ConfirmFailure is a compare-and-set on the status row: zero rows updated
// means another delivery already settled the payment.
func (l *PostgresLedger) ConfirmFailure(ctx context.Context, ref string) (bool, error) {
	const q = `UPDATE payments SET status='failed' WHERE transaction_ref=$1 AND status='initiated' RETURNING 1`
	var one int
	if err := l.db.GetContext(ctx, &one, q, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *PostgresLedger) ConfirmSuccess(ctx context.Context, ref string, acc AccrualParams) (ConfirmSuccessResult, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return ConfirmSuccessResult{}, err
	}
	defer tx.Rollback()

	// Compare-and-set: the losing delivery sees zero rows and backs off.
	const casQ = `UPDATE payments SET status='completed', completed_at=NOW()
		WHERE transaction_ref=$1 AND status='initiated'
		RETURNING ` + paymentColumns
	var p entity.PendingPayment
	if err := tx.GetContext(ctx, &p, casQ, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ConfirmSuccessResult{}, nil
		}
		return ConfirmSuccessResult{}, err
	}

	// Storage-level second defense: the composite key absorbs a grant that
	// another completed payment already wrote for this pair.
	const grantQ = `INSERT INTO access_grants (user_id, content_id, transaction_ref)
		VALUES ($1, $2, $3) ON CONFLICT (user_id, content_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, grantQ, p.UserID, p.ContentID, ref)
	if err != nil {
		return ConfirmSuccessResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ConfirmSuccessResult{}, err
	}
	granted := n == 1

	if granted {
		const accrueQ = `INSERT INTO earnings (transaction_ref, creator_id, content_id, creator_share_cents, platform_share_cents, week_start, week_end)
			SELECT $1, c.creator_id, c.id, $3, $4, $5, $6 FROM content c WHERE c.id = $2
			ON CONFLICT (transaction_ref) DO NOTHING`
		if _, err := tx.ExecContext(ctx, accrueQ, ref, p.ContentID,
			acc.CreatorShareCents, acc.PlatformShareCents, acc.WeekStart, acc.WeekEnd); err != nil {
			return ConfirmSuccessResult{}, err
		}
		const paidViewQ = `UPDATE content SET paid_views = paid_views + 1 WHERE id=$1`
		if _, err := tx.ExecContext(ctx, paidViewQ, p.ContentID); err != nil {
			return ConfirmSuccessResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return ConfirmSuccessResult{}, err
	}
	return ConfirmSuccessResult{Won: true, Granted: granted, Payment: &p}, nil
}

func (l *PostgresLedger) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	const q = `UPDATE payments SET status='failed'
		WHERE status='initiated' AND created_at < $1
		RETURNING transaction_ref`
	refs := []string{}
	if err := l.db.SelectContext(ctx, &refs, q, cutoff); err != nil {
		return nil, err
	}
	return refs, nil
}
