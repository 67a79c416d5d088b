package repo

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/sautihub/core-api/internal/payment/entity"
)

// AccrualParams carries the precomputed earnings split written alongside a
// successful confirmation. Shares derive from the payment's immutable amount,
// so computing them before the transaction is safe.
type AccrualParams struct {
	CreatorShareCents  int64
	PlatformShareCents int64
	WeekStart          time.Time
	WeekEnd            time.Time
}

// ConfirmSuccessResult reports what the atomic success transition did.
type ConfirmSuccessResult struct {
	// Won is true when this call moved the payment from initiated to
	// completed. False means the row was already terminal (or absent).
	Won bool
	// Granted is true when the access grant was written by this call. A won
	// confirmation with Granted false means another payment already unlocked
	// the pair.
	Granted bool
	// Payment is the completed row, set when Won.
	Payment *entity.PendingPayment
}

// Ledger is the pending-payments store plus the atomic confirmation unit.
// Implementations must make the confirm transitions first-wins under
// concurrent calls: the status row acts as a compare-and-set guard, and the
// access-grant uniqueness is enforced at the storage level. GetByRef returns
// sql.ErrNoRows for unknown references.
type Ledger interface {
	Insert(ctx context.Context, p *entity.PendingPayment) error
	GetByRef(ctx context.Context, ref string) (*entity.PendingPayment, error)
	// ConfirmFailure moves ref from initiated to failed. won is false when
	// the row is already terminal or absent.
	ConfirmFailure(ctx context.Context, ref string) (won bool, err error)
	// ConfirmSuccess atomically moves ref to completed, writes the access
	// grant if the (user, content) pair has none, and iff the grant was
	// written records the earnings accrual and paid-view count. All of it
	// commits or none of it does.
	ConfirmSuccess(ctx context.Context, ref string, acc AccrualParams) (ConfirmSuccessResult, error)
	// ExpireStale fails initiated payments created before cutoff through the
	// same guarded transition confirmations use, and returns the refs it
	// failed.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

// IsTransient reports whether err is a storage conflict worth retrying:
// serialization failures, deadlocks and dropped connections clear up on a
// later attempt.
func IsTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			return true
		}
		return pqErr.Code.Class() == "08"
	}
	return false
}
