package repo

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sautihub/core-api/internal/access"
	"github.com/sautihub/core-api/internal/payment/entity"
)

// Accrual is one earnings event recorded by the memory ledger.
type Accrual struct {
	TransactionRef     string
	ContentID          string
	CreatorShareCents  int64
	PlatformShareCents int64
	WeekStart          time.Time
	WeekEnd            time.Time
}

// MemoryLedger keeps payments in process memory with the same first-wins
// transition semantics as the Postgres ledger. Grants go through the supplied
// access store so its uniqueness guarantee stays in the loop. For tests and
// local development without Postgres.
type MemoryLedger struct {
	mu       sync.Mutex
	rows     map[string]*entity.PendingPayment
	grants   access.Store
	accruals []Accrual
}

func NewMemoryLedger(grants access.Store) *MemoryLedger {
	return &MemoryLedger{rows: make(map[string]*entity.PendingPayment), grants: grants}
}

func (l *MemoryLedger) Insert(ctx context.Context, p *entity.PendingPayment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *p
	l.rows[p.TransactionRef] = &cp
	return nil
}

func (l *MemoryLedger) GetByRef(ctx context.Context, ref string) (*entity.PendingPayment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[ref]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (l *MemoryLedger) ConfirmFailure(ctx context.Context, ref string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.rows[ref]
	if !ok || row.Status != entity.StatusInitiated {
		return false, nil
	}
	row.Status = entity.StatusFailed
	return true, nil
}

func (l *MemoryLedger) ConfirmSuccess(ctx context.Context, ref string, acc AccrualParams) (ConfirmSuccessResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, ok := l.rows[ref]
	if !ok || row.Status != entity.StatusInitiated {
		return ConfirmSuccessResult{}, nil
	}

	now := time.Now()
	row.Status = entity.StatusCompleted
	row.CompletedAt = &now

	granted, err := l.grants.Grant(ctx, row.UserID, row.ContentID, ref)
	if err != nil {
		return ConfirmSuccessResult{}, err
	}
	if granted {
		l.accruals = append(l.accruals, Accrual{
			TransactionRef:     ref,
			ContentID:          row.ContentID,
			CreatorShareCents:  acc.CreatorShareCents,
			PlatformShareCents: acc.PlatformShareCents,
			WeekStart:          acc.WeekStart,
			WeekEnd:            acc.WeekEnd,
		})
	}

	cp := *row
	return ConfirmSuccessResult{Won: true, Granted: granted, Payment: &cp}, nil
}

func (l *MemoryLedger) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	refs := []string{}
	for ref, row := range l.rows {
		if row.Status == entity.StatusInitiated && row.CreatedAt.Before(cutoff) {
			row.Status = entity.StatusFailed
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Accruals returns a copy of the recorded earnings events. Test helper.
func (l *MemoryLedger) Accruals() []Accrual {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Accrual, len(l.accruals))
	copy(out, l.accruals)
	return out
}
