package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sautihub/core-api/internal/access"
	"github.com/sautihub/core-api/internal/payment/entity"
)

func seed(t *testing.T, l *MemoryLedger, ref string, userID int64, age time.Duration) {
	t.Helper()
	err := l.Insert(context.Background(), &entity.PendingPayment{
		TransactionRef: ref,
		MerchantRef:    "m-" + ref,
		UserID:         userID,
		ContentID:      "c1",
		AmountCents:    500,
		Status:         entity.StatusInitiated,
		CreatedAt:      time.Now().Add(-age),
	})
	require.NoError(t, err)
}

func TestMemoryLedgerGetByRef(t *testing.T) {
	l := NewMemoryLedger(access.NewMemoryStore())
	seed(t, l, "TXN-1", 7, 0)

	p, err := l.GetByRef(context.Background(), "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.UserID)

	// callers get a copy, not a handle on the stored row
	p.Status = entity.StatusCompleted
	again, err := l.GetByRef(context.Background(), "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInitiated, again.Status)

	_, err = l.GetByRef(context.Background(), "TXN-none")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestMemoryLedgerConfirmFailureFirstWins(t *testing.T) {
	l := NewMemoryLedger(access.NewMemoryStore())
	ctx := context.Background()
	seed(t, l, "TXN-1", 7, 0)

	won, err := l.ConfirmFailure(ctx, "TXN-1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = l.ConfirmFailure(ctx, "TXN-1")
	require.NoError(t, err)
	assert.False(t, won)

	won, err = l.ConfirmFailure(ctx, "TXN-none")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestMemoryLedgerConfirmSuccess(t *testing.T) {
	grants := access.NewMemoryStore()
	l := NewMemoryLedger(grants)
	ctx := context.Background()
	seed(t, l, "TXN-1", 7, 0)
	acc := AccrualParams{CreatorShareCents: 250, PlatformShareCents: 250}

	res, err := l.ConfirmSuccess(ctx, "TXN-1", acc)
	require.NoError(t, err)
	assert.True(t, res.Won)
	assert.True(t, res.Granted)
	require.NotNil(t, res.Payment)
	assert.Equal(t, entity.StatusCompleted, res.Payment.Status)
	assert.NotNil(t, res.Payment.CompletedAt)

	// already terminal: lost
	res, err = l.ConfirmSuccess(ctx, "TXN-1", acc)
	require.NoError(t, err)
	assert.False(t, res.Won)

	// a second ref for the same pair completes without a grant or accrual
	seed(t, l, "TXN-2", 7, 0)
	res, err = l.ConfirmSuccess(ctx, "TXN-2", acc)
	require.NoError(t, err)
	assert.True(t, res.Won)
	assert.False(t, res.Granted)

	assert.Equal(t, 1, grants.Count())
	assert.Len(t, l.Accruals(), 1)
}

func TestMemoryLedgerExpireStale(t *testing.T) {
	grants := access.NewMemoryStore()
	l := NewMemoryLedger(grants)
	ctx := context.Background()

	seed(t, l, "TXN-old", 7, 48*time.Hour)
	seed(t, l, "TXN-fresh", 8, time.Hour)
	seed(t, l, "TXN-done", 9, 48*time.Hour)
	_, err := l.ConfirmSuccess(ctx, "TXN-done", AccrualParams{})
	require.NoError(t, err)

	refs, err := l.ExpireStale(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"TXN-old"}, refs)

	old, _ := l.GetByRef(ctx, "TXN-old")
	assert.Equal(t, entity.StatusFailed, old.Status)
	fresh, _ := l.GetByRef(ctx, "TXN-fresh")
	assert.Equal(t, entity.StatusInitiated, fresh.Status)
	done, _ := l.GetByRef(ctx, "TXN-done")
	assert.Equal(t, entity.StatusCompleted, done.Status, "terminal rows are immutable")

	// a late callback for an expired ref lands on the duplicate path
	res, err := l.ConfirmSuccess(ctx, "TXN-old", AccrualParams{})
	require.NoError(t, err)
	assert.False(t, res.Won)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&pq.Error{Code: "40001"}))
	assert.True(t, IsTransient(&pq.Error{Code: "40P01"}))
	assert.True(t, IsTransient(&pq.Error{Code: "08006"}))
	assert.True(t, IsTransient(fmt.Errorf("confirm: %w", &pq.Error{Code: "40001"})))

	assert.False(t, IsTransient(&pq.Error{Code: "23505"}))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(sql.ErrNoRows))
	assert.False(t, IsTransient(nil))
}
