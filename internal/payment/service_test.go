package payment

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sautihub/core-api/internal/access"
	"github.com/sautihub/core-api/internal/content"
	contententity "github.com/sautihub/core-api/internal/content/entity"
	"github.com/sautihub/core-api/internal/earnings"
	"github.com/sautihub/core-api/internal/metrics"
	"github.com/sautihub/core-api/internal/payment/entity"
	"github.com/sautihub/core-api/internal/payment/repo"
	"github.com/sautihub/core-api/pkg/retry"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) InitiatePayment(ctx context.Context, req GatewayRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type fakeCatalog struct {
	items map[string]*contententity.Content
}

func (f *fakeCatalog) Get(ctx context.Context, id string) (*contententity.Content, error) {
	c, ok := f.items[id]
	if !ok || !c.Active {
		return nil, content.ErrNotFound
	}
	if c.Expired(time.Now()) {
		return nil, content.ErrExpired
	}
	return c, nil
}

// flakyLedger injects transient failures in front of a real ledger.
type flakyLedger struct {
	repo.Ledger
	mu       sync.Mutex
	failures int
}

func (f *flakyLedger) takeFailure() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *flakyLedger) ConfirmSuccess(ctx context.Context, ref string, acc repo.AccrualParams) (repo.ConfirmSuccessResult, error) {
	if f.takeFailure() {
		return repo.ConfirmSuccessResult{}, &pq.Error{Code: "40001"}
	}
	return f.Ledger.ConfirmSuccess(ctx, ref, acc)
}

func (f *flakyLedger) ConfirmFailure(ctx context.Context, ref string) (bool, error) {
	if f.takeFailure() {
		return false, &pq.Error{Code: "40P01"}
	}
	return f.Ledger.ConfirmFailure(ctx, ref)
}

type fixture struct {
	svc     *Service
	gateway *mockGateway
	ledger  *repo.MemoryLedger
	grants  *access.MemoryStore
	catalog *fakeCatalog
}

func testContent(id string, priceCents int64) *contententity.Content {
	now := time.Now()
	return &contententity.Content{
		ID:         id,
		CreatorID:  100,
		Title:      "Benga Mix Vol 1",
		MediaKind:  contententity.KindAudio,
		PriceCents: priceCents,
		Active:     true,
		CreatedAt:  now,
		ExpiresAt:  now.Add(14 * 24 * time.Hour),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	grants := access.NewMemoryStore()
	mem := repo.NewMemoryLedger(grants)
	gw := &mockGateway{}
	catalog := &fakeCatalog{items: map[string]*contententity.Content{
		"c1": testContent("c1", 500),
	}}
	svc := NewService(gw, mem, grants, catalog, metrics.New(nil), Config{FeePercent: 50}, zap.NewNop().Sugar())
	svc.retryCfg = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}
	return &fixture{svc: svc, gateway: gw, ledger: mem, grants: grants, catalog: catalog}
}

// injectFlaky routes the service's ledger calls through a transient-failure
// wrapper while keeping the fixture's direct handles on the real store.
func (f *fixture) injectFlaky(failures int) *flakyLedger {
	flaky := &flakyLedger{Ledger: f.ledger, failures: failures}
	f.svc.ledger = flaky
	return flaky
}

func TestInitiate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.On("InitiatePayment", mock.Anything, mock.Anything).Return("TXN-1", nil)

	p, err := f.svc.Initiate(ctx, 7, "c1", "0712345678")
	require.NoError(t, err)
	assert.Equal(t, "TXN-1", p.TransactionRef)
	assert.Equal(t, entity.StatusInitiated, p.Status)
	assert.Equal(t, int64(500), p.AmountCents)
	assert.Equal(t, "254712345678", p.Msisdn)
	assert.NotEmpty(t, p.MerchantRef)

	req := f.gateway.Calls[0].Arguments.Get(1).(GatewayRequest)
	assert.Equal(t, "254712345678", req.Msisdn)
	assert.Equal(t, int64(500), req.AmountCents)

	stored, err := f.ledger.GetByRef(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.UserID)
	assert.Equal(t, "c1", stored.ContentID)
}

func TestInitiateInvalidPhone(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Initiate(context.Background(), 7, "c1", "12345")
	assert.ErrorIs(t, err, ErrInvalidMSISDN)
	assert.Empty(t, f.gateway.Calls)
}

func TestInitiateContentRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expired := testContent("c-old", 500)
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	f.catalog.items["c-old"] = expired

	inactive := testContent("c-off", 500)
	inactive.Active = false
	f.catalog.items["c-off"] = inactive

	_, err := f.svc.Initiate(ctx, 7, "missing", "0712345678")
	assert.ErrorIs(t, err, ErrContentNotFound)

	_, err = f.svc.Initiate(ctx, 7, "c-old", "0712345678")
	assert.ErrorIs(t, err, ErrContentExpired)

	_, err = f.svc.Initiate(ctx, 7, "c-off", "0712345678")
	assert.ErrorIs(t, err, ErrContentNotFound)

	assert.Empty(t, f.gateway.Calls)
}

func TestInitiateAlreadyOwned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.grants.Grant(ctx, 7, "c1", "TXN-0")
	require.NoError(t, err)

	_, err = f.svc.Initiate(ctx, 7, "c1", "0712345678")
	assert.ErrorIs(t, err, ErrAlreadyOwned)
	assert.Empty(t, f.gateway.Calls, "provider must not be contacted for an owned item")
}

func TestInitiateProviderError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.On("InitiatePayment", mock.Anything, mock.Anything).Return("", ErrProviderUnavailable)

	_, err := f.svc.Initiate(ctx, 7, "c1", "0712345678")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	// nothing persisted
	_, err = f.ledger.GetByRef(ctx, "")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Empty(t, f.ledger.Accruals())
}

func TestConfirmUnknownRef(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Confirm(context.Background(), "TXN-nobody", entity.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionUnknown, res.Disposition)
	assert.Equal(t, 0, f.grants.Count())
}

func initiated(t *testing.T, f *fixture, ref string, userID int64) {
	t.Helper()
	err := f.ledger.Insert(context.Background(), &entity.PendingPayment{
		TransactionRef: ref,
		MerchantRef:    "m-" + ref,
		UserID:         userID,
		ContentID:      "c1",
		AmountCents:    500,
		Msisdn:         "254712345678",
		Status:         entity.StatusInitiated,
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestConfirmFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	initiated(t, f, "TXN-1", 7)

	res, err := f.svc.Confirm(ctx, "TXN-1", entity.OutcomeFailure)
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionFailed, res.Disposition)

	stored, err := f.ledger.GetByRef(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, stored.Status)
	assert.Equal(t, 0, f.grants.Count(), "a failed outcome never produces a grant")
	assert.Empty(t, f.ledger.Accruals())
}

func TestConfirmSuccessGrantsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	initiated(t, f, "TXN-1", 7)

	res, err := f.svc.Confirm(ctx, "TXN-1", entity.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionCompleted, res.Disposition)
	assert.True(t, res.Granted)
	require.NotNil(t, res.Payment.CompletedAt)

	// redelivery is a no-op
	res, err = f.svc.Confirm(ctx, "TXN-1", entity.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionDuplicate, res.Disposition)
	assert.False(t, res.Granted)

	assert.Equal(t, 1, f.grants.Count())
	require.Len(t, f.ledger.Accruals(), 1)

	ok, err := f.grants.HasAccess(ctx, 7, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConfirmTerminalStateIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	initiated(t, f, "TXN-fail", 7)
	_, err := f.svc.Confirm(ctx, "TXN-fail", entity.OutcomeFailure)
	require.NoError(t, err)

	// a later conflicting success must not flip the state or grant access
	res, err := f.svc.Confirm(ctx, "TXN-fail", entity.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionDuplicate, res.Disposition)

	stored, err := f.ledger.GetByRef(ctx, "TXN-fail")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, stored.Status)
	assert.Equal(t, 0, f.grants.Count())

	initiated(t, f, "TXN-ok", 8)
	_, err = f.svc.Confirm(ctx, "TXN-ok", entity.OutcomeSuccess)
	require.NoError(t, err)

	res, err = f.svc.Confirm(ctx, "TXN-ok", entity.OutcomeFailure)
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionDuplicate, res.Disposition)

	stored, err = f.ledger.GetByRef(ctx, "TXN-ok")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, stored.Status)
}

// The central invariant: N racing success deliveries for one transaction
// produce exactly one completed transition, one grant and one earnings event.
func TestConfirmConcurrentDuplicateDeliveries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.On("InitiatePayment", mock.Anything, mock.Anything).Return("TXN-1", nil)

	_, err := f.svc.Initiate(ctx, 7, "c1", "0712345678")
	require.NoError(t, err)

	const deliveries = 25
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]entity.ConfirmResult, deliveries)
	errs := make([]error, deliveries)

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.svc.Confirm(ctx, "TXN-1", entity.OutcomeSuccess)
		}(i)
	}
	close(start)
	wg.Wait()

	granted := 0
	for i := 0; i < deliveries; i++ {
		require.NoError(t, errs[i])
		if results[i].Granted {
			granted++
			assert.Equal(t, entity.DispositionCompleted, results[i].Disposition)
		}
	}
	assert.Equal(t, 1, granted, "exactly one delivery may observe the grant")
	assert.Equal(t, 1, f.grants.Count())

	accruals := f.ledger.Accruals()
	require.Len(t, accruals, 1, "exactly one earnings event per grant")
	assert.Equal(t, int64(250), accruals[0].CreatorShareCents)
	assert.Equal(t, int64(250), accruals[0].PlatformShareCents)

	wantStart, wantEnd := earnings.WeekBounds(time.Now())
	assert.Equal(t, wantStart, accruals[0].WeekStart)
	assert.Equal(t, wantEnd, accruals[0].WeekEnd)

	stored, err := f.ledger.GetByRef(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, stored.Status)
}

// Two distinct transactions for the same (user, content) pair: both may
// complete, but the storage-level uniqueness allows only one grant and one
// accrual.
func TestConfirmDistinctRefsSamePair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	initiated(t, f, "TXN-a", 7)
	initiated(t, f, "TXN-b", 7)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, ref := range []string{"TXN-a", "TXN-b"} {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			<-start
			_, err := f.svc.Confirm(ctx, ref, entity.OutcomeSuccess)
			assert.NoError(t, err)
		}(ref)
	}
	close(start)
	wg.Wait()

	for _, ref := range []string{"TXN-a", "TXN-b"} {
		stored, err := f.ledger.GetByRef(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusCompleted, stored.Status)
	}
	assert.Equal(t, 1, f.grants.Count(), "one grant per (user, content) across transactions")
	assert.Len(t, f.ledger.Accruals(), 1)
}

func TestConfirmRetriesTransientConflicts(t *testing.T) {
	f := newFixture(t)
	f.injectFlaky(2)
	ctx := context.Background()
	initiated(t, f, "TXN-1", 7)

	res, err := f.svc.Confirm(ctx, "TXN-1", entity.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionCompleted, res.Disposition)
	assert.True(t, res.Granted)
	assert.Equal(t, 1, f.grants.Count())
}

func TestConfirmSurfacesTransientAfterRetries(t *testing.T) {
	f := newFixture(t)
	flaky := f.injectFlaky(100)
	ctx := context.Background()
	initiated(t, f, "TXN-1", 7)

	_, err := f.svc.Confirm(ctx, "TXN-1", entity.OutcomeSuccess)
	assert.ErrorIs(t, err, ErrTransient)

	stored, err := f.ledger.GetByRef(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInitiated, stored.Status, "no partial state after a failed confirmation")
	assert.Equal(t, 0, f.grants.Count())

	// provider redelivery succeeds once the conflict clears
	flaky.mu.Lock()
	flaky.failures = 0
	flaky.mu.Unlock()

	res, err := f.svc.Confirm(ctx, "TXN-1", entity.OutcomeSuccess)
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, 1, f.grants.Count())
	assert.Len(t, f.ledger.Accruals(), 1)
}

func TestConfirmFailureRetriesTransient(t *testing.T) {
	f := newFixture(t)
	f.injectFlaky(1)
	ctx := context.Background()
	initiated(t, f, "TXN-1", 7)

	res, err := f.svc.Confirm(ctx, "TXN-1", entity.OutcomeFailure)
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionFailed, res.Disposition)
}

func TestFailedThenSuccessIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	initiated(t, f, "TXN-1", 7)

	_, err := f.svc.Confirm(ctx, "TXN-1", entity.OutcomeFailure)
	require.NoError(t, err)

	res, err := f.svc.Confirm(ctx, "TXN-1", entity.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, entity.DispositionDuplicate, res.Disposition)
	assert.False(t, res.Granted)
	assert.Equal(t, 0, f.grants.Count())
	assert.Empty(t, f.ledger.Accruals())
}
