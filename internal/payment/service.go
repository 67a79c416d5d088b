package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sautihub/core-api/internal/access"
	"github.com/sautihub/core-api/internal/content"
	contententity "github.com/sautihub/core-api/internal/content/entity"
	"github.com/sautihub/core-api/internal/earnings"
	"github.com/sautihub/core-api/internal/metrics"
	"github.com/sautihub/core-api/internal/payment/entity"
	"github.com/sautihub/core-api/internal/payment/repo"
	"github.com/sautihub/core-api/pkg/identifier"
	"github.com/sautihub/core-api/pkg/retry"
)

var (
	ErrContentNotFound = errors.New("content not found")
	ErrContentExpired  = errors.New("content expired")
	ErrAlreadyOwned    = errors.New("content already unlocked")
	// ErrTransient marks storage conflicts that survived the bounded retry;
	// the provider's redelivery is the recovery path.
	ErrTransient = errors.New("transient storage failure")
)

// ContentCatalog is the content lookup surface initiation needs. Implemented
// by the content service, which applies the active/expiry rules.
type ContentCatalog interface {
	Get(ctx context.Context, id string) (*contententity.Content, error)
}

// Service runs payment initiation and the confirmation state machine. All
// pending-payment and access-grant mutation in the system goes through here.
type Service struct {
	gateway  Gateway
	ledger   repo.Ledger
	grants   access.Store
	catalog  ContentCatalog
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
	retryCfg retry.Config
	fee      int
}

func NewService(gateway Gateway, ledger repo.Ledger, grants access.Store, catalog ContentCatalog, m *metrics.Metrics, cfg Config, logger *zap.SugaredLogger) *Service {
	return &Service{
		gateway:  gateway,
		ledger:   ledger,
		grants:   grants,
		catalog:  catalog,
		metrics:  m,
		logger:   logger,
		retryCfg: retry.DefaultConfig(),
		fee:      cfg.FeePercent,
	}
}

// Initiate validates the request, pushes a charge to the provider, and
// records the pending payment. The provider is never contacted for a caller
// who already holds the grant or for content that cannot be sold.
func (s *Service) Initiate(ctx context.Context, userID int64, contentID, phoneNumber string) (*entity.PendingPayment, error) {
	msisdn, err := NormalizeMSISDN(phoneNumber)
	if err != nil {
		s.metrics.RecordPaymentInitiated("validation")
		return nil, err
	}

	c, err := s.catalog.Get(ctx, contentID)
	if err != nil {
		switch {
		case errors.Is(err, content.ErrNotFound):
			s.metrics.RecordPaymentInitiated("validation")
			return nil, ErrContentNotFound
		case errors.Is(err, content.ErrExpired):
			s.metrics.RecordPaymentInitiated("validation")
			return nil, ErrContentExpired
		}
		s.metrics.RecordPaymentInitiated("error")
		return nil, err
	}

	owned, err := s.grants.HasAccess(ctx, userID, c.ID)
	if err != nil {
		s.metrics.RecordPaymentInitiated("error")
		return nil, err
	}
	if owned {
		s.metrics.RecordPaymentInitiated("already_owned")
		return nil, ErrAlreadyOwned
	}

	merchantRef := identifier.NewMerchantRef()
	ref, err := s.gateway.InitiatePayment(ctx, GatewayRequest{
		AmountCents: c.PriceCents,
		Msisdn:      msisdn,
		Description: fmt.Sprintf("Payment for content %s", c.ID),
		MerchantRef: merchantRef,
	})
	if err != nil {
		s.metrics.RecordPaymentInitiated("provider_error")
		return nil, err
	}

	p := &entity.PendingPayment{
		TransactionRef: ref,
		MerchantRef:    merchantRef,
		UserID:         userID,
		ContentID:      c.ID,
		AmountCents:    c.PriceCents,
		Msisdn:         msisdn,
		Status:         entity.StatusInitiated,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.ledger.Insert(ctx, p); err != nil {
		// The provider already accepted the charge; its callback will hit an
		// unknown reference and be acknowledged as a no-op.
		s.logger.Errorw("pending payment insert failed after provider accept",
			"transaction_ref", ref, "user_id", userID, "content_id", c.ID, "err", err)
		s.metrics.RecordPaymentInitiated("error")
		return nil, fmt.Errorf("record pending payment: %w", err)
	}

	s.metrics.RecordPaymentInitiated("ok")
	s.logger.Infow("payment initiated",
		"transaction_ref", ref, "user_id", userID, "content_id", c.ID, "amount_cents", c.PriceCents)
	return p, nil
}

// Confirm processes one callback delivery for ref. Deliveries are assumed
// at-least-once and may race: the ledger's guarded transition decides a single
// winner, every other delivery lands on the duplicate path. A success outcome
// completes the payment, writes the grant and accrues earnings in one unit;
// the grant and its earnings event happen at most once per (user, content)
// no matter how many refs or deliveries point at the pair.
func (s *Service) Confirm(ctx context.Context, ref string, outcome entity.Outcome) (entity.ConfirmResult, error) {
	p, err := s.ledger.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Infow("callback for unknown transaction", "transaction_ref", ref, "outcome", outcome)
			s.metrics.RecordCallback("unknown")
			return entity.ConfirmResult{Disposition: entity.DispositionUnknown}, nil
		}
		return entity.ConfirmResult{}, s.classify(fmt.Errorf("lookup %s: %w", ref, err))
	}

	// Fast path for redelivery; the guarded transition below is what actually
	// serializes racing deliveries.
	if p.Terminal() {
		return s.duplicate(ref, p, outcome), nil
	}

	if outcome == entity.OutcomeFailure {
		won, err := retry.DoWithResult(ctx, s.retryCfg, repo.IsTransient, func() (bool, error) {
			return s.ledger.ConfirmFailure(ctx, ref)
		})
		if err != nil {
			return entity.ConfirmResult{}, s.classify(fmt.Errorf("fail %s: %w", ref, err))
		}
		if !won {
			return s.duplicate(ref, p, outcome), nil
		}
		s.logger.Infow("payment failed", "transaction_ref", ref, "user_id", p.UserID, "content_id", p.ContentID)
		s.metrics.RecordCallback("failed")
		p.Status = entity.StatusFailed
		return entity.ConfirmResult{Disposition: entity.DispositionFailed, Payment: p}, nil
	}

	// Shares derive from the row's immutable amount, so they can be computed
	// before the transaction.
	creatorShare, platformShare := earnings.Split(p.AmountCents, s.fee)
	weekStart, weekEnd := earnings.WeekBounds(time.Now())
	res, err := retry.DoWithResult(ctx, s.retryCfg, repo.IsTransient, func() (repo.ConfirmSuccessResult, error) {
		return s.ledger.ConfirmSuccess(ctx, ref, repo.AccrualParams{
			CreatorShareCents:  creatorShare,
			PlatformShareCents: platformShare,
			WeekStart:          weekStart,
			WeekEnd:            weekEnd,
		})
	})
	if err != nil {
		return entity.ConfirmResult{}, s.classify(fmt.Errorf("complete %s: %w", ref, err))
	}
	if !res.Won {
		return s.duplicate(ref, p, outcome), nil
	}

	s.metrics.RecordCallback("completed")
	if res.Granted {
		s.metrics.RecordAccessGranted(creatorShare)
		s.logger.Infow("access granted",
			"transaction_ref", ref, "user_id", res.Payment.UserID, "content_id", res.Payment.ContentID,
			"amount_cents", res.Payment.AmountCents, "creator_share_cents", creatorShare,
			"platform_share_cents", platformShare)
	} else {
		// A different completed payment already unlocked this pair.
		s.logger.Infow("payment completed without new grant",
			"transaction_ref", ref, "user_id", res.Payment.UserID, "content_id", res.Payment.ContentID)
	}
	return entity.ConfirmResult{Disposition: entity.DispositionCompleted, Payment: res.Payment, Granted: res.Granted}, nil
}

func (s *Service) duplicate(ref string, p *entity.PendingPayment, outcome entity.Outcome) entity.ConfirmResult {
	s.logger.Debugw("duplicate callback absorbed", "transaction_ref", ref, "status", p.Status, "outcome", outcome)
	s.metrics.RecordCallback("duplicate")
	s.metrics.RecordDuplicateCallback()
	return entity.ConfirmResult{Disposition: entity.DispositionDuplicate, Payment: p}
}

func (s *Service) classify(err error) error {
	if repo.IsTransient(err) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
