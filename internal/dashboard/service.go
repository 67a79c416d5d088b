package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"

	contententity "github.com/sautihub/core-api/internal/content/entity"
)

// ContentLister exposes a creator's catalogue rows.
type ContentLister interface {
	ListByCreator(ctx context.Context, creatorID int64) ([]contententity.Content, error)
}

// EarningsReader exposes a creator's unsettled balance.
type EarningsReader interface {
	UnpaidTotalForCreator(ctx context.Context, creatorID int64) (int64, error)
}

// PurchaseLister exposes a viewer's unlocked items.
type PurchaseLister interface {
	ListPurchases(ctx context.Context, userID int64) ([]Purchase, error)
}

type Service struct {
	content   ContentLister
	earnings  EarningsReader
	purchases PurchaseLister
	logger    *zap.SugaredLogger
}

func NewService(content ContentLister, earnings EarningsReader, purchases PurchaseLister, logger *zap.SugaredLogger) *Service {
	return &Service{content: content, earnings: earnings, purchases: purchases, logger: logger}
}

// Creator builds the creator view: live items plus the unpaid balance.
func (s *Service) Creator(ctx context.Context, creatorID int64) (*CreatorDashboard, error) {
	items, err := s.content.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	total, err := s.earnings.UnpaidTotalForCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	out := &CreatorDashboard{TotalEarningsCents: total, ContentItems: []CreatorItem{}}
	for _, c := range items {
		if !c.Active {
			continue
		}
		out.ContentItems = append(out.ContentItems, CreatorItem{
			ID:        c.ID,
			Title:     c.Title,
			Views:     c.Views,
			PaidViews: c.PaidViews,
			CreatedAt: c.CreatedAt,
			ExpiresAt: c.ExpiresAt,
		})
	}
	out.ContentCount = len(out.ContentItems)
	return out, nil
}

// User builds the viewer view from the grant join, marking which purchases
// are still playable.
func (s *Service) User(ctx context.Context, userID int64) (*UserDashboard, error) {
	purchases, err := s.purchases.ListPurchases(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range purchases {
		purchases[i].Playable = purchases[i].Active && now.Before(purchases[i].ExpiresAt)
	}
	if purchases == nil {
		purchases = []Purchase{}
	}
	return &UserDashboard{PurchasedCount: len(purchases), PurchasedContent: purchases}, nil
}
