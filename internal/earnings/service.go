package earnings

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sautihub/core-api/internal/earnings/entity"
)

// Repository is the read side of the earnings table. Accruals themselves are
// written by the payment ledger inside the confirmation transaction.
type Repository interface {
	WeeklyTotals(ctx context.Context, weekStart time.Time) ([]entity.WeeklyCreatorTotal, error)
	ExportRows(ctx context.Context, weekStart time.Time) ([]entity.ExportRow, error)
	MarkWeekPaid(ctx context.Context, weekStart time.Time) (int64, error)
}

// Service serves the weekly payout views over accrued earnings.
type Service struct {
	repo   Repository
	logger *zap.SugaredLogger
}

func NewService(repo Repository, logger *zap.SugaredLogger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Weekly returns per-creator unpaid totals for the week starting weekStart.
func (s *Service) Weekly(ctx context.Context, weekStart time.Time) ([]entity.WeeklyCreatorTotal, error) {
	return s.repo.WeeklyTotals(ctx, weekStart)
}

// Export builds the payout workbook for the week starting weekStart.
func (s *Service) Export(ctx context.Context, weekStart time.Time) (*Workbook, error) {
	rows, err := s.repo.ExportRows(ctx, weekStart)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("earnings export built", "week_start", weekStart.Format("2006-01-02"), "rows", len(rows))
	return BuildWorkbook(weekStart, rows)
}

// SettleWeek marks the week's accruals paid after the payout run.
func (s *Service) SettleWeek(ctx context.Context, weekStart time.Time) (int64, error) {
	n, err := s.repo.MarkWeekPaid(ctx, weekStart)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("weekly earnings settled", "week_start", weekStart.Format("2006-01-02"), "rows", n)
	return n, nil
}
