// Package retention takes down content past its 14-day window and fails
// payments abandoned mid-flight, on a fixed interval.
package retention

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	contentrepo "github.com/sautihub/core-api/internal/content/repo"
	"github.com/sautihub/core-api/pkg/objstore"
)

// Catalog is the slice of the content repo the sweep needs.
type Catalog interface {
	ListExpiredActive(ctx context.Context, limit int) ([]contentrepo.ExpiredItem, error)
	MarkInactive(ctx context.Context, id string) error
}

// Ledger fails initiated payments that have sat past the stale window. The
// transition is the same guarded update confirmations use, so a sweep can
// never clobber a payment that completed meanwhile.
type Ledger interface {
	ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

type Config struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
	// SweepTimeout bounds one pass so a slow object store cannot wedge the
	// loop.
	SweepTimeout time.Duration
}

// ConfigFromEnv reads sweeper config from env vars. staleAfter comes from the
// payment config so the two stay in step.
func ConfigFromEnv(staleAfter time.Duration) Config {
	cfg := Config{
		Interval:     time.Hour,
		StaleAfter:   staleAfter,
		BatchSize:    200,
		SweepTimeout: 5 * time.Minute,
	}
	if v := os.Getenv("RETENTION_SWEEP_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Interval = time.Duration(n) * time.Minute
		}
	}
	if v := os.Getenv("RETENTION_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	return cfg
}

// Sweeper runs the retention pass on a ticker until its context is cancelled.
type Sweeper struct {
	catalog Catalog
	objects objstore.Store
	ledger  Ledger
	cfg     Config
	logger  *zap.SugaredLogger
}

func NewSweeper(catalog Catalog, objects objstore.Store, ledger Ledger, cfg Config, logger *zap.SugaredLogger) *Sweeper {
	return &Sweeper{catalog: catalog, objects: objects, ledger: ledger, cfg: cfg, logger: logger}
}

// Run blocks until ctx is cancelled. The first pass happens one full interval
// after start, so a crash-looping process does not hammer the object store.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Infow("retention sweeper started",
		"interval", s.cfg.Interval, "stale_after", s.cfg.StaleAfter)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(context.Background(), s.cfg.SweepTimeout)
			s.Sweep(sweepCtx)
			cancel()
		}
	}
}

// Sweep runs one retention pass: expired content first, then stale payments.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweepContent(ctx)
	s.sweepPayments(ctx)
}

func (s *Sweeper) sweepContent(ctx context.Context) {
	items, err := s.catalog.ListExpiredActive(ctx, s.cfg.BatchSize)
	if err != nil {
		s.logger.Errorw("expired content listing failed", "err", err)
		return
	}
	if len(items) == 0 {
		return
	}

	removed := 0
	for _, item := range items {
		// Object deletion is best effort: the expiry flag is what actually
		// gates playback, and a leaked object is cheaper than a wedged sweep.
		if err := s.objects.Delete(ctx, item.ObjectKey); err != nil {
			s.logger.Warnw("stored object delete failed",
				"content_id", item.ID, "object_key", item.ObjectKey, "err", err)
		}
		if err := s.catalog.MarkInactive(ctx, item.ID); err != nil {
			s.logger.Errorw("mark inactive failed", "content_id", item.ID, "err", err)
			continue
		}
		removed++
	}
	s.logger.Infow("expired content swept", "expired", len(items), "deactivated", removed)
}

func (s *Sweeper) sweepPayments(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.StaleAfter)
	refs, err := s.ledger.ExpireStale(ctx, cutoff)
	if err != nil {
		s.logger.Errorw("stale payment sweep failed", "err", err)
		return
	}
	if len(refs) > 0 {
		s.logger.Infow("stale payments failed", "count", len(refs), "cutoff", cutoff)
	}
}
