package rollup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/logistar/turnover-backend/pkg/db/models"
	"github.com/logistar/turnover-backend/pkg/enums"
	"github.com/logistar/turnover-backend/pkg/logger"
	"github.com/logistar/turnover-backend/pkg/metrics"
	"gorm.io/gorm"
)

// rebuildSQL replaces the whole daily rollup in one statement. Events with an
// unclassified direction or no display time never make it into the table, and
// blank customer codes collapse into the UNKNOWN bucket.
const rebuildSQL = `
INSERT INTO daily_summaries
  (summary_date, warehouse_id, direction, customer_code,
   event_count, total_qty, total_volume_cbm, unique_skus)
SELECT
  DATE(e.display_time),
  e.warehouse_id,
  e.direction,
  COALESCE(NULLIF(e.customer_code, ''), 'UNKNOWN'),
  COUNT(*),
  SUM(e.quantity),
  SUM(e.quantity * COALESCE(p.volume_cbm, 0)),
  COUNT(DISTINCT e.product_sku)
FROM inventory_events e
LEFT JOIN products p ON e.product_sku = p.sku
WHERE e.direction IN ('inbound', 'outbound')
  AND e.display_time IS NOT NULL
GROUP BY DATE(e.display_time), e.warehouse_id, e.direction,
  COALESCE(NULLIF(e.customer_code, ''), 'UNKNOWN')`

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type runRecorder interface {
	CreateRun(ctx context.Context, syncType enums.SyncType) (*models.SyncRun, error)
	FinalizeRun(ctx context.Context, runID uint, status enums.SyncStatus, errorMessage string) error
}

type invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// ServiceParams configure the rollup service.
type ServiceParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Runs    runRecorder
	Cache   invalidator
	Metrics *metrics.SyncMetrics
}

// Service rebuilds the daily_summaries table from raw movement events. The
// table is derived state: every rebuild deletes it and reinserts from scratch
// inside one transaction, so readers only ever see a complete rollup.
type Service struct {
	logg  *logger.Logger
	db    txRunner
	runs  runRecorder
	cache invalidator
	met   *metrics.SyncMetrics
	now   func() time.Time

	// serializes rebuilds; concurrent callers queue rather than race on the
	// delete-and-reinsert window
	mu sync.Mutex
}

// NewService builds a rollup service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Runs == nil {
		return nil, fmt.Errorf("run recorder required")
	}
	return &Service{
		logg:  params.Logger,
		db:    params.DB,
		runs:  params.Runs,
		cache: params.Cache,
		met:   params.Metrics,
		now:   time.Now,
	}, nil
}

// Rebuild replaces the rollup under its own audit run and invalidates the
// analytics query cache once the new rows are committed.
func (s *Service) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.runs.CreateRun(ctx, enums.SyncTypeRollup)
	if err != nil {
		return fmt.Errorf("create rollup run: %w", err)
	}
	ctx = s.logg.WithSyncRunID(ctx, run.ID)

	started := s.now()
	rows, err := s.rebuild(ctx)
	if err != nil {
		s.finalize(ctx, run.ID, enums.SyncStatusFailed, err)
		return fmt.Errorf("rebuild daily summaries: %w", err)
	}
	s.finalize(ctx, run.ID, enums.SyncStatusSuccess, nil)
	s.met.ObserveRollup(s.now().Sub(started))

	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			// stale cache entries age out on TTL; the rollup itself is good
			s.logg.Error(ctx, "failed to invalidate analytics cache after rollup", err)
		}
	}

	s.logg.Info(s.logg.WithField(ctx, "rows", rows), "daily rollup rebuilt")
	return nil
}

func (s *Service) rebuild(ctx context.Context) (int64, error) {
	var rows int64
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Exec("DELETE FROM daily_summaries").Error; err != nil {
			return err
		}
		result := tx.WithContext(ctx).Exec(rebuildSQL)
		if result.Error != nil {
			return result.Error
		}
		rows = result.RowsAffected
		return nil
	})
	return rows, err
}

func (s *Service) finalize(ctx context.Context, runID uint, status enums.SyncStatus, cause error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if err := s.runs.FinalizeRun(ctx, runID, status, message); err != nil {
		s.logg.Error(ctx, "failed to finalize rollup run", err)
	}
	s.met.ObserveRun(string(enums.SyncTypeRollup), string(status))
}
