package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/logistar/turnover-backend/internal/wms"
	"github.com/logistar/turnover-backend/pkg/db/models"
	"github.com/logistar/turnover-backend/pkg/enums"
	pkgerrors "github.com/logistar/turnover-backend/pkg/errors"
	"github.com/logistar/turnover-backend/pkg/logger"
	"github.com/logistar/turnover-backend/pkg/metrics"
	"github.com/logistar/turnover-backend/pkg/pagination"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const defaultBatchSize = 500

type fetcher interface {
	FetchInventoryLogs(ctx context.Context, from, to time.Time, warehouseID, customerCode string) ([]wms.RawInventoryLog, error)
	FetchProducts(ctx context.Context) ([]wms.RawProduct, error)
}

type repository interface {
	UpsertEvents(ctx context.Context, tx *gorm.DB, events []models.MovementEvent) error
	UpsertProducts(ctx context.Context, tx *gorm.DB, products []models.Product) error
	CreateRun(ctx context.Context, syncType enums.SyncType) (*models.SyncRun, error)
	AddRunProgress(ctx context.Context, runID uint, records int64) error
	FinalizeRun(ctx context.Context, runID uint, status enums.SyncStatus, errorMessage string) error
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rebuilder interface {
	Rebuild(ctx context.Context) error
}

// ServiceParams configure the ingestion service.
type ServiceParams struct {
	Logger          *logger.Logger
	DB              txRunner
	Repo            repository
	Fetcher         fetcher
	Normalizer      *Normalizer
	Rollup          rebuilder
	Metrics         *metrics.SyncMetrics
	BatchSize       int
	DailyWindowDays int
}

// Service orchestrates pull-based ingestion from the WMS: fetch, normalize,
// batched idempotent upsert, audit-run lifecycle, then rollup refresh.
type Service struct {
	logg       *logger.Logger
	db         txRunner
	repo       repository
	fetcher    fetcher
	normalizer *Normalizer
	rollup     rebuilder
	met        *metrics.SyncMetrics
	batchSize  int
	windowDays int
	now        func() time.Time
}

// NewService builds an ingestion service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Fetcher == nil {
		return nil, fmt.Errorf("fetcher required")
	}
	if params.Normalizer == nil {
		return nil, fmt.Errorf("normalizer required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	windowDays := params.DailyWindowDays
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Service{
		logg:       params.Logger,
		db:         params.DB,
		repo:       params.Repo,
		fetcher:    params.Fetcher,
		normalizer: params.Normalizer,
		rollup:     params.Rollup,
		met:        params.Metrics,
		batchSize:  batchSize,
		windowDays: windowDays,
		now:        time.Now,
	}, nil
}

// StartIngestion opens an audit run for the window and executes it in the
// background. The caller gets the run id back immediately and polls the run
// log for the outcome.
func (s *Service) StartIngestion(ctx context.Context, window IngestionWindow) (uint, error) {
	if window.From.IsZero() || window.To.IsZero() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "ingestion window requires both bounds")
	}
	if window.From.After(window.To) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "ingestion window start is after its end")
	}

	run, err := s.repo.CreateRun(ctx, enums.SyncTypeInventoryLog)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sync run")
	}

	bg := s.logg.WithSyncRunID(context.WithoutCancel(ctx), run.ID)
	go func() {
		if _, err := s.executeIngestion(bg, run.ID, window); err != nil {
			s.logg.Error(bg, "background ingestion failed", err)
		}
	}()

	return run.ID, nil
}

// StartProductSync refreshes the product catalog in the background.
func (s *Service) StartProductSync(ctx context.Context) (uint, error) {
	run, err := s.repo.CreateRun(ctx, enums.SyncTypeProduct)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sync run")
	}

	bg := s.logg.WithSyncRunID(context.WithoutCancel(ctx), run.ID)
	go func() {
		if _, err := s.executeProductSync(bg, run.ID); err != nil {
			s.logg.Error(bg, "background product sync failed", err)
		}
	}()

	return run.ID, nil
}

// RunDailySync re-ingests the trailing window and refreshes the catalog.
// Both halves run even if one fails; their errors are combined.
func (s *Service) RunDailySync(ctx context.Context) (DailySyncResult, error) {
	var result DailySyncResult
	var errs error

	to := s.now().UTC()
	from := to.AddDate(0, 0, -s.windowDays)

	eventRun, err := s.repo.CreateRun(ctx, enums.SyncTypeInventoryLog)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("create event run: %w", err))
	} else {
		events, err := s.executeIngestion(s.logg.WithSyncRunID(ctx, eventRun.ID), eventRun.ID, IngestionWindow{From: from, To: to})
		result.Events = events
		errs = multierr.Append(errs, err)
	}

	productRun, err := s.repo.CreateRun(ctx, enums.SyncTypeProduct)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("create product run: %w", err))
	} else {
		products, err := s.executeProductSync(s.logg.WithSyncRunID(ctx, productRun.ID), productRun.ID)
		result.Products = products
		errs = multierr.Append(errs, err)
	}

	return result, errs
}

// ListRuns returns recent audit rows for the run-log endpoint.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	runs, err := s.repo.ListRuns(ctx, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sync runs")
	}
	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, NewRunSummary(run))
	}
	return summaries, nil
}

// executeIngestion runs one ingestion to completion and finalizes its audit
// row exactly once. On success the rollup is rebuilt under its own audit.
func (s *Service) executeIngestion(ctx context.Context, runID uint, window IngestionWindow) (int64, error) {
	total, err := s.ingestWindow(ctx, runID, window)
	if err != nil {
		s.finalize(ctx, runID, enums.SyncTypeInventoryLog, enums.SyncStatusFailed, err)
		return total, err
	}
	s.finalize(ctx, runID, enums.SyncTypeInventoryLog, enums.SyncStatusSuccess, nil)
	s.met.AddRecords(string(enums.SyncTypeInventoryLog), total)

	logCtx := s.logg.WithFields(ctx, map[string]any{"records": total})
	s.logg.Info(logCtx, "inventory log ingestion complete")

	if s.rollup != nil {
		if err := s.rollup.Rebuild(ctx); err != nil {
			// rollup failure is audited on its own run; ingestion stays green
			s.logg.Error(ctx, "rollup rebuild after ingestion failed", err)
		}
	}
	return total, nil
}

func (s *Service) ingestWindow(ctx context.Context, runID uint, window IngestionWindow) (int64, error) {
	raws, err := s.fetcher.FetchInventoryLogs(ctx, window.From, window.To, window.WarehouseID, window.CustomerCode)
	if err != nil {
		return 0, fmt.Errorf("fetch inventory logs: %w", err)
	}

	// a row's identity is the (log id, sku, operation time) triple; rows
	// missing any leg cannot upsert idempotently and are dropped. Chunked
	// fetches can also repeat rows, and a repeated identity inside one
	// upsert batch is a constraint error, so the last copy wins here.
	type identityKey struct {
		logID string
		sku   string
		opAt  int64
	}
	events := make([]models.MovementEvent, 0, len(raws))
	seen := make(map[identityKey]int, len(raws))
	for _, raw := range raws {
		event := s.normalizer.Event(raw)
		if event.LogID == "" || event.ProductSKU == "" || event.OperationTime == nil {
			s.logg.Warn(s.logg.WithField(ctx, "raw_id", raw.LogID), "skipping movement row without identity")
			continue
		}
		key := identityKey{logID: event.LogID, sku: event.ProductSKU, opAt: event.OperationTime.Unix()}
		if i, ok := seen[key]; ok {
			events[i] = event
			continue
		}
		seen[key] = len(events)
		events = append(events, event)
	}

	var total int64
	for start := 0; start < len(events); start += s.batchSize {
		end := start + s.batchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.UpsertEvents(ctx, tx, batch)
		}); err != nil {
			return total, fmt.Errorf("upsert batch at offset %d: %w", start, err)
		}
		if err := s.repo.AddRunProgress(ctx, runID, int64(len(batch))); err != nil {
			return total, fmt.Errorf("advance run progress: %w", err)
		}
		total += int64(len(batch))
	}

	return total, nil
}

func (s *Service) executeProductSync(ctx context.Context, runID uint) (int64, error) {
	total, err := s.syncProducts(ctx, runID)
	if err != nil {
		s.finalize(ctx, runID, enums.SyncTypeProduct, enums.SyncStatusFailed, err)
		return total, err
	}
	s.finalize(ctx, runID, enums.SyncTypeProduct, enums.SyncStatusSuccess, nil)
	s.met.AddRecords(string(enums.SyncTypeProduct), total)

	logCtx := s.logg.WithFields(ctx, map[string]any{"records": total})
	s.logg.Info(logCtx, "product sync complete")
	return total, nil
}

func (s *Service) syncProducts(ctx context.Context, runID uint) (int64, error) {
	raws, err := s.fetcher.FetchProducts(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch products: %w", err)
	}

	products := make([]models.Product, 0, len(raws))
	for _, raw := range raws {
		product := s.normalizer.Product(raw)
		if product.SKU == "" {
			continue
		}
		products = append(products, product)
	}

	var total int64
	for start := 0; start < len(products); start += s.batchSize {
		end := start + s.batchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]

		if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.UpsertProducts(ctx, tx, batch)
		}); err != nil {
			return total, fmt.Errorf("upsert product batch at offset %d: %w", start, err)
		}
		if err := s.repo.AddRunProgress(ctx, runID, int64(len(batch))); err != nil {
			return total, fmt.Errorf("advance run progress: %w", err)
		}
		total += int64(len(batch))
	}

	return total, nil
}

func (s *Service) finalize(ctx context.Context, runID uint, syncType enums.SyncType, status enums.SyncStatus, cause error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if err := s.repo.FinalizeRun(ctx, runID, status, message); err != nil {
		s.logg.Error(ctx, "failed to finalize sync run", err)
	}
	s.met.ObserveRun(string(syncType), string(status))
}
