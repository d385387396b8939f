package importer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/logistar/turnover-backend/internal/ingest"
	"github.com/logistar/turnover-backend/internal/wms"
	"github.com/logistar/turnover-backend/pkg/db/models"
	"github.com/logistar/turnover-backend/pkg/enums"
	pkgerrors "github.com/logistar/turnover-backend/pkg/errors"
	"github.com/logistar/turnover-backend/pkg/logger"
	"github.com/logistar/turnover-backend/pkg/metrics"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const defaultBatchSize = 500

// columnAliases maps normalized header labels to raw-row fields. The WMS
// export tool has shipped several header spellings over time; all of them are
// accepted.
var columnAliases = map[string]string{
	"id":              "log_id",
	"log id":          "log_id",
	"operation id":    "log_id",
	"product barcode": "product_sku",
	"sku":             "product_sku",
	"product sku":     "product_sku",
	"reference no":    "reference_no",
	"reference":       "reference_no",
	"warehouse id":    "warehouse_id",
	"warehouse":       "warehouse_id",
	"customer code":   "customer_code",
	"customer":        "customer_code",
	"quantity":        "quantity",
	"qty":             "quantity",
	"operation type":  "operation_type",
	"inventory type":  "inventory_type",
	"change status":   "change_status",
	"operator":        "operator",
	"operation time":  "operation_time",
}

type repository interface {
	UpsertEvents(ctx context.Context, tx *gorm.DB, events []models.MovementEvent) error
	CreateRun(ctx context.Context, syncType enums.SyncType) (*models.SyncRun, error)
	AddRunProgress(ctx context.Context, runID uint, records int64) error
	FinalizeRun(ctx context.Context, runID uint, status enums.SyncStatus, errorMessage string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rebuilder interface {
	Rebuild(ctx context.Context) error
}

// ServiceParams configure the workbook importer.
type ServiceParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repo       repository
	Normalizer *ingest.Normalizer
	Rollup     rebuilder
	Metrics    *metrics.SyncMetrics
	BatchSize  int
}

// Service ingests exported inventory-log workbooks. Rows flow through the
// same normalizer and upsert path as the API fetcher, so an import is just as
// idempotent as a re-sync.
type Service struct {
	logg       *logger.Logger
	db         txRunner
	repo       repository
	normalizer *ingest.Normalizer
	rollup     rebuilder
	met        *metrics.SyncMetrics
	batchSize  int
}

// NewService builds a workbook importer.
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
	if params.Normalizer == nil {
		return nil, fmt.Errorf("normalizer required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{
		logg:       params.Logger,
		db:         params.DB,
		repo:       params.Repo,
		normalizer: params.Normalizer,
		rollup:     params.Rollup,
		met:        params.Metrics,
		batchSize:  batchSize,
	}, nil
}

// ImportWorkbook reads the first sheet of an xlsx export and upserts its
// movement rows under an excel_import audit run. With replace set, existing
// events are wiped in the same transaction that lands the first batch.
func (s *Service) ImportWorkbook(ctx context.Context, r io.Reader, replace bool) (int, error) {
	events, err := s.parseWorkbook(ctx, r)
	if err != nil {
		return 0, err
	}

	run, err := s.repo.CreateRun(ctx, enums.SyncTypeExcelImport)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create import run")
	}
	ctx = s.logg.WithSyncRunID(ctx, run.ID)

	total, err := s.applyImport(ctx, run.ID, events, replace)
	if err != nil {
		s.finalize(ctx, run.ID, enums.SyncStatusFailed, err)
		return total, err
	}
	s.finalize(ctx, run.ID, enums.SyncStatusSuccess, nil)
	s.met.AddRecords(string(enums.SyncTypeExcelImport), int64(total))

	if s.rollup != nil {
		if err := s.rollup.Rebuild(ctx); err != nil {
			s.logg.Error(ctx, "rollup rebuild after import failed", err)
		}
	}

	s.logg.Info(s.logg.WithField(ctx, "records", total), "workbook import complete")
	return total, nil
}

func (s *Service) parseWorkbook(ctx context.Context, r io.Reader) ([]models.MovementEvent, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read sheet")
	}
	if len(rows) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workbook has no data rows")
	}

	columns, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	// identity mirrors the API sync: rows without the full (log id, sku,
	// operation time) triple are dropped, and a repeated identity within
	// the workbook keeps its last row so one upsert batch never carries
	// the same key twice
	type identityKey struct {
		logID string
		sku   string
		opAt  int64
	}
	events := make([]models.MovementEvent, 0, len(rows)-1)
	seen := make(map[identityKey]int, len(rows)-1)
	for i, row := range rows[1:] {
		raw := rawFromRow(columns, row)
		event := s.normalizer.Event(raw)
		if event.LogID == "" || event.ProductSKU == "" || event.OperationTime == nil {
			s.logg.Warn(s.logg.WithField(ctx, "row", i+2), "skipping workbook row without identity")
			continue
		}
		key := identityKey{logID: event.LogID, sku: event.ProductSKU, opAt: event.OperationTime.Unix()}
		if j, ok := seen[key]; ok {
			events[j] = event
			continue
		}
		seen[key] = len(events)
		events = append(events, event)
	}
	return events, nil
}

func (s *Service) applyImport(ctx context.Context, runID uint, events []models.MovementEvent, replace bool) (int, error) {
	// the wipe commits inside the first batch transaction, so a batch
	// failure rolls both back and never leaves the store empty
	wipe := replace
	if wipe && len(events) == 0 {
		if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			return tx.WithContext(ctx).Exec("DELETE FROM inventory_events").Error
		}); err != nil {
			return 0, fmt.Errorf("clear existing events: %w", err)
		}
		return 0, nil
	}

	total := 0
	for start := 0; start < len(events); start += s.batchSize {
		end := start + s.batchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		if err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			if wipe {
				if err := tx.WithContext(ctx).Exec("DELETE FROM inventory_events").Error; err != nil {
					return fmt.Errorf("clear existing events: %w", err)
				}
			}
			return s.repo.UpsertEvents(ctx, tx, batch)
		}); err != nil {
			return total, fmt.Errorf("upsert batch at offset %d: %w", start, err)
		}
		wipe = false
		if err := s.repo.AddRunProgress(ctx, runID, int64(len(batch))); err != nil {
			return total, fmt.Errorf("advance run progress: %w", err)
		}
		total += len(batch)
	}
	return total, nil
}

func (s *Service) finalize(ctx context.Context, runID uint, status enums.SyncStatus, cause error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if err := s.repo.FinalizeRun(ctx, runID, status, message); err != nil {
		s.logg.Error(ctx, "failed to finalize import run", err)
	}
	s.met.ObserveRun(string(enums.SyncTypeExcelImport), string(status))
}

// mapHeader resolves each known column to its index. The log id, SKU and
// operation time columns are mandatory; everything else is optional.
func mapHeader(header []string) (map[string]int, error) {
	columns := map[string]int{}
	for i, cell := range header {
		label := strings.ToLower(strings.TrimSpace(cell))
		if field, ok := columnAliases[label]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = i
			}
		}
	}
	for _, required := range []string{"log_id", "product_sku", "operation_time"} {
		if _, ok := columns[required]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("workbook is missing the %s column", required))
		}
	}
	return columns, nil
}

func rawFromRow(columns map[string]int, row []string) wms.RawInventoryLog {
	cell := func(field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return wms.RawInventoryLog{
		LogID:         cell("log_id"),
		ProductSKU:    cell("product_sku"),
		ReferenceNo:   cell("reference_no"),
		WarehouseID:   cell("warehouse_id"),
		CustomerCode:  cell("customer_code"),
		Quantity:      cell("quantity"),
		OperationType: cell("operation_type"),
		InventoryType: cell("inventory_type"),
		ChangeStatus:  cell("change_status"),
		Operator:      cell("operator"),
		OperationTime: cell("operation_time"),
	}
}
