package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/logistar/turnover-backend/pkg/db/models"
	"github.com/logistar/turnover-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxErrorMessageLen caps what gets persisted on a failed run; upstream
// errors can carry whole HTML bodies.
const maxErrorMessageLen = 2000

// Repository persists movement events, products and sync-run audit rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to ingestion persistence.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var eventConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "log_id"}, {Name: "product_sku"}, {Name: "operation_time"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"reference_no", "warehouse_id", "customer_code", "quantity", "direction",
		"display_time", "operation_type", "inventory_type", "change_status",
		"operator", "synced_at",
	}),
}

// UpsertEvents writes one batch of events inside the provided transaction.
// Rows matching an existing (log_id, product_sku, operation_time) identity
// are updated in place, which makes overlapping re-ingestion idempotent.
func (r *Repository) UpsertEvents(ctx context.Context, tx *gorm.DB, events []models.MovementEvent) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if len(events) == 0 {
		return nil
	}
	for i := range events {
		events[i].SyncedAt = time.Now().UTC()
	}
	return tx.WithContext(ctx).Clauses(eventConflict).Create(&events).Error
}

var productConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "sku"}},
	DoUpdates: clause.AssignmentColumns([]string{
		"reference_no", "customer_code", "name", "length_cm", "width_cm",
		"height_cm", "weight_kg", "declared_value", "size_unit", "weight_unit",
		"volume_cbm", "synced_at",
	}),
}

// UpsertProducts writes one batch of catalog rows keyed by SKU.
func (r *Repository) UpsertProducts(ctx context.Context, tx *gorm.DB, products []models.Product) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	if len(products) == 0 {
		return nil
	}
	for i := range products {
		products[i].SyncedAt = time.Now().UTC()
	}
	return tx.WithContext(ctx).Clauses(productConflict).Create(&products).Error
}

// CreateRun opens a running audit row for the given sync type.
func (r *Repository) CreateRun(ctx context.Context, syncType enums.SyncType) (*models.SyncRun, error) {
	run := &models.SyncRun{
		SyncType:  syncType,
		Status:    enums.SyncStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// AddRunProgress advances the records counter after each committed batch so
// an operator polling the run log can watch a long ingestion move.
func (r *Repository) AddRunProgress(ctx context.Context, runID uint, records int64) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ? AND status = ?", runID, enums.SyncStatusRunning).
		UpdateColumn("records_synced", gorm.Expr("records_synced + ?", records)).Error
}

// FinalizeRun moves a running row into a terminal status. Rows already
// terminal are left untouched so a run is finalized exactly once.
func (r *Repository) FinalizeRun(ctx context.Context, runID uint, status enums.SyncStatus, errorMessage string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}
	now := time.Now().UTC()
	updates := map[string]any{
		"status":        status,
		"error_message": truncateError(errorMessage),
		"finished_at":   &now,
	}
	return r.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ? AND status = ?", runID, enums.SyncStatusRunning).
		Updates(updates).Error
}

// GetRun loads one audit row.
func (r *Repository) GetRun(ctx context.Context, runID uint) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", runID).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent audit rows, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func truncateError(message string) string {
	if len(message) <= maxErrorMessageLen {
		return message
	}
	return message[:maxErrorMessageLen]
}
