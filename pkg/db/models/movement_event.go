package models

import (
	"time"

	"github.com/logistar/turnover-backend/pkg/enums"
)

// MovementEvent is one normalized inventory movement pulled from the WMS.
// The (log_id, product_sku, operation_time) triple is the idempotency key:
// re-ingesting an overlapping window updates rows in place instead of
// duplicating them.
type MovementEvent struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement"`

	LogID       string `gorm:"column:log_id;not null;uniqueIndex:idx_movement_identity,priority:1"`
	ProductSKU  string `gorm:"column:product_sku;not null;uniqueIndex:idx_movement_identity,priority:2"`
	ReferenceNo string `gorm:"column:reference_no"`

	WarehouseID  string          `gorm:"column:warehouse_id;index"`
	CustomerCode string          `gorm:"column:customer_code;index"`
	Quantity     int64           `gorm:"column:quantity;not null;default:0"`
	Direction    enums.Direction `gorm:"column:direction;not null;index"`

	// OperationTime is the upstream timestamp in the source timezone;
	// DisplayTime is the same instant shifted to the warehouse-local zone
	// and is what the daily rollup buckets on.
	OperationTime *time.Time `gorm:"column:operation_time;uniqueIndex:idx_movement_identity,priority:3"`
	DisplayTime   *time.Time `gorm:"column:display_time;index"`

	OperationType string `gorm:"column:operation_type"`
	InventoryType string `gorm:"column:inventory_type"`
	ChangeStatus  string `gorm:"column:change_status"`
	Operator      string `gorm:"column:operator"`

	SyncedAt time.Time `gorm:"column:synced_at;autoUpdateTime"`
}

func (MovementEvent) TableName() string { return "inventory_events" }
