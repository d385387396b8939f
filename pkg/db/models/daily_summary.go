package models

import "time"

// DailySummary is one row of the derived daily rollup. The table is fully
// rebuilt from inventory_events on every refresh, so rows carry no identity
// beyond their grouping key.
type DailySummary struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement"`

	SummaryDate  time.Time `gorm:"column:summary_date;not null;index"`
	WarehouseID  string    `gorm:"column:warehouse_id;not null;index"`
	Direction    string    `gorm:"column:direction;not null"`
	CustomerCode string    `gorm:"column:customer_code;not null;index"`

	EventCount     int64   `gorm:"column:event_count;not null;default:0"`
	TotalQty       int64   `gorm:"column:total_qty;not null;default:0"`
	TotalVolumeCBM float64 `gorm:"column:total_volume_cbm;not null;default:0"`
	UniqueSKUs     int64   `gorm:"column:unique_skus;not null;default:0"`
}

func (DailySummary) TableName() string { return "daily_summaries" }
