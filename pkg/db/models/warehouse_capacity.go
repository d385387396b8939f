package models

import "time"

// WarehouseCapacity stores the operator-maintained storage ceiling used for
// utilization reporting.
type WarehouseCapacity struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement"`

	WarehouseID      string  `gorm:"column:warehouse_id;not null;uniqueIndex"`
	TotalCapacityCBM float64 `gorm:"column:total_capacity_cbm;not null;default:0"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (WarehouseCapacity) TableName() string { return "warehouse_capacities" }
