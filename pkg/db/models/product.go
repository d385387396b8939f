package models

import "time"

// Product mirrors the WMS product catalog. Dimensions arrive in centimeters,
// weight in kilograms. VolumeCBM is derived at ingest time and is nil when any
// dimension is missing upstream.
type Product struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement"`

	SKU          string `gorm:"column:sku;not null;uniqueIndex"`
	ReferenceNo  string `gorm:"column:reference_no"`
	CustomerCode string `gorm:"column:customer_code;index"`
	Name         string `gorm:"column:name"`

	Length *float64 `gorm:"column:length_cm"`
	Width  *float64 `gorm:"column:width_cm"`
	Height *float64 `gorm:"column:height_cm"`
	Weight *float64 `gorm:"column:weight_kg"`

	DeclaredValue *float64 `gorm:"column:declared_value"`
	SizeUnit      string   `gorm:"column:size_unit"`
	WeightUnit    string   `gorm:"column:weight_unit"`

	VolumeCBM *float64 `gorm:"column:volume_cbm"`

	SyncedAt time.Time `gorm:"column:synced_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
