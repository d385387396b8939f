package analytics

import (
	"time"

	"github.com/logistar/turnover-backend/pkg/enums"
)

// Filter bounds an analytics query. All fields are optional; an inverted
// range yields an empty result rather than an error.
type Filter struct {
	From         *time.Time
	To           *time.Time
	WarehouseID  string
	CustomerCode string
}

// inverted reports whether the range can never match anything.
func (f Filter) inverted() bool {
	return f.From != nil && f.To != nil && f.From.After(*f.To)
}

// cacheParams flattens the filter into cache-key parameters.
func (f Filter) cacheParams() map[string]string {
	params := map[string]string{}
	if f.From != nil {
		params["from"] = f.From.UTC().Format(time.RFC3339)
	}
	if f.To != nil {
		params["to"] = f.To.UTC().Format(time.RFC3339)
	}
	if f.WarehouseID != "" {
		params["warehouse_id"] = f.WarehouseID
	}
	if f.CustomerCode != "" {
		params["customer_code"] = f.CustomerCode
	}
	return params
}

// SKUSort selects the ranking column of the SKU breakdown.
type SKUSort string

const (
	SKUSortInboundQty  SKUSort = "inbound_qty"
	SKUSortOutboundQty SKUSort = "outbound_qty"
)

// Valid reports whether the sort key is one of the supported columns.
func (s SKUSort) Valid() bool {
	return s == SKUSortInboundQty || s == SKUSortOutboundQty
}

// VolumePoint is one bucket of the movement series. SKU counts are distinct
// within the bucket: day buckets take them from the rollup, week and month
// buckets recount from the raw table.
type VolumePoint struct {
	Bucket            string  `json:"bucket"`
	InboundEvents     int64   `json:"inbound_events"`
	OutboundEvents    int64   `json:"outbound_events"`
	InboundQty        int64   `json:"inbound_qty"`
	OutboundQty       int64   `json:"outbound_qty"`
	InboundVolumeCBM  float64 `json:"inbound_volume_cbm"`
	OutboundVolumeCBM float64 `json:"outbound_volume_cbm"`
	InboundSKUs       int64   `json:"inbound_skus"`
	OutboundSKUs      int64   `json:"outbound_skus"`
}

// VolumeSeries is the bucketed movement report.
type VolumeSeries struct {
	Granularity enums.Granularity `json:"granularity"`
	Points      []VolumePoint     `json:"points"`
}

// TurnoverReport relates outbound flow to average inventory over the period.
// All figures are volumes in cubic meters; beginning inventory is
// reconstructed from the cumulative movement history before the window.
type TurnoverReport struct {
	InboundVolumeCBM   float64 `json:"inbound_volume_cbm"`
	OutboundVolumeCBM  float64 `json:"outbound_volume_cbm"`
	BeginningVolumeCBM float64 `json:"beginning_volume_cbm"`
	EndingVolumeCBM    float64 `json:"ending_volume_cbm"`
	AverageVolumeCBM   float64 `json:"average_volume_cbm"`
	TurnoverRate       float64 `json:"turnover_rate"`
}

// CustomerRow is one customer's movement totals, ordered by outbound volume
// moved in the period.
type CustomerRow struct {
	CustomerCode      string  `json:"customer_code"`
	InboundEvents     int64   `json:"inbound_events"`
	OutboundEvents    int64   `json:"outbound_events"`
	InboundQty        int64   `json:"inbound_qty"`
	OutboundQty       int64   `json:"outbound_qty"`
	InboundVolumeCBM  float64 `json:"inbound_volume_cbm"`
	OutboundVolumeCBM float64 `json:"outbound_volume_cbm"`
	UniqueSKUs        int64   `json:"unique_skus"`
}

// WarehouseRow is one warehouse's movement totals. Capacity and utilization
// are present only when a capacity row is configured for the warehouse;
// utilization compares the all-time net stored volume against that capacity.
type WarehouseRow struct {
	WarehouseID       string   `json:"warehouse_id"`
	Name              string   `json:"name,omitempty"`
	InboundEvents     int64    `json:"inbound_events"`
	OutboundEvents    int64    `json:"outbound_events"`
	InboundQty        int64    `json:"inbound_qty"`
	OutboundQty       int64    `json:"outbound_qty"`
	InboundVolumeCBM  float64  `json:"inbound_volume_cbm"`
	OutboundVolumeCBM float64  `json:"outbound_volume_cbm"`
	Customers         int64    `json:"customers"`
	UniqueSKUs        int64    `json:"unique_skus"`
	CapacityCBM       *float64 `json:"capacity_cbm,omitempty"`
	UtilizationPct    *float64 `json:"utilization_pct,omitempty"`
}

// SKURow is one (SKU, customer) slice of the raw movement table.
type SKURow struct {
	ProductSKU        string  `json:"product_sku"`
	CustomerCode      string  `json:"customer_code"`
	ProductName       string  `json:"product_name,omitempty"`
	InboundQty        int64   `json:"inbound_qty"`
	OutboundQty       int64   `json:"outbound_qty"`
	NetChange         int64   `json:"net_change"`
	InboundVolumeCBM  float64 `json:"inbound_volume_cbm"`
	OutboundVolumeCBM float64 `json:"outbound_volume_cbm"`
}

// DashboardSummary is the headline card for the period.
type DashboardSummary struct {
	InboundEvents     int64   `json:"inbound_events"`
	OutboundEvents    int64   `json:"outbound_events"`
	InboundQty        int64   `json:"inbound_qty"`
	OutboundQty       int64   `json:"outbound_qty"`
	InboundVolumeCBM  float64 `json:"inbound_volume_cbm"`
	OutboundVolumeCBM float64 `json:"outbound_volume_cbm"`
	Customers         int64   `json:"customers"`
	Warehouses        int64   `json:"warehouses"`
	ActiveSKUs        int64   `json:"active_skus"`
	CatalogSize       int64   `json:"catalog_size"`
}
