package analytics

import (
	"context"
	"time"

	"github.com/logistar/turnover-backend/pkg/db/models"
	"github.com/logistar/turnover-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository reads the rollup and raw movement tables. All aggregate queries
// except the SKU breakdown run against daily_summaries; the breakdown goes to
// inventory_events because its grain is below the rollup's.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to analytics reads.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DirectionTotals is one direction's aggregate over the rollup.
type DirectionTotals struct {
	Direction      string
	EventCount     int64
	TotalQty       int64
	TotalVolumeCBM float64
}

// dateOnly drops the intra-day part of a filter bound. Analytics filters
// operate at day resolution everywhere: summary_date is a date, and the raw
// queries widen their bounds to the same whole days so both tables answer
// the same question.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *Repository) rollupScope(ctx context.Context, f Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.DailySummary{})
	if f.From != nil {
		q = q.Where("summary_date >= ?", dateOnly(*f.From))
	}
	if f.To != nil {
		q = q.Where("summary_date <= ?", dateOnly(*f.To))
	}
	if f.WarehouseID != "" {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.CustomerCode != "" {
		q = q.Where("customer_code = ?", f.CustomerCode)
	}
	return q
}

// rawScope filters the raw movement table the way rollupScope filters the
// rollup: inbound and outbound rows only, bounds widened to whole days.
func (r *Repository) rawScope(ctx context.Context, f Filter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.MovementEvent{}).
		Where("direction IN ?", []string{string(enums.DirectionInbound), string(enums.DirectionOutbound)}).
		Where("display_time IS NOT NULL")
	if f.From != nil {
		q = q.Where("display_time >= ?", dateOnly(*f.From))
	}
	if f.To != nil {
		q = q.Where("display_time < ?", dateOnly(*f.To).AddDate(0, 0, 1))
	}
	if f.WarehouseID != "" {
		q = q.Where("warehouse_id = ?", f.WarehouseID)
	}
	if f.CustomerCode != "" {
		q = q.Where("customer_code = ?", f.CustomerCode)
	}
	return q
}

// DailyRows returns the filtered rollup rows ordered by date. Week and month
// bucketing happens in the service so the SQL stays dialect-neutral.
func (r *Repository) DailyRows(ctx context.Context, f Filter) ([]models.DailySummary, error) {
	var rows []models.DailySummary
	err := r.rollupScope(ctx, f).
		Order("summary_date ASC").
		Find(&rows).Error
	return rows, err
}

// Totals aggregates the filtered rollup per direction.
func (r *Repository) Totals(ctx context.Context, f Filter) (map[enums.Direction]DirectionTotals, error) {
	var rows []DirectionTotals
	err := r.rollupScope(ctx, f).
		Select("direction, SUM(event_count) AS event_count, SUM(total_qty) AS total_qty, SUM(total_volume_cbm) AS total_volume_cbm").
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[enums.Direction]DirectionTotals, len(rows))
	for _, row := range rows {
		totals[enums.Direction(row.Direction)] = row
	}
	return totals, nil
}

// TotalsBefore aggregates all rollup rows strictly before the given date,
// keeping the warehouse/customer dimensions of the filter. It reconstructs
// the inventory position at the start of a reporting window.
func (r *Repository) TotalsBefore(ctx context.Context, before time.Time, f Filter) (map[enums.Direction]DirectionTotals, error) {
	history := Filter{WarehouseID: f.WarehouseID, CustomerCode: f.CustomerCode}
	var rows []DirectionTotals
	err := r.rollupScope(ctx, history).
		Where("summary_date < ?", dateOnly(before)).
		Select("direction, SUM(event_count) AS event_count, SUM(total_qty) AS total_qty, SUM(total_volume_cbm) AS total_volume_cbm").
		Group("direction").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[enums.Direction]DirectionTotals, len(rows))
	for _, row := range rows {
		totals[enums.Direction(row.Direction)] = row
	}
	return totals, nil
}

// CustomerRows aggregates the filtered rollup per customer, busiest shippers
// first.
func (r *Repository) CustomerRows(ctx context.Context, f Filter) ([]CustomerRow, error) {
	var rows []CustomerRow
	err := r.rollupScope(ctx, f).
		Select(`customer_code,
			SUM(CASE WHEN direction = 'inbound' THEN event_count ELSE 0 END) AS inbound_events,
			SUM(CASE WHEN direction = 'outbound' THEN event_count ELSE 0 END) AS outbound_events,
			SUM(CASE WHEN direction = 'inbound' THEN total_qty ELSE 0 END) AS inbound_qty,
			SUM(CASE WHEN direction = 'outbound' THEN total_qty ELSE 0 END) AS outbound_qty,
			SUM(CASE WHEN direction = 'inbound' THEN total_volume_cbm ELSE 0 END) AS inbound_volume_cbm,
			SUM(CASE WHEN direction = 'outbound' THEN total_volume_cbm ELSE 0 END) AS outbound_volume_cbm`).
		Group("customer_code").
		Order("outbound_qty DESC").
		Scan(&rows).Error
	return rows, err
}

// WarehouseRows aggregates the filtered rollup per warehouse. Capacity and
// utilization are joined in by the service.
func (r *Repository) WarehouseRows(ctx context.Context, f Filter) ([]WarehouseRow, error) {
	var rows []WarehouseRow
	err := r.rollupScope(ctx, f).
		Select(`warehouse_id,
			SUM(CASE WHEN direction = 'inbound' THEN event_count ELSE 0 END) AS inbound_events,
			SUM(CASE WHEN direction = 'outbound' THEN event_count ELSE 0 END) AS outbound_events,
			SUM(CASE WHEN direction = 'inbound' THEN total_qty ELSE 0 END) AS inbound_qty,
			SUM(CASE WHEN direction = 'outbound' THEN total_qty ELSE 0 END) AS outbound_qty,
			SUM(CASE WHEN direction = 'inbound' THEN total_volume_cbm ELSE 0 END) AS inbound_volume_cbm,
			SUM(CASE WHEN direction = 'outbound' THEN total_volume_cbm ELSE 0 END) AS outbound_volume_cbm,
			COUNT(DISTINCT customer_code) AS customers`).
		Group("warehouse_id").
		Order("warehouse_id ASC").
		Scan(&rows).Error
	return rows, err
}

// NetVolumes returns each warehouse's all-time net stored volume (inbound
// minus outbound), independent of any reporting window. Stock on hand is
// cumulative, so utilization cannot honor a date filter.
func (r *Repository) NetVolumes(ctx context.Context) (map[string]float64, error) {
	var rows []struct {
		WarehouseID string
		NetVolume   float64
	}
	err := r.db.WithContext(ctx).Model(&models.DailySummary{}).
		Select("warehouse_id, SUM(CASE WHEN direction = 'inbound' THEN total_volume_cbm ELSE -total_volume_cbm END) AS net_volume").
		Group("warehouse_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	nets := make(map[string]float64, len(rows))
	for _, row := range rows {
		nets[row.WarehouseID] = row.NetVolume
	}
	return nets, nil
}

// Capacities loads the configured capacities keyed by warehouse id.
func (r *Repository) Capacities(ctx context.Context) (map[string]float64, error) {
	var rows []models.WarehouseCapacity
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	capacities := make(map[string]float64, len(rows))
	for _, row := range rows {
		capacities[row.WarehouseID] = row.TotalCapacityCBM
	}
	return capacities, nil
}

// SKURows aggregates the raw movement table per (SKU, customer). Volumes come
// from the product catalog's unit volume; SKUs without a catalog row
// contribute zero volume, same as the rollup.
func (r *Repository) SKURows(ctx context.Context, f Filter, sortBy SKUSort, limit int) ([]SKURow, error) {
	q := r.db.WithContext(ctx).
		Table("inventory_events e").
		Joins("LEFT JOIN products p ON e.product_sku = p.sku").
		Where("e.direction IN ?", []string{string(enums.DirectionInbound), string(enums.DirectionOutbound)}).
		Where("e.display_time IS NOT NULL")
	if f.From != nil {
		q = q.Where("e.display_time >= ?", dateOnly(*f.From))
	}
	if f.To != nil {
		q = q.Where("e.display_time < ?", dateOnly(*f.To).AddDate(0, 0, 1))
	}
	if f.WarehouseID != "" {
		q = q.Where("e.warehouse_id = ?", f.WarehouseID)
	}
	if f.CustomerCode != "" {
		q = q.Where("e.customer_code = ?", f.CustomerCode)
	}

	var rows []SKURow
	err := q.
		Select(`e.product_sku,
			COALESCE(NULLIF(e.customer_code, ''), 'UNKNOWN') AS customer_code,
			MAX(p.name) AS product_name,
			SUM(CASE WHEN e.direction = 'inbound' THEN e.quantity ELSE 0 END) AS inbound_qty,
			SUM(CASE WHEN e.direction = 'outbound' THEN e.quantity ELSE 0 END) AS outbound_qty,
			SUM(CASE WHEN e.direction = 'inbound' THEN e.quantity ELSE -e.quantity END) AS net_change,
			SUM(CASE WHEN e.direction = 'inbound' THEN e.quantity * COALESCE(p.volume_cbm, 0) ELSE 0 END) AS inbound_volume_cbm,
			SUM(CASE WHEN e.direction = 'outbound' THEN e.quantity * COALESCE(p.volume_cbm, 0) ELSE 0 END) AS outbound_volume_cbm`).
		Group("e.product_sku, COALESCE(NULLIF(e.customer_code, ''), 'UNKNOWN')").
		Order(string(sortBy) + " DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// ActiveSKUs counts distinct SKUs that moved inside the filter.
func (r *Repository) ActiveSKUs(ctx context.Context, f Filter) (int64, error) {
	var count int64
	err := r.rawScope(ctx, f).Distinct("product_sku").Count(&count).Error
	return count, err
}

// SKUMovement is one raw movement slice. Week and month buckets count their
// distinct SKUs from these rows because daily uniques cannot be summed.
type SKUMovement struct {
	DisplayTime time.Time
	Direction   string
	ProductSKU  string
}

// MovementSKUs returns the (display time, direction, SKU) slices of the
// filtered raw table.
func (r *Repository) MovementSKUs(ctx context.Context, f Filter) ([]SKUMovement, error) {
	var rows []SKUMovement
	err := r.rawScope(ctx, f).
		Select("display_time, direction, product_sku").
		Scan(&rows).Error
	return rows, err
}

// CustomerSKUCounts counts distinct SKUs per customer from the raw table,
// keyed with the same UNKNOWN sentinel the rollup uses for blank codes.
func (r *Repository) CustomerSKUCounts(ctx context.Context, f Filter) (map[string]int64, error) {
	var rows []struct {
		CustomerCode string
		UniqueSKUs   int64
	}
	err := r.rawScope(ctx, f).
		Select("COALESCE(NULLIF(customer_code, ''), 'UNKNOWN') AS customer_code, COUNT(DISTINCT product_sku) AS unique_skus").
		Group("COALESCE(NULLIF(customer_code, ''), 'UNKNOWN')").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.CustomerCode] = row.UniqueSKUs
	}
	return counts, nil
}

// WarehouseSKUCounts counts distinct SKUs per warehouse from the raw table.
func (r *Repository) WarehouseSKUCounts(ctx context.Context, f Filter) (map[string]int64, error) {
	var rows []struct {
		WarehouseID string
		UniqueSKUs  int64
	}
	err := r.rawScope(ctx, f).
		Select("warehouse_id, COUNT(DISTINCT product_sku) AS unique_skus").
		Group("warehouse_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.WarehouseID] = row.UniqueSKUs
	}
	return counts, nil
}

// CatalogSize counts the product catalog.
func (r *Repository) CatalogSize(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}

// DistinctDimensions counts customers and warehouses seen in the filtered
// rollup.
func (r *Repository) DistinctDimensions(ctx context.Context, f Filter) (customers, warehouses int64, err error) {
	if err = r.rollupScope(ctx, f).Distinct("customer_code").Count(&customers).Error; err != nil {
		return 0, 0, err
	}
	if err = r.rollupScope(ctx, f).Distinct("warehouse_id").Count(&warehouses).Error; err != nil {
		return 0, 0, err
	}
	return customers, warehouses, nil
}
