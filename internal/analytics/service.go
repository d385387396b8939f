package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/logistar/turnover-backend/pkg/db/models"
	"github.com/logistar/turnover-backend/pkg/enums"
	pkgerrors "github.com/logistar/turnover-backend/pkg/errors"
	"github.com/logistar/turnover-backend/pkg/logger"
	"github.com/logistar/turnover-backend/pkg/metrics"
	"github.com/logistar/turnover-backend/pkg/pagination"
)

// averageEpsilon floors the turnover denominator. Outbound movement against
// an empty or negative average inventory still yields a finite, positive rate.
const averageEpsilon = 1e-9

type repository interface {
	DailyRows(ctx context.Context, f Filter) ([]models.DailySummary, error)
	Totals(ctx context.Context, f Filter) (map[enums.Direction]DirectionTotals, error)
	TotalsBefore(ctx context.Context, before time.Time, f Filter) (map[enums.Direction]DirectionTotals, error)
	CustomerRows(ctx context.Context, f Filter) ([]CustomerRow, error)
	WarehouseRows(ctx context.Context, f Filter) ([]WarehouseRow, error)
	NetVolumes(ctx context.Context) (map[string]float64, error)
	Capacities(ctx context.Context) (map[string]float64, error)
	SKURows(ctx context.Context, f Filter, sortBy SKUSort, limit int) ([]SKURow, error)
	MovementSKUs(ctx context.Context, f Filter) ([]SKUMovement, error)
	CustomerSKUCounts(ctx context.Context, f Filter) (map[string]int64, error)
	WarehouseSKUCounts(ctx context.Context, f Filter) (map[string]int64, error)
	ActiveSKUs(ctx context.Context, f Filter) (int64, error)
	CatalogSize(ctx context.Context) (int64, error)
	DistinctDimensions(ctx context.Context, f Filter) (customers, warehouses int64, err error)
}

type queryCache interface {
	Get(ctx context.Context, query string, filters map[string]string, dest any) bool
	Set(ctx context.Context, query string, filters map[string]string, value any)
}

// ServiceParams configure the analytics service.
type ServiceParams struct {
	Logger         *logger.Logger
	Repo           repository
	Cache          queryCache
	Metrics        *metrics.SyncMetrics
	WarehouseNames map[string]string
}

// Service answers the read-side analytics queries. Rollup-backed queries run
// through the short-TTL cache; the SKU breakdown hits the raw table directly.
type Service struct {
	logg  *logger.Logger
	repo  repository
	cache queryCache
	met   *metrics.SyncMetrics
	names map[string]string
}

// NewService builds an analytics service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	names := params.WarehouseNames
	if names == nil {
		names = map[string]string{}
	}
	return &Service{
		logg:  params.Logger,
		repo:  params.Repo,
		cache: params.Cache,
		met:   params.Metrics,
		names: names,
	}, nil
}

// Volume returns the movement series bucketed by day, ISO week or month.
func (s *Service) Volume(ctx context.Context, f Filter, granularity enums.Granularity) (VolumeSeries, error) {
	if !granularity.Valid() {
		return VolumeSeries{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported granularity %q", granularity))
	}
	series := VolumeSeries{Granularity: granularity, Points: []VolumePoint{}}
	if f.inverted() {
		return series, nil
	}

	params := f.cacheParams()
	params["granularity"] = string(granularity)
	if s.cached(ctx, "volume_series", params, &series) {
		return series, nil
	}

	rows, err := s.repo.DailyRows(ctx, f)
	if err != nil {
		return VolumeSeries{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load volume series")
	}

	index := map[string]int{}
	for _, row := range rows {
		key := bucketKey(granularity, row.SummaryDate)
		i, ok := index[key]
		if !ok {
			i = len(series.Points)
			index[key] = i
			series.Points = append(series.Points, VolumePoint{Bucket: key})
		}
		point := &series.Points[i]
		switch enums.Direction(row.Direction) {
		case enums.DirectionInbound:
			point.InboundEvents += row.EventCount
			point.InboundQty += row.TotalQty
			point.InboundVolumeCBM += row.TotalVolumeCBM
			if granularity == enums.GranularityDay {
				point.InboundSKUs += row.UniqueSKUs
			}
		case enums.DirectionOutbound:
			point.OutboundEvents += row.EventCount
			point.OutboundQty += row.TotalQty
			point.OutboundVolumeCBM += row.TotalVolumeCBM
			if granularity == enums.GranularityDay {
				point.OutboundSKUs += row.UniqueSKUs
			}
		}
	}

	// day buckets take distinct SKUs straight from the rollup; wider
	// buckets cannot sum daily uniques, so they recount from the raw table
	if granularity != enums.GranularityDay {
		if err := s.countBucketSKUs(ctx, f, granularity, index, series.Points); err != nil {
			return VolumeSeries{}, err
		}
	}

	s.store(ctx, "volume_series", params, series)
	return series, nil
}

func (s *Service) countBucketSKUs(ctx context.Context, f Filter, granularity enums.Granularity, index map[string]int, points []VolumePoint) error {
	moves, err := s.repo.MovementSKUs(ctx, f)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load movement skus")
	}

	type skuKey struct {
		bucket    string
		direction string
		sku       string
	}
	seen := make(map[skuKey]struct{}, len(moves))
	for _, move := range moves {
		key := skuKey{bucket: bucketKey(granularity, move.DisplayTime), direction: move.Direction, sku: move.ProductSKU}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		i, ok := index[key.bucket]
		if !ok {
			continue
		}
		switch enums.Direction(move.Direction) {
		case enums.DirectionInbound:
			points[i].InboundSKUs++
		case enums.DirectionOutbound:
			points[i].OutboundSKUs++
		}
	}
	return nil
}

// Turnover relates outbound volume to the average inventory held across the
// window. Beginning inventory is the cumulative net movement before the
// window start, so a warehouse with no prior history starts from zero.
func (s *Service) Turnover(ctx context.Context, f Filter) (TurnoverReport, error) {
	var report TurnoverReport
	if f.inverted() {
		return report, nil
	}

	params := f.cacheParams()
	if s.cached(ctx, "turnover", params, &report) {
		return report, nil
	}

	totals, err := s.repo.Totals(ctx, f)
	if err != nil {
		return TurnoverReport{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load period totals")
	}
	report.InboundVolumeCBM = totals[enums.DirectionInbound].TotalVolumeCBM
	report.OutboundVolumeCBM = totals[enums.DirectionOutbound].TotalVolumeCBM

	if f.From != nil {
		history, err := s.repo.TotalsBefore(ctx, *f.From, f)
		if err != nil {
			return TurnoverReport{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load movement history")
		}
		report.BeginningVolumeCBM = history[enums.DirectionInbound].TotalVolumeCBM - history[enums.DirectionOutbound].TotalVolumeCBM
	}

	report.EndingVolumeCBM = report.BeginningVolumeCBM + report.InboundVolumeCBM - report.OutboundVolumeCBM
	report.AverageVolumeCBM = (report.BeginningVolumeCBM + report.EndingVolumeCBM) / 2
	average := report.AverageVolumeCBM
	if average < averageEpsilon {
		average = averageEpsilon
	}
	report.TurnoverRate = report.OutboundVolumeCBM / average

	s.store(ctx, "turnover", params, report)
	return report, nil
}

// Customers returns per-customer movement totals, busiest shippers first.
func (s *Service) Customers(ctx context.Context, f Filter) ([]CustomerRow, error) {
	rows := []CustomerRow{}
	if f.inverted() {
		return rows, nil
	}

	params := f.cacheParams()
	if s.cached(ctx, "customer_breakdown", params, &rows) {
		return rows, nil
	}

	rows, err := s.repo.CustomerRows(ctx, f)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer breakdown")
	}
	if rows == nil {
		rows = []CustomerRow{}
	}

	skus, err := s.repo.CustomerSKUCounts(ctx, f)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count customer skus")
	}
	for i := range rows {
		rows[i].UniqueSKUs = skus[rows[i].CustomerCode]
	}

	s.store(ctx, "customer_breakdown", params, rows)
	return rows, nil
}

// Warehouses returns per-warehouse movement totals with configured capacity
// and its utilization where a capacity row exists.
func (s *Service) Warehouses(ctx context.Context, f Filter) ([]WarehouseRow, error) {
	rows := []WarehouseRow{}
	if f.inverted() {
		return rows, nil
	}

	params := f.cacheParams()
	if s.cached(ctx, "warehouse_breakdown", params, &rows) {
		return rows, nil
	}

	rows, err := s.repo.WarehouseRows(ctx, f)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load warehouse breakdown")
	}
	if rows == nil {
		rows = []WarehouseRow{}
	}

	capacities, err := s.repo.Capacities(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load warehouse capacities")
	}
	nets, err := s.repo.NetVolumes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load warehouse net volumes")
	}
	skus, err := s.repo.WarehouseSKUCounts(ctx, f)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count warehouse skus")
	}

	for i := range rows {
		row := &rows[i]
		row.Name = s.names[row.WarehouseID]
		row.UniqueSKUs = skus[row.WarehouseID]
		capacity, ok := capacities[row.WarehouseID]
		if !ok || capacity <= 0 {
			continue
		}
		c := capacity
		row.CapacityCBM = &c
		utilization := nets[row.WarehouseID] / capacity * 100
		row.UtilizationPct = &utilization
	}

	s.store(ctx, "warehouse_breakdown", params, rows)
	return rows, nil
}

// SKUs ranks (SKU, customer) slices of the raw movement table. The query
// bypasses the cache: its grain is below the rollup's and results change with
// every ingestion.
func (s *Service) SKUs(ctx context.Context, f Filter, sortBy SKUSort, limit int) ([]SKURow, error) {
	if sortBy == "" {
		sortBy = SKUSortOutboundQty
	}
	if !sortBy.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported sort key %q", sortBy))
	}
	if f.inverted() {
		return []SKURow{}, nil
	}

	rows, err := s.repo.SKURows(ctx, f, sortBy, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sku breakdown")
	}
	if rows == nil {
		rows = []SKURow{}
	}
	return rows, nil
}

// Dashboard returns the headline totals for the period.
func (s *Service) Dashboard(ctx context.Context, f Filter) (DashboardSummary, error) {
	var summary DashboardSummary
	if f.inverted() {
		return summary, nil
	}

	params := f.cacheParams()
	if s.cached(ctx, "dashboard", params, &summary) {
		return summary, nil
	}

	totals, err := s.repo.Totals(ctx, f)
	if err != nil {
		return DashboardSummary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load dashboard totals")
	}
	summary.InboundEvents = totals[enums.DirectionInbound].EventCount
	summary.OutboundEvents = totals[enums.DirectionOutbound].EventCount
	summary.InboundQty = totals[enums.DirectionInbound].TotalQty
	summary.OutboundQty = totals[enums.DirectionOutbound].TotalQty
	summary.InboundVolumeCBM = totals[enums.DirectionInbound].TotalVolumeCBM
	summary.OutboundVolumeCBM = totals[enums.DirectionOutbound].TotalVolumeCBM

	customers, warehouses, err := s.repo.DistinctDimensions(ctx, f)
	if err != nil {
		return DashboardSummary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count dashboard dimensions")
	}
	summary.Customers = customers
	summary.Warehouses = warehouses

	if summary.ActiveSKUs, err = s.repo.ActiveSKUs(ctx, f); err != nil {
		return DashboardSummary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count active skus")
	}
	if summary.CatalogSize, err = s.repo.CatalogSize(ctx); err != nil {
		return DashboardSummary{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count catalog")
	}

	s.store(ctx, "dashboard", params, summary)
	return summary, nil
}

func (s *Service) cached(ctx context.Context, query string, params map[string]string, dest any) bool {
	if s.cache == nil {
		return false
	}
	if s.cache.Get(ctx, query, params, dest) {
		s.met.IncCacheHit()
		return true
	}
	s.met.IncCacheMiss()
	return false
}

func (s *Service) store(ctx context.Context, query string, params map[string]string, value any) {
	if s.cache == nil {
		return
	}
	s.cache.Set(ctx, query, params, value)
}

// bucketKey formats a date into its day, ISO-week or month bucket label.
func bucketKey(granularity enums.Granularity, date time.Time) string {
	switch granularity {
	case enums.GranularityWeek:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case enums.GranularityMonth:
		return date.Format("2006-01")
	default:
		return date.Format("2006-01-02")
	}
}
