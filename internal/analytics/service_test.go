package analytics

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/logistar/turnover-backend/pkg/db/models"
	"github.com/logistar/turnover-backend/pkg/enums"
	"github.com/logistar/turnover-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupAnalyticsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{`
CREATE TABLE IF NOT EXISTS daily_summaries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  summary_date DATE NOT NULL,
  warehouse_id TEXT NOT NULL,
  direction TEXT NOT NULL,
  customer_code TEXT NOT NULL,
  event_count INTEGER NOT NULL DEFAULT 0,
  total_qty INTEGER NOT NULL DEFAULT 0,
  total_volume_cbm REAL NOT NULL DEFAULT 0,
  unique_skus INTEGER NOT NULL DEFAULT 0
);`, `
CREATE TABLE IF NOT EXISTS inventory_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  log_id TEXT NOT NULL,
  product_sku TEXT NOT NULL,
  reference_no TEXT,
  warehouse_id TEXT,
  customer_code TEXT,
  quantity INTEGER NOT NULL DEFAULT 0,
  direction TEXT NOT NULL DEFAULT 'other',
  operation_time DATETIME,
  display_time DATETIME,
  operation_type TEXT,
  inventory_type TEXT,
  change_status TEXT,
  operator TEXT,
  synced_at DATETIME,
  UNIQUE (log_id, product_sku, operation_time)
);`, `
CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sku TEXT NOT NULL UNIQUE,
  reference_no TEXT,
  customer_code TEXT,
  name TEXT,
  length_cm REAL,
  width_cm REAL,
  height_cm REAL,
  weight_kg REAL,
  declared_value REAL,
  size_unit TEXT,
  weight_unit TEXT,
  volume_cbm REAL,
  synced_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS warehouse_capacities (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  warehouse_id TEXT NOT NULL UNIQUE,
  total_capacity_cbm REAL NOT NULL DEFAULT 0,
  updated_at DATETIME
);`}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	for _, table := range []string{"daily_summaries", "inventory_events", "products", "warehouse_capacities"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func cacheTestKey(query string, filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := query
	for _, k := range keys {
		key += "|" + k + "=" + filters[k]
	}
	return key
}

func jsonMarshal(value any) []byte {
	raw, _ := json.Marshal(value)
	return raw
}

func jsonUnmarshal(raw []byte, dest any) bool {
	return json.Unmarshal(raw, dest) == nil
}

type fakeQueryCache struct {
	entries map[string][]byte
	hits    int
	sets    int
}

func newFakeQueryCache() *fakeQueryCache {
	return &fakeQueryCache{entries: map[string][]byte{}}
}

func (f *fakeQueryCache) Get(_ context.Context, query string, filters map[string]string, dest any) bool {
	raw, ok := f.entries[cacheTestKey(query, filters)]
	if !ok {
		return false
	}
	f.hits++
	return jsonUnmarshal(raw, dest)
}

func (f *fakeQueryCache) Set(_ context.Context, query string, filters map[string]string, value any) {
	f.sets++
	f.entries[cacheTestKey(query, filters)] = jsonMarshal(value)
}

func testAnalyticsService(t *testing.T, db *gorm.DB, cache queryCache, names map[string]string) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:         logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repo:           NewRepository(db),
		Cache:          cache,
		WarehouseNames: names,
	})
	require.NoError(t, err)
	return svc
}

func summaryRow(date time.Time, warehouse, direction, customer string, events, qty int64, volume float64) models.DailySummary {
	return models.DailySummary{
		SummaryDate:    date,
		WarehouseID:    warehouse,
		Direction:      direction,
		CustomerCode:   customer,
		EventCount:     events,
		TotalQty:       qty,
		TotalVolumeCBM: volume,
		UniqueSKUs:     1,
	}
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestVolumeSeriesBucketsByGranularity(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)
	ctx := context.Background()

	// two march days in different ISO weeks plus one april day
	rows := []models.DailySummary{
		summaryRow(day(3), "9", "inbound", "ACME", 2, 10, 0.06),
		summaryRow(day(3), "9", "outbound", "ACME", 1, 4, 0.024),
		summaryRow(day(10), "9", "inbound", "ACME", 1, 5, 0.03),
		summaryRow(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "9", "inbound", "ACME", 1, 2, 0.012),
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	daily, err := svc.Volume(ctx, Filter{}, enums.GranularityDay)
	require.NoError(t, err)
	require.Len(t, daily.Points, 3)
	assert.Equal(t, "2025-03-03", daily.Points[0].Bucket)
	assert.Equal(t, int64(10), daily.Points[0].InboundQty)
	assert.Equal(t, int64(4), daily.Points[0].OutboundQty)

	weekly, err := svc.Volume(ctx, Filter{}, enums.GranularityWeek)
	require.NoError(t, err)
	require.Len(t, weekly.Points, 3)
	assert.Equal(t, "2025-W10", weekly.Points[0].Bucket)
	assert.Equal(t, "2025-W11", weekly.Points[1].Bucket)

	monthly, err := svc.Volume(ctx, Filter{}, enums.GranularityMonth)
	require.NoError(t, err)
	require.Len(t, monthly.Points, 2)
	assert.Equal(t, "2025-03", monthly.Points[0].Bucket)
	assert.Equal(t, int64(15), monthly.Points[0].InboundQty)
	assert.Equal(t, "2025-04", monthly.Points[1].Bucket)
}

func TestVolumeSeriesCountsEventsAndDistinctSKUs(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)
	ctx := context.Background()

	// day(3) and day(4) share ISO week 2025-W10
	rows := []models.DailySummary{
		{SummaryDate: day(3), WarehouseID: "9", Direction: "inbound", CustomerCode: "ACME", EventCount: 2, TotalQty: 10, TotalVolumeCBM: 0.06, UniqueSKUs: 2},
		{SummaryDate: day(4), WarehouseID: "9", Direction: "inbound", CustomerCode: "ACME", EventCount: 1, TotalQty: 5, TotalVolumeCBM: 0.03, UniqueSKUs: 1},
		{SummaryDate: day(4), WarehouseID: "9", Direction: "outbound", CustomerCode: "ACME", EventCount: 1, TotalQty: 4, TotalVolumeCBM: 0.024, UniqueSKUs: 1},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	// SKU-A moves on both days; the weekly bucket must count it once
	events := []struct {
		logID, sku, direction string
		at                    time.Time
	}{
		{"L-1", "SKU-A", "inbound", day(3).Add(9 * time.Hour)},
		{"L-2", "SKU-B", "inbound", day(3).Add(10 * time.Hour)},
		{"L-3", "SKU-A", "inbound", day(4).Add(11 * time.Hour)},
		{"L-4", "SKU-A", "outbound", day(4).Add(12 * time.Hour)},
	}
	for _, e := range events {
		at := e.at
		require.NoError(t, db.Create(&models.MovementEvent{
			LogID: e.logID, ProductSKU: e.sku, WarehouseID: "9", CustomerCode: "ACME",
			Quantity: 1, Direction: enums.Direction(e.direction),
			OperationTime: &at, DisplayTime: &at,
		}).Error)
	}

	daily, err := svc.Volume(ctx, Filter{}, enums.GranularityDay)
	require.NoError(t, err)
	require.Len(t, daily.Points, 2)
	assert.Equal(t, int64(2), daily.Points[0].InboundEvents)
	assert.Equal(t, int64(2), daily.Points[0].InboundSKUs)
	assert.Equal(t, int64(1), daily.Points[1].OutboundEvents)
	assert.Equal(t, int64(1), daily.Points[1].OutboundSKUs)

	weekly, err := svc.Volume(ctx, Filter{}, enums.GranularityWeek)
	require.NoError(t, err)
	require.Len(t, weekly.Points, 1)
	point := weekly.Points[0]
	assert.Equal(t, int64(3), point.InboundEvents)
	assert.Equal(t, int64(1), point.OutboundEvents)
	assert.Equal(t, int64(2), point.InboundSKUs, "SKU-A moving on two days counts once per week")
	assert.Equal(t, int64(1), point.OutboundSKUs)
}

func TestVolumeSeriesRejectsUnknownGranularity(t *testing.T) {
	svc := testAnalyticsService(t, setupAnalyticsTestDB(t), nil, nil)

	_, err := svc.Volume(context.Background(), Filter{}, enums.Granularity("hourly"))
	assert.Error(t, err)
}

func TestInvertedRangeYieldsEmptyResult(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)
	ctx := context.Background()

	row := summaryRow(day(1), "9", "inbound", "ACME", 1, 10, 0.06)
	require.NoError(t, db.Create(&row).Error)

	from := day(10)
	to := day(1)
	f := Filter{From: &from, To: &to}

	series, err := svc.Volume(ctx, f, enums.GranularityDay)
	require.NoError(t, err)
	assert.Empty(t, series.Points)

	customers, err := svc.Customers(ctx, f)
	require.NoError(t, err)
	assert.Empty(t, customers)

	report, err := svc.Turnover(ctx, f)
	require.NoError(t, err)
	assert.Zero(t, report.TurnoverRate)
}

func TestTurnoverWithZeroHistory(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)

	// 100 cbm in, 60 cbm out, nothing before the window:
	// beginning 0, ending 40, average 20, rate 60/20 = 3
	in := summaryRow(day(5), "9", "inbound", "ACME", 10, 1000, 100)
	out := summaryRow(day(20), "9", "outbound", "ACME", 6, 600, 60)
	require.NoError(t, db.Create(&in).Error)
	require.NoError(t, db.Create(&out).Error)

	from := day(1)
	to := day(31)
	report, err := svc.Turnover(context.Background(), Filter{From: &from, To: &to})
	require.NoError(t, err)

	assert.InDelta(t, 100, report.InboundVolumeCBM, 1e-9)
	assert.InDelta(t, 60, report.OutboundVolumeCBM, 1e-9)
	assert.Zero(t, report.BeginningVolumeCBM)
	assert.InDelta(t, 40, report.EndingVolumeCBM, 1e-9)
	assert.InDelta(t, 20, report.AverageVolumeCBM, 1e-9)
	assert.InDelta(t, 3.0, report.TurnoverRate, 1e-9)
}

func TestTurnoverUsesCumulativeHistory(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)

	// 50 cbm already on hand before march
	prior := summaryRow(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), "9", "inbound", "ACME", 5, 500, 50)
	in := summaryRow(day(5), "9", "inbound", "ACME", 10, 1000, 100)
	out := summaryRow(day(20), "9", "outbound", "ACME", 6, 600, 60)
	for _, row := range []models.DailySummary{prior, in, out} {
		r := row
		require.NoError(t, db.Create(&r).Error)
	}

	from := day(1)
	to := day(31)
	report, err := svc.Turnover(context.Background(), Filter{From: &from, To: &to})
	require.NoError(t, err)

	assert.InDelta(t, 50, report.BeginningVolumeCBM, 1e-9)
	assert.InDelta(t, 90, report.EndingVolumeCBM, 1e-9)
	assert.InDelta(t, 70, report.AverageVolumeCBM, 1e-9)
	assert.InDelta(t, 60.0/70.0, report.TurnoverRate, 1e-9)
}

func TestTurnoverBalancedFlowStillTurns(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)

	// inbound equals outbound with no prior history: average inventory is
	// zero, but outbound movement happened, so the rate must not be zero
	in := summaryRow(day(5), "9", "inbound", "ACME", 5, 500, 50)
	out := summaryRow(day(20), "9", "outbound", "ACME", 5, 500, 50)
	require.NoError(t, db.Create(&in).Error)
	require.NoError(t, db.Create(&out).Error)

	from := day(1)
	to := day(31)
	report, err := svc.Turnover(context.Background(), Filter{From: &from, To: &to})
	require.NoError(t, err)

	assert.Zero(t, report.AverageVolumeCBM)
	assert.InEpsilon(t, 50/averageEpsilon, report.TurnoverRate, 1e-9)
}

func TestTurnoverWithNoMovementHasZeroRate(t *testing.T) {
	svc := testAnalyticsService(t, setupAnalyticsTestDB(t), nil, nil)

	report, err := svc.Turnover(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Zero(t, report.TurnoverRate)
}

func TestFilterBoundsCoverWholeDays(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)
	ctx := context.Background()

	row := summaryRow(day(3), "9", "inbound", "ACME", 1, 10, 0.06)
	require.NoError(t, db.Create(&row).Error)
	at := day(3).Add(9 * time.Hour)
	require.NoError(t, db.Create(&models.MovementEvent{
		LogID: "L-1", ProductSKU: "SKU-A", WarehouseID: "9", CustomerCode: "ACME",
		Quantity: 10, Direction: enums.DirectionInbound,
		OperationTime: &at, DisplayTime: &at,
	}).Error)

	// the rollup is a date table; intra-day bounds widen to the whole day
	// on the raw table too, so both answer the same question
	from := day(3).Add(12 * time.Hour)
	to := day(3).Add(13 * time.Hour)
	f := Filter{From: &from, To: &to}

	series, err := svc.Volume(ctx, f, enums.GranularityDay)
	require.NoError(t, err)
	require.Len(t, series.Points, 1)
	assert.Equal(t, int64(10), series.Points[0].InboundQty)

	summary, err := svc.Dashboard(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.ActiveSKUs)
}

func TestCustomersSortedByOutboundQty(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)

	rows := []models.DailySummary{
		summaryRow(day(1), "9", "outbound", "SLOW", 1, 5, 0.01),
		summaryRow(day(1), "9", "outbound", "BUSY", 3, 50, 0.1),
		summaryRow(day(2), "9", "inbound", "BUSY", 2, 30, 0.06),
		summaryRow(day(2), "9", "inbound", "QUIET", 1, 8, 0.02),
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	customers, err := svc.Customers(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, customers, 3)
	assert.Equal(t, "BUSY", customers[0].CustomerCode)
	assert.Equal(t, int64(50), customers[0].OutboundQty)
	assert.Equal(t, int64(30), customers[0].InboundQty)
	assert.Equal(t, "SLOW", customers[1].CustomerCode)
	assert.Equal(t, "QUIET", customers[2].CustomerCode)
	assert.Zero(t, customers[2].OutboundQty)
}

func TestWarehousesJoinCapacityAndUtilization(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, map[string]string{"9": "LAX-1"})

	rows := []models.DailySummary{
		summaryRow(day(1), "9", "inbound", "ACME", 2, 100, 80),
		summaryRow(day(2), "9", "outbound", "ACME", 1, 40, 30),
		summaryRow(day(1), "12", "inbound", "ACME", 1, 10, 5),
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	require.NoError(t, db.Create(&models.WarehouseCapacity{WarehouseID: "9", TotalCapacityCBM: 200}).Error)

	warehouses, err := svc.Warehouses(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, warehouses, 2)

	first := warehouses[1] // ordered by warehouse_id: "12" then "9"
	assert.Equal(t, "9", first.WarehouseID)
	assert.Equal(t, "LAX-1", first.Name)
	require.NotNil(t, first.CapacityCBM)
	assert.InDelta(t, 200, *first.CapacityCBM, 1e-9)
	require.NotNil(t, first.UtilizationPct)
	assert.InDelta(t, 25, *first.UtilizationPct, 1e-9, "net 50 cbm of 200 cbm capacity")

	uncapped := warehouses[0]
	assert.Equal(t, "12", uncapped.WarehouseID)
	assert.Nil(t, uncapped.CapacityCBM)
	assert.Nil(t, uncapped.UtilizationPct)
}

func TestBreakdownsCountEventsAndUniqueSKUs(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)
	ctx := context.Background()

	rows := []models.DailySummary{
		summaryRow(day(1), "9", "inbound", "ACME", 2, 20, 0.1),
		summaryRow(day(1), "9", "outbound", "ACME", 1, 5, 0.02),
		summaryRow(day(2), "12", "inbound", "UNKNOWN", 1, 3, 0.01),
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	events := []struct {
		logID, sku, warehouse, customer, direction string
	}{
		{"L-1", "SKU-A", "9", "ACME", "inbound"},
		{"L-2", "SKU-B", "9", "ACME", "inbound"},
		{"L-3", "SKU-A", "9", "ACME", "outbound"},
		{"L-4", "SKU-C", "12", "", "inbound"},
	}
	for i, e := range events {
		at := day(1).Add(time.Duration(i) * time.Hour)
		require.NoError(t, db.Create(&models.MovementEvent{
			LogID: e.logID, ProductSKU: e.sku, WarehouseID: e.warehouse, CustomerCode: e.customer,
			Quantity: 1, Direction: enums.Direction(e.direction),
			OperationTime: &at, DisplayTime: &at,
		}).Error)
	}

	customers, err := svc.Customers(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "ACME", customers[0].CustomerCode)
	assert.Equal(t, int64(2), customers[0].InboundEvents)
	assert.Equal(t, int64(1), customers[0].OutboundEvents)
	assert.Equal(t, int64(2), customers[0].UniqueSKUs, "SKU-A moving both ways counts once")
	assert.Equal(t, "UNKNOWN", customers[1].CustomerCode)
	assert.Equal(t, int64(1), customers[1].UniqueSKUs, "blank customer codes fold into the UNKNOWN bucket")

	warehouses, err := svc.Warehouses(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, warehouses, 2)
	assert.Equal(t, "12", warehouses[0].WarehouseID)
	assert.Equal(t, int64(1), warehouses[0].InboundEvents)
	assert.Equal(t, int64(1), warehouses[0].UniqueSKUs)
	assert.Equal(t, "9", warehouses[1].WarehouseID)
	assert.Equal(t, int64(2), warehouses[1].InboundEvents)
	assert.Equal(t, int64(1), warehouses[1].OutboundEvents)
	assert.Equal(t, int64(2), warehouses[1].UniqueSKUs)
}

func TestSKUBreakdownRanksAndLimits(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)
	ctx := context.Background()

	volume := 0.01
	require.NoError(t, db.Create(&models.Product{SKU: "SKU-A", Name: "Widget", VolumeCBM: &volume}).Error)

	events := []models.MovementEvent{
		{LogID: "L-1", ProductSKU: "SKU-A", WarehouseID: "9", CustomerCode: "ACME", Quantity: 30, Direction: enums.DirectionInbound},
		{LogID: "L-2", ProductSKU: "SKU-A", WarehouseID: "9", CustomerCode: "ACME", Quantity: 12, Direction: enums.DirectionOutbound},
		{LogID: "L-3", ProductSKU: "SKU-B", WarehouseID: "9", CustomerCode: "", Quantity: 50, Direction: enums.DirectionOutbound},
		{LogID: "L-4", ProductSKU: "SKU-C", WarehouseID: "9", CustomerCode: "ACME", Quantity: 99, Direction: enums.DirectionOther},
	}
	for i := range events {
		ts := day(1).Add(time.Duration(i) * time.Hour)
		events[i].OperationTime = &ts
		events[i].DisplayTime = &ts
		require.NoError(t, db.Create(&events[i]).Error)
	}

	rows, err := svc.SKUs(ctx, Filter{}, SKUSortOutboundQty, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "direction 'other' stays out of the breakdown")

	top := rows[0]
	assert.Equal(t, "SKU-B", top.ProductSKU)
	assert.Equal(t, "UNKNOWN", top.CustomerCode)
	assert.Equal(t, int64(50), top.OutboundQty)
	assert.Equal(t, int64(-50), top.NetChange)
	assert.Zero(t, top.OutboundVolumeCBM, "no catalog row means zero volume")

	second := rows[1]
	assert.Equal(t, "SKU-A", second.ProductSKU)
	assert.Equal(t, "Widget", second.ProductName)
	assert.Equal(t, int64(18), second.NetChange)
	assert.InDelta(t, 0.3, second.InboundVolumeCBM, 1e-9)

	limited, err := svc.SKUs(ctx, Filter{}, SKUSortInboundQty, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "SKU-A", limited[0].ProductSKU)

	_, err = svc.SKUs(ctx, Filter{}, SKUSort("sneaky;DROP"), 10)
	assert.Error(t, err)
}

func TestDashboardSummary(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	svc := testAnalyticsService(t, db, nil, nil)
	ctx := context.Background()

	rows := []models.DailySummary{
		summaryRow(day(1), "9", "inbound", "ACME", 2, 100, 0.6),
		summaryRow(day(2), "9", "outbound", "ACME", 1, 60, 0.36),
		summaryRow(day(3), "12", "inbound", "GLOBEX", 1, 10, 0.06),
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}
	ts := day(1)
	require.NoError(t, db.Create(&models.MovementEvent{
		LogID: "L-1", ProductSKU: "SKU-A", WarehouseID: "9",
		Quantity: 100, Direction: enums.DirectionInbound,
		OperationTime: &ts, DisplayTime: &ts,
	}).Error)
	require.NoError(t, db.Create(&models.Product{SKU: "SKU-A"}).Error)
	require.NoError(t, db.Create(&models.Product{SKU: "SKU-Z"}).Error)

	summary, err := svc.Dashboard(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.InboundEvents)
	assert.Equal(t, int64(110), summary.InboundQty)
	assert.Equal(t, int64(60), summary.OutboundQty)
	assert.Equal(t, int64(2), summary.Customers)
	assert.Equal(t, int64(2), summary.Warehouses)
	assert.Equal(t, int64(1), summary.ActiveSKUs)
	assert.Equal(t, int64(2), summary.CatalogSize)
}

func TestRollupQueriesUseTheCache(t *testing.T) {
	db := setupAnalyticsTestDB(t)
	cache := newFakeQueryCache()
	svc := testAnalyticsService(t, db, cache, nil)
	ctx := context.Background()

	row := summaryRow(day(1), "9", "inbound", "ACME", 1, 10, 0.06)
	require.NoError(t, db.Create(&row).Error)

	first, err := svc.Dashboard(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Zero(t, cache.hits)

	// the second call must be served from the cache even though the table
	// changed underneath it
	require.NoError(t, db.Exec("DELETE FROM daily_summaries").Error)
	second, err := svc.Dashboard(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first, second)
}
