package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/logistar/turnover-backend/internal/analytics"
	"github.com/logistar/turnover-backend/internal/ingest"
	"github.com/logistar/turnover-backend/internal/warehouses"
	"github.com/logistar/turnover-backend/pkg/config"
	"github.com/logistar/turnover-backend/pkg/enums"
	pkgerrors "github.com/logistar/turnover-backend/pkg/errors"
	"github.com/logistar/turnover-backend/pkg/logger"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubIngest struct {
	lastWindow ingest.IngestionWindow
}

func (s *stubIngest) StartIngestion(_ context.Context, window ingest.IngestionWindow) (uint, error) {
	s.lastWindow = window
	return 7, nil
}

func (s *stubIngest) StartProductSync(context.Context) (uint, error) { return 8, nil }

func (s *stubIngest) ListRuns(context.Context, int) ([]ingest.RunSummary, error) {
	return []ingest.RunSummary{{ID: 7, SyncType: "inventory_log", Status: "success"}}, nil
}

type stubRollup struct {
	calls int
}

func (s *stubRollup) Rebuild(context.Context) error {
	s.calls++
	return nil
}

type stubImporter struct{}

func (stubImporter) ImportWorkbook(context.Context, io.Reader, bool) (int, error) { return 3, nil }

type stubAnalytics struct{}

func (stubAnalytics) Volume(context.Context, analytics.Filter, enums.Granularity) (analytics.VolumeSeries, error) {
	return analytics.VolumeSeries{Granularity: enums.GranularityDay, Points: []analytics.VolumePoint{}}, nil
}

func (stubAnalytics) Turnover(context.Context, analytics.Filter) (analytics.TurnoverReport, error) {
	return analytics.TurnoverReport{TurnoverRate: 3}, nil
}

func (stubAnalytics) Customers(context.Context, analytics.Filter) ([]analytics.CustomerRow, error) {
	return []analytics.CustomerRow{}, nil
}

func (stubAnalytics) Warehouses(context.Context, analytics.Filter) ([]analytics.WarehouseRow, error) {
	return []analytics.WarehouseRow{}, nil
}

func (stubAnalytics) SKUs(_ context.Context, _ analytics.Filter, sortBy analytics.SKUSort, _ int) ([]analytics.SKURow, error) {
	if sortBy != "" && !sortBy.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bad sort")
	}
	return []analytics.SKURow{}, nil
}

func (stubAnalytics) Dashboard(context.Context, analytics.Filter) (analytics.DashboardSummary, error) {
	return analytics.DashboardSummary{}, nil
}

type stubWarehouses struct{}

func (stubWarehouses) ListCapacities(context.Context) ([]warehouses.Capacity, error) {
	return []warehouses.Capacity{}, nil
}

func (stubWarehouses) UpsertCapacity(_ context.Context, dto warehouses.UpsertCapacityDTO) (*warehouses.Capacity, error) {
	return &warehouses.Capacity{WarehouseID: dto.WarehouseID, TotalCapacityCBM: &dto.TotalCapacityCBM}, nil
}

func testRouter(t *testing.T, ing *stubIngest, rollup *stubRollup, dbErr error) http.Handler {
	t.Helper()
	return NewRouter(Params{
		Config:     &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:     logger.New(logger.Options{ServiceName: "router-test"}),
		DB:         stubPinger{err: dbErr},
		Redis:      stubPinger{},
		Ingest:     ing,
		Rollup:     rollup,
		Importer:   stubImporter{},
		Analytics:  stubAnalytics{},
		Warehouses: stubWarehouses{},
	})
}

func TestHealthEndpoints(t *testing.T) {
	router := testRouter(t, &stubIngest{}, &stubRollup{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", w.Code)
	}
	if got := w.Header().Get("X-Logistar-Env"); got != "test" {
		t.Fatalf("expected env header test got %q", got)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", w.Code)
	}
}

func TestReadinessFailsWhenDatabaseIsDown(t *testing.T) {
	router := testRouter(t, &stubIngest{}, &stubRollup{}, context.DeadlineExceeded)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", w.Code)
	}
}

func TestStartInventorySyncRoute(t *testing.T) {
	ing := &stubIngest{}
	router := testRouter(t, ing, &stubRollup{}, nil)

	body := `{"from":"2025-01-01","to":"2025-03-01 23:59:59","warehouse_id":"9"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sync/inventory-logs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Data struct {
			RunID uint `json:"run_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.RunID != 7 {
		t.Fatalf("expected run id 7 got %d", envelope.Data.RunID)
	}
	if ing.lastWindow.WarehouseID != "9" {
		t.Fatalf("warehouse filter not forwarded")
	}
	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if !ing.lastWindow.From.Equal(want) {
		t.Fatalf("expected window start %v got %v", want, ing.lastWindow.From)
	}
}

func TestStartInventorySyncRejectsMissingWindow(t *testing.T) {
	router := testRouter(t, &stubIngest{}, &stubRollup{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/inventory-logs", strings.NewReader(`{"from":"2025-01-01"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}

	// whitespace-only bounds satisfy the required tag but parse to nothing
	req = httptest.NewRequest(http.MethodPost, "/api/sync/inventory-logs", strings.NewReader(`{"from":"   ","to":"2025-03-01"}`))
	req.Header.Set("Content-Type", "application/json")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("whitespace bounds: expected 400 got %d", w.Code)
	}
}

func TestRollupRoute(t *testing.T) {
	rollup := &stubRollup{}
	router := testRouter(t, &stubIngest{}, rollup, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sync/rollup", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if rollup.calls != 1 {
		t.Fatalf("expected one rebuild, got %d", rollup.calls)
	}
}

func TestAnalyticsRoutes(t *testing.T) {
	router := testRouter(t, &stubIngest{}, &stubRollup{}, nil)

	for _, path := range []string{
		"/api/analytics/volume?granularity=week",
		"/api/analytics/turnover?from=2025-01-01&to=2025-03-01",
		"/api/analytics/customers",
		"/api/analytics/warehouses",
		"/api/analytics/skus?sort_by=inbound_qty&limit=5",
		"/api/analytics/dashboard",
		"/api/sync/runs?limit=10",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", path, w.Code, w.Body.String())
		}
	}
}

func TestAnalyticsRejectsBadTimestamp(t *testing.T) {
	router := testRouter(t, &stubIngest{}, &stubRollup{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analytics/turnover?from=yesterday", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
}

func TestWarehouseCapacityRoutes(t *testing.T) {
	router := testRouter(t, &stubIngest{}, &stubRollup{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/warehouses/capacities", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200 got %d", w.Code)
	}

	body := `{"warehouse_id":"9","total_capacity_cbm":1200}`
	req := httptest.NewRequest(http.MethodPut, "/api/warehouses/capacities", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: expected 200 got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodPut, "/api/warehouses/capacities", strings.NewReader(`{"total_capacity_cbm":-4}`))
	req.Header.Set("Content-Type", "application/json")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid upsert: expected 400 got %d", w.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := testRouter(t, &stubIngest{}, &stubRollup{}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", w.Code)
	}
}
