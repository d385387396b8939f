package routes

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/logistar/turnover-backend/api/controllers"
	"github.com/logistar/turnover-backend/api/middleware"
	"github.com/logistar/turnover-backend/internal/analytics"
	"github.com/logistar/turnover-backend/internal/ingest"
	"github.com/logistar/turnover-backend/internal/warehouses"
	"github.com/logistar/turnover-backend/pkg/config"
	"github.com/logistar/turnover-backend/pkg/enums"
	"github.com/logistar/turnover-backend/pkg/logger"
)

// Pinger is the health-check surface of the backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IngestService starts sync runs and lists their audit rows.
type IngestService interface {
	StartIngestion(ctx context.Context, window ingest.IngestionWindow) (uint, error)
	StartProductSync(ctx context.Context) (uint, error)
	ListRuns(ctx context.Context, limit int) ([]ingest.RunSummary, error)
}

// RollupService rebuilds the daily summary table.
type RollupService interface {
	Rebuild(ctx context.Context) error
}

// ImportService ingests exported workbooks.
type ImportService interface {
	ImportWorkbook(ctx context.Context, r io.Reader, replace bool) (int, error)
}

// AnalyticsService answers the read-side queries.
type AnalyticsService interface {
	Volume(ctx context.Context, f analytics.Filter, granularity enums.Granularity) (analytics.VolumeSeries, error)
	Turnover(ctx context.Context, f analytics.Filter) (analytics.TurnoverReport, error)
	Customers(ctx context.Context, f analytics.Filter) ([]analytics.CustomerRow, error)
	Warehouses(ctx context.Context, f analytics.Filter) ([]analytics.WarehouseRow, error)
	SKUs(ctx context.Context, f analytics.Filter, sortBy analytics.SKUSort, limit int) ([]analytics.SKURow, error)
	Dashboard(ctx context.Context, f analytics.Filter) (analytics.DashboardSummary, error)
}

// WarehouseService maintains warehouse capacities.
type WarehouseService interface {
	ListCapacities(ctx context.Context) ([]warehouses.Capacity, error)
	UpsertCapacity(ctx context.Context, dto warehouses.UpsertCapacityDTO) (*warehouses.Capacity, error)
}

// Params bundle the router's dependencies.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         Pinger
	Redis      Pinger
	Ingest     IngestService
	Rollup     RollupService
	Importer   ImportService
	Analytics  AnalyticsService
	Warehouses WarehouseService
	Registry   prometheus.Gatherer
}

// NewRouter assembles the HTTP surface.
func NewRouter(params Params) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.DB, params.Redis))
	})

	if params.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/sync", func(r chi.Router) {
			r.Post("/inventory-logs", controllers.StartInventorySync(params.Ingest, logg))
			r.Post("/products", controllers.StartProductSync(params.Ingest, logg))
			r.Post("/rollup", controllers.RebuildRollup(params.Rollup, logg))
			r.Post("/excel-upload", controllers.UploadWorkbook(params.Importer, logg))
			r.Get("/runs", controllers.ListSyncRuns(params.Ingest, logg))
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/volume", controllers.AnalyticsVolume(params.Analytics, logg))
			r.Get("/turnover", controllers.AnalyticsTurnover(params.Analytics, logg))
			r.Get("/customers", controllers.AnalyticsCustomers(params.Analytics, logg))
			r.Get("/warehouses", controllers.AnalyticsWarehouses(params.Analytics, logg))
			r.Get("/skus", controllers.AnalyticsSKUs(params.Analytics, logg))
			r.Get("/dashboard", controllers.AnalyticsDashboard(params.Analytics, logg))
		})

		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/capacities", controllers.WarehouseCapacityList(params.Warehouses, logg))
			r.Put("/capacities", controllers.WarehouseCapacityUpsert(params.Warehouses, logg))
		})
	})

	return r
}
