package controllers

import (
	"context"
	"net/http"

	"github.com/logistar/turnover-backend/api/responses"
	"github.com/logistar/turnover-backend/api/validators"
	"github.com/logistar/turnover-backend/internal/analytics"
	"github.com/logistar/turnover-backend/pkg/enums"
	"github.com/logistar/turnover-backend/pkg/logger"
)

type analyticsService interface {
	Volume(ctx context.Context, f analytics.Filter, granularity enums.Granularity) (analytics.VolumeSeries, error)
	Turnover(ctx context.Context, f analytics.Filter) (analytics.TurnoverReport, error)
	Customers(ctx context.Context, f analytics.Filter) ([]analytics.CustomerRow, error)
	Warehouses(ctx context.Context, f analytics.Filter) ([]analytics.WarehouseRow, error)
	SKUs(ctx context.Context, f analytics.Filter, sortBy analytics.SKUSort, limit int) ([]analytics.SKURow, error)
	Dashboard(ctx context.Context, f analytics.Filter) (analytics.DashboardSummary, error)
}

func parseFilter(r *http.Request) (analytics.Filter, error) {
	query := r.URL.Query()

	from, err := parseTimeParam(query.Get("from"))
	if err != nil {
		return analytics.Filter{}, err
	}
	to, err := parseTimeParam(query.Get("to"))
	if err != nil {
		return analytics.Filter{}, err
	}
	return analytics.Filter{
		From:         from,
		To:           to,
		WarehouseID:  query.Get("warehouse_id"),
		CustomerCode: query.Get("customer_code"),
	}, nil
}

// AnalyticsVolume serves the bucketed movement series.
func AnalyticsVolume(svc analyticsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		granularity := enums.Granularity(r.URL.Query().Get("granularity"))
		if granularity == "" {
			granularity = enums.GranularityDay
		}

		series, err := svc.Volume(ctx, filter, granularity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, series)
	}
}

// AnalyticsTurnover serves the inventory turnover report.
func AnalyticsTurnover(svc analyticsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		report, err := svc.Turnover(ctx, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// AnalyticsCustomers serves the per-customer breakdown.
func AnalyticsCustomers(svc analyticsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := svc.Customers(ctx, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AnalyticsWarehouses serves the per-warehouse breakdown with utilization.
func AnalyticsWarehouses(svc analyticsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rows, err := svc.Warehouses(ctx, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AnalyticsSKUs serves the per-SKU ranking from the raw movement table.
func AnalyticsSKUs(svc analyticsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		sortBy := analytics.SKUSort(r.URL.Query().Get("sort_by"))

		rows, err := svc.SKUs(ctx, filter, sortBy, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// AnalyticsDashboard serves the headline totals.
func AnalyticsDashboard(svc analyticsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		filter, err := parseFilter(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		summary, err := svc.Dashboard(ctx, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
