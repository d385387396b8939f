package controllers

import (
	"context"
	"net/http"

	"github.com/logistar/turnover-backend/api/responses"
	"github.com/logistar/turnover-backend/api/validators"
	"github.com/logistar/turnover-backend/internal/warehouses"
	"github.com/logistar/turnover-backend/pkg/logger"
)

type warehouseService interface {
	ListCapacities(ctx context.Context) ([]warehouses.Capacity, error)
	UpsertCapacity(ctx context.Context, dto warehouses.UpsertCapacityDTO) (*warehouses.Capacity, error)
}

// WarehouseCapacityList returns every known warehouse with its capacity.
func WarehouseCapacityList(svc warehouseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		capacities, err := svc.ListCapacities(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, capacities)
	}
}

// WarehouseCapacityUpsert creates or replaces one warehouse's capacity.
func WarehouseCapacityUpsert(svc warehouseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var dto warehouses.UpsertCapacityDTO
		if err := validators.DecodeJSONBody(r, &dto); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		capacity, err := svc.UpsertCapacity(ctx, dto)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, capacity)
	}
}
