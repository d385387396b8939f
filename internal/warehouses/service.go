package warehouses

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/logistar/turnover-backend/pkg/config"
	"github.com/logistar/turnover-backend/pkg/db/models"
	pkgerrors "github.com/logistar/turnover-backend/pkg/errors"
	"github.com/logistar/turnover-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Capacity is one warehouse with its directory entry and, when configured,
// its storage ceiling.
type Capacity struct {
	WarehouseID      string     `json:"warehouse_id"`
	Name             string     `json:"name,omitempty"`
	Timezone         string     `json:"timezone,omitempty"`
	TotalCapacityCBM *float64   `json:"total_capacity_cbm,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// UpsertCapacityDTO is the PUT payload.
type UpsertCapacityDTO struct {
	WarehouseID      string  `json:"warehouse_id" validate:"required"`
	TotalCapacityCBM float64 `json:"total_capacity_cbm" validate:"gte=0"`
}

// ServiceParams configure the warehouse service.
type ServiceParams struct {
	Logger    *logger.Logger
	DB        *gorm.DB
	Directory map[string]config.WarehouseInfo
}

// Service maintains warehouse capacities. The warehouse directory itself is
// static configuration; only the capacity figures live in the database.
type Service struct {
	logg      *logger.Logger
	db        *gorm.DB
	directory map[string]config.WarehouseInfo
}

// NewService builds a warehouse service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	directory := params.Directory
	if directory == nil {
		directory = map[string]config.WarehouseInfo{}
	}
	return &Service{logg: params.Logger, db: params.DB, directory: directory}, nil
}

// ListCapacities merges the configured directory with the stored capacity
// rows. Warehouses appear when they are configured, when they have a stored
// capacity, or both.
func (s *Service) ListCapacities(ctx context.Context) ([]Capacity, error) {
	var stored []models.WarehouseCapacity
	if err := s.db.WithContext(ctx).Find(&stored).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load warehouse capacities")
	}

	merged := map[string]Capacity{}
	for id, info := range s.directory {
		merged[id] = Capacity{WarehouseID: id, Name: info.Name, Timezone: info.Timezone}
	}
	for _, row := range stored {
		entry, ok := merged[row.WarehouseID]
		if !ok {
			entry = Capacity{WarehouseID: row.WarehouseID}
		}
		capacity := row.TotalCapacityCBM
		updated := row.UpdatedAt
		entry.TotalCapacityCBM = &capacity
		entry.UpdatedAt = &updated
		merged[row.WarehouseID] = entry
	}

	capacities := make([]Capacity, 0, len(merged))
	for _, entry := range merged {
		capacities = append(capacities, entry)
	}
	sort.Slice(capacities, func(i, j int) bool {
		return capacities[i].WarehouseID < capacities[j].WarehouseID
	})
	return capacities, nil
}

var capacityConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "warehouse_id"}},
	DoUpdates: clause.AssignmentColumns([]string{"total_capacity_cbm", "updated_at"}),
}

// UpsertCapacity creates or replaces one warehouse's capacity figure.
func (s *Service) UpsertCapacity(ctx context.Context, dto UpsertCapacityDTO) (*Capacity, error) {
	if dto.WarehouseID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse_id is required")
	}
	if dto.TotalCapacityCBM < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total_capacity_cbm must not be negative")
	}

	row := models.WarehouseCapacity{
		WarehouseID:      dto.WarehouseID,
		TotalCapacityCBM: dto.TotalCapacityCBM,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Clauses(capacityConflict).Create(&row).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert warehouse capacity")
	}

	capacity := row.TotalCapacityCBM
	updated := row.UpdatedAt
	entry := Capacity{
		WarehouseID:      row.WarehouseID,
		TotalCapacityCBM: &capacity,
		UpdatedAt:        &updated,
	}
	if info, ok := s.directory[row.WarehouseID]; ok {
		entry.Name = info.Name
		entry.Timezone = info.Timezone
	}
	return &entry, nil
}
