package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/logistar/turnover-backend/internal/wms"
	"github.com/logistar/turnover-backend/pkg/db/models"
	"github.com/logistar/turnover-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

const timestampLayout = "2006-01-02 15:04:05"

// Operation-type labels the WMS uses for stock-increasing and
// stock-decreasing movements. Anything outside both sets is classified as
// "other" and kept out of the rollup.
var (
	inboundLabels = map[string]struct{}{
		"receiving":        {},
		"inbound shipment": {},
		"transfer in":      {},
		"return receipt":   {},
		"adjustment in":    {},
	}
	outboundLabels = map[string]struct{}{
		"order shipment":    {},
		"outbound shipment": {},
		"transfer out":      {},
		"adjustment out":    {},
	}
)

// Normalizer converts raw WMS rows into persistable models. It owns the
// timezone handling: operation times are parsed in the source zone and
// shifted to the warehouse-local zone for display and rollup bucketing.
type Normalizer struct {
	source *time.Location
	zones  map[string]*time.Location
}

// NewNormalizer builds a normalizer. zones maps warehouse ids to their local
// timezones; warehouses without an entry keep the source zone.
func NewNormalizer(source *time.Location, zones map[string]*time.Location) *Normalizer {
	if source == nil {
		source = time.UTC
	}
	if zones == nil {
		zones = map[string]*time.Location{}
	}
	return &Normalizer{source: source, zones: zones}
}

// Event normalizes one movement row. Parsing is tolerant: unparseable
// quantities become zero, unparseable timestamps become nil, and unknown
// operation types fall through to the "other" direction.
func (n *Normalizer) Event(raw wms.RawInventoryLog) models.MovementEvent {
	operationTime := parseTimestamp(raw.OperationTime, n.source)

	var displayTime *time.Time
	if operationTime != nil {
		local := operationTime.In(n.zoneFor(raw.WarehouseID))
		displayTime = &local
	}

	return models.MovementEvent{
		LogID:         strings.TrimSpace(raw.LogID),
		ProductSKU:    strings.TrimSpace(raw.ProductSKU),
		ReferenceNo:   strings.TrimSpace(raw.ReferenceNo),
		WarehouseID:   strings.TrimSpace(raw.WarehouseID),
		CustomerCode:  strings.TrimSpace(raw.CustomerCode),
		Quantity:      parseQuantity(raw.Quantity),
		Direction:     classifyDirection(raw.OperationType),
		OperationTime: operationTime,
		DisplayTime:   displayTime,
		OperationType: strings.TrimSpace(raw.OperationType),
		InventoryType: strings.TrimSpace(raw.InventoryType),
		ChangeStatus:  strings.TrimSpace(raw.ChangeStatus),
		Operator:      strings.TrimSpace(raw.Operator),
	}
}

// Product normalizes one catalog row and derives the unit volume in cubic
// meters from centimeter dimensions, rounded to six decimals. The volume is
// nil when any dimension is missing.
func (n *Normalizer) Product(raw wms.RawProduct) models.Product {
	length := parseFloat(raw.Length)
	width := parseFloat(raw.Width)
	height := parseFloat(raw.Height)

	return models.Product{
		SKU:           strings.TrimSpace(raw.SKU),
		ReferenceNo:   strings.TrimSpace(raw.ReferenceNo),
		CustomerCode:  strings.TrimSpace(raw.CustomerCode),
		Name:          strings.TrimSpace(raw.Name),
		Length:        length,
		Width:         width,
		Height:        height,
		Weight:        parseFloat(raw.Weight),
		DeclaredValue: parseFloat(raw.DeclaredValue),
		SizeUnit:      strings.TrimSpace(raw.SizeUnit),
		WeightUnit:    strings.TrimSpace(raw.WeightUnit),
		VolumeCBM:     volumeCBM(length, width, height),
	}
}

func (n *Normalizer) zoneFor(warehouseID string) *time.Location {
	if zone, ok := n.zones[warehouseID]; ok && zone != nil {
		return zone
	}
	return n.source
}

func classifyDirection(operationType string) enums.Direction {
	label := strings.ToLower(strings.TrimSpace(operationType))
	if _, ok := inboundLabels[label]; ok {
		return enums.DirectionInbound
	}
	if _, ok := outboundLabels[label]; ok {
		return enums.DirectionOutbound
	}
	return enums.DirectionOther
}

// parseTimestamp returns nil for empty values and for the vendor's
// "0000-00-00 ..." placeholder timestamps.
func parseTimestamp(value string, loc *time.Location) *time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.HasPrefix(trimmed, "0000") {
		return nil
	}
	parsed, err := time.ParseInLocation(timestampLayout, trimmed, loc)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseQuantity(value string) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	if qty, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return qty
	}
	// some feeds serialize quantities as decimals
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return int64(f)
	}
	return 0
}

func parseFloat(value string) *float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// volumeCBM computes length*width*height in cm^3 scaled to cubic meters.
// decimal keeps the six-decimal rounding exact across platforms.
func volumeCBM(length, width, height *float64) *float64 {
	if length == nil || width == nil || height == nil {
		return nil
	}
	volume := decimal.NewFromFloat(*length).
		Mul(decimal.NewFromFloat(*width)).
		Mul(decimal.NewFromFloat(*height)).
		Div(decimal.NewFromInt(1_000_000)).
		Round(6)
	result, _ := volume.Float64()
	return &result
}
