package wms

import (
	"encoding/json"
	"strconv"
	"strings"
)

// envelope is the fixed response shape of the vendor web-service endpoint.
// Every service call answers with ask/message/totalCount/data.
type envelope struct {
	Ask        string            `json:"ask"`
	Message    string            `json:"message"`
	TotalCount flexInt           `json:"totalCount"`
	Data       []json.RawMessage `json:"data"`
}

// flexInt tolerates the vendor returning counts as either numbers or strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	trimmed := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if trimmed == "" || trimmed == "null" {
		*f = 0
		return nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(value)
	return nil
}

// RawInventoryLog is one unparsed movement row as the WMS returns it. All
// fields arrive as strings; the normalizer is responsible for coercion.
type RawInventoryLog struct {
	LogID         string `json:"id"`
	ReferenceNo   string `json:"referenceNo"`
	ProductSKU    string `json:"productBarcode"`
	WarehouseID   string `json:"warehouseId"`
	CustomerCode  string `json:"customerCode"`
	Quantity      string `json:"quantity"`
	OperationType string `json:"operationType"`
	InventoryType string `json:"inventoryType"`
	ChangeStatus  string `json:"changeStatus"`
	Operator      string `json:"operator"`
	OperationTime string `json:"operationTime"`
}

// RawProduct is one unparsed catalog row from getProductList.
type RawProduct struct {
	SKU           string `json:"productBarcode"`
	ReferenceNo   string `json:"referenceNo"`
	CustomerCode  string `json:"customerCode"`
	Name          string `json:"productName"`
	Length        string `json:"productLength"`
	Width         string `json:"productWidth"`
	Height        string `json:"productHeight"`
	Weight        string `json:"productWeight"`
	DeclaredValue string `json:"productDeclaredValue"`
	SizeUnit      string `json:"sizeUnit"`
	WeightUnit    string `json:"weightUnit"`
}
