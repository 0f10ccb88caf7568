package app

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WarehouseRequest is the input for creating or updating a warehouse.
type WarehouseRequest struct {
	Name        string
	Code        string
	Address     string
	Description string
}

// RackGroupRequest is the input for creating or updating a rack group.
// WarehouseID is ignored on update; rack groups do not move between warehouses.
type RackGroupRequest struct {
	WarehouseID uuid.UUID
	Name        string
	Code        string
	Description string
}

// RackLevelRequest is the input for creating or updating a rack level.
type RackLevelRequest struct {
	RackGroupID uuid.UUID
	LevelNumber int
	Name        string
}

// RackSlotRequest is the input for creating or updating a rack slot.
type RackSlotRequest struct {
	RackLevelID uuid.UUID
	SlotNumber  int
	Name        string
}

// StockInRequest is the input for crediting stock onto a rack slot.
type StockInRequest struct {
	ProductID   string
	VariantID   string
	VariantName string
	VariantSKU  string
	LocationID  uuid.UUID
	Quantity    decimal.Decimal
	Reference   string
	Note        string
}

// TransferRequest is the input for moving stock between two slots.
type TransferRequest struct {
	ProductID        string
	VariantID        string
	SourceLocationID uuid.UUID
	TargetLocationID uuid.UUID
	Quantity         decimal.Decimal
	Note             string
}

// CreateQuotationRequest is the minimal intake for the external sales record.
type CreateQuotationRequest struct {
	Number       string
	CustomerName string
	Lines        []QuotationLineInput
}

// QuotationLineInput is a single line within a CreateQuotationRequest.
type QuotationLineInput struct {
	ProductID   string
	VariantID   string
	VariantName string
	Quantity    decimal.Decimal
}
