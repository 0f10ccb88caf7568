package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockRecord is the authoritative balance for one (product, variant) on one
// rack slot. Available quantity = Quantity - ReservedQuantity, never negative.
type StockRecord struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        string          `json:"product_id"`
	VariantID        string          `json:"variant_id,omitempty"`
	VariantName      string          `json:"variant_name,omitempty"`
	VariantSKU       string          `json:"variant_sku,omitempty"`
	LocationID       uuid.UUID       `json:"location_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReservedQuantity decimal.Decimal `json:"reserved_quantity"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (r *StockRecord) Available() decimal.Decimal {
	return r.Quantity.Sub(r.ReservedQuantity)
}

// StockItem is a StockRecord enriched for listings.
type StockItem struct {
	StockRecord
	FullAddress string          `json:"full_address"`
	Available   decimal.Decimal `json:"available"`
}

type MovementType string

const (
	MovementIn             MovementType = "IN"
	MovementTransfer       MovementType = "TRANSFER"
	MovementDeliveryOut    MovementType = "DELIVERY_OUT"
	MovementDeliveryRevert MovementType = "DELIVERY_REVERT"
	MovementAdjust         MovementType = "ADJUST"
)

// Movement is one immutable entry of the audit trail. Seq is the total
// order; CreatedAt is informational only and must not be used for ordering.
// Quantity is signed: positive for credits, negative for debits.
type Movement struct {
	ID               uuid.UUID       `json:"id"`
	Seq              int64           `json:"sequence"`
	Type             MovementType    `json:"movement_type"`
	ProductID        string          `json:"product_id"`
	VariantID        string          `json:"variant_id,omitempty"`
	VariantName      string          `json:"variant_name,omitempty"`
	VariantSKU       string          `json:"variant_sku,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	SourceLocationID *uuid.UUID      `json:"source_location_id,omitempty"`
	TargetLocationID *uuid.UUID      `json:"target_location_id,omitempty"`
	SourceAddress    string          `json:"source_address,omitempty"`
	TargetAddress    string          `json:"target_address,omitempty"`
	Reference        string          `json:"reference,omitempty"`
	Note             string          `json:"note,omitempty"`
	QuotationID      *uuid.UUID      `json:"quotation_id,omitempty"`
	TransferGroupID  *uuid.UUID      `json:"transfer_group_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
