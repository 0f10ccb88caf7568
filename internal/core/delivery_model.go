package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

type DeliveryStatus string

const (
	DeliveryNone DeliveryStatus = "none"
	DeliveryDone DeliveryStatus = "delivered"
)

// Quotation is the external document stock is promised against. The ledger
// only tracks the fields that drive reservations and deliveries.
type Quotation struct {
	ID             uuid.UUID       `json:"id"`
	Number         string          `json:"number"`
	CustomerName   string          `json:"customer_name"`
	OfferStatus    OfferStatus     `json:"offer_status"`
	DeliveryStatus DeliveryStatus  `json:"delivery_status"`
	Lines          []QuotationLine `json:"line_items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (q *Quotation) Delivered() bool {
	return q.DeliveryStatus == DeliveryDone
}

type QuotationLine struct {
	ID          uuid.UUID       `json:"id"`
	QuotationID uuid.UUID       `json:"quotation_id"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	VariantName string          `json:"variant_name,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// reservation is one earmark row tying a quotation to a stock record.
type reservation struct {
	ID            uuid.UUID
	QuotationID   uuid.UUID
	StockRecordID uuid.UUID
	Quantity      decimal.Decimal
}
