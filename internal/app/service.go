package app

import (
	"context"

	"warehouse-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApplicationService is the single interface all adapters call. It decouples
// presentation from the ledger services. Implementations must contain no
// display logic of any kind.
type ApplicationService interface {
	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// ListWarehouses returns every warehouse root.
	ListWarehouses(ctx context.Context) ([]core.Location, error)

	// ListChildren returns the direct children of a location, ordered for display.
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]core.Location, error)

	GetLocation(ctx context.Context, id uuid.UUID) (*core.Location, error)

	CreateWarehouse(ctx context.Context, req WarehouseRequest) (*core.Location, error)
	UpdateWarehouse(ctx context.Context, id uuid.UUID, req WarehouseRequest) (*core.Location, error)
	CreateRackGroup(ctx context.Context, req RackGroupRequest) (*core.Location, error)
	UpdateRackGroup(ctx context.Context, id uuid.UUID, req RackGroupRequest) (*core.Location, error)
	CreateRackLevel(ctx context.Context, req RackLevelRequest) (*core.Location, error)
	UpdateRackLevel(ctx context.Context, id uuid.UUID, req RackLevelRequest) (*core.Location, error)
	CreateRackSlot(ctx context.Context, req RackSlotRequest) (*core.Location, error)
	UpdateRackSlot(ctx context.Context, id uuid.UUID, req RackSlotRequest) (*core.Location, error)

	// DeleteLocation removes a location and its subtree. Refused while any
	// descendant slot still holds stock.
	DeleteLocation(ctx context.Context, id uuid.UUID) error

	// StockIn credits quantity onto a rack slot.
	StockIn(ctx context.Context, req StockInRequest) (*core.StockRecord, error)

	// TransferStock moves quantity between two slots atomically.
	TransferStock(ctx context.Context, req TransferRequest) ([]core.Movement, error)

	// AdjustStock sets a record to a counted quantity.
	AdjustStock(ctx context.Context, recordID uuid.UUID, newQty decimal.Decimal, note string) (*core.StockRecord, error)

	// DeleteStockRecord removes an empty stock record.
	DeleteStockRecord(ctx context.Context, id uuid.UUID) error

	// ListStock returns stock records with resolved addresses, optionally
	// scoped to one warehouse.
	ListStock(ctx context.Context, warehouseID *uuid.UUID) ([]core.StockItem, error)

	// ListMovements returns the audit log, newest first.
	ListMovements(ctx context.Context, q core.MovementQuery) ([]core.Movement, error)

	CreateQuotation(ctx context.Context, req CreateQuotationRequest) (*core.Quotation, error)
	ListQuotations(ctx context.Context) ([]core.Quotation, error)
	GetQuotation(ctx context.Context, id uuid.UUID) (*core.Quotation, error)

	// SetOfferStatus moves a quotation's offer between pending, accepted and
	// rejected, reserving or releasing stock as it goes.
	SetOfferStatus(ctx context.Context, id uuid.UUID, status core.OfferStatus) (*core.Quotation, error)

	// Deliver debits the accepted quotation's line items from stock.
	Deliver(ctx context.Context, id uuid.UUID) (*core.Quotation, error)

	// RevertDelivery returns delivered stock to the slots it came from.
	RevertDelivery(ctx context.Context, id uuid.UUID) (*core.Quotation, error)

	ReportByWarehouse(ctx context.Context) ([]core.WarehouseReport, error)
	ReportByProduct(ctx context.Context) ([]core.ProductReport, error)
	LowStock(ctx context.Context) ([]core.LowStockEntry, error)
	SetMinStock(ctx context.Context, productID, variantID string, minStock decimal.Decimal) (*core.MinStockThreshold, error)
	ListMinStock(ctx context.Context) ([]core.MinStockThreshold, error)
}
