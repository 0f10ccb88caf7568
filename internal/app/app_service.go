package app

import (
	"context"

	"warehouse-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type appService struct {
	pool      *pgxpool.Pool
	locations core.LocationService
	stock     core.StockService
	movements core.MovementService
	delivery  core.DeliveryService
	reports   core.ReportingService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	locations core.LocationService,
	stock core.StockService,
	movements core.MovementService,
	delivery core.DeliveryService,
	reports core.ReportingService,
) ApplicationService {
	return &appService{
		pool:      pool,
		locations: locations,
		stock:     stock,
		movements: movements,
		delivery:  delivery,
		reports:   reports,
	}
}

func (s *appService) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *appService) ListWarehouses(ctx context.Context) ([]core.Location, error) {
	return s.locations.ListWarehouses(ctx)
}

func (s *appService) ListChildren(ctx context.Context, parentID uuid.UUID) ([]core.Location, error) {
	return s.locations.ListChildren(ctx, parentID)
}

func (s *appService) GetLocation(ctx context.Context, id uuid.UUID) (*core.Location, error) {
	return s.locations.GetLocation(ctx, id)
}

func (s *appService) CreateWarehouse(ctx context.Context, req WarehouseRequest) (*core.Location, error) {
	return s.locations.CreateWarehouse(ctx, req.Name, req.Code, req.Address, req.Description)
}

func (s *appService) UpdateWarehouse(ctx context.Context, id uuid.UUID, req WarehouseRequest) (*core.Location, error) {
	return s.locations.UpdateWarehouse(ctx, id, req.Name, req.Code, req.Address, req.Description)
}

func (s *appService) CreateRackGroup(ctx context.Context, req RackGroupRequest) (*core.Location, error) {
	return s.locations.CreateRackGroup(ctx, req.WarehouseID, req.Name, req.Code, req.Description)
}

func (s *appService) UpdateRackGroup(ctx context.Context, id uuid.UUID, req RackGroupRequest) (*core.Location, error) {
	return s.locations.UpdateRackGroup(ctx, id, req.Name, req.Code, req.Description)
}

func (s *appService) CreateRackLevel(ctx context.Context, req RackLevelRequest) (*core.Location, error) {
	return s.locations.CreateRackLevel(ctx, req.RackGroupID, req.LevelNumber, req.Name)
}

func (s *appService) UpdateRackLevel(ctx context.Context, id uuid.UUID, req RackLevelRequest) (*core.Location, error) {
	return s.locations.UpdateRackLevel(ctx, id, req.LevelNumber, req.Name)
}

func (s *appService) CreateRackSlot(ctx context.Context, req RackSlotRequest) (*core.Location, error) {
	return s.locations.CreateRackSlot(ctx, req.RackLevelID, req.SlotNumber, req.Name)
}

func (s *appService) UpdateRackSlot(ctx context.Context, id uuid.UUID, req RackSlotRequest) (*core.Location, error) {
	return s.locations.UpdateRackSlot(ctx, id, req.SlotNumber, req.Name)
}

func (s *appService) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	return s.locations.DeleteLocation(ctx, id)
}

func (s *appService) StockIn(ctx context.Context, req StockInRequest) (*core.StockRecord, error) {
	return s.stock.StockIn(ctx, core.StockInInput{
		ProductID:   req.ProductID,
		VariantID:   req.VariantID,
		VariantName: req.VariantName,
		VariantSKU:  req.VariantSKU,
		LocationID:  req.LocationID,
		Quantity:    req.Quantity,
		Reference:   req.Reference,
		Note:        req.Note,
	})
}

func (s *appService) TransferStock(ctx context.Context, req TransferRequest) ([]core.Movement, error) {
	return s.stock.Transfer(ctx, core.TransferInput{
		ProductID:        req.ProductID,
		VariantID:        req.VariantID,
		SourceLocationID: req.SourceLocationID,
		TargetLocationID: req.TargetLocationID,
		Quantity:         req.Quantity,
		Note:             req.Note,
	})
}

func (s *appService) AdjustStock(ctx context.Context, recordID uuid.UUID, newQty decimal.Decimal, note string) (*core.StockRecord, error) {
	return s.stock.AdjustQuantity(ctx, recordID, newQty, note)
}

func (s *appService) DeleteStockRecord(ctx context.Context, id uuid.UUID) error {
	return s.stock.DeleteStockRecord(ctx, id)
}

func (s *appService) ListStock(ctx context.Context, warehouseID *uuid.UUID) ([]core.StockItem, error) {
	return s.stock.ListStock(ctx, warehouseID)
}

func (s *appService) ListMovements(ctx context.Context, q core.MovementQuery) ([]core.Movement, error) {
	return s.movements.ListMovements(ctx, q)
}

func (s *appService) CreateQuotation(ctx context.Context, req CreateQuotationRequest) (*core.Quotation, error) {
	lines := make([]core.QuotationLineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = core.QuotationLineInput{
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			VariantName: l.VariantName,
			Quantity:    l.Quantity,
		}
	}
	return s.delivery.CreateQuotation(ctx, core.CreateQuotationInput{
		Number:       req.Number,
		CustomerName: req.CustomerName,
		Lines:        lines,
	})
}

func (s *appService) ListQuotations(ctx context.Context) ([]core.Quotation, error) {
	return s.delivery.ListQuotations(ctx)
}

func (s *appService) GetQuotation(ctx context.Context, id uuid.UUID) (*core.Quotation, error) {
	return s.delivery.GetQuotation(ctx, id)
}

func (s *appService) SetOfferStatus(ctx context.Context, id uuid.UUID, status core.OfferStatus) (*core.Quotation, error) {
	return s.delivery.SetOfferStatus(ctx, id, status)
}

func (s *appService) Deliver(ctx context.Context, id uuid.UUID) (*core.Quotation, error) {
	return s.delivery.Deliver(ctx, id)
}

func (s *appService) RevertDelivery(ctx context.Context, id uuid.UUID) (*core.Quotation, error) {
	return s.delivery.RevertDelivery(ctx, id)
}

func (s *appService) ReportByWarehouse(ctx context.Context) ([]core.WarehouseReport, error) {
	return s.reports.ByWarehouse(ctx)
}

func (s *appService) ReportByProduct(ctx context.Context) ([]core.ProductReport, error) {
	return s.reports.ByProduct(ctx)
}

func (s *appService) LowStock(ctx context.Context) ([]core.LowStockEntry, error) {
	return s.reports.LowStock(ctx)
}

func (s *appService) SetMinStock(ctx context.Context, productID, variantID string, minStock decimal.Decimal) (*core.MinStockThreshold, error) {
	return s.reports.SetMinStock(ctx, productID, variantID, minStock)
}

func (s *appService) ListMinStock(ctx context.Context) ([]core.MinStockThreshold, error) {
	return s.reports.ListMinStock(ctx)
}
