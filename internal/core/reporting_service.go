package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReportingService aggregates the ledger for dashboards. Reports are plain
// reads; they never take locks and never fail on an empty ledger.
type ReportingService interface {
	ByWarehouse(ctx context.Context) ([]WarehouseReport, error)
	ByProduct(ctx context.Context) ([]ProductReport, error)
	LowStock(ctx context.Context) ([]LowStockEntry, error)

	SetMinStock(ctx context.Context, productID, variantID string, minStock decimal.Decimal) (*MinStockThreshold, error)
	ListMinStock(ctx context.Context) ([]MinStockThreshold, error)
}

type WarehouseReport struct {
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name"`
	ItemCount     int64           `json:"item_count"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalReserved decimal.Decimal `json:"total_reserved"`
}

type ProductReport struct {
	ProductID      string          `json:"product_id"`
	VariantID      string          `json:"variant_id,omitempty"`
	VariantName    string          `json:"variant_name,omitempty"`
	LocationsCount int64           `json:"locations_count"`
	TotalQuantity  decimal.Decimal `json:"total_quantity"`
	TotalReserved  decimal.Decimal `json:"total_reserved"`
	Available      decimal.Decimal `json:"available"`
	MinStock       decimal.Decimal `json:"min_stock"`
	IsLowStock     bool            `json:"is_low_stock"`
}

type LowStockEntry struct {
	ProductID     string          `json:"product_id"`
	VariantID     string          `json:"variant_id,omitempty"`
	VariantName   string          `json:"variant_name,omitempty"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	MinStock      decimal.Decimal `json:"min_stock"`
	Shortage      decimal.Decimal `json:"shortage"`
}

type MinStockThreshold struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	MinStock  decimal.Decimal `json:"min_stock"`
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

// warehouseOfCTE maps every location to the warehouse at its root.
const warehouseOfCTE = `
	WITH RECURSIVE roots AS (
		SELECT id, id AS warehouse_id FROM locations WHERE parent_id IS NULL
		UNION ALL
		SELECT l.id, r.warehouse_id FROM locations l JOIN roots r ON l.parent_id = r.id
	)`

func (s *reportingService) ByWarehouse(ctx context.Context) ([]WarehouseReport, error) {
	rows, err := s.pool.Query(ctx, warehouseOfCTE+`
		SELECT w.id, w.name,
			COUNT(sr.id),
			COALESCE(SUM(sr.quantity), 0),
			COALESCE(SUM(sr.reserved_quantity), 0)
		FROM locations w
		LEFT JOIN roots r ON r.warehouse_id = w.id
		LEFT JOIN stock_records sr ON sr.location_id = r.id
		WHERE w.parent_id IS NULL
		GROUP BY w.id, w.name
		ORDER BY w.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouse report: %w", err)
	}
	defer rows.Close()

	reports := []WarehouseReport{}
	for rows.Next() {
		var r WarehouseReport
		if err := rows.Scan(&r.WarehouseID, &r.WarehouseName, &r.ItemCount, &r.TotalQuantity, &r.TotalReserved); err != nil {
			return nil, fmt.Errorf("failed to scan warehouse report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *reportingService) ByProduct(ctx context.Context) ([]ProductReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sr.product_id, sr.variant_id, MAX(sr.variant_name),
			COUNT(DISTINCT sr.location_id),
			SUM(sr.quantity),
			SUM(sr.reserved_quantity),
			COALESCE(MAX(t.min_stock), 0)
		FROM stock_records sr
		LEFT JOIN min_stock_thresholds t
			ON t.product_id = sr.product_id AND t.variant_id = sr.variant_id
		GROUP BY sr.product_id, sr.variant_id
		ORDER BY sr.product_id, sr.variant_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query product report: %w", err)
	}
	defer rows.Close()

	reports := []ProductReport{}
	for rows.Next() {
		var r ProductReport
		if err := rows.Scan(&r.ProductID, &r.VariantID, &r.VariantName,
			&r.LocationsCount, &r.TotalQuantity, &r.TotalReserved, &r.MinStock); err != nil {
			return nil, fmt.Errorf("failed to scan product report: %w", err)
		}
		r.Available = r.TotalQuantity.Sub(r.TotalReserved)
		r.IsLowStock = r.MinStock.Sign() > 0 && r.TotalQuantity.LessThan(r.MinStock)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *reportingService) LowStock(ctx context.Context) ([]LowStockEntry, error) {
	// Thresholds with no stock at all count as fully short.
	rows, err := s.pool.Query(ctx, `
		SELECT t.product_id, t.variant_id,
			COALESCE(MAX(sr.variant_name), ''),
			COALESCE(SUM(sr.quantity), 0),
			t.min_stock
		FROM min_stock_thresholds t
		LEFT JOIN stock_records sr
			ON sr.product_id = t.product_id AND sr.variant_id = t.variant_id
		WHERE t.min_stock > 0
		GROUP BY t.product_id, t.variant_id, t.min_stock
		HAVING COALESCE(SUM(sr.quantity), 0) < t.min_stock
		ORDER BY t.product_id, t.variant_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock report: %w", err)
	}
	defer rows.Close()

	entries := []LowStockEntry{}
	for rows.Next() {
		var e LowStockEntry
		if err := rows.Scan(&e.ProductID, &e.VariantID, &e.VariantName, &e.TotalQuantity, &e.MinStock); err != nil {
			return nil, fmt.Errorf("failed to scan low stock entry: %w", err)
		}
		e.Shortage = e.MinStock.Sub(e.TotalQuantity)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *reportingService) SetMinStock(ctx context.Context, productID, variantID string, minStock decimal.Decimal) (*MinStockThreshold, error) {
	if productID == "" {
		return nil, validationf("product_id is required")
	}
	if minStock.Sign() < 0 {
		return nil, validationf("min stock cannot be negative, got %s", minStock)
	}

	var t MinStockThreshold
	err := s.pool.QueryRow(ctx, `
		INSERT INTO min_stock_thresholds (product_id, variant_id, min_stock)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, variant_id) DO UPDATE SET min_stock = EXCLUDED.min_stock
		RETURNING product_id, variant_id, min_stock
	`, productID, variantID, minStock).Scan(&t.ProductID, &t.VariantID, &t.MinStock)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert min stock threshold: %w", err)
	}
	return &t, nil
}

func (s *reportingService) ListMinStock(ctx context.Context) ([]MinStockThreshold, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT product_id, variant_id, min_stock FROM min_stock_thresholds ORDER BY product_id, variant_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query min stock thresholds: %w", err)
	}
	defer rows.Close()

	thresholds := []MinStockThreshold{}
	for rows.Next() {
		var t MinStockThreshold
		if err := rows.Scan(&t.ProductID, &t.VariantID, &t.MinStock); err != nil {
			return nil, fmt.Errorf("failed to scan min stock threshold: %w", err)
		}
		thresholds = append(thresholds, t)
	}
	return thresholds, rows.Err()
}
