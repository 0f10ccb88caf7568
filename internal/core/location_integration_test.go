package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"warehouse-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE stock_reservations, quotation_line_items, quotations,
			stock_movements, stock_records, min_stock_thresholds, locations
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}
	return pool
}

// seedHierarchy builds one warehouse with a single rack group and level
// holding n slots, and returns the warehouse id plus the slot ids in order.
func seedHierarchy(t *testing.T, ctx context.Context, svc core.LocationService, code string, n int) (uuid.UUID, []uuid.UUID) {
	t.Helper()
	warehouse, err := svc.CreateWarehouse(ctx, code+" Warehouse", code, "", "")
	if err != nil {
		t.Fatalf("CreateWarehouse failed: %v", err)
	}
	group, err := svc.CreateRackGroup(ctx, warehouse.ID, "Group A", "A", "")
	if err != nil {
		t.Fatalf("CreateRackGroup failed: %v", err)
	}
	level, err := svc.CreateRackLevel(ctx, group.ID, 1, "")
	if err != nil {
		t.Fatalf("CreateRackLevel failed: %v", err)
	}
	slots := make([]uuid.UUID, 0, n)
	for i := 1; i <= n; i++ {
		slot, err := svc.CreateRackSlot(ctx, level.ID, i, "")
		if err != nil {
			t.Fatalf("CreateRackSlot failed: %v", err)
		}
		slots = append(slots, slot.ID)
	}
	return warehouse.ID, slots
}

func TestLocation_HierarchyAndFullAddress(t *testing.T) {
	pool := setupTestDB(t)
	svc := core.NewLocationService(pool)
	ctx := context.Background()

	warehouse, err := svc.CreateWarehouse(ctx, "Pendik", "PND", "Istanbul", "")
	if err != nil {
		t.Fatalf("CreateWarehouse failed: %v", err)
	}
	group, err := svc.CreateRackGroup(ctx, warehouse.ID, "Aisle A", "A", "")
	if err != nil {
		t.Fatalf("CreateRackGroup failed: %v", err)
	}
	level, err := svc.CreateRackLevel(ctx, group.ID, 2, "")
	if err != nil {
		t.Fatalf("CreateRackLevel failed: %v", err)
	}
	slot, err := svc.CreateRackSlot(ctx, level.ID, 3, "")
	if err != nil {
		t.Fatalf("CreateRackSlot failed: %v", err)
	}

	addr, err := svc.ResolveFullAddress(ctx, slot.ID)
	if err != nil {
		t.Fatalf("ResolveFullAddress failed: %v", err)
	}
	if addr != "PND / A / L2 / S3" {
		t.Errorf("Expected address 'PND / A / L2 / S3', got %q", addr)
	}
}

func TestLocation_ParentKindIsEnforced(t *testing.T) {
	pool := setupTestDB(t)
	svc := core.NewLocationService(pool)
	ctx := context.Background()

	warehouse, err := svc.CreateWarehouse(ctx, "Main", "MAIN", "", "")
	if err != nil {
		t.Fatalf("CreateWarehouse failed: %v", err)
	}

	// A rack level must hang off a rack group, not a warehouse.
	if _, err := svc.CreateRackLevel(ctx, warehouse.ID, 1, ""); err == nil {
		t.Fatal("Expected error creating a rack level under a warehouse")
	}

	// A rack group under a missing parent is NotFound.
	var notFound *core.NotFoundError
	_, err = svc.CreateRackGroup(ctx, uuid.New(), "Orphan", "X", "")
	if !errors.As(err, &notFound) {
		t.Errorf("Expected NotFoundError for missing parent, got %v", err)
	}
}

func TestLocation_DuplicateCodesConflict(t *testing.T) {
	pool := setupTestDB(t)
	svc := core.NewLocationService(pool)
	ctx := context.Background()

	if _, err := svc.CreateWarehouse(ctx, "First", "DUP", "", ""); err != nil {
		t.Fatalf("CreateWarehouse failed: %v", err)
	}
	var conflict *core.ConflictError
	_, err := svc.CreateWarehouse(ctx, "Second", "DUP", "", "")
	if !errors.As(err, &conflict) {
		t.Errorf("Expected ConflictError for duplicate warehouse code, got %v", err)
	}
}

func TestLocation_DeleteRefusedWhileStockRemains(t *testing.T) {
	pool := setupTestDB(t)
	locSvc := core.NewLocationService(pool)
	stockSvc := core.NewStockService(pool)
	ctx := context.Background()

	warehouseID, slots := seedHierarchy(t, ctx, locSvc, "MAIN", 1)
	_, err := stockSvc.StockIn(ctx, core.StockInInput{
		ProductID:  "PRD-1",
		LocationID: slots[0],
		Quantity:   decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("StockIn failed: %v", err)
	}

	var conflict *core.ConflictError
	if err := locSvc.DeleteLocation(ctx, warehouseID); !errors.As(err, &conflict) {
		t.Fatalf("Expected ConflictError deleting a warehouse with stock, got %v", err)
	}

	// Draining the slot makes the whole subtree deletable.
	record := findStockRecord(t, ctx, stockSvc, "PRD-1", "", slots[0])
	if _, err := stockSvc.AdjustQuantity(ctx, record.ID, decimal.Zero, "count"); err != nil {
		t.Fatalf("AdjustQuantity failed: %v", err)
	}
	if err := locSvc.DeleteLocation(ctx, warehouseID); err != nil {
		t.Fatalf("DeleteLocation failed after draining stock: %v", err)
	}

	var notFound *core.NotFoundError
	if _, err := locSvc.GetLocation(ctx, slots[0]); !errors.As(err, &notFound) {
		t.Errorf("Expected cascade delete of the slot, got %v", err)
	}
}

func TestLocation_ListChildren(t *testing.T) {
	pool := setupTestDB(t)
	svc := core.NewLocationService(pool)
	ctx := context.Background()

	warehouseID, _ := seedHierarchy(t, ctx, svc, "MAIN", 3)
	groups, err := svc.ListChildren(ctx, warehouseID)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(groups) != 1 || groups[0].Kind != core.KindRackGroup {
		t.Fatalf("Expected one rack group child, got %+v", groups)
	}

	levels, err := svc.ListChildren(ctx, groups[0].ID)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("Expected one rack level, got %d", len(levels))
	}
	slots, err := svc.ListChildren(ctx, levels[0].ID)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(slots) != 3 {
		t.Errorf("Expected three rack slots, got %d", len(slots))
	}
	for i, s := range slots {
		if s.SlotNumber != i+1 {
			t.Errorf("Slots should list in slot-number order, got %d at position %d", s.SlotNumber, i)
		}
	}
}

// findStockRecord locates a record by product, variant, and slot.
func findStockRecord(t *testing.T, ctx context.Context, svc core.StockService, productID, variantID string, locationID uuid.UUID) *core.StockRecord {
	t.Helper()
	items, err := svc.ListStock(ctx, nil)
	if err != nil {
		t.Fatalf("ListStock failed: %v", err)
	}
	for _, item := range items {
		if item.ProductID == productID && item.VariantID == variantID && item.LocationID == locationID {
			r := item.StockRecord
			return &r
		}
	}
	t.Fatalf("Stock record for %s at %s not found", productID, locationID)
	return nil
}
