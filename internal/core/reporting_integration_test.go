package core_test

import (
	"context"
	"testing"

	"warehouse-ledger/internal/core"

	"github.com/shopspring/decimal"
)

func TestReporting_ByWarehouseIncludesEmptyWarehouses(t *testing.T) {
	pool := setupTestDB(t)
	locSvc := core.NewLocationService(pool)
	stockSvc := core.NewStockService(pool)
	reporting := core.NewReportingService(pool)
	ctx := context.Background()

	mainID, mainSlots := seedHierarchy(t, ctx, locSvc, "MAIN", 1)
	emptyID, _ := seedHierarchy(t, ctx, locSvc, "AUX", 1)

	if _, err := stockSvc.StockIn(ctx, core.StockInInput{
		ProductID: "PRD-1", LocationID: mainSlots[0], Quantity: decimal.NewFromInt(50),
	}); err != nil {
		t.Fatalf("StockIn failed: %v", err)
	}

	report, err := reporting.ByWarehouse(ctx)
	if err != nil {
		t.Fatalf("ByWarehouse failed: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("Expected both warehouses in the report, got %d rows", len(report))
	}

	byID := map[string]core.WarehouseReport{}
	for _, r := range report {
		byID[r.WarehouseID.String()] = r
	}
	main := byID[mainID.String()]
	if main.ItemCount != 1 || !main.TotalQuantity.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Unexpected MAIN row: %+v", main)
	}
	empty := byID[emptyID.String()]
	if empty.ItemCount != 0 || !empty.TotalQuantity.IsZero() {
		t.Errorf("Empty warehouse must appear with zeros, got %+v", empty)
	}
}

func TestReporting_ByProductAggregatesAndFlagsLowStock(t *testing.T) {
	pool := setupTestDB(t)
	locSvc := core.NewLocationService(pool)
	stockSvc := core.NewStockService(pool)
	reporting := core.NewReportingService(pool)
	ctx := context.Background()

	_, slots := seedHierarchy(t, ctx, locSvc, "MAIN", 2)
	for _, slot := range slots {
		if _, err := stockSvc.StockIn(ctx, core.StockInInput{
			ProductID: "PRD-1", LocationID: slot, Quantity: decimal.NewFromInt(10),
		}); err != nil {
			t.Fatalf("StockIn failed: %v", err)
		}
	}
	if _, err := reporting.SetMinStock(ctx, "PRD-1", "", decimal.NewFromInt(25)); err != nil {
		t.Fatalf("SetMinStock failed: %v", err)
	}

	report, err := reporting.ByProduct(ctx)
	if err != nil {
		t.Fatalf("ByProduct failed: %v", err)
	}
	if len(report) != 1 {
		t.Fatalf("Expected one product row, got %d", len(report))
	}
	row := report[0]
	if row.LocationsCount != 2 || !row.TotalQuantity.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Unexpected aggregates: %+v", row)
	}
	if !row.IsLowStock {
		t.Errorf("Total 20 below threshold 25 must flag low stock")
	}
	if !row.Available.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected available 20 with no reservations, got %s", row.Available)
	}
}

func TestReporting_LowStockShortage(t *testing.T) {
	pool := setupTestDB(t)
	locSvc := core.NewLocationService(pool)
	stockSvc := core.NewStockService(pool)
	reporting := core.NewReportingService(pool)
	ctx := context.Background()

	_, slots := seedHierarchy(t, ctx, locSvc, "MAIN", 1)
	if _, err := stockSvc.StockIn(ctx, core.StockInInput{
		ProductID: "PRD-1", LocationID: slots[0], Quantity: decimal.NewFromInt(8),
	}); err != nil {
		t.Fatalf("StockIn failed: %v", err)
	}

	if _, err := reporting.SetMinStock(ctx, "PRD-1", "", decimal.NewFromInt(20)); err != nil {
		t.Fatalf("SetMinStock failed: %v", err)
	}
	// A threshold with no stock at all is fully short.
	if _, err := reporting.SetMinStock(ctx, "PRD-MISSING", "", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("SetMinStock failed: %v", err)
	}

	entries, err := reporting.LowStock(ctx)
	if err != nil {
		t.Fatalf("LowStock failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 low stock entries, got %d", len(entries))
	}
	byProduct := map[string]core.LowStockEntry{}
	for _, e := range entries {
		byProduct[e.ProductID] = e
	}
	if !byProduct["PRD-1"].Shortage.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Expected shortage 12 for PRD-1, got %s", byProduct["PRD-1"].Shortage)
	}
	if !byProduct["PRD-MISSING"].Shortage.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected full shortage for the unstocked product, got %s", byProduct["PRD-MISSING"].Shortage)
	}
}

func TestReporting_SetMinStockUpserts(t *testing.T) {
	pool := setupTestDB(t)
	reporting := core.NewReportingService(pool)
	ctx := context.Background()

	if _, err := reporting.SetMinStock(ctx, "PRD-1", "", decimal.NewFromInt(10)); err != nil {
		t.Fatalf("SetMinStock failed: %v", err)
	}
	updated, err := reporting.SetMinStock(ctx, "PRD-1", "", decimal.NewFromInt(15))
	if err != nil {
		t.Fatalf("SetMinStock update failed: %v", err)
	}
	if !updated.MinStock.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Expected updated threshold 15, got %s", updated.MinStock)
	}

	thresholds, err := reporting.ListMinStock(ctx)
	if err != nil {
		t.Fatalf("ListMinStock failed: %v", err)
	}
	if len(thresholds) != 1 {
		t.Errorf("Upsert must not duplicate rows, got %d", len(thresholds))
	}
}

func TestReporting_EmptyLedgerReportsAreEmptyNotErrors(t *testing.T) {
	pool := setupTestDB(t)
	reporting := core.NewReportingService(pool)
	ctx := context.Background()

	if rows, err := reporting.ByWarehouse(ctx); err != nil || len(rows) != 0 {
		t.Errorf("ByWarehouse on empty data: rows=%d err=%v", len(rows), err)
	}
	if rows, err := reporting.ByProduct(ctx); err != nil || len(rows) != 0 {
		t.Errorf("ByProduct on empty data: rows=%d err=%v", len(rows), err)
	}
	if rows, err := reporting.LowStock(ctx); err != nil || len(rows) != 0 {
		t.Errorf("LowStock on empty data: rows=%d err=%v", len(rows), err)
	}
}

// TestReporting_RecomputationIsStable runs every report twice over the same
// ledger state. Reports are pure reads, so the second pass must reproduce
// the first exactly.
func TestReporting_RecomputationIsStable(t *testing.T) {
	pool := setupTestDB(t)
	locSvc := core.NewLocationService(pool)
	stockSvc := core.NewStockService(pool)
	reporting := core.NewReportingService(pool)
	ctx := context.Background()

	_, mainSlots := seedHierarchy(t, ctx, locSvc, "MAIN", 2)
	_, auxSlots := seedHierarchy(t, ctx, locSvc, "AUX", 1)
	for i, in := range []core.StockInInput{
		{ProductID: "PRD-1", LocationID: mainSlots[0], Quantity: decimal.NewFromInt(30)},
		{ProductID: "PRD-1", LocationID: mainSlots[1], Quantity: decimal.NewFromInt(12)},
		{ProductID: "PRD-2", VariantID: "V-RED", LocationID: auxSlots[0], Quantity: decimal.NewFromInt(5)},
	} {
		if _, err := stockSvc.StockIn(ctx, in); err != nil {
			t.Fatalf("StockIn %d failed: %v", i, err)
		}
	}
	if _, err := reporting.SetMinStock(ctx, "PRD-2", "V-RED", decimal.NewFromInt(8)); err != nil {
		t.Fatalf("SetMinStock failed: %v", err)
	}

	wh1, err := reporting.ByWarehouse(ctx)
	if err != nil {
		t.Fatalf("ByWarehouse failed: %v", err)
	}
	wh2, err := reporting.ByWarehouse(ctx)
	if err != nil {
		t.Fatalf("ByWarehouse rerun failed: %v", err)
	}
	if len(wh1) != len(wh2) {
		t.Fatalf("ByWarehouse row count changed: %d then %d", len(wh1), len(wh2))
	}
	for i := range wh1 {
		a, b := wh1[i], wh2[i]
		if a.WarehouseID != b.WarehouseID || a.ItemCount != b.ItemCount ||
			!a.TotalQuantity.Equal(b.TotalQuantity) || !a.TotalReserved.Equal(b.TotalReserved) {
			t.Errorf("ByWarehouse row %d changed: %+v then %+v", i, a, b)
		}
	}

	pr1, err := reporting.ByProduct(ctx)
	if err != nil {
		t.Fatalf("ByProduct failed: %v", err)
	}
	pr2, err := reporting.ByProduct(ctx)
	if err != nil {
		t.Fatalf("ByProduct rerun failed: %v", err)
	}
	if len(pr1) != len(pr2) {
		t.Fatalf("ByProduct row count changed: %d then %d", len(pr1), len(pr2))
	}
	for i := range pr1 {
		a, b := pr1[i], pr2[i]
		if a.ProductID != b.ProductID || a.VariantID != b.VariantID ||
			a.LocationsCount != b.LocationsCount || a.IsLowStock != b.IsLowStock ||
			!a.TotalQuantity.Equal(b.TotalQuantity) || !a.Available.Equal(b.Available) ||
			!a.MinStock.Equal(b.MinStock) {
			t.Errorf("ByProduct row %d changed: %+v then %+v", i, a, b)
		}
	}

	low1, err := reporting.LowStock(ctx)
	if err != nil {
		t.Fatalf("LowStock failed: %v", err)
	}
	low2, err := reporting.LowStock(ctx)
	if err != nil {
		t.Fatalf("LowStock rerun failed: %v", err)
	}
	if len(low1) != len(low2) {
		t.Fatalf("LowStock row count changed: %d then %d", len(low1), len(low2))
	}
	for i := range low1 {
		a, b := low1[i], low2[i]
		if a.ProductID != b.ProductID || a.VariantID != b.VariantID ||
			!a.TotalQuantity.Equal(b.TotalQuantity) || !a.Shortage.Equal(b.Shortage) {
			t.Errorf("LowStock row %d changed: %+v then %+v", i, a, b)
		}
	}
}

// TestReporting_MovementLogBalancesToStock replays a stock-in, transfer,
// deliver and revert mix, then recomputes the on-hand total purely from the
// movement log. The signed movements must sum to what the records hold.
func TestReporting_MovementLogBalancesToStock(t *testing.T) {
	f := setupDeliveryTest(t)

	if _, err := f.stockSvc.Transfer(f.ctx, core.TransferInput{
		ProductID:        "PRD-1",
		SourceLocationID: f.slots[0],
		TargetLocationID: f.slots[1],
		Quantity:         decimal.NewFromInt(10),
	}); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	q1 := f.createQuotation(t, "Q-LOG-1", 80)
	f.accept(t, q1.ID)
	if _, err := f.delSvc.Deliver(f.ctx, q1.ID); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if _, err := f.delSvc.RevertDelivery(f.ctx, q1.ID); err != nil {
		t.Fatalf("RevertDelivery failed: %v", err)
	}

	// A second delivery stays applied, so the log must account for it.
	q2 := f.createQuotation(t, "Q-LOG-2", 30)
	f.accept(t, q2.ID)
	if _, err := f.delSvc.Deliver(f.ctx, q2.ID); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	movements, err := f.movSvc.ListMovements(f.ctx, core.MovementQuery{Limit: 100})
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	byType := map[core.MovementType]decimal.Decimal{}
	logTotal := decimal.Zero
	for _, m := range movements {
		byType[m.Type] = byType[m.Type].Add(m.Quantity)
		logTotal = logTotal.Add(m.Quantity)
	}

	if !byType[core.MovementIn].Equal(decimal.NewFromInt(100)) {
		t.Errorf("IN movements sum to %s, expected 100", byType[core.MovementIn])
	}
	if !byType[core.MovementTransfer].IsZero() {
		t.Errorf("Transfer pairs must net to zero, got %s", byType[core.MovementTransfer])
	}
	if !byType[core.MovementDeliveryOut].Equal(decimal.NewFromInt(-110)) {
		t.Errorf("DELIVERY_OUT movements sum to %s, expected -110", byType[core.MovementDeliveryOut])
	}
	if !byType[core.MovementDeliveryRevert].Equal(decimal.NewFromInt(80)) {
		t.Errorf("DELIVERY_REVERT movements sum to %s, expected 80", byType[core.MovementDeliveryRevert])
	}

	items, err := f.stockSvc.ListStock(f.ctx, nil)
	if err != nil {
		t.Fatalf("ListStock failed: %v", err)
	}
	stockTotal := decimal.Zero
	for _, item := range items {
		stockTotal = stockTotal.Add(item.Quantity)
	}
	if !logTotal.Equal(stockTotal) {
		t.Errorf("Movement log sums to %s but records hold %s", logTotal, stockTotal)
	}
	if !stockTotal.Equal(decimal.NewFromInt(70)) {
		t.Errorf("Expected 70 on hand after the cycle, got %s", stockTotal)
	}
}
