package core_test

import (
	"context"
	"errors"
	"testing"

	"warehouse-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type deliveryFixture struct {
	locSvc   core.LocationService
	stockSvc core.StockService
	movSvc   core.MovementService
	delSvc   core.DeliveryService
	ctx      context.Context
	slots    []uuid.UUID
}

// setupDeliveryTest builds two slots holding PRD-1 (60 in slot 0, then 40 in
// slot 1, stocked in that order) so allocation order is observable.
func setupDeliveryTest(t *testing.T) *deliveryFixture {
	t.Helper()
	pool := setupTestDB(t)
	f := &deliveryFixture{
		locSvc:   core.NewLocationService(pool),
		stockSvc: core.NewStockService(pool),
		movSvc:   core.NewMovementService(pool),
		delSvc:   core.NewDeliveryService(pool),
		ctx:      context.Background(),
	}
	_, f.slots = seedHierarchy(t, f.ctx, f.locSvc, "MAIN", 2)

	for i, qty := range []int64{60, 40} {
		if _, err := f.stockSvc.StockIn(f.ctx, core.StockInInput{
			ProductID: "PRD-1", LocationID: f.slots[i], Quantity: decimal.NewFromInt(qty),
		}); err != nil {
			t.Fatalf("StockIn failed: %v", err)
		}
	}
	return f
}

func (f *deliveryFixture) createQuotation(t *testing.T, number string, qty int64) *core.Quotation {
	t.Helper()
	q, err := f.delSvc.CreateQuotation(f.ctx, core.CreateQuotationInput{
		Number:       number,
		CustomerName: "Acme",
		Lines: []core.QuotationLineInput{
			{ProductID: "PRD-1", Quantity: decimal.NewFromInt(qty)},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation failed: %v", err)
	}
	return q
}

func (f *deliveryFixture) accept(t *testing.T, id uuid.UUID) {
	t.Helper()
	if _, err := f.delSvc.SetOfferStatus(f.ctx, id, core.OfferAccepted); err != nil {
		t.Fatalf("SetOfferStatus(accepted) failed: %v", err)
	}
}

func TestDelivery_AcceptReservesAcrossSlots(t *testing.T) {
	f := setupDeliveryTest(t)
	q := f.createQuotation(t, "Q-1", 80)
	f.accept(t, q.ID)

	first := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", f.slots[0])
	second := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", f.slots[1])
	if !first.ReservedQuantity.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected the oldest record fully reserved (60), got %s", first.ReservedQuantity)
	}
	if !second.ReservedQuantity.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected 20 reserved on the newer record, got %s", second.ReservedQuantity)
	}
}

func TestDelivery_AcceptInsufficientLeavesOfferPending(t *testing.T) {
	f := setupDeliveryTest(t)
	q := f.createQuotation(t, "Q-1", 101)

	var insufficient *core.InsufficientStockError
	_, err := f.delSvc.SetOfferStatus(f.ctx, q.ID, core.OfferAccepted)
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}

	reloaded, err := f.delSvc.GetQuotation(f.ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuotation failed: %v", err)
	}
	if reloaded.OfferStatus != core.OfferPending {
		t.Errorf("Failed acceptance must leave the offer pending, got %s", reloaded.OfferStatus)
	}
	for _, slot := range f.slots {
		r := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", slot)
		if !r.ReservedQuantity.IsZero() {
			t.Errorf("Failed acceptance must not leave reservations, got %s", r.ReservedQuantity)
		}
	}
}

func TestDelivery_RejectReleasesReservations(t *testing.T) {
	f := setupDeliveryTest(t)
	q := f.createQuotation(t, "Q-1", 80)
	f.accept(t, q.ID)

	if _, err := f.delSvc.SetOfferStatus(f.ctx, q.ID, core.OfferRejected); err != nil {
		t.Fatalf("SetOfferStatus(rejected) failed: %v", err)
	}
	for _, slot := range f.slots {
		r := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", slot)
		if !r.ReservedQuantity.IsZero() {
			t.Errorf("Rejection must release all reservations, got %s at %s", r.ReservedQuantity, slot)
		}
	}
}

func TestDelivery_DeliverDebitsOldestFirst(t *testing.T) {
	f := setupDeliveryTest(t)
	q := f.createQuotation(t, "Q-1", 80)
	f.accept(t, q.ID)

	delivered, err := f.delSvc.Deliver(f.ctx, q.ID)
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if delivered.DeliveryStatus != core.DeliveryDone {
		t.Errorf("Expected delivery status delivered, got %s", delivered.DeliveryStatus)
	}

	first := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", f.slots[0])
	second := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", f.slots[1])
	if !first.Quantity.IsZero() || !second.Quantity.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected 0/20 after oldest-first delivery, got %s/%s", first.Quantity, second.Quantity)
	}
	if !first.ReservedQuantity.IsZero() || !second.ReservedQuantity.IsZero() {
		t.Errorf("Delivery must consume its own reservations")
	}

	movements, err := f.movSvc.ListMovements(f.ctx, core.MovementQuery{ProductID: "PRD-1"})
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	var outs int
	for _, m := range movements {
		if m.Type == core.MovementDeliveryOut {
			outs++
			if m.QuotationID == nil || *m.QuotationID != q.ID {
				t.Errorf("Delivery movement must carry the quotation id")
			}
			if m.Quantity.Sign() >= 0 {
				t.Errorf("Delivery movements must be debits, got %s", m.Quantity)
			}
		}
	}
	if outs != 2 {
		t.Errorf("Expected 2 delivery movements (one per slot), got %d", outs)
	}
}

func TestDelivery_DeliverPreconditions(t *testing.T) {
	f := setupDeliveryTest(t)
	q := f.createQuotation(t, "Q-1", 10)

	// Not accepted yet.
	var conflict *core.ConflictError
	if _, err := f.delSvc.Deliver(f.ctx, q.ID); !errors.As(err, &conflict) {
		t.Fatalf("Expected ConflictError delivering a pending quotation, got %v", err)
	}

	f.accept(t, q.ID)
	if _, err := f.delSvc.Deliver(f.ctx, q.ID); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	// Delivering twice.
	var already *core.AlreadyDeliveredError
	if _, err := f.delSvc.Deliver(f.ctx, q.ID); !errors.As(err, &already) {
		t.Errorf("Expected AlreadyDeliveredError, got %v", err)
	}

	// Delivered quotations refuse offer status changes.
	if _, err := f.delSvc.SetOfferStatus(f.ctx, q.ID, core.OfferRejected); !errors.As(err, &conflict) {
		t.Errorf("Expected ConflictError changing a delivered quotation's offer, got %v", err)
	}
}

func TestDelivery_MultiLineDeliveryIsAtomic(t *testing.T) {
	f := setupDeliveryTest(t)

	// PRD-2 exists but with too little stock for the second line.
	if _, err := f.stockSvc.StockIn(f.ctx, core.StockInInput{
		ProductID: "PRD-2", LocationID: f.slots[0], Quantity: decimal.NewFromInt(3),
	}); err != nil {
		t.Fatalf("StockIn failed: %v", err)
	}

	q, err := f.delSvc.CreateQuotation(f.ctx, core.CreateQuotationInput{
		Number:       "Q-1",
		CustomerName: "Acme",
		Lines: []core.QuotationLineInput{
			{ProductID: "PRD-1", Quantity: decimal.NewFromInt(10)},
			{ProductID: "PRD-2", Quantity: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation failed: %v", err)
	}

	var insufficient *core.InsufficientStockError
	if _, err := f.delSvc.SetOfferStatus(f.ctx, q.ID, core.OfferAccepted); !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError on the short line, got %v", err)
	}
	if insufficient.ProductID != "PRD-2" {
		t.Errorf("Shortfall should name PRD-2, got %s", insufficient.ProductID)
	}

	// Nothing about PRD-1 may have been written either.
	r := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", f.slots[0])
	if !r.ReservedQuantity.IsZero() {
		t.Errorf("Atomic failure must leave the other line unreserved, got %s", r.ReservedQuantity)
	}
}

func TestDelivery_RevertRestoresExactSlots(t *testing.T) {
	f := setupDeliveryTest(t)
	q := f.createQuotation(t, "Q-1", 80)
	f.accept(t, q.ID)
	if _, err := f.delSvc.Deliver(f.ctx, q.ID); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	reverted, err := f.delSvc.RevertDelivery(f.ctx, q.ID)
	if err != nil {
		t.Fatalf("RevertDelivery failed: %v", err)
	}
	if reverted.DeliveryStatus != core.DeliveryNone {
		t.Errorf("Expected delivery status none after revert, got %s", reverted.DeliveryStatus)
	}

	first := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", f.slots[0])
	second := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", f.slots[1])
	if !first.Quantity.Equal(decimal.NewFromInt(60)) || !second.Quantity.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Revert must credit the exact original slots, got %s/%s", first.Quantity, second.Quantity)
	}
	// Reverting does not re-reserve.
	if !first.ReservedQuantity.IsZero() || !second.ReservedQuantity.IsZero() {
		t.Errorf("Revert must not recreate reservations")
	}

	movements, err := f.movSvc.ListMovements(f.ctx, core.MovementQuery{ProductID: "PRD-1"})
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	var reverts int
	for _, m := range movements {
		if m.Type == core.MovementDeliveryRevert {
			reverts++
			if m.Quantity.Sign() <= 0 {
				t.Errorf("Revert movements must be credits, got %s", m.Quantity)
			}
		}
	}
	if reverts != 2 {
		t.Errorf("Expected 2 revert movements, got %d", reverts)
	}
}

func TestDelivery_RevertRequiresDelivered(t *testing.T) {
	f := setupDeliveryTest(t)
	q := f.createQuotation(t, "Q-1", 10)

	var notDelivered *core.NotDeliveredError
	if _, err := f.delSvc.RevertDelivery(f.ctx, q.ID); !errors.As(err, &notDelivered) {
		t.Fatalf("Expected NotDeliveredError, got %v", err)
	}
	movements, err := f.movSvc.ListMovements(f.ctx, core.MovementQuery{})
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	for _, m := range movements {
		if m.Type == core.MovementDeliveryRevert {
			t.Errorf("Failed revert must leave no movements")
		}
	}
}

// TestDelivery_DeliverRevertCycle replays deliver → revert → deliver → revert
// and checks that each revert only undoes the latest delivery.
func TestDelivery_DeliverRevertCycle(t *testing.T) {
	f := setupDeliveryTest(t)
	q := f.createQuotation(t, "Q-1", 30)

	for cycle := 0; cycle < 2; cycle++ {
		f.accept(t, q.ID)
		if _, err := f.delSvc.Deliver(f.ctx, q.ID); err != nil {
			t.Fatalf("Deliver failed in cycle %d: %v", cycle, err)
		}
		if _, err := f.delSvc.RevertDelivery(f.ctx, q.ID); err != nil {
			t.Fatalf("RevertDelivery failed in cycle %d: %v", cycle, err)
		}
	}

	first := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", f.slots[0])
	second := findStockRecord(t, f.ctx, f.stockSvc, "PRD-1", "", f.slots[1])
	total := first.Quantity.Add(second.Quantity)
	if !total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Two full cycles must restore the total, got %s", total)
	}
}

// TestDelivery_RevertRestoresVariantLabels drains a slot completely, deletes
// the empty record, and reverts. The recreated record must carry the variant
// labels the delivered stock had, recovered from the movement log.
func TestDelivery_RevertRestoresVariantLabels(t *testing.T) {
	f := setupDeliveryTest(t)

	if _, err := f.stockSvc.StockIn(f.ctx, core.StockInInput{
		ProductID:   "PRD-9",
		VariantID:   "V-GRN",
		VariantName: "Green",
		VariantSKU:  "SKU-GRN-9",
		LocationID:  f.slots[0],
		Quantity:    decimal.NewFromInt(20),
	}); err != nil {
		t.Fatalf("StockIn failed: %v", err)
	}

	q, err := f.delSvc.CreateQuotation(f.ctx, core.CreateQuotationInput{
		Number:       "Q-SKU",
		CustomerName: "Acme",
		Lines: []core.QuotationLineInput{
			{ProductID: "PRD-9", VariantID: "V-GRN", VariantName: "Green", Quantity: decimal.NewFromInt(20)},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuotation failed: %v", err)
	}
	f.accept(t, q.ID)
	if _, err := f.delSvc.Deliver(f.ctx, q.ID); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	drained := findStockRecord(t, f.ctx, f.stockSvc, "PRD-9", "V-GRN", f.slots[0])
	if err := f.stockSvc.DeleteStockRecord(f.ctx, drained.ID); err != nil {
		t.Fatalf("DeleteStockRecord failed: %v", err)
	}

	if _, err := f.delSvc.RevertDelivery(f.ctx, q.ID); err != nil {
		t.Fatalf("RevertDelivery failed: %v", err)
	}

	restored := findStockRecord(t, f.ctx, f.stockSvc, "PRD-9", "V-GRN", f.slots[0])
	if !restored.Quantity.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected 20 restored, got %s", restored.Quantity)
	}
	if restored.VariantName != "Green" || restored.VariantSKU != "SKU-GRN-9" {
		t.Errorf("Variant labels lost on revert: name=%q sku=%q", restored.VariantName, restored.VariantSKU)
	}
}
