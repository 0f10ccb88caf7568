package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockService is the warehouse stock ledger. Every mutation runs in a single
// transaction that locks the affected rows, applies the balance change, and
// appends the corresponding movement — or writes nothing at all.
type StockService interface {
	// StockIn credits quantity onto a rack slot, creating the StockRecord on
	// first stock-in of that (product, variant, slot).
	StockIn(ctx context.Context, in StockInInput) (*StockRecord, error)

	// Transfer atomically moves quantity between two slots and appends a
	// correlated movement pair. Fails InsufficientStock without writing when
	// the source's available quantity is too small.
	Transfer(ctx context.Context, in TransferInput) ([]Movement, error)

	// AdjustQuantity sets a record to a counted quantity and logs the delta.
	AdjustQuantity(ctx context.Context, recordID uuid.UUID, newQty decimal.Decimal, note string) (*StockRecord, error)

	// DeleteStockRecord removes a record; only legal at zero balance.
	DeleteStockRecord(ctx context.Context, id uuid.UUID) error

	GetStockRecord(ctx context.Context, id uuid.UUID) (*StockRecord, error)

	// ListStock returns records with resolved addresses, optionally limited
	// to one warehouse's subtree.
	ListStock(ctx context.Context, warehouseID *uuid.UUID) ([]StockItem, error)
}

type StockInInput struct {
	ProductID   string
	VariantID   string
	VariantName string
	VariantSKU  string
	LocationID  uuid.UUID
	Quantity    decimal.Decimal
	Reference   string
	Note        string
}

type TransferInput struct {
	ProductID        string
	VariantID        string
	SourceLocationID uuid.UUID
	TargetLocationID uuid.UUID
	Quantity         decimal.Decimal
	Note             string
}

type stockService struct {
	pool *pgxpool.Pool
}

func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

const stockRecordColumns = `id, product_id, variant_id, variant_name, variant_sku, location_id,
	quantity, reserved_quantity, created_at, updated_at`

func scanStockRecord(row pgx.Row) (*StockRecord, error) {
	var r StockRecord
	err := row.Scan(&r.ID, &r.ProductID, &r.VariantID, &r.VariantName, &r.VariantSKU,
		&r.LocationID, &r.Quantity, &r.ReservedQuantity, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// requireSlot verifies the location exists and is a leaf. Stock may only
// ever be recorded on rack slots.
func requireSlot(ctx context.Context, q pgxQuerier, id uuid.UUID) (*Location, error) {
	loc, err := getLocation(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if loc.Kind != KindRackSlot {
		return nil, &NotFoundError{Entity: "rack slot", ID: id.String()}
	}
	return loc, nil
}

// upsertRecordTx creates the StockRecord for (product, variant, slot) if it
// does not exist yet and returns its id. Balances are untouched, and an
// existing record is left unlocked: DO UPDATE would take its row lock out of
// order, so callers acquire every lock in one ordered pass afterwards.
func upsertRecordTx(ctx context.Context, tx pgx.Tx, productID, variantID, variantName, variantSKU string, locationID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_records (product_id, variant_id, variant_name, variant_sku, location_id, quantity, reserved_quantity)
		VALUES ($1, $2, $3, $4, $5, 0, 0)
		ON CONFLICT (product_id, variant_id, location_id) DO NOTHING
		RETURNING id
	`, productID, variantID, variantName, variantSKU, locationID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx, `
			SELECT id FROM stock_records
			WHERE product_id = $1 AND variant_id = $2 AND location_id = $3
		`, productID, variantID, locationID).Scan(&id)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert stock record: %w", err)
	}
	return id, nil
}

// lockRecordTx locks one StockRecord for the rest of the transaction.
func lockRecordTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*StockRecord, error) {
	r, err := scanStockRecord(tx.QueryRow(ctx,
		"SELECT "+stockRecordColumns+" FROM stock_records WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "stock record", ID: id.String()}
		}
		return nil, translateOrWrap("lock stock record", err)
	}
	return r, nil
}

// lockRecordsTx locks a set of StockRecords in the ledger's stable global
// order (location, product, variant, id) so overlapping transactions cannot
// deadlock, and returns them keyed by id.
func lockRecordsTx(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]*StockRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+stockRecordColumns+` FROM stock_records
		WHERE id = ANY($1)
		ORDER BY location_id, product_id, variant_id, id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, translateOrWrap("lock stock records", err)
	}
	defer rows.Close()

	records := make(map[uuid.UUID]*StockRecord, len(ids))
	for rows.Next() {
		var r StockRecord
		if err := rows.Scan(&r.ID, &r.ProductID, &r.VariantID, &r.VariantName, &r.VariantSKU,
			&r.LocationID, &r.Quantity, &r.ReservedQuantity, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock record: %w", err)
		}
		records[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, translateOrWrap("lock stock records", err)
	}
	return records, nil
}

func (s *stockService) StockIn(ctx context.Context, in StockInInput) (*StockRecord, error) {
	if in.ProductID == "" {
		return nil, validationf("product_id is required")
	}
	if in.Quantity.Sign() <= 0 {
		return nil, validationf("stock-in quantity must be positive, got %s", in.Quantity)
	}

	tx, err := beginTx(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := requireSlot(ctx, tx, in.LocationID); err != nil {
		return nil, err
	}

	recordID, err := upsertRecordTx(ctx, tx, in.ProductID, in.VariantID, in.VariantName, in.VariantSKU, in.LocationID)
	if err != nil {
		return nil, err
	}
	if _, err := lockRecordTx(ctx, tx, recordID); err != nil {
		return nil, err
	}

	record, err := scanStockRecord(tx.QueryRow(ctx, `
		UPDATE stock_records SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+stockRecordColumns, in.Quantity, recordID))
	if err != nil {
		return nil, fmt.Errorf("failed to credit stock record: %w", err)
	}

	if err := appendMovementTx(ctx, tx, &Movement{
		Type:             MovementIn,
		ProductID:        in.ProductID,
		VariantID:        in.VariantID,
		VariantName:      in.VariantName,
		VariantSKU:       in.VariantSKU,
		Quantity:         in.Quantity,
		TargetLocationID: &in.LocationID,
		Reference:        in.Reference,
		Note:             in.Note,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock-in: %w", err)
	}
	return record, nil
}

func (s *stockService) Transfer(ctx context.Context, in TransferInput) ([]Movement, error) {
	if in.ProductID == "" {
		return nil, validationf("product_id is required")
	}
	if in.Quantity.Sign() <= 0 {
		return nil, validationf("transfer quantity must be positive, got %s", in.Quantity)
	}
	if in.SourceLocationID == in.TargetLocationID {
		return nil, validationf("source and target locations must differ")
	}

	tx, err := beginTx(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := requireSlot(ctx, tx, in.SourceLocationID); err != nil {
		return nil, err
	}
	if _, err := requireSlot(ctx, tx, in.TargetLocationID); err != nil {
		return nil, err
	}

	var sourceID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM stock_records
		WHERE product_id = $1 AND variant_id = $2 AND location_id = $3
	`, in.ProductID, in.VariantID, in.SourceLocationID).Scan(&sourceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &InsufficientStockError{
			ProductID: in.ProductID, VariantID: in.VariantID,
			Requested: in.Quantity, Available: decimal.Zero,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source stock record: %w", err)
	}

	// Snapshot the variant labels from the source before creating the target.
	var variantName, variantSKU string
	if err := tx.QueryRow(ctx,
		"SELECT variant_name, variant_sku FROM stock_records WHERE id = $1", sourceID,
	).Scan(&variantName, &variantSKU); err != nil {
		return nil, fmt.Errorf("failed to read source stock record: %w", err)
	}

	targetID, err := upsertRecordTx(ctx, tx, in.ProductID, in.VariantID, variantName, variantSKU, in.TargetLocationID)
	if err != nil {
		return nil, err
	}

	records, err := lockRecordsTx(ctx, tx, []uuid.UUID{sourceID, targetID})
	if err != nil {
		return nil, err
	}
	source, ok := records[sourceID]
	if !ok {
		return nil, &NotFoundError{Entity: "stock record", ID: sourceID.String()}
	}

	if source.Available().LessThan(in.Quantity) {
		return nil, &InsufficientStockError{
			ProductID: in.ProductID, VariantID: in.VariantID,
			Requested: in.Quantity, Available: source.Available(),
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE stock_records SET quantity = quantity - $1, updated_at = NOW() WHERE id = $2",
		in.Quantity, sourceID); err != nil {
		return nil, fmt.Errorf("failed to debit source record: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE stock_records SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2",
		in.Quantity, targetID); err != nil {
		return nil, fmt.Errorf("failed to credit target record: %w", err)
	}

	groupID := uuid.New()
	debit := Movement{
		Type:             MovementTransfer,
		ProductID:        in.ProductID,
		VariantID:        in.VariantID,
		VariantName:      variantName,
		VariantSKU:       variantSKU,
		Quantity:         in.Quantity.Neg(),
		SourceLocationID: &in.SourceLocationID,
		Note:             in.Note,
		TransferGroupID:  &groupID,
	}
	credit := Movement{
		Type:             MovementTransfer,
		ProductID:        in.ProductID,
		VariantID:        in.VariantID,
		VariantName:      variantName,
		VariantSKU:       variantSKU,
		Quantity:         in.Quantity,
		TargetLocationID: &in.TargetLocationID,
		Note:             in.Note,
		TransferGroupID:  &groupID,
	}
	if err := appendMovementTx(ctx, tx, &debit); err != nil {
		return nil, err
	}
	if err := appendMovementTx(ctx, tx, &credit); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return []Movement{debit, credit}, nil
}

func (s *stockService) AdjustQuantity(ctx context.Context, recordID uuid.UUID, newQty decimal.Decimal, note string) (*StockRecord, error) {
	if newQty.Sign() < 0 {
		return nil, validationf("adjusted quantity cannot be negative, got %s", newQty)
	}

	tx, err := beginTx(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	record, err := lockRecordTx(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}
	if newQty.LessThan(record.ReservedQuantity) {
		return nil, &ReservationViolationError{
			RecordID: recordID,
			Msg: fmt.Sprintf("new quantity %s is below reserved quantity %s",
				newQty.StringFixed(3), record.ReservedQuantity.StringFixed(3)),
		}
	}

	delta := newQty.Sub(record.Quantity)
	updated, err := scanStockRecord(tx.QueryRow(ctx, `
		UPDATE stock_records SET quantity = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+stockRecordColumns, newQty, recordID))
	if err != nil {
		return nil, fmt.Errorf("failed to adjust stock record: %w", err)
	}

	m := Movement{
		Type:        MovementAdjust,
		ProductID:   record.ProductID,
		VariantID:   record.VariantID,
		VariantName: record.VariantName,
		VariantSKU:  record.VariantSKU,
		Quantity:    delta,
		Note:        note,
	}
	// Negative deltas leave the slot, positive ones enter it.
	if delta.Sign() < 0 {
		m.SourceLocationID = &record.LocationID
	} else {
		m.TargetLocationID = &record.LocationID
	}
	if err := appendMovementTx(ctx, tx, &m); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}
	return updated, nil
}

func (s *stockService) DeleteStockRecord(ctx context.Context, id uuid.UUID) error {
	tx, err := beginTx(ctx, s.pool)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	record, err := lockRecordTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if record.Quantity.Sign() != 0 || record.ReservedQuantity.Sign() != 0 {
		return conflictf("stock record %s still holds quantity %s (reserved %s); only empty records can be deleted",
			id, record.Quantity.StringFixed(3), record.ReservedQuantity.StringFixed(3))
	}

	if _, err := tx.Exec(ctx, "DELETE FROM stock_records WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete stock record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stock record delete: %w", err)
	}
	return nil
}

func (s *stockService) GetStockRecord(ctx context.Context, id uuid.UUID) (*StockRecord, error) {
	r, err := scanStockRecord(s.pool.QueryRow(ctx,
		"SELECT "+stockRecordColumns+" FROM stock_records WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "stock record", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to fetch stock record %s: %w", id, err)
	}
	return r, nil
}

func (s *stockService) ListStock(ctx context.Context, warehouseID *uuid.UUID) ([]StockItem, error) {
	sql := "SELECT " + stockRecordColumns + " FROM stock_records"
	args := []any{}
	if warehouseID != nil {
		if _, err := requireKind(ctx, s.pool, *warehouseID, KindWarehouse); err != nil {
			return nil, err
		}
		sql = descendantsCTE + sql + " WHERE location_id IN (SELECT id FROM subtree)"
		args = append(args, *warehouseID)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock records: %w", err)
	}
	defer rows.Close()

	var items []StockItem
	for rows.Next() {
		var r StockRecord
		if err := rows.Scan(&r.ID, &r.ProductID, &r.VariantID, &r.VariantName, &r.VariantSKU,
			&r.LocationID, &r.Quantity, &r.ReservedQuantity, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock record: %w", err)
		}
		items = append(items, StockItem{StockRecord: r, Available: r.Available()})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	idx, err := loadLocationIndex(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].FullAddress = idx.fullAddress(items[i].LocationID)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].FullAddress != items[j].FullAddress {
			return items[i].FullAddress < items[j].FullAddress
		}
		return items[i].ProductID < items[j].ProductID
	})
	return items, nil
}

// requireKind fetches a location and checks its level in the hierarchy.
func requireKind(ctx context.Context, q pgxQuerier, id uuid.UUID, want LocationKind) (*Location, error) {
	loc, err := getLocation(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if loc.Kind != want {
		return nil, validationf("location %s is a %s, expected %s", id, loc.Kind, want)
	}
	return loc, nil
}

// increaseReservedTx earmarks qty on an already-locked record. Reserved
// quantity may never exceed quantity.
func increaseReservedTx(ctx context.Context, tx pgx.Tx, record *StockRecord, qty decimal.Decimal) error {
	if record.ReservedQuantity.Add(qty).GreaterThan(record.Quantity) {
		return &ReservationViolationError{
			RecordID: record.ID,
			Msg: fmt.Sprintf("reserving %s would exceed quantity %s (already reserved %s)",
				qty.StringFixed(3), record.Quantity.StringFixed(3), record.ReservedQuantity.StringFixed(3)),
		}
	}
	if _, err := tx.Exec(ctx,
		"UPDATE stock_records SET reserved_quantity = reserved_quantity + $1, updated_at = NOW() WHERE id = $2",
		qty, record.ID); err != nil {
		return fmt.Errorf("failed to increase reservation: %w", err)
	}
	return nil
}

// releaseReservedTx drops an earmark, clamping at zero.
func releaseReservedTx(ctx context.Context, tx pgx.Tx, recordID uuid.UUID, qty decimal.Decimal) error {
	if _, err := tx.Exec(ctx,
		"UPDATE stock_records SET reserved_quantity = GREATEST(reserved_quantity - $1, 0), updated_at = NOW() WHERE id = $2",
		qty, recordID); err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	return nil
}
