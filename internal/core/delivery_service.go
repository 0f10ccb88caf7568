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

// DeliveryService ties the stock ledger to external quotations: accepting an
// offer reserves stock, delivering debits it, reverting a delivery credits
// the exact slots it came from.
type DeliveryService interface {
	CreateQuotation(ctx context.Context, in CreateQuotationInput) (*Quotation, error)
	ListQuotations(ctx context.Context) ([]Quotation, error)
	GetQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error)

	// SetOfferStatus moves the offer between pending, accepted and rejected.
	// Entering accepted reserves stock for every line item, all-or-nothing;
	// leaving accepted releases the reservations.
	SetOfferStatus(ctx context.Context, id uuid.UUID, status OfferStatus) (*Quotation, error)

	// Deliver debits the accepted quotation's line items from stock, oldest
	// records first, in one transaction.
	Deliver(ctx context.Context, id uuid.UUID) (*Quotation, error)

	// RevertDelivery credits every slot the delivery debited and reopens the
	// quotation for a later delivery. Reverting does not re-reserve stock.
	RevertDelivery(ctx context.Context, id uuid.UUID) (*Quotation, error)
}

type CreateQuotationInput struct {
	Number       string
	CustomerName string
	Lines        []QuotationLineInput
}

type QuotationLineInput struct {
	ProductID   string
	VariantID   string
	VariantName string
	Quantity    decimal.Decimal
}

type deliveryService struct {
	pool *pgxpool.Pool
}

func NewDeliveryService(pool *pgxpool.Pool) DeliveryService {
	return &deliveryService{pool: pool}
}

const quotationColumns = `id, number, customer_name, offer_status, delivery_status, created_at, updated_at`

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	err := row.Scan(&q.ID, &q.Number, &q.CustomerName, &q.OfferStatus, &q.DeliveryStatus,
		&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func loadLines(ctx context.Context, q pgxQuerier, quotationIDs ...uuid.UUID) (map[uuid.UUID][]QuotationLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, quotation_id, product_id, variant_id, variant_name, quantity
		FROM quotation_line_items
		WHERE quotation_id = ANY($1)
		ORDER BY product_id, variant_id
	`, quotationIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer rows.Close()

	lines := make(map[uuid.UUID][]QuotationLine)
	for rows.Next() {
		var l QuotationLine
		if err := rows.Scan(&l.ID, &l.QuotationID, &l.ProductID, &l.VariantID, &l.VariantName, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		lines[l.QuotationID] = append(lines[l.QuotationID], l)
	}
	return lines, rows.Err()
}

func (s *deliveryService) CreateQuotation(ctx context.Context, in CreateQuotationInput) (*Quotation, error) {
	if in.Number == "" {
		return nil, validationf("quotation number is required")
	}
	if len(in.Lines) == 0 {
		return nil, validationf("quotation needs at least one line item")
	}
	for _, l := range in.Lines {
		if l.ProductID == "" {
			return nil, validationf("line item product_id is required")
		}
		if l.Quantity.Sign() <= 0 {
			return nil, validationf("line item quantity must be positive, got %s", l.Quantity)
		}
	}

	tx, err := beginTx(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	quotation, err := scanQuotation(tx.QueryRow(ctx, `
		INSERT INTO quotations (number, customer_name)
		VALUES ($1, $2)
		RETURNING `+quotationColumns, in.Number, in.CustomerName))
	if err != nil {
		return nil, translateOrWrap("create quotation", err)
	}

	for _, l := range in.Lines {
		var line QuotationLine
		err := tx.QueryRow(ctx, `
			INSERT INTO quotation_line_items (quotation_id, product_id, variant_id, variant_name, quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, quotation_id, product_id, variant_id, variant_name, quantity
		`, quotation.ID, l.ProductID, l.VariantID, l.VariantName, l.Quantity).Scan(
			&line.ID, &line.QuotationID, &line.ProductID, &line.VariantID, &line.VariantName, &line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to insert line item: %w", err)
		}
		quotation.Lines = append(quotation.Lines, line)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit quotation: %w", err)
	}
	return quotation, nil
}

func (s *deliveryService) ListQuotations(ctx context.Context) ([]Quotation, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+quotationColumns+" FROM quotations ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query quotations: %w", err)
	}
	defer rows.Close()

	var quotations []Quotation
	var ids []uuid.UUID
	for rows.Next() {
		var q Quotation
		if err := rows.Scan(&q.ID, &q.Number, &q.CustomerName, &q.OfferStatus, &q.DeliveryStatus,
			&q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quotation: %w", err)
		}
		quotations = append(quotations, q)
		ids = append(ids, q.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return quotations, nil
	}

	lines, err := loadLines(ctx, s.pool, ids...)
	if err != nil {
		return nil, err
	}
	for i := range quotations {
		quotations[i].Lines = lines[quotations[i].ID]
	}
	return quotations, nil
}

func (s *deliveryService) GetQuotation(ctx context.Context, id uuid.UUID) (*Quotation, error) {
	return getQuotation(ctx, s.pool, id)
}

func getQuotation(ctx context.Context, q pgxQuerier, id uuid.UUID) (*Quotation, error) {
	quotation, err := scanQuotation(q.QueryRow(ctx,
		"SELECT "+quotationColumns+" FROM quotations WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "quotation", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to fetch quotation %s: %w", id, err)
	}
	lines, err := loadLines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	quotation.Lines = lines[id]
	return quotation, nil
}

// lockQuotationTx serializes all state changes of one quotation.
func lockQuotationTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Quotation, error) {
	quotation, err := scanQuotation(tx.QueryRow(ctx,
		"SELECT "+quotationColumns+" FROM quotations WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "quotation", ID: id.String()}
		}
		return nil, translateOrWrap("lock quotation", err)
	}
	lines, err := loadLines(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	quotation.Lines = lines[id]
	return quotation, nil
}

func (s *deliveryService) SetOfferStatus(ctx context.Context, id uuid.UUID, status OfferStatus) (*Quotation, error) {
	switch status {
	case OfferPending, OfferAccepted, OfferRejected:
	default:
		return nil, validationf("unknown offer status %q", status)
	}

	tx, err := beginTx(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	quotation, err := lockQuotationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if quotation.Delivered() {
		return nil, conflictf("quotation %s is delivered; its offer status is frozen", quotation.Number)
	}
	if quotation.OfferStatus == status {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit status change: %w", err)
		}
		return quotation, nil
	}

	if quotation.OfferStatus == OfferAccepted {
		if err := releaseQuotationReservationsTx(ctx, tx, id); err != nil {
			return nil, err
		}
	}
	if status == OfferAccepted {
		if err := reserveQuotationTx(ctx, tx, quotation); err != nil {
			return nil, err
		}
	}

	updated, err := scanQuotation(tx.QueryRow(ctx, `
		UPDATE quotations SET offer_status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+quotationColumns, status, id))
	if err != nil {
		return nil, fmt.Errorf("failed to update offer status: %w", err)
	}
	updated.Lines = quotation.Lines

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}
	return updated, nil
}

// reserveQuotationTx earmarks stock for every line item. Each line must be
// coverable from the records' combined available quantity or the whole
// acceptance fails.
func reserveQuotationTx(ctx context.Context, tx pgx.Tx, quotation *Quotation) error {
	if err := lockLineRecordsTx(ctx, tx, quotation.Lines); err != nil {
		return err
	}
	for _, line := range sortedLines(quotation.Lines) {
		candidates, err := lockAllocationCandidatesTx(ctx, tx, line.ProductID, line.VariantID)
		if err != nil {
			return err
		}
		parts, shortfall := allocateOldestFirst(line.Quantity, candidates)
		if shortfall.Sign() > 0 {
			return &InsufficientStockError{
				ProductID: line.ProductID, VariantID: line.VariantID,
				Requested: line.Quantity, Available: line.Quantity.Sub(shortfall),
			}
		}
		for _, p := range parts {
			record, err := lockRecordTx(ctx, tx, p.RecordID)
			if err != nil {
				return err
			}
			if err := increaseReservedTx(ctx, tx, record, p.Quantity); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO stock_reservations (quotation_id, stock_record_id, quantity)
				VALUES ($1, $2, $3)
			`, quotation.ID, p.RecordID, p.Quantity); err != nil {
				return fmt.Errorf("failed to insert reservation: %w", err)
			}
		}
	}
	return nil
}

// releaseQuotationReservationsTx drops every earmark this quotation holds.
func releaseQuotationReservationsTx(ctx context.Context, tx pgx.Tx, quotationID uuid.UUID) error {
	rows, err := tx.Query(ctx, `
		SELECT res.id, res.quotation_id, res.stock_record_id, res.quantity
		FROM stock_reservations res
		JOIN stock_records sr ON sr.id = res.stock_record_id
		WHERE res.quotation_id = $1
		ORDER BY sr.location_id, sr.product_id, sr.variant_id, sr.id
		FOR UPDATE OF sr
	`, quotationID)
	if err != nil {
		return translateOrWrap("lock reservations", err)
	}
	defer rows.Close()

	var reservations []reservation
	for rows.Next() {
		var r reservation
		if err := rows.Scan(&r.ID, &r.QuotationID, &r.StockRecordID, &r.Quantity); err != nil {
			return fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	if err := rows.Err(); err != nil {
		return translateOrWrap("lock reservations", err)
	}
	rows.Close()

	for _, r := range reservations {
		if err := releaseReservedTx(ctx, tx, r.StockRecordID, r.Quantity); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		"DELETE FROM stock_reservations WHERE quotation_id = $1", quotationID); err != nil {
		return fmt.Errorf("failed to delete reservations: %w", err)
	}
	return nil
}

// lockAllocationCandidatesTx locks every record holding this product variant,
// in the ledger's stable lock order, and returns them as allocation input.
func lockAllocationCandidatesTx(ctx context.Context, tx pgx.Tx, productID, variantID string) ([]allocationCandidate, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, location_id, variant_sku, quantity - reserved_quantity, created_at
		FROM stock_records
		WHERE product_id = $1 AND variant_id = $2
		ORDER BY location_id, product_id, variant_id, id
		FOR UPDATE
	`, productID, variantID)
	if err != nil {
		return nil, translateOrWrap("lock allocation candidates", err)
	}
	defer rows.Close()

	var candidates []allocationCandidate
	for rows.Next() {
		var c allocationCandidate
		if err := rows.Scan(&c.RecordID, &c.LocationID, &c.VariantSKU, &c.Available, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translateOrWrap("lock allocation candidates", err)
	}
	return candidates, nil
}

// lockLineRecordsTx locks every record holding any of the lines' product
// variants, in the ledger's stable lock order. The quotation's reserved rows
// are a subset of these, so a delivery that takes this pass first never
// waits on a row again later in the transaction.
func lockLineRecordsTx(ctx context.Context, tx pgx.Tx, lines []QuotationLine) error {
	products := make([]string, len(lines))
	variants := make([]string, len(lines))
	for i, line := range lines {
		products[i] = line.ProductID
		variants[i] = line.VariantID
	}
	rows, err := tx.Query(ctx, `
		SELECT sr.id FROM stock_records sr
		JOIN unnest($1::text[], $2::text[]) AS line(product_id, variant_id)
		  ON sr.product_id = line.product_id AND sr.variant_id = line.variant_id
		ORDER BY sr.location_id, sr.product_id, sr.variant_id, sr.id
		FOR UPDATE OF sr
	`, products, variants)
	if err != nil {
		return translateOrWrap("lock delivery records", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan locked stock record: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return translateOrWrap("lock delivery records", err)
	}
	return nil
}

// sortedLines fixes the order line items are processed in so two concurrent
// deliveries touching the same products lock records in the same sequence.
func sortedLines(lines []QuotationLine) []QuotationLine {
	sorted := make([]QuotationLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		return sorted[i].VariantID < sorted[j].VariantID
	})
	return sorted
}

func (s *deliveryService) Deliver(ctx context.Context, id uuid.UUID) (*Quotation, error) {
	tx, err := beginTx(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	quotation, err := lockQuotationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if quotation.Delivered() {
		return nil, &AlreadyDeliveredError{QuotationID: id}
	}
	if quotation.OfferStatus != OfferAccepted {
		return nil, conflictf("quotation %s is %s; only accepted quotations can be delivered",
			quotation.Number, quotation.OfferStatus)
	}

	if err := lockLineRecordsTx(ctx, tx, quotation.Lines); err != nil {
		return nil, err
	}

	// The quotation's own earmarks become regular available stock for the
	// duration of this transaction, so the delivery can consume them.
	if err := releaseQuotationReservationsTx(ctx, tx, id); err != nil {
		return nil, err
	}

	for _, line := range sortedLines(quotation.Lines) {
		candidates, err := lockAllocationCandidatesTx(ctx, tx, line.ProductID, line.VariantID)
		if err != nil {
			return nil, err
		}
		parts, shortfall := allocateOldestFirst(line.Quantity, candidates)
		if shortfall.Sign() > 0 {
			return nil, &InsufficientStockError{
				ProductID: line.ProductID, VariantID: line.VariantID,
				Requested: line.Quantity, Available: line.Quantity.Sub(shortfall),
			}
		}
		for _, p := range parts {
			if _, err := tx.Exec(ctx,
				"UPDATE stock_records SET quantity = quantity - $1, updated_at = NOW() WHERE id = $2",
				p.Quantity, p.RecordID); err != nil {
				return nil, fmt.Errorf("failed to debit stock record: %w", err)
			}
			loc := p.LocationID
			if err := appendMovementTx(ctx, tx, &Movement{
				Type:             MovementDeliveryOut,
				ProductID:        line.ProductID,
				VariantID:        line.VariantID,
				VariantName:      line.VariantName,
				VariantSKU:       p.VariantSKU,
				Quantity:         p.Quantity.Neg(),
				SourceLocationID: &loc,
				Reference:        quotation.Number,
				QuotationID:      &quotation.ID,
			}); err != nil {
				return nil, err
			}
		}
	}

	updated, err := scanQuotation(tx.QueryRow(ctx, `
		UPDATE quotations SET delivery_status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+quotationColumns, DeliveryDone, id))
	if err != nil {
		return nil, fmt.Errorf("failed to mark quotation delivered: %w", err)
	}
	updated.Lines = quotation.Lines

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery: %w", err)
	}
	return updated, nil
}

func (s *deliveryService) RevertDelivery(ctx context.Context, id uuid.UUID) (*Quotation, error) {
	tx, err := beginTx(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	quotation, err := lockQuotationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !quotation.Delivered() {
		return nil, &NotDeliveredError{QuotationID: id}
	}

	// Only the latest delivery is open for reverting: movements at or below
	// the newest DELIVERY_REVERT for this quotation were undone already.
	rows, err := tx.Query(ctx, `
		SELECT `+movementColumns+` FROM stock_movements
		WHERE quotation_id = $1
		  AND movement_type = $2
		  AND seq > COALESCE((
			SELECT MAX(seq) FROM stock_movements
			WHERE quotation_id = $1 AND movement_type = $3
		  ), 0)
		ORDER BY seq DESC
	`, id, MovementDeliveryOut, MovementDeliveryRevert)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery movements: %w", err)
	}
	outbound, err := scanMovements(rows)
	if err != nil {
		return nil, err
	}

	for _, m := range outbound {
		if m.SourceLocationID == nil {
			return nil, fmt.Errorf("delivery movement %s has no source location", m.ID)
		}
		slot := *m.SourceLocationID
		qty := m.Quantity.Neg()

		recordID, err := upsertRecordTx(ctx, tx, m.ProductID, m.VariantID, m.VariantName, m.VariantSKU, slot)
		if err != nil {
			return nil, err
		}
		if _, err := lockRecordTx(ctx, tx, recordID); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx,
			"UPDATE stock_records SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2",
			qty, recordID); err != nil {
			return nil, fmt.Errorf("failed to credit reverted stock: %w", err)
		}

		if err := appendMovementTx(ctx, tx, &Movement{
			Type:             MovementDeliveryRevert,
			ProductID:        m.ProductID,
			VariantID:        m.VariantID,
			VariantName:      m.VariantName,
			VariantSKU:       m.VariantSKU,
			Quantity:         qty,
			TargetLocationID: &slot,
			Reference:        quotation.Number,
			QuotationID:      &quotation.ID,
		}); err != nil {
			return nil, err
		}
	}

	updated, err := scanQuotation(tx.QueryRow(ctx, `
		UPDATE quotations SET delivery_status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+quotationColumns, DeliveryNone, id))
	if err != nil {
		return nil, fmt.Errorf("failed to reset delivery status: %w", err)
	}
	updated.Lines = quotation.Lines

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery revert: %w", err)
	}
	return updated, nil
}
