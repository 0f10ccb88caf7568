package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MovementService reads the append-only audit trail. There is deliberately
// no update or delete: the only write path is appendMovementTx, called by
// the mutating services inside their transactions.
type MovementService interface {
	// ListMovements returns movements newest-first by sequence.
	ListMovements(ctx context.Context, q MovementQuery) ([]Movement, error)
}

// MovementQuery filters the movement log. Zero values mean "no filter".
type MovementQuery struct {
	Limit      int
	ProductID  string
	VariantID  string
	LocationID *uuid.UUID // matches source or target
	From       time.Time
	To         time.Time
}

const defaultMovementLimit = 100

type movementService struct {
	pool *pgxpool.Pool
}

func NewMovementService(pool *pgxpool.Pool) MovementService {
	return &movementService{pool: pool}
}

const movementColumns = `id, seq, movement_type, product_id, variant_id, variant_name, variant_sku, quantity,
	source_location_id, target_location_id, reference, note, quotation_id, transfer_group_id, created_at`

// appendMovementTx writes one audit entry within the caller's transaction
// and fills in the database-assigned id, sequence, and timestamp.
func appendMovementTx(ctx context.Context, tx pgx.Tx, m *Movement) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_movements
			(movement_type, product_id, variant_id, variant_name, variant_sku, quantity,
			 source_location_id, target_location_id, reference, note, quotation_id, transfer_group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, seq, created_at
	`, m.Type, m.ProductID, m.VariantID, m.VariantName, m.VariantSKU, m.Quantity,
		m.SourceLocationID, m.TargetLocationID, m.Reference, m.Note, m.QuotationID, m.TransferGroupID,
	).Scan(&m.ID, &m.Seq, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append %s movement: %w", m.Type, err)
	}
	return nil
}

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Seq, &m.Type, &m.ProductID, &m.VariantID, &m.VariantName,
			&m.VariantSKU, &m.Quantity, &m.SourceLocationID, &m.TargetLocationID, &m.Reference,
			&m.Note, &m.QuotationID, &m.TransferGroupID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (s *movementService) ListMovements(ctx context.Context, q MovementQuery) ([]Movement, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultMovementLimit
	}

	sql := "SELECT " + movementColumns + " FROM stock_movements WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.ProductID != "" {
		sql += " AND product_id = " + arg(q.ProductID)
		if q.VariantID != "" {
			sql += " AND variant_id = " + arg(q.VariantID)
		}
	}
	if q.LocationID != nil {
		p := arg(*q.LocationID)
		sql += fmt.Sprintf(" AND (source_location_id = %s OR target_location_id = %s)", p, p)
	}
	if !q.From.IsZero() {
		sql += " AND created_at >= " + arg(q.From)
	}
	if !q.To.IsZero() {
		sql += " AND created_at < " + arg(q.To)
	}
	sql += " ORDER BY seq DESC LIMIT " + arg(limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	movements, err := scanMovements(rows)
	if err != nil {
		return nil, err
	}

	// Resolve display addresses in one pass over the (small) location tree.
	idx, err := loadLocationIndex(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	for i := range movements {
		if movements[i].SourceLocationID != nil {
			movements[i].SourceAddress = idx.fullAddress(*movements[i].SourceLocationID)
		}
		if movements[i].TargetLocationID != nil {
			movements[i].TargetAddress = idx.fullAddress(*movements[i].TargetLocationID)
		}
	}
	return movements, nil
}
