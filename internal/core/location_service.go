package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LocationService manages the storage hierarchy: warehouses, rack groups,
// rack levels, and rack slots. Deletion cascades downward but refuses to
// destroy a subtree that still holds stock.
type LocationService interface {
	CreateWarehouse(ctx context.Context, name, code, address, description string) (*Location, error)
	UpdateWarehouse(ctx context.Context, id uuid.UUID, name, code, address, description string) (*Location, error)
	CreateRackGroup(ctx context.Context, warehouseID uuid.UUID, name, code, description string) (*Location, error)
	UpdateRackGroup(ctx context.Context, id uuid.UUID, name, code, description string) (*Location, error)
	CreateRackLevel(ctx context.Context, rackGroupID uuid.UUID, levelNumber int, name string) (*Location, error)
	UpdateRackLevel(ctx context.Context, id uuid.UUID, levelNumber int, name string) (*Location, error)
	CreateRackSlot(ctx context.Context, rackLevelID uuid.UUID, slotNumber int, name string) (*Location, error)
	UpdateRackSlot(ctx context.Context, id uuid.UUID, slotNumber int, name string) (*Location, error)

	ListWarehouses(ctx context.Context) ([]Location, error)
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]Location, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*Location, error)

	// DeleteLocation removes a node and all descendants. It fails with
	// ConflictError if any descendant slot holds quantity or reserved
	// quantity; zero-balance stock records in the subtree are removed.
	DeleteLocation(ctx context.Context, id uuid.UUID) error

	// ResolveFullAddress walks a slot's ancestors into a display address,
	// e.g. "PND / A / L2 / S3".
	ResolveFullAddress(ctx context.Context, slotID uuid.UUID) (string, error)
}

type locationService struct {
	pool *pgxpool.Pool
}

func NewLocationService(pool *pgxpool.Pool) LocationService {
	return &locationService{pool: pool}
}

const locationColumns = `id, parent_id, kind, code, name, address, description, level_number, slot_number, created_at, updated_at`

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.ParentID, &l.Kind, &l.Code, &l.Name, &l.Address,
		&l.Description, &l.LevelNumber, &l.SlotNumber, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// getLocation fetches one node, translating missing rows to NotFoundError.
func getLocation(ctx context.Context, q pgxQuerier, id uuid.UUID) (*Location, error) {
	l, err := scanLocation(q.QueryRow(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: "location", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to fetch location %s: %w", id, err)
	}
	return l, nil
}

// requireParent verifies that parentID exists and has the expected kind,
// so a rack level can only ever hang under a rack group and so on.
func requireParent(ctx context.Context, q pgxQuerier, parentID uuid.UUID, want LocationKind) (*Location, error) {
	parent, err := getLocation(ctx, q, parentID)
	if err != nil {
		return nil, err
	}
	if parent.Kind != want {
		return nil, validationf("parent %s is a %s, expected %s", parentID, parent.Kind, want)
	}
	return parent, nil
}

func (s *locationService) createNode(ctx context.Context, l *Location) (*Location, error) {
	created, err := scanLocation(s.pool.QueryRow(ctx, `
		INSERT INTO locations (parent_id, kind, code, name, address, description, level_number, slot_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+locationColumns,
		l.ParentID, l.Kind, l.Code, l.Name, l.Address, l.Description, l.LevelNumber, l.SlotNumber))
	if err != nil {
		return nil, translateOrWrap("create "+strings.ToLower(string(l.Kind)), err)
	}
	return created, nil
}

func (s *locationService) updateNode(ctx context.Context, id uuid.UUID, kind LocationKind, l *Location) (*Location, error) {
	updated, err := scanLocation(s.pool.QueryRow(ctx, `
		UPDATE locations
		SET code = $1, name = $2, address = $3, description = $4,
		    level_number = $5, slot_number = $6, updated_at = NOW()
		WHERE id = $7 AND kind = $8
		RETURNING `+locationColumns,
		l.Code, l.Name, l.Address, l.Description, l.LevelNumber, l.SlotNumber, id, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Entity: strings.ToLower(string(kind)), ID: id.String()}
		}
		return nil, translateOrWrap("update "+strings.ToLower(string(kind)), err)
	}
	return updated, nil
}

func (s *locationService) CreateWarehouse(ctx context.Context, name, code, address, description string) (*Location, error) {
	if name == "" || code == "" {
		return nil, validationf("warehouse name and code are required")
	}
	return s.createNode(ctx, &Location{Kind: KindWarehouse, Code: code, Name: name, Address: address, Description: description})
}

func (s *locationService) UpdateWarehouse(ctx context.Context, id uuid.UUID, name, code, address, description string) (*Location, error) {
	if name == "" || code == "" {
		return nil, validationf("warehouse name and code are required")
	}
	return s.updateNode(ctx, id, KindWarehouse, &Location{Code: code, Name: name, Address: address, Description: description})
}

func (s *locationService) CreateRackGroup(ctx context.Context, warehouseID uuid.UUID, name, code, description string) (*Location, error) {
	if name == "" || code == "" {
		return nil, validationf("rack group name and code are required")
	}
	if _, err := requireParent(ctx, s.pool, warehouseID, KindWarehouse); err != nil {
		return nil, err
	}
	return s.createNode(ctx, &Location{ParentID: &warehouseID, Kind: KindRackGroup, Code: code, Name: name, Description: description})
}

func (s *locationService) UpdateRackGroup(ctx context.Context, id uuid.UUID, name, code, description string) (*Location, error) {
	if name == "" || code == "" {
		return nil, validationf("rack group name and code are required")
	}
	return s.updateNode(ctx, id, KindRackGroup, &Location{Code: code, Name: name, Description: description})
}

func (s *locationService) CreateRackLevel(ctx context.Context, rackGroupID uuid.UUID, levelNumber int, name string) (*Location, error) {
	if levelNumber < 1 {
		return nil, validationf("level_number must be positive")
	}
	if _, err := requireParent(ctx, s.pool, rackGroupID, KindRackGroup); err != nil {
		return nil, err
	}
	return s.createNode(ctx, &Location{ParentID: &rackGroupID, Kind: KindRackLevel, LevelNumber: levelNumber, Name: name})
}

func (s *locationService) UpdateRackLevel(ctx context.Context, id uuid.UUID, levelNumber int, name string) (*Location, error) {
	if levelNumber < 1 {
		return nil, validationf("level_number must be positive")
	}
	return s.updateNode(ctx, id, KindRackLevel, &Location{LevelNumber: levelNumber, Name: name})
}

func (s *locationService) CreateRackSlot(ctx context.Context, rackLevelID uuid.UUID, slotNumber int, name string) (*Location, error) {
	if slotNumber < 1 {
		return nil, validationf("slot_number must be positive")
	}
	if _, err := requireParent(ctx, s.pool, rackLevelID, KindRackLevel); err != nil {
		return nil, err
	}
	return s.createNode(ctx, &Location{ParentID: &rackLevelID, Kind: KindRackSlot, SlotNumber: slotNumber, Name: name})
}

func (s *locationService) UpdateRackSlot(ctx context.Context, id uuid.UUID, slotNumber int, name string) (*Location, error) {
	if slotNumber < 1 {
		return nil, validationf("slot_number must be positive")
	}
	return s.updateNode(ctx, id, KindRackSlot, &Location{SlotNumber: slotNumber, Name: name})
}

func (s *locationService) ListWarehouses(ctx context.Context) ([]Location, error) {
	return s.list(ctx, "SELECT "+locationColumns+" FROM locations WHERE kind = 'WAREHOUSE' ORDER BY code")
}

func (s *locationService) ListChildren(ctx context.Context, parentID uuid.UUID) ([]Location, error) {
	if _, err := getLocation(ctx, s.pool, parentID); err != nil {
		return nil, err
	}
	return s.list(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE parent_id = $1 ORDER BY code, level_number, slot_number",
		parentID)
}

func (s *locationService) list(ctx context.Context, sql string, args ...any) ([]Location, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.ParentID, &l.Kind, &l.Code, &l.Name, &l.Address,
			&l.Description, &l.LevelNumber, &l.SlotNumber, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (s *locationService) GetLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	return getLocation(ctx, s.pool, id)
}

// descendantsCTE selects the ids of $1 and every node below it.
const descendantsCTE = `
	WITH RECURSIVE subtree AS (
		SELECT id FROM locations WHERE id = $1
		UNION ALL
		SELECT l.id FROM locations l JOIN subtree st ON l.parent_id = st.id
	)`

func (s *locationService) DeleteLocation(ctx context.Context, id uuid.UUID) error {
	tx, err := beginTx(ctx, s.pool)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := getLocation(ctx, tx, id); err != nil {
		return err
	}

	// Conservative guard: the subtree must hold no live stock anywhere.
	var liveRecords int
	err = tx.QueryRow(ctx, descendantsCTE+`
		SELECT COUNT(*) FROM stock_records
		WHERE location_id IN (SELECT id FROM subtree)
		  AND (quantity > 0 OR reserved_quantity > 0)
	`, id).Scan(&liveRecords)
	if err != nil {
		return fmt.Errorf("failed to scan subtree for stock: %w", err)
	}
	if liveRecords > 0 {
		return conflictf("location %s holds stock in %d record(s); move or zero it before deleting", id, liveRecords)
	}

	// Empty stock records would otherwise block the cascade via the FK.
	if _, err := tx.Exec(ctx, descendantsCTE+`
		DELETE FROM stock_records WHERE location_id IN (SELECT id FROM subtree)
	`, id); err != nil {
		return fmt.Errorf("failed to clear empty stock records: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM locations WHERE id = $1", id); err != nil {
		return translateOrWrap("delete location", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit location delete: %w", err)
	}
	return nil
}

func (s *locationService) ResolveFullAddress(ctx context.Context, slotID uuid.UUID) (string, error) {
	idx, err := loadLocationIndex(ctx, s.pool)
	if err != nil {
		return "", err
	}
	slot, ok := idx[slotID]
	if !ok {
		return "", &NotFoundError{Entity: "location", ID: slotID.String()}
	}
	if slot.Kind != KindRackSlot {
		return "", validationf("location %s is a %s, not a rack slot", slotID, slot.Kind)
	}
	return idx.fullAddress(slotID), nil
}

// translateOrWrap applies translatePgError and wraps anything left untyped.
func translateOrWrap(op string, err error) error {
	translated := translatePgError(op, err)
	var conflict *ConflictError
	var busy *BusyError
	if errors.As(translated, &conflict) || errors.As(translated, &busy) {
		return translated
	}
	return fmt.Errorf("%s: %w", op, err)
}

// locationIndex is an in-memory arena of every hierarchy node, keyed by id
// with upward parent references. The tree is small; one scan is cheaper than
// a recursive query per address.
type locationIndex map[uuid.UUID]*Location

func loadLocationIndex(ctx context.Context, q pgxQuerier) (locationIndex, error) {
	rows, err := q.Query(ctx, "SELECT "+locationColumns+" FROM locations")
	if err != nil {
		return nil, fmt.Errorf("failed to load locations: %w", err)
	}
	defer rows.Close()

	idx := locationIndex{}
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.ParentID, &l.Kind, &l.Code, &l.Name, &l.Address,
			&l.Description, &l.LevelNumber, &l.SlotNumber, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		idx[l.ID] = &l
	}
	return idx, rows.Err()
}

// fullAddress walks from id up to the warehouse and joins the segments
// top-down. Unknown ids resolve to "" so deleted locations render blank
// rather than failing a listing.
func (idx locationIndex) fullAddress(id uuid.UUID) string {
	var segments []string
	node, ok := idx[id]
	for ok {
		segments = append(segments, node.segment())
		if node.ParentID == nil {
			break
		}
		node, ok = idx[*node.ParentID]
	}
	if len(segments) == 0 {
		return ""
	}
	// reverse: collected leaf-first
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, " / ")
}
