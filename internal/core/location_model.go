package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LocationKind is one level of the fixed 4-level storage hierarchy
// Warehouse → RackGroup → RackLevel → RackSlot.
type LocationKind string

const (
	KindWarehouse LocationKind = "WAREHOUSE"
	KindRackGroup LocationKind = "RACK_GROUP"
	KindRackLevel LocationKind = "RACK_LEVEL"
	KindRackSlot  LocationKind = "RACK_SLOT"
)

// Location is one node of the hierarchy. Only the fields that apply to its
// kind are populated: warehouses carry Address, rack levels LevelNumber,
// rack slots SlotNumber. Stock may only ever sit on a RackSlot.
type Location struct {
	ID          uuid.UUID    `json:"id"`
	ParentID    *uuid.UUID   `json:"parent_id,omitempty"`
	Kind        LocationKind `json:"kind"`
	Code        string       `json:"code,omitempty"`
	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Description string       `json:"description,omitempty"`
	LevelNumber int          `json:"level_number,omitempty"`
	SlotNumber  int          `json:"slot_number,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// segment is this node's contribution to a full address string.
func (l *Location) segment() string {
	switch l.Kind {
	case KindRackLevel:
		return fmt.Sprintf("L%d", l.LevelNumber)
	case KindRackSlot:
		return fmt.Sprintf("S%d", l.SlotNumber)
	default:
		return l.Code
	}
}
