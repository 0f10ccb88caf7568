package core

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation policy: when a demand for one (product, variant) must be filled
// from several slots, stock is consumed oldest record first (FIFO by first
// stock-in at that slot, ties broken by record id). The rule is deterministic
// so identical ledgers always produce identical deliveries, and it is
// auditable from the movement log alone.

type allocationCandidate struct {
	RecordID   uuid.UUID
	LocationID uuid.UUID
	VariantSKU string
	Available  decimal.Decimal
	CreatedAt  time.Time
}

type allocationPart struct {
	RecordID   uuid.UUID
	LocationID uuid.UUID
	VariantSKU string
	Quantity   decimal.Decimal
}

// allocateOldestFirst splits needed across candidates. It returns the parts
// to debit and the unfillable remainder (zero when the demand fits).
// Candidates with nothing available contribute no part.
func allocateOldestFirst(needed decimal.Decimal, candidates []allocationCandidate) ([]allocationPart, decimal.Decimal) {
	ordered := make([]allocationCandidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return bytes.Compare(ordered[i].RecordID[:], ordered[j].RecordID[:]) < 0
	})

	remaining := needed
	var parts []allocationPart
	for _, c := range ordered {
		if remaining.Sign() <= 0 {
			break
		}
		if c.Available.Sign() <= 0 {
			continue
		}
		take := c.Available
		if take.GreaterThan(remaining) {
			take = remaining
		}
		parts = append(parts, allocationPart{
			RecordID: c.RecordID, LocationID: c.LocationID, VariantSKU: c.VariantSKU, Quantity: take,
		})
		remaining = remaining.Sub(take)
	}
	return parts, remaining
}
