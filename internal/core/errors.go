package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// The ledger exposes only typed errors; adapters translate them to transport
// codes. Services wrap infrastructure failures with %w and never return a
// partially applied mutation alongside an error.

// ValidationError reports non-positive or missing input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown id or location.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError reports a uniqueness violation or an operation refused
// because it would destroy live data (deleting a non-empty location,
// deleting a stock record that still holds quantity).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func conflictf(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockError reports that an operation asked for more than the
// available quantity. Shortfall = Requested - Available.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %s, requested %s",
		productLabel(e.ProductID, e.VariantID), e.Available.StringFixed(3), e.Requested.StringFixed(3))
}

func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// ReservationViolationError reports an attempt to push reserved_quantity
// above quantity, or quantity below reserved_quantity.
type ReservationViolationError struct {
	RecordID uuid.UUID
	Msg      string
}

func (e *ReservationViolationError) Error() string {
	return fmt.Sprintf("reservation violation on stock record %s: %s", e.RecordID, e.Msg)
}

// AlreadyDeliveredError reports deliver() on a delivered quotation.
type AlreadyDeliveredError struct {
	QuotationID uuid.UUID
}

func (e *AlreadyDeliveredError) Error() string {
	return fmt.Sprintf("quotation %s is already delivered", e.QuotationID)
}

// NotDeliveredError reports revertDelivery() on an undelivered quotation.
type NotDeliveredError struct {
	QuotationID uuid.UUID
}

func (e *NotDeliveredError) Error() string {
	return fmt.Sprintf("quotation %s has not been delivered", e.QuotationID)
}

// BusyError reports a bounded lock wait that timed out. Callers may retry.
type BusyError struct {
	Op string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s: lock wait timed out, try again", e.Op)
}

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
)

// translatePgError converts the Postgres errors the ledger deliberately
// provokes (unique indexes, lock_timeout, the deadlock detector picking a
// victim) into their typed equivalents. Everything else passes through
// wrapped by the caller.
func translatePgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return conflictf("%s: duplicate value violates sibling uniqueness", op)
	case pgLockNotAvailable, pgDeadlockDetected:
		return &BusyError{Op: op}
	}
	return err
}

func productLabel(productID, variantID string) string {
	if variantID == "" {
		return productID
	}
	return productID + "/" + variantID
}
