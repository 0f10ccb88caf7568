package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"warehouse-ledger/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps the ledger's typed errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation   *core.ValidationError
		notFound     *core.NotFoundError
		conflict     *core.ConflictError
		delivered    *core.AlreadyDeliveredError
		notDelivered *core.NotDeliveredError
		insufficient *core.InsufficientStockError
		reservation  *core.ReservationViolationError
		busy         *core.BusyError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, r, err.Error(), "VALIDATION", http.StatusBadRequest)
	case errors.As(err, &notFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &delivered):
		writeError(w, r, err.Error(), "ALREADY_DELIVERED", http.StatusConflict)
	case errors.As(err, &notDelivered):
		writeError(w, r, err.Error(), "NOT_DELIVERED", http.StatusConflict)
	case errors.As(err, &conflict):
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
	case errors.As(err, &insufficient):
		writeError(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity)
	case errors.As(err, &reservation):
		writeError(w, r, err.Error(), "RESERVATION_VIOLATION", http.StatusUnprocessableEntity)
	case errors.As(err, &busy):
		writeError(w, r, err.Error(), "BUSY", http.StatusServiceUnavailable)
	default:
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
