package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) reportByWarehouse(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.ReportByWarehouse(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) reportByProduct(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.ReportByProduct(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.LowStock(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) listMinStock(w http.ResponseWriter, r *http.Request) {
	thresholds, err := h.svc.ListMinStock(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, thresholds)
}

type minStockPayload struct {
	MinStock decimal.Decimal `json:"min_stock"`
}

// setMinStock handles PUT /api/warehouse/min-stock/{productID}; the variant
// comes in via the variant_id query parameter.
func (h *Handler) setMinStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	var p minStockPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	threshold, err := h.svc.SetMinStock(r.Context(), productID, r.URL.Query().Get("variant_id"), p.MinStock)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, threshold)
}
