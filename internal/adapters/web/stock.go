package web

import (
	"net/http"

	"warehouse-ledger/internal/app"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stockInPayload struct {
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id"`
	VariantName string          `json:"variant_name"`
	VariantSKU  string          `json:"variant_sku"`
	LocationID  uuid.UUID       `json:"location_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Reference   string          `json:"reference"`
	Note        string          `json:"note"`
}

type transferPayload struct {
	ProductID        string          `json:"product_id"`
	VariantID        string          `json:"variant_id"`
	SourceLocationID uuid.UUID       `json:"source_location_id"`
	TargetLocationID uuid.UUID       `json:"target_location_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	Note             string          `json:"note"`
}

type adjustPayload struct {
	Quantity decimal.Decimal `json:"quantity"`
	Note     string          `json:"note"`
}

// listStock handles GET /api/warehouse/stock?warehouse_id=.
func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	warehouseID, ok := queryUUID(w, r, "warehouse_id")
	if !ok {
		return
	}
	items, err := h.svc.ListStock(r.Context(), warehouseID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) stockIn(w http.ResponseWriter, r *http.Request) {
	var p stockInPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	record, err := h.svc.StockIn(r.Context(), app.StockInRequest{
		ProductID:   p.ProductID,
		VariantID:   p.VariantID,
		VariantName: p.VariantName,
		VariantSKU:  p.VariantSKU,
		LocationID:  p.LocationID,
		Quantity:    p.Quantity,
		Reference:   p.Reference,
		Note:        p.Note,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) transferStock(w http.ResponseWriter, r *http.Request) {
	var p transferPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	movements, err := h.svc.TransferStock(r.Context(), app.TransferRequest{
		ProductID:        p.ProductID,
		VariantID:        p.VariantID,
		SourceLocationID: p.SourceLocationID,
		TargetLocationID: p.TargetLocationID,
		Quantity:         p.Quantity,
		Note:             p.Note,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

// adjustStock handles PUT /api/warehouse/stock/{id}: sets the counted quantity.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p adjustPayload
	// The warehouse UI sends the counted quantity as query parameters with
	// an empty body; a JSON body works the same way.
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		qty, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, r, "invalid quantity: "+raw, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		p.Quantity = qty
		p.Note = r.URL.Query().Get("note")
	} else if !decodeJSON(w, r, &p) {
		return
	}
	record, err := h.svc.AdjustStock(r.Context(), id, p.Quantity, p.Note)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) deleteStockRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteStockRecord(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
