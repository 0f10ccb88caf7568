package web

import (
	"net/http"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"

	"github.com/shopspring/decimal"
)

type quotationPayload struct {
	Number       string                 `json:"number"`
	CustomerName string                 `json:"customer_name"`
	Lines        []quotationLinePayload `json:"line_items"`
}

type quotationLinePayload struct {
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id"`
	VariantName string          `json:"variant_name"`
	Quantity    decimal.Decimal `json:"quantity"`
}

type offerStatusPayload struct {
	OfferStatus core.OfferStatus `json:"offer_status"`
}

func (h *Handler) listQuotations(w http.ResponseWriter, r *http.Request) {
	quotations, err := h.svc.ListQuotations(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotations)
}

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	var p quotationPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	req := app.CreateQuotationRequest{Number: p.Number, CustomerName: p.CustomerName}
	for _, l := range p.Lines {
		req.Lines = append(req.Lines, app.QuotationLineInput{
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			VariantName: l.VariantName,
			Quantity:    l.Quantity,
		})
	}
	quotation, err := h.svc.CreateQuotation(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quotation)
}

func (h *Handler) getQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	quotation, err := h.svc.GetQuotation(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotation)
}

// setOfferStatus handles PUT /api/quotations/{id}/status. Accepting reserves
// stock; leaving accepted releases it.
func (h *Handler) setOfferStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p offerStatusPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	quotation, err := h.svc.SetOfferStatus(r.Context(), id, p.OfferStatus)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotation)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	quotation, err := h.svc.Deliver(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotation)
}

func (h *Handler) revertDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	quotation, err := h.svc.RevertDelivery(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotation)
}
