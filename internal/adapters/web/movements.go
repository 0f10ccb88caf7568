package web

import (
	"net/http"
	"strconv"
	"time"

	"warehouse-ledger/internal/core"
)

// listMovements handles GET /api/warehouse/movements with optional
// limit, product_id, variant_id, location_id, from, and to filters.
func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := core.MovementQuery{
		ProductID: r.URL.Query().Get("product_id"),
		VariantID: r.URL.Query().Get("variant_id"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, r, "invalid limit: "+raw, "VALIDATION", http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}

	locationID, ok := queryUUID(w, r, "location_id")
	if !ok {
		return
	}
	q.LocationID = locationID

	for name, dst := range map[string]*time.Time{"from": &q.From, "to": &q.To} {
		if raw := r.URL.Query().Get(name); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, r, "invalid "+name+" timestamp: "+raw, "VALIDATION", http.StatusBadRequest)
				return
			}
			*dst = t
		}
	}

	movements, err := h.svc.ListMovements(r.Context(), q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}
