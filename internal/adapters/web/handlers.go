package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"warehouse-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	r.Route("/api/warehouse", func(r chi.Router) {
		r.Get("/warehouses", h.listWarehouses)
		r.Post("/warehouses", h.createWarehouse)
		r.Put("/warehouses/{id}", h.updateWarehouse)
		r.Delete("/warehouses/{id}", h.deleteLocation)

		r.Get("/rack-groups", h.listRackGroups)
		r.Post("/rack-groups", h.createRackGroup)
		r.Put("/rack-groups/{id}", h.updateRackGroup)
		r.Delete("/rack-groups/{id}", h.deleteLocation)

		r.Get("/rack-levels", h.listRackLevels)
		r.Post("/rack-levels", h.createRackLevel)
		r.Put("/rack-levels/{id}", h.updateRackLevel)
		r.Delete("/rack-levels/{id}", h.deleteLocation)

		r.Get("/rack-slots", h.listRackSlots)
		r.Post("/rack-slots", h.createRackSlot)
		r.Put("/rack-slots/{id}", h.updateRackSlot)
		r.Delete("/rack-slots/{id}", h.deleteLocation)

		r.Get("/stock", h.listStock)
		r.Post("/stock/in", h.stockIn)
		r.Post("/stock/transfer", h.transferStock)
		r.Get("/stock/low-stock", h.lowStock)
		r.Put("/stock/{id}", h.adjustStock)
		r.Delete("/stock/{id}", h.deleteStockRecord)

		r.Get("/movements", h.listMovements)

		r.Get("/reports/by-warehouse", h.reportByWarehouse)
		r.Get("/reports/by-product", h.reportByProduct)

		r.Get("/min-stock", h.listMinStock)
		r.Put("/min-stock/{productID}", h.setMinStock)
	})

	r.Route("/api/quotations", func(r chi.Router) {
		r.Get("/", h.listQuotations)
		r.Post("/", h.createQuotation)
		r.Get("/{id}", h.getQuotation)
		r.Put("/{id}/status", h.setOfferStatus)
		r.Post("/{id}/deliver", h.deliver)
		r.Post("/{id}/revert-delivery", h.revertDelivery)
	})

	h.router = r
	return r
}

// health returns service and database status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	db := "ok"
	if err := h.svc.Ping(r.Context()); err != nil {
		db = "unreachable"
	}
	writeJSON(w, http.StatusOK, response{Status: "ok", Database: db})
}

// idParam parses the {id} URL parameter as a UUID.
func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "invalid id: "+chi.URLParam(r, "id"), "VALIDATION", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional UUID query parameter.
func queryUUID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, r, "invalid "+name+": "+raw, "VALIDATION", http.StatusBadRequest)
		return nil, false
	}
	return &id, true
}

// decodeJSON decodes the request body into v. On failure it writes the error
// response and returns false; 413 when the body limit was hit, 400 otherwise.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
