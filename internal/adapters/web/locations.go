package web

import (
	"net/http"

	"warehouse-ledger/internal/app"

	"github.com/google/uuid"
)

type warehousePayload struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

type rackGroupPayload struct {
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
}

type rackLevelPayload struct {
	RackGroupID uuid.UUID `json:"rack_group_id"`
	LevelNumber int       `json:"level_number"`
	Name        string    `json:"name"`
}

type rackSlotPayload struct {
	RackLevelID uuid.UUID `json:"rack_level_id"`
	SlotNumber  int       `json:"slot_number"`
	Name        string    `json:"name"`
}

// listWarehouses handles GET /api/warehouse/warehouses.
func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.svc.ListWarehouses(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, warehouses)
}

func (h *Handler) createWarehouse(w http.ResponseWriter, r *http.Request) {
	var p warehousePayload
	if !decodeJSON(w, r, &p) {
		return
	}
	loc, err := h.svc.CreateWarehouse(r.Context(), app.WarehouseRequest{
		Name: p.Name, Code: p.Code, Address: p.Address, Description: p.Description,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (h *Handler) updateWarehouse(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p warehousePayload
	if !decodeJSON(w, r, &p) {
		return
	}
	loc, err := h.svc.UpdateWarehouse(r.Context(), id, app.WarehouseRequest{
		Name: p.Name, Code: p.Code, Address: p.Address, Description: p.Description,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// listChildrenOf handles the list endpoints of the three nested levels; the
// parent id arrives as a query parameter named after the parent resource.
func (h *Handler) listChildrenOf(w http.ResponseWriter, r *http.Request, paramName string) {
	parentID, ok := queryUUID(w, r, paramName)
	if !ok {
		return
	}
	if parentID == nil {
		writeError(w, r, paramName+" query parameter is required", "VALIDATION", http.StatusBadRequest)
		return
	}
	children, err := h.svc.ListChildren(r.Context(), *parentID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *Handler) listRackGroups(w http.ResponseWriter, r *http.Request) {
	h.listChildrenOf(w, r, "warehouse_id")
}

func (h *Handler) listRackLevels(w http.ResponseWriter, r *http.Request) {
	h.listChildrenOf(w, r, "rack_group_id")
}

func (h *Handler) listRackSlots(w http.ResponseWriter, r *http.Request) {
	h.listChildrenOf(w, r, "rack_level_id")
}

func (h *Handler) createRackGroup(w http.ResponseWriter, r *http.Request) {
	var p rackGroupPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	loc, err := h.svc.CreateRackGroup(r.Context(), app.RackGroupRequest{
		WarehouseID: p.WarehouseID, Name: p.Name, Code: p.Code, Description: p.Description,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (h *Handler) updateRackGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p rackGroupPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	loc, err := h.svc.UpdateRackGroup(r.Context(), id, app.RackGroupRequest{
		Name: p.Name, Code: p.Code, Description: p.Description,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *Handler) createRackLevel(w http.ResponseWriter, r *http.Request) {
	var p rackLevelPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	loc, err := h.svc.CreateRackLevel(r.Context(), app.RackLevelRequest{
		RackGroupID: p.RackGroupID, LevelNumber: p.LevelNumber, Name: p.Name,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (h *Handler) updateRackLevel(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p rackLevelPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	loc, err := h.svc.UpdateRackLevel(r.Context(), id, app.RackLevelRequest{
		LevelNumber: p.LevelNumber, Name: p.Name,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *Handler) createRackSlot(w http.ResponseWriter, r *http.Request) {
	var p rackSlotPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	loc, err := h.svc.CreateRackSlot(r.Context(), app.RackSlotRequest{
		RackLevelID: p.RackLevelID, SlotNumber: p.SlotNumber, Name: p.Name,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (h *Handler) updateRackSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p rackSlotPayload
	if !decodeJSON(w, r, &p) {
		return
	}
	loc, err := h.svc.UpdateRackSlot(r.Context(), id, app.RackSlotRequest{
		SlotNumber: p.SlotNumber, Name: p.Name,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// deleteLocation serves the DELETE endpoint of every hierarchy level.
func (h *Handler) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteLocation(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
