package web

import (
	"net/http"
	"strings"

	"inventory-ledger/internal/app"
)

// ── Warehouses ────────────────────────────────────────────────────────────────

// apiListWarehouses handles GET /api/warehouses.
func (h *Handler) apiListWarehouses(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListWarehouses(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateWarehouse handles POST /api/warehouses.
func (h *Handler) apiCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req app.CreateWarehouseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, "name is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	wh, err := h.svc.CreateWarehouse(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, wh)
}

// apiWarehouseSnapshot handles GET /api/warehouses/{id}/snapshot.
func (h *Handler) apiWarehouseSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.WarehouseSnapshot(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, snap)
}

// apiNextWarehouse handles GET /api/warehouses/{id}/next.
func (h *Handler) apiNextWarehouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	next, err := h.svc.NextWarehouse(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, next)
}

// apiShipOutReasons handles GET /api/warehouses/{id}/ship-out-reasons.
func (h *Handler) apiShipOutReasons(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ShipOutReasons(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiSetCapacity handles PUT /api/warehouses/{id}/capacity.
func (h *Handler) apiSetCapacity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		CapacityPL *int64 `json:"capacity_pl"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.CapacityPL == nil {
		writeError(w, r, "capacity_pl is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.SetWarehouseCapacity(r.Context(), id, *body.CapacityPL); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Items ─────────────────────────────────────────────────────────────────────

// apiListItems handles GET /api/items.
func (h *Handler) apiListItems(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateItem handles POST /api/items.
func (h *Handler) apiCreateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	item, err := h.svc.CreateItem(r.Context(), body.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, item)
}

// apiDeleteItem handles DELETE /api/items/{id}.
func (h *Handler) apiDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteItem(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
