package web

import (
	"net/http"
	"strconv"

	"inventory-ledger/internal/app"
	"inventory-ledger/internal/core"
)

// ── Quantity operations ───────────────────────────────────────────────────────

// apiProduce handles POST /api/produce.
func (h *Handler) apiProduce(w http.ResponseWriter, r *http.Request) {
	var req app.ProduceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.Produce(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiShipOut handles POST /api/ship-out.
func (h *Handler) apiShipOut(w http.ResponseWriter, r *http.Request) {
	var req app.ShipOutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.ShipOut(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiMove handles POST /api/move. Omitting to_warehouse_id moves to the next warehouse.
func (h *Handler) apiMove(w http.ResponseWriter, r *http.Request) {
	var req app.MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.Move(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiIssue handles POST /api/issue, the ship-out dialog action.
func (h *Handler) apiIssue(w http.ResponseWriter, r *http.Request) {
	var req app.ShipOutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.Issue(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result)
}

// apiUpdateMemo handles PUT /api/lots/memo.
func (h *Handler) apiUpdateMemo(w http.ResponseWriter, r *http.Request) {
	var req app.UpdateMemoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.UpdateMemo(r.Context(), req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Views ─────────────────────────────────────────────────────────────────────

// apiDashboard handles GET /api/dashboard.
func (h *Handler) apiDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiItemTotals handles GET /api/totals.
func (h *Handler) apiItemTotals(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ItemTotals(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiHistory handles GET /api/history?warehouse_id=&from=YYYY-MM-DD&to=YYYY-MM-DD&limit=.
func (h *Handler) apiHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := app.HistoryRequest{FromDate: q.Get("from"), ToDate: q.Get("to")}

	if raw := q.Get("warehouse_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, r, "invalid warehouse_id: "+raw, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.WarehouseID = &id
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, "invalid limit: "+raw, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.Limit = n
	}

	result, err := h.svc.History(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiReconcile handles GET /api/reconcile.
func (h *Handler) apiReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconcile(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type response struct {
		Balanced      bool                   `json:"balanced"`
		CheckedItems  int                    `json:"checked_items"`
		Discrepancies []core.ItemDiscrepancy `json:"discrepancies"`
	}
	writeJSON(w, response{
		Balanced:      report.Balanced(),
		CheckedItems:  report.CheckedItems,
		Discrepancies: report.Discrepancies,
	})
}
