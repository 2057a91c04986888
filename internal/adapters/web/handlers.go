package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"inventory-ledger/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	logger *zap.Logger
	router chi.Router
}

// Options carries the optional collaborators of the HTTP adapter.
type Options struct {
	// AllowedOrigins is a comma-separated CORS allow-list. Empty disables CORS.
	AllowedOrigins string
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
	Logger  *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recoverer(logger))
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/api/health", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		// ── Operations ───────────────────────────────────────────────────────
		r.Post("/api/produce", h.apiProduce)
		r.Post("/api/ship-out", h.apiShipOut)
		r.Post("/api/move", h.apiMove)
		r.Post("/api/issue", h.apiIssue)
		r.Put("/api/lots/memo", h.apiUpdateMemo)

		// ── Views ────────────────────────────────────────────────────────────
		r.Get("/api/dashboard", h.apiDashboard)
		r.Get("/api/totals", h.apiItemTotals)
		r.Get("/api/history", h.apiHistory)
		r.Get("/api/reconcile", h.apiReconcile)

		// ── Warehouses ───────────────────────────────────────────────────────
		r.Get("/api/warehouses", h.apiListWarehouses)
		r.Post("/api/warehouses", h.apiCreateWarehouse)
		r.Get("/api/warehouses/{id}/snapshot", h.apiWarehouseSnapshot)
		r.Get("/api/warehouses/{id}/next", h.apiNextWarehouse)
		r.Get("/api/warehouses/{id}/ship-out-reasons", h.apiShipOutReasons)
		r.Put("/api/warehouses/{id}/capacity", h.apiSetCapacity)

		// ── Items ────────────────────────────────────────────────────────────
		r.Get("/api/items", h.apiListItems)
		r.Post("/api/items", h.apiCreateItem)
		r.Delete("/api/items/{id}", h.apiDeleteItem)
	})

	h.router = r
	return r
}

// health reports service status and whether the store answers a read.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status     string `json:"status"`
		Warehouses int    `json:"warehouses"`
	}

	list, err := h.svc.ListWarehouses(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, response{Status: "ok", Warehouses: len(list.Warehouses)})
}

// pathID parses the {id} URL parameter. It writes a 400 and returns false when the
// parameter is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id: "+raw, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
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
