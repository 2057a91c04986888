package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"inventory-ledger/internal/adapters/web"
	"inventory-ledger/internal/app"
	"inventory-ledger/internal/store/sqlite"
)

type server struct {
	t   *testing.T
	h   http.Handler
	svc app.ApplicationService

	field, dryer int64
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := app.New(store)
	s := &server{t: t, svc: svc, h: web.NewHandler(svc, web.Options{
		AllowedOrigins: "http://ui.local",
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	})}
	for i, name := range []string{"Field", "Dryer"} {
		wh, err := svc.CreateWarehouse(ctx, app.CreateWarehouseRequest{Name: name, CapacityPL: 2, OrderIndex: i + 1})
		if err != nil {
			t.Fatalf("CreateWarehouse(%s): %v", name, err)
		}
		if i == 0 {
			s.field = wh.ID
		} else {
			s.dryer = wh.ID
		}
	}
	return s
}

func (s *server) do(method, path, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

type reconcileBody struct {
	Balanced     bool `json:"balanced"`
	CheckedItems int  `json:"checked_items"`
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (s *server) produce(lot string, qty int) int64 {
	s.t.Helper()
	body := `{"warehouse_id":` + strconv.FormatInt(s.field, 10) + `,"item_name":"Rice","lot_code":"` + lot + `","qty_kg":"` + strconv.Itoa(qty) + `"}`
	rec := s.do(http.MethodPost, "/api/produce", body)
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("produce status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[app.OperationResult](s.t, rec)
	return res.Entries[0].ItemID
}

func TestProduceAndShipOut(t *testing.T) {
	s := newServer(t)
	item := s.produce("R-1", 100)

	ship := `{"warehouse_id":` + strconv.FormatInt(s.field, 10) + `,"item_id":` + strconv.FormatInt(item, 10) +
		`,"lot_code":"R-1","out_kg":"30.5","reason":"sampling"}`
	rec := s.do(http.MethodPost, "/api/ship-out", ship)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ship-out status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[app.OperationResult](t, rec)
	if got := res.Entries[0].QtyKg.String(); got != "69.5" {
		t.Errorf("remaining qty = %s, want 69.5", got)
	}

	over := strings.Replace(ship, `"30.5"`, `"70"`, 1)
	rec = s.do(http.MethodPost, "/api/ship-out", over)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("overdraw status = %d, want 422", rec.Code)
	}
	e := decode[errorBody](t, rec)
	if e.Code != "INSUFFICIENT_QUANTITY" || e.RequestID == "" {
		t.Errorf("error body = %+v", e)
	}
}

func TestMoveDefaultsToNextWarehouse(t *testing.T) {
	s := newServer(t)
	item := s.produce("R-1", 10)

	body := `{"from_warehouse_id":` + strconv.FormatInt(s.field, 10) + `,"item_id":` + strconv.FormatInt(item, 10) +
		`,"lot_code":"R-1","move_kg":"4"}`
	rec := s.do(http.MethodPost, "/api/move", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("move status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[app.OperationResult](t, rec)
	if len(res.Entries) != 2 || res.Entries[1].WarehouseID != s.dryer {
		t.Errorf("move entries = %+v", res.Entries)
	}

	back := `{"from_warehouse_id":` + strconv.FormatInt(s.dryer, 10) + `,"item_id":` + strconv.FormatInt(item, 10) +
		`,"lot_code":"R-1","move_kg":"1"}`
	rec = s.do(http.MethodPost, "/api/move", back)
	if rec.Code != http.StatusUnprocessableEntity || decode[errorBody](t, rec).Code != "NO_NEXT_WAREHOUSE" {
		t.Errorf("move from last warehouse = %d %s", rec.Code, rec.Body)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)
	item := s.produce("R-1", 10)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed json", http.MethodPost, "/api/produce", `{`, http.StatusBadRequest, "BAD_REQUEST"},
		{"zero quantity", http.MethodPost, "/api/produce",
			`{"warehouse_id":1,"item_name":"Rice","lot_code":"X","qty_kg":"0"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad path id", http.MethodGet, "/api/warehouses/abc/snapshot", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown warehouse", http.MethodGet, "/api/warehouses/999/snapshot", "", http.StatusNotFound, "NOT_FOUND"},
		{"item in use", http.MethodDelete, "/api/items/" + strconv.FormatInt(item, 10), "", http.StatusConflict, "ITEM_IN_USE"},
		{"duplicate item", http.MethodPost, "/api/items", `{"name":"Rice"}`, http.StatusConflict, "CONFLICT"},
		{"bad history date", http.MethodGet, "/api/history?from=2024/01/01", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad history limit", http.MethodGet, "/api/history?limit=ten", "", http.StatusBadRequest, "BAD_REQUEST"},
		{"missing capacity", http.MethodPut, "/api/warehouses/1/capacity", `{}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown memo lot", http.MethodPut, "/api/lots/memo",
			`{"warehouse_id":1,"item_id":1,"lot_code":"nope","memo":"x"}`, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(tc.method, tc.path, tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body)
			}
			if got := decode[errorBody](t, rec).Code; got != tc.wantCode {
				t.Errorf("code = %q, want %q", got, tc.wantCode)
			}
		})
	}
}

func TestViews(t *testing.T) {
	s := newServer(t)
	s.produce("R-1", 500)

	rec := s.do(http.MethodGet, "/api/dashboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}
	dash := decode[app.DashboardResult](t, rec)
	if len(dash.Warehouses) != 2 || dash.Warehouses[0].FreePallets != 0 || dash.Warehouses[0].FreeKg.String() != "300" {
		t.Errorf("dashboard = %+v", dash.Warehouses)
	}

	rec = s.do(http.MethodGet, "/api/history?limit=1&warehouse_id="+strconv.FormatInt(s.field, 10), "")
	hist := decode[app.HistoryResult](t, rec)
	if len(hist.Rows) != 1 || hist.Rows[0].WarehouseName != "Field" || hist.Limit != 1 {
		t.Errorf("history = %+v", hist)
	}

	rec = s.do(http.MethodGet, "/api/reconcile", "")
	rep := decode[reconcileBody](t, rec)
	if !rep.Balanced || rep.CheckedItems != 1 {
		t.Errorf("reconcile = %+v", rep)
	}

	rec = s.do(http.MethodGet, "/api/warehouses/"+strconv.FormatInt(s.dryer, 10)+"/ship-out-reasons", "")
	reasons := decode[app.ReasonsResult](t, rec)
	if len(reasons.Reasons) != 2 || reasons.Reasons[1] != app.ReasonConsumedInProduction {
		t.Errorf("dryer reasons = %+v", reasons)
	}
}

func TestMasterDataRoutes(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodPost, "/api/items", `{"name":"Soy"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item status = %d", rec.Code)
	}
	rec = s.do(http.MethodPut, "/api/warehouses/"+strconv.FormatInt(s.field, 10)+"/capacity", `{"capacity_pl":7}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set capacity status = %d, body %s", rec.Code, rec.Body)
	}
	rec = s.do(http.MethodGet, "/api/warehouses", "")
	list := decode[app.WarehouseListResult](t, rec)
	if list.Warehouses[0].CapacityPL != 7 {
		t.Errorf("capacity = %d, want 7", list.Warehouses[0].CapacityPL)
	}
	rec = s.do(http.MethodGet, "/api/warehouses/"+strconv.FormatInt(s.field, 10)+"/next", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Dryer"`) {
		t.Errorf("next = %d %s", rec.Code, rec.Body)
	}
	rec = s.do(http.MethodPost, "/api/warehouses", `{"name":" "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank warehouse name status = %d", rec.Code)
	}
}

func TestMiddleware(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	req.Header.Set("Origin", "http://ui.local")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("request id = %q, want echo", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Errorf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "not valid!")
	req.Header.Set("Origin", "http://evil.local")
	rec = httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got == "not valid!" || got == "" {
		t.Errorf("unsafe request id was not replaced: %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin got CORS headers")
	}

	rec = s.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics\n" {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body)
	}

	big := `{"name":"` + strings.Repeat("x", 2<<20) + `"}`
	rec = s.do(http.MethodPost, "/api/items", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want 413", rec.Code)
	}
}

type panickingService struct {
	app.ApplicationService
}

func (panickingService) Dashboard(context.Context) (*app.DashboardResult, error) {
	panic("boom")
}

func TestRecovererReturns500(t *testing.T) {
	h := web.NewHandler(panickingService{}, web.Options{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decode[errorBody](t, rec).Code; got != "INTERNAL_ERROR" {
		t.Errorf("code = %q", got)
	}
}
