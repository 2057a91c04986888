package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"inventory-ledger/internal/core"
)

// ── Pure snapshot math ────────────────────────────────────────────────────────

func TestBuildSnapshot_Capacity(t *testing.T) {
	lots := []core.Lot{
		{WarehouseID: 1, ItemID: 1, LotCode: "A", QtyKg: kg("450.5")},
		{WarehouseID: 1, ItemID: 2, LotCode: "B", QtyKg: kg("0")},
		{WarehouseID: 2, ItemID: 1, LotCode: "A", QtyKg: kg("999")},
	}
	tests := []struct {
		capacityPL  int64
		wantFree    string
		wantPallets int64
	}{
		{capacityPL: 3, wantFree: "749.5", wantPallets: 1},
		{capacityPL: 2, wantFree: "349.5", wantPallets: 0},
		{capacityPL: 1, wantFree: "0", wantPallets: 0},
		{capacityPL: 0, wantFree: "0", wantPallets: 0},
	}
	for _, tc := range tests {
		w := core.Warehouse{ID: 1, Name: "W", CapacityPL: tc.capacityPL}
		snap := core.BuildSnapshot(w, lots, nil)
		assertKg(t, "total", snap.TotalKg, "450.5")
		assertKg(t, "free", snap.FreeKg, tc.wantFree)
		if snap.FreePallets != tc.wantPallets {
			t.Errorf("capacity %d PL: free pallets = %d, want %d", tc.capacityPL, snap.FreePallets, tc.wantPallets)
		}
		if snap.CapacityPL != tc.capacityPL {
			t.Errorf("capacity = %d, want %d", snap.CapacityPL, tc.capacityPL)
		}
	}
}

func TestBuildSnapshot_GlobalZeroFilter(t *testing.T) {
	lots := []core.Lot{
		// A: locally zero, stock downstream -> listed
		{WarehouseID: 1, ItemID: 1, LotCode: "A", QtyKg: kg("0")},
		{WarehouseID: 2, ItemID: 1, LotCode: "A", QtyKg: kg("10")},
		// B: zero everywhere -> hidden
		{WarehouseID: 1, ItemID: 1, LotCode: "B", QtyKg: kg("0")},
		{WarehouseID: 2, ItemID: 1, LotCode: "B", QtyKg: kg("0")},
		// same code, other item: keyed separately
		{WarehouseID: 1, ItemID: 2, LotCode: "B", QtyKg: kg("3")},
		{WarehouseID: 1, ItemID: 2, LotCode: "C", QtyKg: kg("7")},
	}
	names := map[int64]string{1: "Wheat", 2: "Barley"}
	snap := core.BuildSnapshot(core.Warehouse{ID: 1, CapacityPL: 1}, lots, names)

	assertKg(t, "total", snap.TotalKg, "10")
	var got []string
	for _, l := range snap.Lots {
		got = append(got, l.LotCode+"/"+l.ItemName)
	}
	want := []string{"A/Wheat", "B/Barley", "C/Barley"}
	if len(got) != len(want) {
		t.Fatalf("visible lots = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("visible lots = %v, want %v", got, want)
			break
		}
	}

	again := core.BuildSnapshot(core.Warehouse{ID: 1, CapacityPL: 1}, lots, names)
	if len(again.Lots) != len(snap.Lots) {
		t.Error("snapshot is not idempotent over unchanged lots")
	}
}

// ── Snapshot over the store ───────────────────────────────────────────────────

func TestSnapshot_LotReappearsAfterRestock(t *testing.T) {
	f := newFixture(t)
	item := f.produce(t, f.raw, "X", "L1", "100")
	if err := f.shipOut(f.raw, item, "L1", "100"); err != nil {
		t.Fatal(err)
	}
	if hasLot(f.snapshot(t, f.raw), "L1") {
		t.Fatal("empty lot should be hidden")
	}

	f.produce(t, f.raw, "X", "L1", "5")
	snap := f.snapshot(t, f.raw)
	if !hasLot(snap, "L1") {
		t.Fatal("restocked lot should be listed again")
	}
	assertKg(t, "total", snap.TotalKg, "5")
}

func TestSnapshot_EmptiedSourceStaysListedWhileStockDownstream(t *testing.T) {
	f := newFixture(t)
	item := f.produce(t, f.raw, "X", "L1", "50")
	if _, err := f.move(f.raw, f.mid, item, "L1", "50"); err != nil {
		t.Fatal(err)
	}

	raw := f.snapshot(t, f.raw)
	if !hasLot(raw, "L1") {
		t.Error("raw should still list L1 while mid holds it")
	}
	assertKg(t, "raw total", raw.TotalKg, "0")
	assertKg(t, "raw free", raw.FreeKg, "4000")

	if err := f.shipOut(f.mid, item, "L1", "50"); err != nil {
		t.Fatal(err)
	}
	if hasLot(f.snapshot(t, f.raw), "L1") || hasLot(f.snapshot(t, f.mid), "L1") {
		t.Error("L1 is empty everywhere and should be hidden in both warehouses")
	}
	f.assertConserved(t)
}

func TestSnapshot_UnknownWarehouse(t *testing.T) {
	f := newFixture(t)
	if _, err := f.views.WarehouseSnapshot(f.ctx, 777); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	f.produce(t, f.mid, "X", "L1", "1000.5")

	snaps, err := f.views.Dashboard(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 3 {
		t.Fatalf("dashboard has %d warehouses, want 3", len(snaps))
	}
	order := []int64{f.raw.ID, f.mid.ID, f.final.ID}
	for i, s := range snaps {
		if s.Warehouse.ID != order[i] {
			t.Errorf("dashboard[%d] = %s, want chain order", i, s.Warehouse.Name)
		}
	}
	mid := snaps[1]
	assertKg(t, "mid free", mid.FreeKg, "999.5")
	if mid.FreePallets != 2 {
		t.Errorf("mid free pallets = %d, want 2", mid.FreePallets)
	}
}

// ── Totals & reconciliation ───────────────────────────────────────────────────

func TestItemTotals(t *testing.T) {
	f := newFixture(t)
	wheat := f.produce(t, f.raw, "Wheat", "W1", "200")
	barley := f.produce(t, f.raw, "Barley", "B1", "80")
	if err := f.shipOut(f.raw, wheat, "W1", "20"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.move(f.raw, f.mid, barley, "B1", "30"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.catalog.CreateItem(f.ctx, "Anise"); err != nil {
		t.Fatal(err)
	}

	report, err := f.views.ItemTotals(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("rows = %+v, want two items with stock or history", report.Rows)
	}
	b, w := report.Rows[0], report.Rows[1]
	if b.ItemName != "Barley" || w.ItemName != "Wheat" {
		t.Fatalf("rows not sorted by name: %s, %s", b.ItemName, w.ItemName)
	}
	assertKg(t, "barley total", b.TotalKg, "80")
	assertKg(t, "barley in", b.InKg, "110")
	assertKg(t, "barley out", b.OutKg, "30")
	assertKg(t, "wheat total", w.TotalKg, "180")
	assertKg(t, "wheat in", w.InKg, "200")
	assertKg(t, "wheat out", w.OutKg, "20")
	assertKg(t, "grand total", report.GrandTotalKg, "260")
}

func TestReconcileTotals_ReportsDrift(t *testing.T) {
	report := core.ReconcileTotals(&core.ItemTotalsReport{Rows: []core.ItemTotal{
		{ItemID: 1, ItemName: "Ok", TotalKg: kg("5"), InKg: kg("8"), OutKg: kg("3")},
		{ItemID: 2, ItemName: "Drift", TotalKg: kg("5"), InKg: kg("8"), OutKg: kg("2")},
	}})
	if report.CheckedItems != 2 || report.Balanced() {
		t.Fatalf("report = %+v", report)
	}
	d := report.Discrepancies[0]
	if d.ItemID != 2 {
		t.Errorf("discrepancy item = %d, want 2", d.ItemID)
	}
	assertKg(t, "ledger", d.LedgerKg, "6")
	assertKg(t, "diff", d.DiffKg, "-1")
}

// ── History ───────────────────────────────────────────────────────────────────

func TestHistory_FilterAndValidation(t *testing.T) {
	f := newFixture(t)
	item := f.produce(t, f.raw, "X", "L1", "10")
	if _, err := f.move(f.raw, f.mid, item, "L1", "4"); err != nil {
		t.Fatal(err)
	}

	all := f.history(t)
	if len(all) != 3 {
		t.Fatalf("history = %d entries, want 3", len(all))
	}
	if all[0].Kind != core.EntryMoveIn || all[2].Kind != core.EntryProduction {
		t.Errorf("history not newest first: %s ... %s", all[0].Kind, all[2].Kind)
	}

	mid := f.mid.ID
	onlyMid, err := f.views.History(f.ctx, core.HistoryFilter{WarehouseID: &mid})
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyMid) != 1 || onlyMid[0].Kind != core.EntryMoveIn {
		t.Errorf("mid history = %+v", onlyMid)
	}

	future := time.Now().AddDate(0, 0, 2)
	none, err := f.views.History(f.ctx, core.HistoryFilter{From: &future})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("future-dated filter returned %d entries", len(none))
	}

	past := time.Now().AddDate(0, 0, -2)
	if _, err := f.views.History(f.ctx, core.HistoryFilter{From: &future, To: &past}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("reversed range error = %v, want ErrValidation", err)
	}

	limited, err := f.views.History(f.ctx, core.HistoryFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d entries", len(limited))
	}
}

// readCountingStore counts read transactions opened on the wrapped store.
type readCountingStore struct {
	core.Store
	reads int
}

func (s *readCountingStore) WithReadTx(ctx context.Context, fn func(tx core.Tx) error) error {
	s.reads++
	return s.Store.WithReadTx(ctx, fn)
}

func TestHistoryWithNames_ResolvesInOneReadTransaction(t *testing.T) {
	f := newFixture(t)
	item := f.produce(t, f.raw, "Oats", "O1", "12")
	if _, err := f.move(f.raw, f.mid, item, "O1", "5"); err != nil {
		t.Fatal(err)
	}

	counting := &readCountingStore{Store: f.store}
	rows, err := core.NewViewService(counting).HistoryWithNames(f.ctx, core.HistoryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if counting.reads != 1 {
		t.Errorf("history with names used %d read transactions, want 1", counting.reads)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	in := rows[0]
	if in.Kind != core.EntryMoveIn || in.WarehouseName != "Mid" || in.ItemName != "Oats" || in.CounterpartName != "Raw" {
		t.Errorf("move-in row = %s at %q, item %q, counterpart %q", in.Kind, in.WarehouseName, in.ItemName, in.CounterpartName)
	}
	if prod := rows[2]; prod.ItemName != "Oats" || prod.CounterpartName != "" {
		t.Errorf("production row names = %q/%q", prod.ItemName, prod.CounterpartName)
	}

	past := time.Now().AddDate(0, 0, -2)
	future := time.Now().AddDate(0, 0, 2)
	if _, err := f.views.HistoryWithNames(f.ctx, core.HistoryFilter{From: &future, To: &past}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("reversed range error = %v, want ErrValidation", err)
	}
}

func TestBuildHistoryRows(t *testing.T) {
	src := int64(1)
	entries := []core.HistoryEntry{
		{WarehouseID: 2, ItemID: 7, Kind: core.EntryMoveIn, CounterpartWarehouseID: &src},
		{WarehouseID: 9, ItemID: 8, Kind: core.EntryProduction},
	}
	ws := []core.Warehouse{{ID: 1, Name: "Raw"}, {ID: 2, Name: "Mid"}}
	rows := core.BuildHistoryRows(entries, ws, map[int64]string{7: "Oats"})

	if rows[0].WarehouseName != "Mid" || rows[0].ItemName != "Oats" || rows[0].CounterpartName != "Raw" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].WarehouseName != "" || rows[1].ItemName != "" {
		t.Errorf("unknown ids should resolve to empty names, got %+v", rows[1])
	}
}
