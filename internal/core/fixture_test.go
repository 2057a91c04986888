package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"inventory-ledger/internal/core"
	"inventory-ledger/internal/store/sqlite"
)

// fixture is an in-memory store with a three-stage chain: raw -> mid -> final.
// Order indexes are deliberately not contiguous.
type fixture struct {
	ctx     context.Context
	store   core.Store
	inv     core.InventoryService
	views   core.ViewService
	catalog core.CatalogService
	reg     core.WarehouseRegistry

	raw, mid, final *core.Warehouse
}

func newFixture(t *testing.T, opts ...core.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := sqlite.Open(ctx, sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	f := &fixture{
		ctx:     ctx,
		store:   s,
		inv:     core.NewInventoryService(s, opts...),
		views:   core.NewViewService(s),
		catalog: core.NewCatalogService(s),
		reg:     core.NewWarehouseRegistry(s),
	}
	f.raw = f.warehouse(t, "Raw", 10, 10)
	f.mid = f.warehouse(t, "Mid", 5, 20)
	f.final = f.warehouse(t, "Final", 2, 35)
	return f
}

func (f *fixture) warehouse(t *testing.T, name string, capacityPL int64, order int) *core.Warehouse {
	t.Helper()
	w, err := f.catalog.CreateWarehouse(f.ctx, name, capacityPL, order)
	if err != nil {
		t.Fatalf("CreateWarehouse(%s): %v", name, err)
	}
	return w
}

func kg(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// produce receives qty and returns the item id.
func (f *fixture) produce(t *testing.T, w *core.Warehouse, item, lot, qty string) int64 {
	t.Helper()
	entries, err := f.inv.Produce(f.ctx, core.ProduceInput{
		WarehouseID: w.ID, ItemName: item, LotCode: lot, QtyKg: kg(qty),
	})
	if err != nil {
		t.Fatalf("Produce(%s, %s, %s): %v", item, lot, qty, err)
	}
	return entries[0].ItemID
}

func (f *fixture) shipOut(w *core.Warehouse, itemID int64, lot, qty string) error {
	_, err := f.inv.ShipOut(f.ctx, core.ShipOutInput{
		WarehouseID: w.ID, ItemID: itemID, LotCode: lot, OutKg: kg(qty), Reason: "sampling",
	})
	return err
}

func (f *fixture) move(from, to *core.Warehouse, itemID int64, lot, qty string) ([]core.HistoryEntry, error) {
	return f.inv.Move(f.ctx, core.MoveInput{
		FromWarehouseID: from.ID, ItemID: itemID, LotCode: lot, MoveKg: kg(qty), ToWarehouseID: to.ID,
	})
}

func (f *fixture) snapshot(t *testing.T, w *core.Warehouse) *core.Snapshot {
	t.Helper()
	snap, err := f.views.WarehouseSnapshot(f.ctx, w.ID)
	if err != nil {
		t.Fatalf("WarehouseSnapshot(%s): %v", w.Name, err)
	}
	return snap
}

func (f *fixture) lotQty(t *testing.T, w *core.Warehouse, itemID int64, lot string) decimal.Decimal {
	t.Helper()
	var q decimal.Decimal
	err := f.store.WithReadTx(f.ctx, func(tx core.Tx) error {
		l, err := tx.GetLot(f.ctx, core.LotKey{WarehouseID: w.ID, ItemID: itemID, LotCode: lot})
		if err != nil {
			return err
		}
		q = l.QtyKg
		return nil
	})
	if err != nil {
		t.Fatalf("GetLot(%s, %d, %s): %v", w.Name, itemID, lot, err)
	}
	return q
}

func (f *fixture) history(t *testing.T) []core.HistoryEntry {
	t.Helper()
	entries, err := f.views.History(f.ctx, core.HistoryFilter{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	return entries
}

// assertConserved checks stock == in - out for every item.
func (f *fixture) assertConserved(t *testing.T) {
	t.Helper()
	report, err := f.views.Reconcile(f.ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !report.Balanced() {
		t.Errorf("conservation violated: %+v", report.Discrepancies)
	}
}

func hasLot(snap *core.Snapshot, lot string) bool {
	for _, l := range snap.Lots {
		if l.LotCode == lot {
			return true
		}
	}
	return false
}

func assertKg(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(kg(want)) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

func fixedClock(ts string) func() time.Time {
	at, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return at }
}
