// Package storetest holds the behavioural contract every core.Store implementation must
// satisfy. Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"inventory-ledger/internal/core"
)

// Opener returns an empty, migrated store. It is called once per subtest.
type Opener func(t *testing.T) core.Store

// Run executes the contract suite against the stores produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s core.Store)
	}{
		{"AddLotQtyUpserts", testAddLotQtyUpserts},
		{"SubtractLotQtyIsConditional", testSubtractLotQtyIsConditional},
		{"SubtractToZeroKeepsRow", testSubtractToZeroKeepsRow},
		{"ConcurrentSubtract", testConcurrentSubtract},
		{"AddLotQtyRejectsOverflow", testAddLotQtyRejectsOverflow},
		{"FailedTxRollsBack", testFailedTxRollsBack},
		{"ItemLifecycle", testItemLifecycle},
		{"WarehouseConstraints", testWarehouseConstraints},
		{"UpdateLotMemo", testUpdateLotMemo},
		{"HistoryRoundTrip", testHistoryRoundTrip},
		{"HistoryFilterAndOrder", testHistoryFilterAndOrder},
		{"HistoryFlows", testHistoryFlows},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, open(t))
		})
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func kg(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func inTx(t *testing.T, s core.Store, fn func(ctx context.Context, tx core.Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := s.WithTx(ctx, func(tx core.Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

// seed creates one warehouse and one item and returns a lot key on them.
func seed(t *testing.T, s core.Store) core.LotKey {
	t.Helper()
	var key core.LotKey
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		w, err := tx.CreateWarehouse(ctx, "Raw", 10, 1)
		if err != nil {
			return err
		}
		it, err := tx.FindOrCreateItem(ctx, "Wheat")
		if err != nil {
			return err
		}
		key = core.LotKey{WarehouseID: w.ID, ItemID: it.ID, LotCode: "L1"}
		return nil
	})
	return key
}

func lotQty(t *testing.T, s core.Store, key core.LotKey) decimal.Decimal {
	t.Helper()
	var q decimal.Decimal
	ctx := context.Background()
	err := s.WithReadTx(ctx, func(tx core.Tx) error {
		l, err := tx.GetLot(ctx, key)
		if err != nil {
			return err
		}
		q = l.QtyKg
		return nil
	})
	if err != nil {
		t.Fatalf("GetLot(%s): %v", key, err)
	}
	return q
}

func entry(key core.LotKey, kind core.EntryKind, date time.Time, in, out, bal string) core.HistoryEntry {
	e := core.HistoryEntry{
		Date: date, WarehouseID: key.WarehouseID, ItemID: key.ItemID, LotCode: key.LotCode,
		Kind: kind, QtyKg: kg(bal), CreatedAt: date.Add(time.Hour),
	}
	if in != "" {
		e.InKg = decimal.NewNullDecimal(kg(in))
	}
	if out != "" {
		e.OutKg = decimal.NewNullDecimal(kg(out))
	}
	return e
}

// ── Lots ──────────────────────────────────────────────────────────────────────

func testAddLotQtyUpserts(t *testing.T, s core.Store) {
	key := seed(t, s)
	memo := "first"

	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		bal, err := tx.AddLotQty(ctx, key, kg("100.5"), &memo)
		if err != nil {
			return err
		}
		if !bal.Equal(kg("100.5")) {
			t.Errorf("balance after insert = %s, want 100.5", bal)
		}
		bal, err = tx.AddLotQty(ctx, key, kg("0.001"), nil)
		if err != nil {
			return err
		}
		if !bal.Equal(kg("100.501")) {
			t.Errorf("balance after increment = %s, want 100.501", bal)
		}
		return nil
	})

	ctx := context.Background()
	_ = s.WithReadTx(ctx, func(tx core.Tx) error {
		l, err := tx.GetLot(ctx, key)
		if err != nil {
			t.Fatalf("GetLot: %v", err)
		}
		if l.Memo != "first" {
			t.Errorf("memo = %q, want a nil memo to keep %q", l.Memo, "first")
		}
		return nil
	})
}

func testSubtractLotQtyIsConditional(t *testing.T, s core.Store) {
	key := seed(t, s)
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.AddLotQty(ctx, key, kg("10"), nil)
		return err
	})

	ctx := context.Background()
	err := s.WithTx(ctx, func(tx core.Tx) error {
		_, err := tx.SubtractLotQty(ctx, key, kg("10.001"))
		return err
	})
	if !errors.Is(err, core.ErrInsufficientQuantity) {
		t.Fatalf("over-withdrawal: got %v, want ErrInsufficientQuantity", err)
	}
	if q := lotQty(t, s, key); !q.Equal(kg("10")) {
		t.Errorf("balance after rejected withdrawal = %s, want 10", q)
	}

	missing := key
	missing.LotCode = "NOPE"
	err = s.WithTx(ctx, func(tx core.Tx) error {
		_, err := tx.SubtractLotQty(ctx, missing, kg("1"))
		return err
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing lot: got %v, want ErrNotFound", err)
	}
}

func testSubtractToZeroKeepsRow(t *testing.T, s core.Store) {
	key := seed(t, s)
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		if _, err := tx.AddLotQty(ctx, key, kg("7.25"), nil); err != nil {
			return err
		}
		bal, err := tx.SubtractLotQty(ctx, key, kg("7.25"))
		if err != nil {
			return err
		}
		if !bal.IsZero() {
			t.Errorf("balance = %s, want 0", bal)
		}
		return nil
	})

	if q := lotQty(t, s, key); !q.IsZero() {
		t.Errorf("zero lot should persist with qty 0, got %s", q)
	}
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx core.Tx) error {
		_, err := tx.SubtractLotQty(ctx, key, kg("0.001"))
		return err
	})
	if !errors.Is(err, core.ErrInsufficientQuantity) {
		t.Errorf("withdrawal from zero lot: got %v, want ErrInsufficientQuantity", err)
	}
}

// testConcurrentSubtract races withdrawals on one lot from separate transactions. Only the
// affordable number may succeed and no update may be lost.
func testConcurrentSubtract(t *testing.T, s core.Store) {
	const (
		workers = 25
		balance = 100
		each    = 10
	)
	key := seed(t, s)
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.AddLotQty(ctx, key, decimal.NewFromInt(balance), nil)
		return err
	})

	ctx := context.Background()
	errs := make([]error, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = s.WithTx(ctx, func(tx core.Tx) error {
				bal, err := tx.SubtractLotQty(ctx, key, decimal.NewFromInt(each))
				if err == nil && bal.IsNegative() {
					t.Errorf("negative balance %s returned", bal)
				}
				return err
			})
		}()
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, core.ErrInsufficientQuantity):
		default:
			t.Errorf("worker %d: unexpected error %v", i, err)
		}
	}
	if want := balance / each; succeeded != want {
		t.Errorf("%d withdrawals succeeded, want %d", succeeded, want)
	}
	want := decimal.NewFromInt(int64(balance - succeeded*each))
	if q := lotQty(t, s, key); !q.Equal(want) || q.IsNegative() {
		t.Errorf("final balance = %s, want %s", q, want)
	}
}

func testAddLotQtyRejectsOverflow(t *testing.T, s core.Store) {
	key := seed(t, s)
	ceiling := kg("99999999999.999")
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.AddLotQty(ctx, key, ceiling, nil)
		return err
	})

	ctx := context.Background()
	err := s.WithTx(ctx, func(tx core.Tx) error {
		_, err := tx.AddLotQty(ctx, key, kg("0.001"), nil)
		return err
	})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("increment past the storable maximum: got %v, want ErrValidation", err)
	}
	if q := lotQty(t, s, key); !q.Equal(ceiling) {
		t.Errorf("balance after rejected increment = %s, want %s", q, ceiling)
	}
}

func testFailedTxRollsBack(t *testing.T, s core.Store) {
	key := seed(t, s)
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.AddLotQty(ctx, key, kg("5"), nil)
		return err
	})

	boom := errors.New("boom")
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx core.Tx) error {
		if _, err := tx.SubtractLotQty(ctx, key, kg("5")); err != nil {
			return err
		}
		if _, err := tx.AppendHistory(ctx, entry(key, core.EntryShipOut, time.Now().UTC(), "", "5", "0")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx returned %v, want the callback error", err)
	}
	if q := lotQty(t, s, key); !q.Equal(kg("5")) {
		t.Errorf("balance after rollback = %s, want 5", q)
	}

	var hist []core.HistoryEntry
	_ = s.WithReadTx(ctx, func(tx core.Tx) error {
		var err error
		hist, err = tx.ListHistory(ctx, core.HistoryFilter{Limit: 10})
		return err
	})
	if len(hist) != 0 {
		t.Errorf("history after rollback has %d entries, want 0", len(hist))
	}
}

// ── Master data ───────────────────────────────────────────────────────────────

func testItemLifecycle(t *testing.T, s core.Store) {
	key := seed(t, s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx core.Tx) error {
		_, err := tx.CreateItem(ctx, "Wheat")
		return err
	})
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate item name: got %v, want ErrConflict", err)
	}

	var again *core.Item
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		var err error
		again, err = tx.FindOrCreateItem(ctx, "Wheat")
		return err
	})
	if again.ID != key.ItemID {
		t.Errorf("FindOrCreateItem returned id %d, want existing %d", again.ID, key.ItemID)
	}

	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.AddLotQty(ctx, key, kg("1"), nil)
		return err
	})
	err = s.WithTx(ctx, func(tx core.Tx) error { return tx.DeleteItem(ctx, key.ItemID) })
	if !errors.Is(err, core.ErrItemInUse) {
		t.Errorf("delete referenced item: got %v, want ErrItemInUse", err)
	}

	var spare *core.Item
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		var err error
		spare, err = tx.CreateItem(ctx, "Barley")
		return err
	})
	inTx(t, s, func(ctx context.Context, tx core.Tx) error { return tx.DeleteItem(ctx, spare.ID) })

	err = s.WithTx(ctx, func(tx core.Tx) error { return tx.DeleteItem(ctx, spare.ID) })
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("delete missing item: got %v, want ErrNotFound", err)
	}

	var byID []core.Item
	_ = s.WithReadTx(ctx, func(tx core.Tx) error {
		var err error
		byID, err = tx.ItemsByIDs(ctx, []int64{key.ItemID})
		return err
	})
	if len(byID) != 1 || byID[0].Name != "Wheat" {
		t.Errorf("ItemsByIDs = %+v, want [Wheat]", byID)
	}
}

func testWarehouseConstraints(t *testing.T, s core.Store) {
	key := seed(t, s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx core.Tx) error {
		_, err := tx.CreateWarehouse(ctx, "Other", 5, 1)
		return err
	})
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate order index: got %v, want ErrConflict", err)
	}

	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		return tx.SetWarehouseCapacity(ctx, key.WarehouseID, 42)
	})
	_ = s.WithReadTx(ctx, func(tx core.Tx) error {
		w, err := tx.GetWarehouse(ctx, key.WarehouseID)
		if err != nil {
			t.Fatalf("GetWarehouse: %v", err)
		}
		if w.CapacityPL != 42 {
			t.Errorf("capacity = %d, want 42", w.CapacityPL)
		}
		return nil
	})

	err = s.WithTx(ctx, func(tx core.Tx) error { return tx.SetWarehouseCapacity(ctx, 99999, 1) })
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("capacity of missing warehouse: got %v, want ErrNotFound", err)
	}
	err = s.WithReadTx(ctx, func(tx core.Tx) error {
		_, err := tx.GetWarehouse(ctx, 99999)
		return err
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetWarehouse(missing): got %v, want ErrNotFound", err)
	}
}

func testUpdateLotMemo(t *testing.T, s core.Store) {
	key := seed(t, s)
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.AddLotQty(ctx, key, kg("3"), nil)
		return err
	})

	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		n, err := tx.UpdateLotMemo(ctx, key, "dry")
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("rows matched = %d, want 1", n)
		}
		other := key
		other.LotCode = "L2"
		if n, err = tx.UpdateLotMemo(ctx, other, "x"); err != nil {
			return err
		}
		if n != 0 {
			t.Errorf("rows matched for missing lot = %d, want 0", n)
		}
		return nil
	})
	if q := lotQty(t, s, key); !q.Equal(kg("3")) {
		t.Errorf("memo update changed qty to %s", q)
	}
}

// ── History ───────────────────────────────────────────────────────────────────

func testHistoryRoundTrip(t *testing.T, s core.Store) {
	key := seed(t, s)
	var dst *core.Warehouse
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		var err error
		dst, err = tx.CreateWarehouse(ctx, "Finished", 10, 2)
		return err
	})

	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	want := entry(key, core.EntryMoveOut, day, "", "12.345", "7.655")
	reason, memo := core.ReasonMove, "truck 4"
	want.Reason, want.Memo, want.CounterpartWarehouseID = &reason, &memo, &dst.ID

	var stored core.HistoryEntry
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		var err error
		stored, err = tx.AppendHistory(ctx, want)
		return err
	})
	if stored.ID == 0 {
		t.Fatal("AppendHistory did not assign an id")
	}

	ctx := context.Background()
	var got []core.HistoryEntry
	_ = s.WithReadTx(ctx, func(tx core.Tx) error {
		var err error
		got, err = tx.ListHistory(ctx, core.HistoryFilter{Limit: 10})
		return err
	})
	if len(got) != 1 {
		t.Fatalf("history has %d entries, want 1", len(got))
	}
	e := got[0]
	if e.ID != stored.ID || e.Kind != core.EntryMoveOut || e.LotCode != "L1" {
		t.Errorf("entry = %+v", e)
	}
	if !e.Date.Equal(day) {
		t.Errorf("date = %v, want %v", e.Date, day)
	}
	if e.InKg.Valid || !e.OutKg.Valid || !e.OutKg.Decimal.Equal(kg("12.345")) {
		t.Errorf("in/out = %v/%v, want -/12.345", e.InKg, e.OutKg)
	}
	if !e.QtyKg.Equal(kg("7.655")) {
		t.Errorf("qty = %s, want 7.655", e.QtyKg)
	}
	if e.Reason == nil || *e.Reason != core.ReasonMove || e.Memo == nil || *e.Memo != "truck 4" {
		t.Errorf("reason/memo = %v/%v", e.Reason, e.Memo)
	}
	if e.CounterpartWarehouseID == nil || *e.CounterpartWarehouseID != dst.ID {
		t.Errorf("counterpart = %v, want %d", e.CounterpartWarehouseID, dst.ID)
	}
}

func testHistoryFilterAndOrder(t *testing.T, s core.Store) {
	key := seed(t, s)
	var other *core.Warehouse
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		var err error
		other, err = tx.CreateWarehouse(ctx, "Other", 10, 2)
		return err
	})
	otherKey := key
	otherKey.WarehouseID = other.ID

	d1 := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	d3 := d1.AddDate(0, 0, 2)
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		for _, e := range []core.HistoryEntry{
			entry(key, core.EntryProduction, d1, "1", "", "1"),
			entry(key, core.EntryProduction, d2, "1", "", "2"),
			entry(otherKey, core.EntryProduction, d2, "1", "", "1"),
			entry(key, core.EntryProduction, d3, "1", "", "3"),
		} {
			if _, err := tx.AppendHistory(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})

	ctx := context.Background()
	list := func(f core.HistoryFilter) []core.HistoryEntry {
		t.Helper()
		var out []core.HistoryEntry
		err := s.WithReadTx(ctx, func(tx core.Tx) error {
			var err error
			out, err = tx.ListHistory(ctx, f)
			return err
		})
		if err != nil {
			t.Fatalf("ListHistory: %v", err)
		}
		return out
	}

	all := list(core.HistoryFilter{Limit: 10})
	if len(all) != 4 {
		t.Fatalf("unfiltered history has %d entries, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if cur.Date.After(prev.Date) || (cur.Date.Equal(prev.Date) && cur.ID > prev.ID) {
			t.Errorf("history not newest first at %d: %v/%d after %v/%d", i, cur.Date, cur.ID, prev.Date, prev.ID)
		}
	}

	wid := key.WarehouseID
	from, to := d2, d3
	got := list(core.HistoryFilter{WarehouseID: &wid, From: &from, To: &to, Limit: 10})
	if len(got) != 2 {
		t.Fatalf("filtered history has %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.WarehouseID != wid || e.Date.Before(d2) {
			t.Errorf("entry outside filter: %+v", e)
		}
	}

	if got := list(core.HistoryFilter{Limit: 2}); len(got) != 2 {
		t.Errorf("limit 2 returned %d entries", len(got))
	}
}

func testHistoryFlows(t *testing.T, s core.Store) {
	key := seed(t, s)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	inTx(t, s, func(ctx context.Context, tx core.Tx) error {
		for _, e := range []core.HistoryEntry{
			entry(key, core.EntryProduction, day, "100", "", "100"),
			entry(key, core.EntryShipOut, day, "", "30.5", "69.5"),
			entry(key, core.EntryProduction, day, "0.25", "", "69.75"),
		} {
			if _, err := tx.AppendHistory(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})

	ctx := context.Background()
	var flows []core.ItemFlow
	_ = s.WithReadTx(ctx, func(tx core.Tx) error {
		var err error
		flows, err = tx.HistoryFlows(ctx)
		return err
	})
	if len(flows) != 1 {
		t.Fatalf("flows = %+v, want one item", flows)
	}
	f := flows[0]
	if f.ItemID != key.ItemID || !f.InKg.Equal(kg("100.25")) || !f.OutKg.Equal(kg("30.5")) {
		t.Errorf("flow = %+v, want in 100.25 out 30.5", f)
	}
}
