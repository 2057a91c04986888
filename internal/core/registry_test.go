package core_test

import (
	"errors"
	"testing"

	"inventory-ledger/internal/core"
)

func TestNextWarehouse(t *testing.T) {
	// Unsorted input with gaps between order indexes.
	ws := []core.Warehouse{
		{ID: 30, Name: "QTP", OrderIndex: 90},
		{ID: 10, Name: "Receiving", OrderIndex: 1},
		{ID: 20, Name: "Drying", OrderIndex: 5},
	}
	tests := []struct {
		from    int64
		wantID  int64
		wantErr error
	}{
		{from: 10, wantID: 20},
		{from: 20, wantID: 30},
		{from: 30, wantErr: core.ErrNoNextWarehouse},
		{from: 99, wantErr: core.ErrNotFound},
	}
	for _, tc := range tests {
		next, err := core.NextWarehouse(ws, tc.from)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("NextWarehouse(%d) error = %v, want %v", tc.from, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("NextWarehouse(%d): %v", tc.from, err)
			continue
		}
		if next.ID != tc.wantID {
			t.Errorf("NextWarehouse(%d) = %d, want %d", tc.from, next.ID, tc.wantID)
		}
	}
}

func TestRegistry_ReflectsTopologyChanges(t *testing.T) {
	f := newFixture(t)

	ws, err := f.reg.List(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 3 || ws[0].ID != f.raw.ID || ws[2].ID != f.final.ID {
		t.Fatalf("List = %+v, want raw, mid, final", ws)
	}

	// A new stage inserted between mid (20) and final (35).
	pack := f.warehouse(t, "Pack", 1, 30)
	next, err := f.reg.NextOf(f.ctx, f.mid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if next.ID != pack.ID {
		t.Errorf("NextOf(mid) = %s, want Pack", next.Name)
	}

	item := f.produce(t, f.mid, "X", "L1", "5")
	if _, err := f.move(f.mid, f.final, item, "L1", "1"); !errors.Is(err, core.ErrInvalidDestination) {
		t.Errorf("move past the new stage: error = %v, want ErrInvalidDestination", err)
	}
	if _, err := f.move(f.mid, pack, item, "L1", "1"); err != nil {
		t.Errorf("move to the new stage: %v", err)
	}
}
