package core_test

import (
	"errors"
	"testing"

	"inventory-ledger/internal/core"
)

func TestCatalog_Items(t *testing.T) {
	f := newFixture(t)

	if _, err := f.catalog.CreateItem(f.ctx, "  "); !errors.Is(err, core.ErrValidation) {
		t.Errorf("blank name error = %v, want ErrValidation", err)
	}
	oats, err := f.catalog.CreateItem(f.ctx, " Oats ")
	if err != nil {
		t.Fatal(err)
	}
	if oats.Name != "Oats" {
		t.Errorf("name = %q, want trimmed", oats.Name)
	}
	if _, err := f.catalog.CreateItem(f.ctx, "Oats"); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate name error = %v, want ErrConflict", err)
	}
	f.produce(t, f.raw, "Barley", "B1", "1")

	items, err := f.catalog.ListItems(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Name != "Barley" || items[1].Name != "Oats" {
		t.Errorf("items = %+v, want Barley, Oats", items)
	}

	if err := f.catalog.DeleteItem(f.ctx, oats.ID); err != nil {
		t.Errorf("delete unused item: %v", err)
	}
	if err := f.catalog.DeleteItem(f.ctx, oats.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("delete twice error = %v, want ErrNotFound", err)
	}
}

func TestCatalog_DeleteItemReferencedByZeroLot(t *testing.T) {
	f := newFixture(t)
	item := f.produce(t, f.raw, "X", "L1", "3")
	if err := f.shipOut(f.raw, item, "L1", "3"); err != nil {
		t.Fatal(err)
	}

	if err := f.catalog.DeleteItem(f.ctx, item); !errors.Is(err, core.ErrItemInUse) {
		t.Errorf("error = %v, want ErrItemInUse", err)
	}
}

func TestCatalog_Warehouses(t *testing.T) {
	f := newFixture(t)

	if _, err := f.catalog.CreateWarehouse(f.ctx, "Neg", -1, 50); !errors.Is(err, core.ErrValidation) {
		t.Errorf("negative capacity error = %v, want ErrValidation", err)
	}
	if _, err := f.catalog.CreateWarehouse(f.ctx, "Dup", 1, f.mid.OrderIndex); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate order index error = %v, want ErrConflict", err)
	}
	if _, err := f.catalog.CreateWarehouse(f.ctx, "", 1, 60); !errors.Is(err, core.ErrValidation) {
		t.Errorf("blank name error = %v, want ErrValidation", err)
	}

	if err := f.catalog.SetWarehouseCapacity(f.ctx, f.final.ID, 7); err != nil {
		t.Fatal(err)
	}
	snap := f.snapshot(t, f.final)
	if snap.CapacityPL != 7 {
		t.Errorf("capacity = %d, want 7", snap.CapacityPL)
	}
	assertKg(t, "free", snap.FreeKg, "2800")

	if err := f.catalog.SetWarehouseCapacity(f.ctx, f.final.ID, -3); !errors.Is(err, core.ErrValidation) {
		t.Errorf("negative capacity error = %v, want ErrValidation", err)
	}
	if err := f.catalog.SetWarehouseCapacity(f.ctx, 555, 1); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown warehouse error = %v, want ErrNotFound", err)
	}
}
