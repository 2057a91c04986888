package core

import (
	"context"
	"fmt"
	"sort"
)

// WarehouseRegistry resolves the ordered warehouse chain. It holds no state of its own:
// capacity and topology are edited externally, so every call re-reads the store.
type WarehouseRegistry interface {
	// List returns all warehouses ordered by OrderIndex.
	List(ctx context.Context) ([]Warehouse, error)
	// NextOf returns the immediate downstream warehouse of warehouseID.
	NextOf(ctx context.Context, warehouseID int64) (*Warehouse, error)
}

type warehouseRegistry struct {
	store Store
}

func NewWarehouseRegistry(store Store) WarehouseRegistry {
	return &warehouseRegistry{store: store}
}

func (r *warehouseRegistry) List(ctx context.Context) ([]Warehouse, error) {
	var out []Warehouse
	err := r.store.WithReadTx(ctx, func(tx Tx) error {
		ws, err := tx.ListWarehouses(ctx)
		if err != nil {
			return err
		}
		out = sortWarehouses(ws)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *warehouseRegistry) NextOf(ctx context.Context, warehouseID int64) (*Warehouse, error) {
	var next *Warehouse
	err := r.store.WithReadTx(ctx, func(tx Tx) error {
		var err error
		next, err = nextWarehouseTx(ctx, tx, warehouseID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// nextWarehouseTx resolves the downstream warehouse inside the caller's transaction.
func nextWarehouseTx(ctx context.Context, tx Tx, warehouseID int64) (*Warehouse, error) {
	ws, err := tx.ListWarehouses(ctx)
	if err != nil {
		return nil, err
	}
	return NextWarehouse(ws, warehouseID)
}

// NextWarehouse picks, from ws, the warehouse with the smallest OrderIndex strictly
// greater than that of warehouseID.
func NextWarehouse(ws []Warehouse, warehouseID int64) (*Warehouse, error) {
	var from *Warehouse
	for i := range ws {
		if ws[i].ID == warehouseID {
			from = &ws[i]
			break
		}
	}
	if from == nil {
		return nil, fmt.Errorf("%w: warehouse %d", ErrNotFound, warehouseID)
	}

	var next *Warehouse
	for i := range ws {
		w := &ws[i]
		if w.OrderIndex <= from.OrderIndex {
			continue
		}
		if next == nil || w.OrderIndex < next.OrderIndex {
			next = w
		}
	}
	if next == nil {
		return nil, fmt.Errorf("%w: %s is the last warehouse", ErrNoNextWarehouse, from.Name)
	}
	n := *next
	return &n, nil
}

func sortWarehouses(ws []Warehouse) []Warehouse {
	out := append([]Warehouse(nil), ws...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}
