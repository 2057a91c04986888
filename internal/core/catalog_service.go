package core

import (
	"context"
	"fmt"
	"sort"
)

// CatalogService administers master data: items and the warehouse chain.
// Lot quantities are never touched here.
type CatalogService interface {
	ListItems(ctx context.Context) ([]Item, error)
	CreateItem(ctx context.Context, name string) (*Item, error)
	// DeleteItem fails with ErrItemInUse while any lot, including a zero lot, references it.
	DeleteItem(ctx context.Context, itemID int64) error
	CreateWarehouse(ctx context.Context, name string, capacityPL int64, orderIndex int) (*Warehouse, error)
	SetWarehouseCapacity(ctx context.Context, warehouseID, capacityPL int64) error
}

type catalogService struct {
	store Store
}

func NewCatalogService(store Store) CatalogService {
	return &catalogService{store: store}
}

func (s *catalogService) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	err := s.store.WithReadTx(ctx, func(tx Tx) error {
		var err error
		items, err = tx.ListItems(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *catalogService) CreateItem(ctx context.Context, name string) (*Item, error) {
	name, err := requireText("item name", name)
	if err != nil {
		return nil, err
	}
	var item *Item
	err = s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		item, err = tx.CreateItem(ctx, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create item %q: %w", name, err)
	}
	return item, nil
}

func (s *catalogService) DeleteItem(ctx context.Context, itemID int64) error {
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteItem(ctx, itemID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete item %d: %w", itemID, err)
	}
	return nil
}

func (s *catalogService) CreateWarehouse(ctx context.Context, name string, capacityPL int64, orderIndex int) (*Warehouse, error) {
	name, err := requireText("warehouse name", name)
	if err != nil {
		return nil, err
	}
	if capacityPL < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative, got %d", ErrValidation, capacityPL)
	}
	var w *Warehouse
	err = s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		w, err = tx.CreateWarehouse(ctx, name, capacityPL, orderIndex)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse %q: %w", name, err)
	}
	return w, nil
}

func (s *catalogService) SetWarehouseCapacity(ctx context.Context, warehouseID, capacityPL int64) error {
	if capacityPL < 0 {
		return fmt.Errorf("%w: capacity must not be negative, got %d", ErrValidation, capacityPL)
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return tx.SetWarehouseCapacity(ctx, warehouseID, capacityPL)
	})
	if err != nil {
		return fmt.Errorf("failed to set capacity of warehouse %d: %w", warehouseID, err)
	}
	return nil
}
