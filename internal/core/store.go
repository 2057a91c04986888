package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the persistence boundary of the inventory core.
// Every mutation runs inside WithTx; fn's changes become visible atomically when it
// returns nil and are discarded otherwise. WithReadTx gives a consistent read-only view
// for aggregations.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	WithReadTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the store primitives available inside one transaction.
//
// Quantity changes go through AddLotQty and SubtractLotQty only. Implementations must
// apply them as atomic increments / conditional decrements in the database rather than
// as application-level read-then-write, so concurrent transactions on the same lot can
// never lose an update or drive a balance negative.
type Tx interface {
	// Warehouse registry.
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (*Warehouse, error)
	CreateWarehouse(ctx context.Context, name string, capacityPL int64, orderIndex int) (*Warehouse, error)
	SetWarehouseCapacity(ctx context.Context, id int64, capacityPL int64) error

	// Item catalog.
	FindOrCreateItem(ctx context.Context, name string) (*Item, error)
	CreateItem(ctx context.Context, name string) (*Item, error)
	DeleteItem(ctx context.Context, id int64) error
	ListItems(ctx context.Context) ([]Item, error)
	ItemsByIDs(ctx context.Context, ids []int64) ([]Item, error)

	// Lots.
	GetLot(ctx context.Context, key LotKey) (*Lot, error)
	ListLots(ctx context.Context) ([]Lot, error)
	// AddLotQty creates the lot with qty or increments an existing one, returning the new
	// balance. memo, when non-nil, replaces the lot memo.
	AddLotQty(ctx context.Context, key LotKey, qty decimal.Decimal, memo *string) (decimal.Decimal, error)
	// SubtractLotQty decrements the lot only if its balance covers qty, returning the new
	// balance. It fails with ErrNotFound or ErrInsufficientQuantity and changes nothing.
	SubtractLotQty(ctx context.Context, key LotKey, qty decimal.Decimal) (decimal.Decimal, error)
	// UpdateLotMemo returns the number of rows matched.
	UpdateLotMemo(ctx context.Context, key LotKey, memo string) (int64, error)

	// History ledger.
	AppendHistory(ctx context.Context, entry HistoryEntry) (HistoryEntry, error)
	ListHistory(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error)
	HistoryFlows(ctx context.Context) ([]ItemFlow, error)
}
