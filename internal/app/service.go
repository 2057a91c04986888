package app

import (
	"context"

	"inventory-ledger/internal/core"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// ── Operations ──

	// Produce receives new stock into a lot. Unknown item names are added to the catalog.
	Produce(ctx context.Context, req ProduceRequest) (*OperationResult, error)

	// ShipOut issues stock from a lot for the given reason.
	ShipOut(ctx context.Context, req ShipOutRequest) (*OperationResult, error)

	// Move transfers stock to the next warehouse in the chain. ToWarehouseID must name it.
	Move(ctx context.Context, req MoveRequest) (*OperationResult, error)

	// Issue is the ship-out dialog action: the "move" reason moves the quantity to the
	// next warehouse, any other reason ships it out.
	Issue(ctx context.Context, req ShipOutRequest) (*OperationResult, error)

	// UpdateMemo replaces the memo of a lot.
	UpdateMemo(ctx context.Context, req UpdateMemoRequest) error

	// ── Views ──

	// WarehouseSnapshot returns capacity figures and visible lots of one warehouse.
	WarehouseSnapshot(ctx context.Context, warehouseID int64) (*core.Snapshot, error)

	// Dashboard returns the snapshot of every warehouse in chain order.
	Dashboard(ctx context.Context) (*DashboardResult, error)

	// ItemTotals returns stock and lifetime flows per item plus a grand total.
	ItemTotals(ctx context.Context) (*core.ItemTotalsReport, error)

	// History returns ledger rows, newest first. Dates are YYYY-MM-DD; empty means unbounded.
	History(ctx context.Context, req HistoryRequest) (*HistoryResult, error)

	// Reconcile checks stock against the ledger for every item.
	Reconcile(ctx context.Context) (*core.ReconciliationReport, error)

	// ── Warehouses ──

	// ListWarehouses returns the chain ordered by order index.
	ListWarehouses(ctx context.Context) (*WarehouseListResult, error)

	// NextWarehouse returns the downstream neighbour of warehouseID.
	NextWarehouse(ctx context.Context, warehouseID int64) (*core.Warehouse, error)

	// ShipOutReasons returns the reasons offered by the ship-out dialog of a warehouse.
	ShipOutReasons(ctx context.Context, warehouseID int64) (*ReasonsResult, error)

	// CreateWarehouse appends a warehouse to the chain at orderIndex.
	CreateWarehouse(ctx context.Context, req CreateWarehouseRequest) (*core.Warehouse, error)

	// SetWarehouseCapacity updates a warehouse capacity in pallets.
	SetWarehouseCapacity(ctx context.Context, warehouseID, capacityPL int64) error

	// ── Items ──

	// ListItems returns the catalog sorted by name.
	ListItems(ctx context.Context) (*ItemListResult, error)

	// CreateItem adds an item to the catalog.
	CreateItem(ctx context.Context, name string) (*core.Item, error)

	// DeleteItem removes an item that no lot references.
	DeleteItem(ctx context.Context, itemID int64) error
}
