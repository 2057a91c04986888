package app

import "inventory-ledger/internal/core"

// OperationResult is returned by the quantity-changing operations.
type OperationResult struct {
	Operation core.Operation      `json:"operation"`
	Entries   []core.HistoryEntry `json:"entries"`
}

// DashboardResult is returned by Dashboard.
type DashboardResult struct {
	Warehouses []core.Snapshot `json:"warehouses"`
}

// HistoryRow is a ledger entry with warehouse and item names resolved.
type HistoryRow = core.HistoryRow

// HistoryResult is returned by History.
type HistoryResult struct {
	Rows  []HistoryRow `json:"rows"`
	Limit int          `json:"limit"`
}

// WarehouseListResult is returned by ListWarehouses.
type WarehouseListResult struct {
	Warehouses []core.Warehouse `json:"warehouses"`
}

// ItemListResult is returned by ListItems.
type ItemListResult struct {
	Items []core.Item `json:"items"`
}

// ReasonsResult is returned by ShipOutReasons.
type ReasonsResult struct {
	WarehouseID int64    `json:"warehouse_id"`
	Reasons     []string `json:"reasons"`
	Default     string   `json:"default"`
}
