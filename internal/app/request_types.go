package app

import "github.com/shopspring/decimal"

// ProduceRequest is the input for receiving production into a lot.
type ProduceRequest struct {
	WarehouseID int64           `json:"warehouse_id"`
	ItemName    string          `json:"item_name"`
	LotCode     string          `json:"lot_code"`
	QtyKg       decimal.Decimal `json:"qty_kg"`
	Memo        string          `json:"memo"`
}

// ShipOutRequest is the input for issuing stock from a lot.
type ShipOutRequest struct {
	WarehouseID int64           `json:"warehouse_id"`
	ItemID      int64           `json:"item_id"`
	LotCode     string          `json:"lot_code"`
	OutKg       decimal.Decimal `json:"out_kg"`
	Reason      string          `json:"reason"`
	Memo        string          `json:"memo"`
}

// MoveRequest is the input for moving stock to the next warehouse.
// A zero ToWarehouseID means "the next warehouse", resolved at call time.
type MoveRequest struct {
	FromWarehouseID int64           `json:"from_warehouse_id"`
	ItemID          int64           `json:"item_id"`
	LotCode         string          `json:"lot_code"`
	MoveKg          decimal.Decimal `json:"move_kg"`
	ToWarehouseID   int64           `json:"to_warehouse_id"`
	Memo            string          `json:"memo"`
}

// UpdateMemoRequest is the input for editing a lot memo.
type UpdateMemoRequest struct {
	WarehouseID int64  `json:"warehouse_id"`
	ItemID      int64  `json:"item_id"`
	LotCode     string `json:"lot_code"`
	Memo        string `json:"memo"`
}

// HistoryRequest filters the history ledger.
type HistoryRequest struct {
	WarehouseID *int64
	FromDate    string // YYYY-MM-DD, inclusive
	ToDate      string // YYYY-MM-DD, inclusive
	Limit       int
}

// CreateWarehouseRequest is the input for adding a warehouse to the chain.
type CreateWarehouseRequest struct {
	Name       string `json:"name"`
	CapacityPL int64  `json:"capacity_pl"`
	OrderIndex int    `json:"order_index"`
}
