package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// KgPerPallet is the fixed conversion between capacity pallets (PL) and kilograms.
const KgPerPallet = 400

// Warehouse is one stage in the ordered warehouse chain.
// OrderIndex defines the movement topology: lots only move to the warehouse with the
// next-higher OrderIndex.
type Warehouse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CapacityPL int64  `json:"capacity_pl"`
	OrderIndex int    `json:"order_index"`
}

// CapacityKg returns the warehouse capacity converted to kilograms.
func (w Warehouse) CapacityKg() decimal.Decimal {
	return decimal.NewFromInt(w.CapacityPL * KgPerPallet)
}

// Item is a catalog entry (material or processed product).
type Item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LotKey is the primary key of a lot.
type LotKey struct {
	WarehouseID int64  `json:"warehouse_id"`
	ItemID      int64  `json:"item_id"`
	LotCode     string `json:"lot_code"`
}

func (k LotKey) String() string {
	return fmt.Sprintf("warehouse=%d item=%d lot=%q", k.WarehouseID, k.ItemID, k.LotCode)
}

// Normalize trims the lot code. Lot codes are otherwise compared case-sensitively.
func (k LotKey) Normalize() LotKey {
	k.LotCode = strings.TrimSpace(k.LotCode)
	return k
}

// Lot is a quantity of one item held in one warehouse under one lot code.
// A lot whose quantity reaches zero is kept as a zero row; it is never deleted.
type Lot struct {
	WarehouseID int64           `json:"warehouse_id"`
	ItemID      int64           `json:"item_id"`
	LotCode     string          `json:"lot_code"`
	QtyKg       decimal.Decimal `json:"qty_kg"`
	Memo        string          `json:"memo"`
}

// Key returns the lot's primary key.
func (l Lot) Key() LotKey {
	return LotKey{WarehouseID: l.WarehouseID, ItemID: l.ItemID, LotCode: l.LotCode}
}

// EntryKind classifies a history entry.
type EntryKind string

const (
	EntryProduction EntryKind = "production"
	EntryShipOut    EntryKind = "ship_out"
	EntryMoveOut    EntryKind = "move_out"
	EntryMoveIn     EntryKind = "move_in"
)

// Reasons recorded by the engine itself. ShipOut reasons are caller-supplied free text.
const (
	ReasonProduction = "production"
	ReasonMove       = "move"
)

// HistoryEntry is one append-only ledger row. Exactly one of InKg / OutKg is set.
// QtyKg is the lot balance at WarehouseID immediately after the event.
// A move is recorded as two entries (move_out at the source, move_in at the destination),
// each pointing at the other warehouse through CounterpartWarehouseID.
type HistoryEntry struct {
	ID                     int64               `json:"id"`
	Date                   time.Time           `json:"date"`
	WarehouseID            int64               `json:"warehouse_id"`
	ItemID                 int64               `json:"item_id"`
	LotCode                string              `json:"lot_code"`
	Kind                   EntryKind           `json:"kind"`
	InKg                   decimal.NullDecimal `json:"in_kg"`
	OutKg                  decimal.NullDecimal `json:"out_kg"`
	QtyKg                  decimal.Decimal     `json:"qty_kg"`
	Reason                 *string             `json:"reason,omitempty"`
	Memo                   *string             `json:"memo,omitempty"`
	CounterpartWarehouseID *int64              `json:"counterpart_warehouse_id,omitempty"`
	CreatedAt              time.Time           `json:"created_at"`
}

// HistoryRow is a ledger entry with warehouse and item names resolved.
type HistoryRow struct {
	HistoryEntry
	WarehouseName   string `json:"warehouse_name"`
	ItemName        string `json:"item_name"`
	CounterpartName string `json:"counterpart_name,omitempty"`
}

// HistoryFilter narrows a history query. Zero values mean "unbounded".
type HistoryFilter struct {
	WarehouseID *int64
	From        *time.Time // inclusive, compared by date
	To          *time.Time // inclusive, compared by date
	Limit       int
}

// Default and maximum number of history rows returned by one query.
const (
	DefaultHistoryLimit = 500
	MaxHistoryLimit     = 500
)

// ItemFlow is the lifetime in/out throughput of one item taken from the history ledger.
type ItemFlow struct {
	ItemID int64
	InKg   decimal.Decimal
	OutKg  decimal.Decimal
}

// ── Views ─────────────────────────────────────────────────────────────────────

// LotView is a visible lot row of a warehouse snapshot.
type LotView struct {
	ItemID   int64           `json:"item_id"`
	ItemName string          `json:"item_name"`
	LotCode  string          `json:"lot_code"`
	QtyKg    decimal.Decimal `json:"qty_kg"`
	Memo     string          `json:"memo"`
}

// Snapshot is the occupancy and lot listing of one warehouse.
// TotalKg and FreeKg are computed from every lot row of the warehouse; only Lots is
// subject to the global-zero filter.
type Snapshot struct {
	Warehouse   Warehouse       `json:"warehouse"`
	CapacityPL  int64           `json:"capacity_pl"`
	TotalKg     decimal.Decimal `json:"total_kg"`
	FreeKg      decimal.Decimal `json:"free_kg"`
	FreePallets int64           `json:"free_pallets"`
	Lots        []LotView       `json:"lots"`
}

// ItemTotal is one row of the per-item totals report.
type ItemTotal struct {
	ItemID   int64           `json:"item_id"`
	ItemName string          `json:"item_name"`
	TotalKg  decimal.Decimal `json:"total_kg"` // residual stock across all lots
	InKg     decimal.Decimal `json:"in_kg"`    // lifetime receipts from history
	OutKg    decimal.Decimal `json:"out_kg"`   // lifetime issues from history
}

// ItemTotalsReport is returned by ItemTotals.
type ItemTotalsReport struct {
	Rows         []ItemTotal     `json:"rows"`
	GrandTotalKg decimal.Decimal `json:"grand_total_kg"`
}

// ItemDiscrepancy reports an item whose residual stock does not match its ledger.
type ItemDiscrepancy struct {
	ItemID   int64           `json:"item_id"`
	ItemName string          `json:"item_name"`
	StockKg  decimal.Decimal `json:"stock_kg"`
	LedgerKg decimal.Decimal `json:"ledger_kg"` // in - out
	DiffKg   decimal.Decimal `json:"diff_kg"`   // stock - ledger
}

// ReconciliationReport is the result of a conservation check over the whole store.
type ReconciliationReport struct {
	CheckedItems  int               `json:"checked_items"`
	Discrepancies []ItemDiscrepancy `json:"discrepancies"`
}

// Balanced reports whether every item satisfies the conservation law.
func (r *ReconciliationReport) Balanced() bool {
	return len(r.Discrepancies) == 0
}
