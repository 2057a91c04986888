package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InventoryService is the operations engine: every quantity change to a lot goes through
// it, and each call runs as a single store transaction that mutates the lot store and
// appends to the history ledger together or not at all.
type InventoryService interface {
	// Produce receives qty into a lot, creating the item and the lot when needed.
	Produce(ctx context.Context, in ProduceInput) ([]HistoryEntry, error)
	// ShipOut issues qty from a lot for a caller-chosen reason.
	ShipOut(ctx context.Context, in ShipOutInput) ([]HistoryEntry, error)
	// Move transfers qty from a lot to the same item and lot code in the next warehouse.
	// It records two history entries, one per leg.
	Move(ctx context.Context, in MoveInput) ([]HistoryEntry, error)
	// UpdateMemo replaces the memo of an existing lot. Quantities are untouched.
	UpdateMemo(ctx context.Context, key LotKey, memo string) error
}

// ProduceInput is the input of InventoryService.Produce.
type ProduceInput struct {
	WarehouseID int64
	ItemName    string
	LotCode     string
	QtyKg       decimal.Decimal
	Memo        string
}

// ShipOutInput is the input of InventoryService.ShipOut.
type ShipOutInput struct {
	WarehouseID int64
	ItemID      int64
	LotCode     string
	OutKg       decimal.Decimal
	Reason      string
	Memo        string
}

// MoveInput is the input of InventoryService.Move.
type MoveInput struct {
	FromWarehouseID int64
	ItemID          int64
	LotCode         string
	MoveKg          decimal.Decimal
	ToWarehouseID   int64
	Memo            string
}

// Operation names an engine operation for observers.
type Operation string

const (
	OpProduce    Operation = "produce"
	OpShipOut    Operation = "ship_out"
	OpMove       Operation = "move"
	OpUpdateMemo Operation = "update_memo"
)

// Observer is notified after an engine operation has committed or failed.
// Committed runs after the transaction is durable; observers cannot affect the outcome.
type Observer interface {
	Committed(ctx context.Context, op Operation, entries []HistoryEntry)
	Rejected(ctx context.Context, op Operation, err error)
}

// Option configures an InventoryService.
type Option func(*inventoryService)

// WithClock overrides the clock used to date history entries.
func WithClock(now func() time.Time) Option {
	return func(s *inventoryService) { s.now = now }
}

// WithObservers registers observers notified after each operation.
func WithObservers(obs ...Observer) Option {
	return func(s *inventoryService) { s.observers = append(s.observers, obs...) }
}

type inventoryService struct {
	store     Store
	now       func() time.Time
	observers []Observer
}

func NewInventoryService(store Store, opts ...Option) InventoryService {
	s := &inventoryService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ── Operations ────────────────────────────────────────────────────────────────

func (s *inventoryService) Produce(ctx context.Context, in ProduceInput) ([]HistoryEntry, error) {
	entries, err := s.produce(ctx, in)
	s.notify(ctx, OpProduce, entries, err)
	return entries, err
}

func (s *inventoryService) produce(ctx context.Context, in ProduceInput) ([]HistoryEntry, error) {
	if err := ValidateQty("qty_kg", in.QtyKg); err != nil {
		return nil, err
	}
	itemName, err := requireText("item name", in.ItemName)
	if err != nil {
		return nil, err
	}
	lotCode, err := requireText("lot code", in.LotCode)
	if err != nil {
		return nil, err
	}

	var entries []HistoryEntry
	err = s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.GetWarehouse(ctx, in.WarehouseID); err != nil {
			return err
		}
		item, err := tx.FindOrCreateItem(ctx, itemName)
		if err != nil {
			return err
		}

		key := LotKey{WarehouseID: in.WarehouseID, ItemID: item.ID, LotCode: lotCode}
		var memo *string
		if strings.TrimSpace(in.Memo) != "" {
			memo = &in.Memo
		}
		balance, err := tx.AddLotQty(ctx, key, in.QtyKg, memo)
		if err != nil {
			return err
		}

		entry, err := tx.AppendHistory(ctx, s.newEntry(key, EntryProduction, in.QtyKg, balance, ReasonProduction, in.Memo, nil))
		if err != nil {
			return err
		}
		entries = []HistoryEntry{entry}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("produce %s/%s: %w", itemName, lotCode, err)
	}
	return entries, nil
}

func (s *inventoryService) ShipOut(ctx context.Context, in ShipOutInput) ([]HistoryEntry, error) {
	entries, err := s.shipOut(ctx, in)
	s.notify(ctx, OpShipOut, entries, err)
	return entries, err
}

func (s *inventoryService) shipOut(ctx context.Context, in ShipOutInput) ([]HistoryEntry, error) {
	if err := ValidateQty("out_kg", in.OutKg); err != nil {
		return nil, err
	}
	reason, err := requireText("reason", in.Reason)
	if err != nil {
		return nil, err
	}
	lotCode, err := requireText("lot code", in.LotCode)
	if err != nil {
		return nil, err
	}
	key := LotKey{WarehouseID: in.WarehouseID, ItemID: in.ItemID, LotCode: lotCode}

	var entries []HistoryEntry
	err = s.store.WithTx(ctx, func(tx Tx) error {
		balance, err := tx.SubtractLotQty(ctx, key, in.OutKg)
		if err != nil {
			return err
		}
		mustBeNonNegative(key, balance)

		entry, err := tx.AppendHistory(ctx, s.newEntry(key, EntryShipOut, in.OutKg, balance, reason, in.Memo, nil))
		if err != nil {
			return err
		}
		entries = []HistoryEntry{entry}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ship out %s: %w", key, err)
	}
	return entries, nil
}

func (s *inventoryService) Move(ctx context.Context, in MoveInput) ([]HistoryEntry, error) {
	entries, err := s.move(ctx, in)
	s.notify(ctx, OpMove, entries, err)
	return entries, err
}

func (s *inventoryService) move(ctx context.Context, in MoveInput) ([]HistoryEntry, error) {
	if err := ValidateQty("move_kg", in.MoveKg); err != nil {
		return nil, err
	}
	lotCode, err := requireText("lot code", in.LotCode)
	if err != nil {
		return nil, err
	}
	src := LotKey{WarehouseID: in.FromWarehouseID, ItemID: in.ItemID, LotCode: lotCode}
	dst := LotKey{WarehouseID: in.ToWarehouseID, ItemID: in.ItemID, LotCode: lotCode}

	var entries []HistoryEntry
	err = s.store.WithTx(ctx, func(tx Tx) error {
		// Topology is re-read inside the transaction; it may have changed since the
		// caller looked it up.
		next, err := nextWarehouseTx(ctx, tx, in.FromWarehouseID)
		if err != nil {
			return err
		}
		if next.ID != in.ToWarehouseID {
			return fmt.Errorf("%w: lots leaving warehouse %d may only move to %s (id %d), got %d",
				ErrInvalidDestination, in.FromWarehouseID, next.Name, next.ID, in.ToWarehouseID)
		}

		srcBalance, err := tx.SubtractLotQty(ctx, src, in.MoveKg)
		if err != nil {
			return err
		}
		mustBeNonNegative(src, srcBalance)

		dstBalance, err := tx.AddLotQty(ctx, dst, in.MoveKg, nil)
		if err != nil {
			return err
		}

		from, to := in.FromWarehouseID, in.ToWarehouseID
		outLeg, err := tx.AppendHistory(ctx, s.newEntry(src, EntryMoveOut, in.MoveKg, srcBalance, ReasonMove, in.Memo, &to))
		if err != nil {
			return err
		}
		inLeg, err := tx.AppendHistory(ctx, s.newEntry(dst, EntryMoveIn, in.MoveKg, dstBalance, ReasonMove, in.Memo, &from))
		if err != nil {
			return err
		}
		entries = []HistoryEntry{outLeg, inLeg}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("move %s to warehouse %d: %w", src, in.ToWarehouseID, err)
	}
	return entries, nil
}

func (s *inventoryService) UpdateMemo(ctx context.Context, key LotKey, memo string) error {
	err := s.updateMemo(ctx, key, memo)
	s.notify(ctx, OpUpdateMemo, nil, err)
	return err
}

func (s *inventoryService) updateMemo(ctx context.Context, key LotKey, memo string) error {
	key = key.Normalize()
	if key.LotCode == "" {
		return fmt.Errorf("%w: lot code is required", ErrValidation)
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		n, err := tx.UpdateLotMemo(ctx, key, memo)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: no lot matches %s", ErrNotFound, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update memo: %w", err)
	}
	return nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *inventoryService) newEntry(key LotKey, kind EntryKind, qty, balance decimal.Decimal,
	reason, memo string, counterpart *int64) HistoryEntry {

	now := s.now()
	e := HistoryEntry{
		Date:                   time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		WarehouseID:            key.WarehouseID,
		ItemID:                 key.ItemID,
		LotCode:                key.LotCode,
		Kind:                   kind,
		QtyKg:                  balance,
		CounterpartWarehouseID: counterpart,
		CreatedAt:              now.UTC(),
	}
	switch kind {
	case EntryProduction, EntryMoveIn:
		e.InKg = decimal.NewNullDecimal(qty)
	case EntryShipOut, EntryMoveOut:
		e.OutKg = decimal.NewNullDecimal(qty)
	}
	if reason != "" {
		e.Reason = &reason
	}
	if strings.TrimSpace(memo) != "" {
		e.Memo = &memo
	}
	return e
}

func (s *inventoryService) notify(ctx context.Context, op Operation, entries []HistoryEntry, err error) {
	for _, o := range s.observers {
		if err != nil {
			o.Rejected(ctx, op, err)
		} else {
			o.Committed(ctx, op, entries)
		}
	}
}

// mustBeNonNegative guards the non-negativity invariant after a decrement. The store's
// conditional decrement makes a negative balance impossible; observing one means the
// store contract is broken.
func mustBeNonNegative(key LotKey, balance decimal.Decimal) {
	if balance.IsNegative() {
		panic(fmt.Sprintf("inventory invariant violated: lot %s has negative balance %s", key, balance))
	}
}
