// Package postgres implements core.Store on PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"inventory-ledger/internal/core"
	"inventory-ledger/migrations"
)

// Store is a core.Store backed by PostgreSQL. Quantities live in NUMERIC(14,3) columns.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies the embedded schema. Every script is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	scripts, err := migrations.Postgres()
	if err != nil {
		return err
	}
	for _, sc := range scripts {
		if _, err := s.pool.Exec(ctx, sc.SQL); err != nil {
			return fmt.Errorf("failed to apply %s: %w", sc.Name, classify(err))
		}
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx core.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{}, fn)
}

// WithReadTx runs fn in a read-only REPEATABLE READ transaction so every query sees the
// same snapshot.
func (s *Store) WithReadTx(ctx context.Context, fn func(tx core.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(tx core.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", classify(err))
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

// ── Warehouses ────────────────────────────────────────────────────────────────

func (t *pgTx) ListWarehouses(ctx context.Context) ([]core.Warehouse, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, name, capacity_pl, order_index
		FROM warehouses
		ORDER BY order_index
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouses: %w", classify(err))
	}
	defer rows.Close()

	var ws []core.Warehouse
	for rows.Next() {
		var w core.Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.CapacityPL, &w.OrderIndex); err != nil {
			return nil, fmt.Errorf("failed to scan warehouse: %w", err)
		}
		ws = append(ws, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read warehouses: %w", classify(err))
	}
	return ws, nil
}

func (t *pgTx) GetWarehouse(ctx context.Context, id int64) (*core.Warehouse, error) {
	var w core.Warehouse
	err := t.tx.QueryRow(ctx,
		"SELECT id, name, capacity_pl, order_index FROM warehouses WHERE id = $1", id,
	).Scan(&w.ID, &w.Name, &w.CapacityPL, &w.OrderIndex)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: warehouse %d", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch warehouse %d: %w", id, classify(err))
	}
	return &w, nil
}

func (t *pgTx) CreateWarehouse(ctx context.Context, name string, capacityPL int64, orderIndex int) (*core.Warehouse, error) {
	w := core.Warehouse{Name: name, CapacityPL: capacityPL, OrderIndex: orderIndex}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO warehouses (name, capacity_pl, order_index)
		VALUES ($1, $2, $3)
		RETURNING id
	`, name, capacityPL, orderIndex).Scan(&w.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert warehouse: %w", classify(err))
	}
	return &w, nil
}

func (t *pgTx) SetWarehouseCapacity(ctx context.Context, id int64, capacityPL int64) error {
	tag, err := t.tx.Exec(ctx, "UPDATE warehouses SET capacity_pl = $2 WHERE id = $1", id, capacityPL)
	if err != nil {
		return fmt.Errorf("failed to update capacity: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: warehouse %d", core.ErrNotFound, id)
	}
	return nil
}

// ── Items ─────────────────────────────────────────────────────────────────────

func (t *pgTx) FindOrCreateItem(ctx context.Context, name string) (*core.Item, error) {
	var it core.Item
	err := t.tx.QueryRow(ctx, `
		INSERT INTO items (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name
	`, name).Scan(&it.ID, &it.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert item %q: %w", name, classify(err))
	}
	return &it, nil
}

func (t *pgTx) CreateItem(ctx context.Context, name string) (*core.Item, error) {
	it := core.Item{Name: name}
	err := t.tx.QueryRow(ctx, "INSERT INTO items (name) VALUES ($1) RETURNING id", name).Scan(&it.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", classify(err))
	}
	return &it, nil
}

func (t *pgTx) DeleteItem(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM items WHERE id = $1", id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: item %d", core.ErrItemInUse, id)
		}
		return fmt.Errorf("failed to delete item: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %d", core.ErrNotFound, id)
	}
	return nil
}

func (t *pgTx) ListItems(ctx context.Context) ([]core.Item, error) {
	return t.queryItems(ctx, "SELECT id, name FROM items ORDER BY name")
}

func (t *pgTx) ItemsByIDs(ctx context.Context, ids []int64) ([]core.Item, error) {
	return t.queryItems(ctx, "SELECT id, name FROM items WHERE id = ANY($1) ORDER BY name", ids)
}

func (t *pgTx) queryItems(ctx context.Context, sql string, args ...any) ([]core.Item, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", classify(err))
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		var it core.Item
		if err := rows.Scan(&it.ID, &it.Name); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", classify(err))
	}
	return items, nil
}

// ── Lots ──────────────────────────────────────────────────────────────────────

func (t *pgTx) GetLot(ctx context.Context, key core.LotKey) (*core.Lot, error) {
	l := core.Lot{WarehouseID: key.WarehouseID, ItemID: key.ItemID, LotCode: key.LotCode}
	err := t.tx.QueryRow(ctx, `
		SELECT qty_kg, memo FROM lots
		WHERE warehouse_id = $1 AND item_id = $2 AND lot_code = $3
	`, key.WarehouseID, key.ItemID, key.LotCode).Scan(&l.QtyKg, &l.Memo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: lot %s", core.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to fetch lot: %w", classify(err))
	}
	return &l, nil
}

func (t *pgTx) ListLots(ctx context.Context) ([]core.Lot, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT warehouse_id, item_id, lot_code, qty_kg, memo
		FROM lots
		ORDER BY warehouse_id, lot_code, item_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", classify(err))
	}
	defer rows.Close()

	var lots []core.Lot
	for rows.Next() {
		var l core.Lot
		if err := rows.Scan(&l.WarehouseID, &l.ItemID, &l.LotCode, &l.QtyKg, &l.Memo); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lots: %w", classify(err))
	}
	return lots, nil
}

func (t *pgTx) AddLotQty(ctx context.Context, key core.LotKey, qty decimal.Decimal, memo *string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		INSERT INTO lots (warehouse_id, item_id, lot_code, qty_kg, memo)
		VALUES ($1, $2, $3, $4, COALESCE($5::text, ''))
		ON CONFLICT (warehouse_id, item_id, lot_code) DO UPDATE
		SET qty_kg     = lots.qty_kg + EXCLUDED.qty_kg,
		    memo       = COALESCE($5::text, lots.memo),
		    updated_at = NOW()
		RETURNING qty_kg
	`, key.WarehouseID, key.ItemID, key.LotCode, qty, memo).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to add to lot: %w", classify(err))
	}
	return balance, nil
}

func (t *pgTx) SubtractLotQty(ctx context.Context, key core.LotKey, qty decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		UPDATE lots
		SET qty_kg = qty_kg - $4, updated_at = NOW()
		WHERE warehouse_id = $1 AND item_id = $2 AND lot_code = $3 AND qty_kg >= $4
		RETURNING qty_kg
	`, key.WarehouseID, key.ItemID, key.LotCode, qty).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to subtract from lot: %w", classify(err))
	}

	// Nothing updated: the lot is missing or does not cover qty.
	lot, err := t.GetLot(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, fmt.Errorf("%w: lot %s holds %s kg, requested %s kg",
		core.ErrInsufficientQuantity, key, lot.QtyKg, qty)
}

func (t *pgTx) UpdateLotMemo(ctx context.Context, key core.LotKey, memo string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE lots SET memo = $4, updated_at = NOW()
		WHERE warehouse_id = $1 AND item_id = $2 AND lot_code = $3
	`, key.WarehouseID, key.ItemID, key.LotCode, memo)
	if err != nil {
		return 0, fmt.Errorf("failed to update memo: %w", classify(err))
	}
	return tag.RowsAffected(), nil
}

// ── History ───────────────────────────────────────────────────────────────────

func (t *pgTx) AppendHistory(ctx context.Context, e core.HistoryEntry) (core.HistoryEntry, error) {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO history (date, warehouse_id, item_id, lot_code, kind, in_kg, out_kg, qty_kg,
		                     reason, memo, counterpart_warehouse_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, e.Date, e.WarehouseID, e.ItemID, e.LotCode, string(e.Kind), e.InKg, e.OutKg, e.QtyKg,
		e.Reason, e.Memo, e.CounterpartWarehouseID, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return core.HistoryEntry{}, fmt.Errorf("failed to append history: %w", classify(err))
	}
	return e, nil
}

func (t *pgTx) ListHistory(ctx context.Context, f core.HistoryFilter) ([]core.HistoryEntry, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.WarehouseID != nil {
		where = append(where, "warehouse_id = "+arg(*f.WarehouseID))
	}
	if f.From != nil {
		where = append(where, "date >= "+arg(dateOf(*f.From))+"::date")
	}
	if f.To != nil {
		where = append(where, "date <= "+arg(dateOf(*f.To))+"::date")
	}

	q := `
		SELECT id, date, warehouse_id, item_id, lot_code, kind, in_kg, out_kg, qty_kg,
		       reason, memo, counterpart_warehouse_id, created_at
		FROM history`
	if len(where) > 0 {
		q += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	q += "\n\t\tORDER BY date DESC, id DESC\n\t\tLIMIT " + arg(f.Limit)

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", classify(err))
	}
	defer rows.Close()

	var entries []core.HistoryEntry
	for rows.Next() {
		var (
			e    core.HistoryEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.WarehouseID, &e.ItemID, &e.LotCode, &kind,
			&e.InKg, &e.OutKg, &e.QtyKg, &e.Reason, &e.Memo, &e.CounterpartWarehouseID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Kind = core.EntryKind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", classify(err))
	}
	return entries, nil
}

func (t *pgTx) HistoryFlows(ctx context.Context) ([]core.ItemFlow, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT item_id, COALESCE(SUM(in_kg), 0), COALESCE(SUM(out_kg), 0)
		FROM history
		GROUP BY item_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate history: %w", classify(err))
	}
	defer rows.Close()

	var flows []core.ItemFlow
	for rows.Next() {
		var f core.ItemFlow
		if err := rows.Scan(&f.ItemID, &f.InKg, &f.OutKg); err != nil {
			return nil, fmt.Errorf("failed to scan item flow: %w", err)
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read item flows: %w", classify(err))
	}
	return flows, nil
}

func dateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
