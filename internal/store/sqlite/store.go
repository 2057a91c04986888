// Package sqlite implements core.Store on an embedded SQLite database (modernc.org/sqlite,
// no cgo). Quantities are stored as integer grams so arithmetic inside SQL stays exact.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"inventory-ledger/internal/core"
	"inventory-ledger/migrations"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339Nano
)

// Store is a core.Store backed by SQLite.
//
// The pool holds a single connection, so transactions run one at a time. That is what
// makes the in-memory mode work (each connection would otherwise see its own database)
// and it keeps writers from failing with SQLITE_BUSY inside one process.
type Store struct {
	db *sql.DB
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "inventory.db"
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every script is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	scripts, err := migrations.SQLite()
	if err != nil {
		return err
	}
	for _, sc := range scripts {
		if _, err := s.db.ExecContext(ctx, sc.SQL); err != nil {
			return fmt.Errorf("apply %s: %w", sc.Name, classify(err))
		}
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx core.Tx) error) error {
	return s.run(ctx, fn)
}

// WithReadTx shares WithTx's serialized transactions, which already give a stable view.
func (s *Store) WithReadTx(ctx context.Context, fn func(tx core.Tx) error) error {
	return s.run(ctx, fn)
}

func (s *Store) run(ctx context.Context, fn func(tx core.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

// ── Warehouses ────────────────────────────────────────────────────────────────

func (t *sqliteTx) ListWarehouses(ctx context.Context) ([]core.Warehouse, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name, capacity_pl, order_index FROM warehouses ORDER BY order_index`)
	if err != nil {
		return nil, fmt.Errorf("query warehouses: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var ws []core.Warehouse
	for rows.Next() {
		var w core.Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.CapacityPL, &w.OrderIndex); err != nil {
			return nil, fmt.Errorf("scan warehouse: %w", err)
		}
		ws = append(ws, w)
	}
	return ws, classify(rows.Err())
}

func (t *sqliteTx) GetWarehouse(ctx context.Context, id int64) (*core.Warehouse, error) {
	var w core.Warehouse
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, capacity_pl, order_index FROM warehouses WHERE id = ?`, id,
	).Scan(&w.ID, &w.Name, &w.CapacityPL, &w.OrderIndex)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: warehouse %d", core.ErrNotFound, id)
		}
		return nil, fmt.Errorf("fetch warehouse %d: %w", id, classify(err))
	}
	return &w, nil
}

func (t *sqliteTx) CreateWarehouse(ctx context.Context, name string, capacityPL int64, orderIndex int) (*core.Warehouse, error) {
	w := core.Warehouse{Name: name, CapacityPL: capacityPL, OrderIndex: orderIndex}
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO warehouses (name, capacity_pl, order_index) VALUES (?, ?, ?) RETURNING id`,
		name, capacityPL, orderIndex,
	).Scan(&w.ID)
	if err != nil {
		return nil, fmt.Errorf("insert warehouse: %w", classify(err))
	}
	return &w, nil
}

func (t *sqliteTx) SetWarehouseCapacity(ctx context.Context, id int64, capacityPL int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE warehouses SET capacity_pl = ? WHERE id = ?`, capacityPL, id)
	if err != nil {
		return fmt.Errorf("update capacity: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: warehouse %d", core.ErrNotFound, id)
	}
	return nil
}

// ── Items ─────────────────────────────────────────────────────────────────────

func (t *sqliteTx) FindOrCreateItem(ctx context.Context, name string) (*core.Item, error) {
	var it core.Item
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO items (name) VALUES (?)
		ON CONFLICT (name) DO UPDATE SET name = excluded.name
		RETURNING id, name`, name,
	).Scan(&it.ID, &it.Name)
	if err != nil {
		return nil, fmt.Errorf("upsert item %q: %w", name, classify(err))
	}
	return &it, nil
}

func (t *sqliteTx) CreateItem(ctx context.Context, name string) (*core.Item, error) {
	it := core.Item{Name: name}
	if err := t.tx.QueryRowContext(ctx, `INSERT INTO items (name) VALUES (?) RETURNING id`, name).Scan(&it.ID); err != nil {
		return nil, fmt.Errorf("insert item: %w", classify(err))
	}
	return &it, nil
}

func (t *sqliteTx) DeleteItem(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: item %d", core.ErrItemInUse, id)
		}
		return fmt.Errorf("delete item: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %d", core.ErrNotFound, id)
	}
	return nil
}

func (t *sqliteTx) ListItems(ctx context.Context) ([]core.Item, error) {
	return t.queryItems(ctx, `SELECT id, name FROM items ORDER BY name`)
}

func (t *sqliteTx) ItemsByIDs(ctx context.Context, ids []int64) ([]core.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return t.queryItems(ctx, `SELECT id, name FROM items WHERE id IN (`+marks+`) ORDER BY name`, args...)
}

func (t *sqliteTx) queryItems(ctx context.Context, q string, args ...any) ([]core.Item, error) {
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var items []core.Item
	for rows.Next() {
		var it core.Item
		if err := rows.Scan(&it.ID, &it.Name); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, classify(rows.Err())
}

// ── Lots ──────────────────────────────────────────────────────────────────────

func (t *sqliteTx) GetLot(ctx context.Context, key core.LotKey) (*core.Lot, error) {
	l := core.Lot{WarehouseID: key.WarehouseID, ItemID: key.ItemID, LotCode: key.LotCode}
	var grams int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT qty_g, memo FROM lots WHERE warehouse_id = ? AND item_id = ? AND lot_code = ?`,
		key.WarehouseID, key.ItemID, key.LotCode,
	).Scan(&grams, &l.Memo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: lot %s", core.ErrNotFound, key)
		}
		return nil, fmt.Errorf("fetch lot: %w", classify(err))
	}
	l.QtyKg = fromGrams(grams)
	return &l, nil
}

func (t *sqliteTx) ListLots(ctx context.Context) ([]core.Lot, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT warehouse_id, item_id, lot_code, qty_g, memo
		FROM lots
		ORDER BY warehouse_id, lot_code, item_id`)
	if err != nil {
		return nil, fmt.Errorf("query lots: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var lots []core.Lot
	for rows.Next() {
		var (
			l     core.Lot
			grams int64
		)
		if err := rows.Scan(&l.WarehouseID, &l.ItemID, &l.LotCode, &grams, &l.Memo); err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		l.QtyKg = fromGrams(grams)
		lots = append(lots, l)
	}
	return lots, classify(rows.Err())
}

func (t *sqliteTx) AddLotQty(ctx context.Context, key core.LotKey, qty decimal.Decimal, memo *string) (decimal.Decimal, error) {
	var grams int64
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO lots (warehouse_id, item_id, lot_code, qty_g, memo, updated_at)
		VALUES (?1, ?2, ?3, ?4, COALESCE(?5, ''), ?6)
		ON CONFLICT (warehouse_id, item_id, lot_code) DO UPDATE
		SET qty_g      = lots.qty_g + excluded.qty_g,
		    memo       = COALESCE(?5, lots.memo),
		    updated_at = excluded.updated_at
		RETURNING qty_g`,
		key.WarehouseID, key.ItemID, key.LotCode, toGrams(qty), memo, nowText(),
	).Scan(&grams)
	if err != nil {
		return decimal.Zero, fmt.Errorf("add to lot: %w", classify(err))
	}
	return fromGrams(grams), nil
}

func (t *sqliteTx) SubtractLotQty(ctx context.Context, key core.LotKey, qty decimal.Decimal) (decimal.Decimal, error) {
	var grams int64
	err := t.tx.QueryRowContext(ctx, `
		UPDATE lots
		SET qty_g = qty_g - ?4, updated_at = ?5
		WHERE warehouse_id = ?1 AND item_id = ?2 AND lot_code = ?3 AND qty_g >= ?4
		RETURNING qty_g`,
		key.WarehouseID, key.ItemID, key.LotCode, toGrams(qty), nowText(),
	).Scan(&grams)
	if err == nil {
		return fromGrams(grams), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("subtract from lot: %w", classify(err))
	}

	lot, err := t.GetLot(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, fmt.Errorf("%w: lot %s holds %s kg, requested %s kg",
		core.ErrInsufficientQuantity, key, lot.QtyKg, qty)
}

func (t *sqliteTx) UpdateLotMemo(ctx context.Context, key core.LotKey, memo string) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE lots SET memo = ?, updated_at = ? WHERE warehouse_id = ? AND item_id = ? AND lot_code = ?`,
		memo, nowText(), key.WarehouseID, key.ItemID, key.LotCode,
	)
	if err != nil {
		return 0, fmt.Errorf("update memo: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update memo: %w", err)
	}
	return n, nil
}

// ── History ───────────────────────────────────────────────────────────────────

func (t *sqliteTx) AppendHistory(ctx context.Context, e core.HistoryEntry) (core.HistoryEntry, error) {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO history (date, warehouse_id, item_id, lot_code, kind, in_g, out_g, qty_g,
		                     reason, memo, counterpart_warehouse_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		e.Date.Format(dateLayout), e.WarehouseID, e.ItemID, e.LotCode, string(e.Kind),
		nullGrams(e.InKg), nullGrams(e.OutKg), toGrams(e.QtyKg),
		e.Reason, e.Memo, e.CounterpartWarehouseID, e.CreatedAt.UTC().Format(timeLayout),
	).Scan(&e.ID)
	if err != nil {
		return core.HistoryEntry{}, fmt.Errorf("append history: %w", classify(err))
	}
	return e, nil
}

func (t *sqliteTx) ListHistory(ctx context.Context, f core.HistoryFilter) ([]core.HistoryEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.WarehouseID != nil {
		where = append(where, "warehouse_id = ?")
		args = append(args, *f.WarehouseID)
	}
	if f.From != nil {
		where = append(where, "date >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if f.To != nil {
		where = append(where, "date <= ?")
		args = append(args, f.To.Format(dateLayout))
	}

	q := `SELECT id, date, warehouse_id, item_id, lot_code, kind, in_g, out_g, qty_g,
		reason, memo, counterpart_warehouse_id, created_at FROM history`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date DESC, id DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var entries []core.HistoryEntry
	for rows.Next() {
		var (
			e             core.HistoryEntry
			date, created string
			kind          string
			inG, outG     sql.NullInt64
			qtyG          int64
			reason, memo  sql.NullString
			counterpart   sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &date, &e.WarehouseID, &e.ItemID, &e.LotCode, &kind,
			&inG, &outG, &qtyG, &reason, &memo, &counterpart, &created); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		if e.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("parse history date %q: %w", date, err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", created, err)
		}
		e.Kind = core.EntryKind(kind)
		e.InKg = nullDecimal(inG)
		e.OutKg = nullDecimal(outG)
		e.QtyKg = fromGrams(qtyG)
		if reason.Valid {
			e.Reason = &reason.String
		}
		if memo.Valid {
			e.Memo = &memo.String
		}
		if counterpart.Valid {
			e.CounterpartWarehouseID = &counterpart.Int64
		}
		entries = append(entries, e)
	}
	return entries, classify(rows.Err())
}

func (t *sqliteTx) HistoryFlows(ctx context.Context) ([]core.ItemFlow, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT item_id, COALESCE(SUM(in_g), 0), COALESCE(SUM(out_g), 0)
		FROM history
		GROUP BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("aggregate history: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var flows []core.ItemFlow
	for rows.Next() {
		var (
			f         core.ItemFlow
			inG, outG int64
		)
		if err := rows.Scan(&f.ItemID, &inG, &outG); err != nil {
			return nil, fmt.Errorf("scan item flow: %w", err)
		}
		f.InKg, f.OutKg = fromGrams(inG), fromGrams(outG)
		flows = append(flows, f)
	}
	return flows, classify(rows.Err())
}

// ── Conversions ───────────────────────────────────────────────────────────────

func toGrams(kg decimal.Decimal) int64 {
	return kg.Shift(core.QtyScale).IntPart()
}

func fromGrams(g int64) decimal.Decimal {
	return decimal.New(g, -core.QtyScale)
}

func nullGrams(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return toGrams(d.Decimal)
}

func nullDecimal(g sql.NullInt64) decimal.NullDecimal {
	if !g.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(fromGrams(g.Int64))
}

func nowText() string {
	return time.Now().UTC().Format(timeLayout)
}
