package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ViewService derives read models from the store. Every result is recomputed from the
// current rows inside one read-only transaction; nothing is cached between calls.
type ViewService interface {
	// WarehouseSnapshot returns occupancy figures and the visible lots of one warehouse.
	WarehouseSnapshot(ctx context.Context, warehouseID int64) (*Snapshot, error)
	// Dashboard returns the snapshot of every warehouse in chain order.
	Dashboard(ctx context.Context) ([]Snapshot, error)
	// ItemTotals returns residual stock and lifetime in/out per item.
	ItemTotals(ctx context.Context) (*ItemTotalsReport, error)
	// History returns ledger entries, newest first.
	History(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error)
	// HistoryWithNames is History with warehouse and item names read in the same
	// transaction as the entries.
	HistoryWithNames(ctx context.Context, filter HistoryFilter) ([]HistoryRow, error)
	// Reconcile checks the conservation law for every item.
	Reconcile(ctx context.Context) (*ReconciliationReport, error)
}

type viewService struct {
	store Store
}

func NewViewService(store Store) ViewService {
	return &viewService{store: store}
}

func (s *viewService) WarehouseSnapshot(ctx context.Context, warehouseID int64) (*Snapshot, error) {
	var snap Snapshot
	err := s.store.WithReadTx(ctx, func(tx Tx) error {
		w, err := tx.GetWarehouse(ctx, warehouseID)
		if err != nil {
			return err
		}
		lots, err := tx.ListLots(ctx)
		if err != nil {
			return err
		}
		names, err := itemNamesTx(ctx, tx, visibleItemIDs(lots, []Warehouse{*w}))
		if err != nil {
			return err
		}
		snap = BuildSnapshot(*w, lots, names)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("warehouse snapshot: %w", err)
	}
	return &snap, nil
}

func (s *viewService) Dashboard(ctx context.Context) ([]Snapshot, error) {
	var snaps []Snapshot
	err := s.store.WithReadTx(ctx, func(tx Tx) error {
		ws, err := tx.ListWarehouses(ctx)
		if err != nil {
			return err
		}
		ws = sortWarehouses(ws)
		lots, err := tx.ListLots(ctx)
		if err != nil {
			return err
		}
		names, err := itemNamesTx(ctx, tx, visibleItemIDs(lots, ws))
		if err != nil {
			return err
		}
		snaps = make([]Snapshot, 0, len(ws))
		for _, w := range ws {
			snaps = append(snaps, BuildSnapshot(w, lots, names))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	return snaps, nil
}

func (s *viewService) ItemTotals(ctx context.Context) (*ItemTotalsReport, error) {
	var report *ItemTotalsReport
	err := s.store.WithReadTx(ctx, func(tx Tx) error {
		lots, err := tx.ListLots(ctx)
		if err != nil {
			return err
		}
		flows, err := tx.HistoryFlows(ctx)
		if err != nil {
			return err
		}
		items, err := tx.ListItems(ctx)
		if err != nil {
			return err
		}
		report = BuildItemTotals(lots, flows, items)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("item totals: %w", err)
	}
	return report, nil
}

func (s *viewService) History(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error) {
	filter, err := normalizeHistoryFilter(filter)
	if err != nil {
		return nil, err
	}

	var entries []HistoryEntry
	err = s.store.WithReadTx(ctx, func(tx Tx) error {
		var err error
		entries, err = tx.ListHistory(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return entries, nil
}

func (s *viewService) HistoryWithNames(ctx context.Context, filter HistoryFilter) ([]HistoryRow, error) {
	filter, err := normalizeHistoryFilter(filter)
	if err != nil {
		return nil, err
	}

	var rows []HistoryRow
	err = s.store.WithReadTx(ctx, func(tx Tx) error {
		entries, err := tx.ListHistory(ctx, filter)
		if err != nil {
			return err
		}
		ws, err := tx.ListWarehouses(ctx)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(entries))
		seen := make(map[int64]bool)
		for _, e := range entries {
			if !seen[e.ItemID] {
				seen[e.ItemID] = true
				ids = append(ids, e.ItemID)
			}
		}
		itemNames, err := itemNamesTx(ctx, tx, ids)
		if err != nil {
			return err
		}
		rows = BuildHistoryRows(entries, ws, itemNames)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return rows, nil
}

// normalizeHistoryFilter applies the default limit, caps it and rejects reversed ranges.
func normalizeHistoryFilter(filter HistoryFilter) (HistoryFilter, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultHistoryLimit
	}
	if filter.Limit > MaxHistoryLimit {
		filter.Limit = MaxHistoryLimit
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, fmt.Errorf("%w: history range ends before it starts", ErrValidation)
	}
	return filter, nil
}

func (s *viewService) Reconcile(ctx context.Context) (*ReconciliationReport, error) {
	totals, err := s.ItemTotals(ctx)
	if err != nil {
		return nil, err
	}
	return ReconcileTotals(totals), nil
}

// ── Pure aggregation ──────────────────────────────────────────────────────────

type lotCodeKey struct {
	itemID  int64
	lotCode string
}

// globalLotSums sums quantities per (item, lot code) across all warehouses.
func globalLotSums(lots []Lot) map[lotCodeKey]decimal.Decimal {
	sums := make(map[lotCodeKey]decimal.Decimal, len(lots))
	for _, l := range lots {
		k := lotCodeKey{itemID: l.ItemID, lotCode: strings.TrimSpace(l.LotCode)}
		sums[k] = sums[k].Add(l.QtyKg)
	}
	return sums
}

// BuildSnapshot computes the snapshot of w from every lot in the store.
//
// TotalKg and FreeKg use all of w's rows, zero rows included. The listed rows drop every
// lot whose (item, lot code) sums to zero across all warehouses. The filter key is
// global: a locally-zero row stays listed while the same lot code has stock elsewhere.
func BuildSnapshot(w Warehouse, all []Lot, itemNames map[int64]string) Snapshot {
	global := globalLotSums(all)

	total := decimal.Zero
	views := make([]LotView, 0)
	for _, l := range all {
		if l.WarehouseID != w.ID {
			continue
		}
		total = total.Add(l.QtyKg)

		code := strings.TrimSpace(l.LotCode)
		if !global[lotCodeKey{itemID: l.ItemID, lotCode: code}].IsPositive() {
			continue
		}
		views = append(views, LotView{
			ItemID:   l.ItemID,
			ItemName: itemNames[l.ItemID],
			LotCode:  code,
			QtyKg:    l.QtyKg,
			Memo:     l.Memo,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].LotCode != views[j].LotCode {
			return views[i].LotCode < views[j].LotCode
		}
		return views[i].ItemName < views[j].ItemName
	})

	free := decimal.Max(w.CapacityKg().Sub(total), decimal.Zero)
	return Snapshot{
		Warehouse:   w,
		CapacityPL:  w.CapacityPL,
		TotalKg:     total,
		FreeKg:      free,
		FreePallets: free.Div(decimal.NewFromInt(KgPerPallet)).Floor().IntPart(),
		Lots:        views,
	}
}

// BuildItemTotals joins residual stock per item with the ledger flows per item.
func BuildItemTotals(lots []Lot, flows []ItemFlow, items []Item) *ItemTotalsReport {
	names := make(map[int64]string, len(items))
	for _, it := range items {
		names[it.ID] = it.Name
	}

	rows := make(map[int64]*ItemTotal)
	row := func(id int64) *ItemTotal {
		r, ok := rows[id]
		if !ok {
			r = &ItemTotal{ItemID: id, ItemName: names[id]}
			rows[id] = r
		}
		return r
	}
	for _, l := range lots {
		r := row(l.ItemID)
		r.TotalKg = r.TotalKg.Add(l.QtyKg)
	}
	for _, f := range flows {
		r := row(f.ItemID)
		r.InKg = r.InKg.Add(f.InKg)
		r.OutKg = r.OutKg.Add(f.OutKg)
	}

	report := &ItemTotalsReport{Rows: make([]ItemTotal, 0, len(rows)), GrandTotalKg: decimal.Zero}
	for _, r := range rows {
		report.Rows = append(report.Rows, *r)
		report.GrandTotalKg = report.GrandTotalKg.Add(r.TotalKg)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		if report.Rows[i].ItemName != report.Rows[j].ItemName {
			return report.Rows[i].ItemName < report.Rows[j].ItemName
		}
		return report.Rows[i].ItemID < report.Rows[j].ItemID
	})
	return report
}

// ReconcileTotals reports every item whose residual stock differs from in - out.
func ReconcileTotals(totals *ItemTotalsReport) *ReconciliationReport {
	report := &ReconciliationReport{CheckedItems: len(totals.Rows), Discrepancies: []ItemDiscrepancy{}}
	for _, r := range totals.Rows {
		ledger := r.InKg.Sub(r.OutKg)
		if r.TotalKg.Equal(ledger) {
			continue
		}
		report.Discrepancies = append(report.Discrepancies, ItemDiscrepancy{
			ItemID:   r.ItemID,
			ItemName: r.ItemName,
			StockKg:  r.TotalKg,
			LedgerKg: ledger,
			DiffKg:   r.TotalKg.Sub(ledger),
		})
	}
	return report
}

// BuildHistoryRows attaches warehouse and item names to entries.
func BuildHistoryRows(entries []HistoryEntry, ws []Warehouse, itemNames map[int64]string) []HistoryRow {
	warehouseNames := make(map[int64]string, len(ws))
	for _, w := range ws {
		warehouseNames[w.ID] = w.Name
	}
	rows := make([]HistoryRow, 0, len(entries))
	for _, e := range entries {
		row := HistoryRow{
			HistoryEntry:  e,
			WarehouseName: warehouseNames[e.WarehouseID],
			ItemName:      itemNames[e.ItemID],
		}
		if e.CounterpartWarehouseID != nil {
			row.CounterpartName = warehouseNames[*e.CounterpartWarehouseID]
		}
		rows = append(rows, row)
	}
	return rows
}

func visibleItemIDs(lots []Lot, ws []Warehouse) []int64 {
	in := make(map[int64]bool, len(ws))
	for _, w := range ws {
		in[w.ID] = true
	}
	seen := make(map[int64]bool)
	var ids []int64
	for _, l := range lots {
		if !in[l.WarehouseID] || seen[l.ItemID] {
			continue
		}
		seen[l.ItemID] = true
		ids = append(ids, l.ItemID)
	}
	return ids
}

func itemNamesTx(ctx context.Context, tx Tx, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	items, err := tx.ItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		names[it.ID] = it.Name
	}
	return names, nil
}
