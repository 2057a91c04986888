package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"inventory-ledger/internal/app"
	"inventory-ledger/internal/core"
)

func kg(d decimal.Decimal) string { return d.StringFixed(core.QtyScale) }

func nullKg(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return kg(d.Decimal)
}

func printWarehouses(w io.Writer, result *app.WarehouseListResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-6s %-6s %-30s %12s\n", "ID", "ORDER", "NAME", "CAPACITY PL")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, wh := range result.Warehouses {
		fmt.Fprintf(w, "  %-6d %-6d %-30s %12d\n", wh.ID, wh.OrderIndex, wh.Name, wh.CapacityPL)
	}
	fmt.Fprintln(w, strings.Repeat("=", 62))
}

func printSnapshot(w io.Writer, s *core.Snapshot) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  WAREHOUSE %d: %s\n", s.Warehouse.ID, s.Warehouse.Name)
	fmt.Fprintf(w, "  Capacity : %d PL\n", s.CapacityPL)
	fmt.Fprintf(w, "  Stock    : %s kg\n", kg(s.TotalKg))
	fmt.Fprintf(w, "  Free     : %s kg (%d PL)\n", kg(s.FreeKg), s.FreePallets)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	if len(s.Lots) == 0 {
		fmt.Fprintln(w, "  No lots.")
		fmt.Fprintln(w, strings.Repeat("=", 72))
		return
	}
	fmt.Fprintf(w, "  %-20s %-16s %14s  %s\n", "ITEM", "LOT", "KG", "MEMO")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, l := range s.Lots {
		fmt.Fprintf(w, "  %-20s %-16s %14s  %s\n", l.ItemName, l.LotCode, kg(l.QtyKg), l.Memo)
	}
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func printTotals(w io.Writer, r *core.ItemTotalsReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  %-24s %14s %14s %14s\n", "ITEM", "STOCK KG", "IN KG", "OUT KG")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, row := range r.Rows {
		fmt.Fprintf(w, "  %-24s %14s %14s %14s\n", row.ItemName, kg(row.TotalKg), kg(row.InKg), kg(row.OutKg))
	}
	fmt.Fprintln(w, strings.Repeat("-", 72))
	fmt.Fprintf(w, "  %-24s %14s\n", "TOTAL", kg(r.GrandTotalKg))
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

func printHistory(w io.Writer, r *app.HistoryResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 110))
	fmt.Fprintf(w, "  %-10s %-14s %-16s %-12s %-9s %12s %12s %12s  %s\n",
		"DATE", "WAREHOUSE", "ITEM", "LOT", "KIND", "IN", "OUT", "BALANCE", "REASON")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, row := range r.Rows {
		reason := ""
		if row.Reason != nil {
			reason = *row.Reason
		}
		if row.CounterpartName != "" {
			reason += " (" + row.CounterpartName + ")"
		}
		fmt.Fprintf(w, "  %-10s %-14s %-16s %-12s %-9s %12s %12s %12s  %s\n",
			row.Date.Format("2006-01-02"), row.WarehouseName, row.ItemName, row.LotCode, row.Kind,
			nullKg(row.InKg), nullKg(row.OutKg), kg(row.QtyKg), strings.TrimSpace(reason))
	}
	fmt.Fprintln(w, strings.Repeat("=", 110))
	if len(r.Rows) == r.Limit {
		fmt.Fprintf(w, "  Showing the newest %d rows.\n", r.Limit)
	}
}

func printOperation(w io.Writer, r *app.OperationResult) {
	fmt.Fprintf(w, "%s committed.\n", strings.ToUpper(string(r.Operation)))
	for _, e := range r.Entries {
		qty := nullKg(e.InKg)
		sign := "+"
		if e.OutKg.Valid {
			qty, sign = nullKg(e.OutKg), "-"
		}
		fmt.Fprintf(w, "  [%-10s] warehouse %-4d lot %-12s %s%s kg  balance %s kg\n",
			e.Kind, e.WarehouseID, e.LotCode, sign, qty, kg(e.QtyKg))
	}
}

func printItems(w io.Writer, r *app.ItemListResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 40))
	if len(r.Items) == 0 {
		fmt.Fprintln(w, "  No items found.")
		fmt.Fprintln(w, strings.Repeat("=", 40))
		return
	}
	fmt.Fprintf(w, "  %-6s %s\n", "ID", "NAME")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for _, it := range r.Items {
		fmt.Fprintf(w, "  %-6d %s\n", it.ID, it.Name)
	}
	fmt.Fprintln(w, strings.Repeat("=", 40))
}

func printReconciliation(w io.Writer, r *core.ReconciliationReport) {
	if r.Balanced() {
		fmt.Fprintf(w, "Balanced: %d items checked, stock matches the ledger.\n", r.CheckedItems)
		return
	}
	fmt.Fprintf(w, "UNBALANCED: %d of %d items differ from the ledger.\n", len(r.Discrepancies), r.CheckedItems)
	for _, d := range r.Discrepancies {
		fmt.Fprintf(w, "  %-24s stock %s kg, ledger %s kg, diff %s kg\n",
			d.ItemName, kg(d.StockKg), kg(d.LedgerKg), kg(d.DiffKg))
	}
}
