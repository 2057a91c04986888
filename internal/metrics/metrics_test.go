package metrics_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"inventory-ledger/internal/core"
	"inventory-ledger/internal/metrics"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func expectLine(t *testing.T, body, line string) {
	t.Helper()
	for _, l := range strings.Split(body, "\n") {
		if l == line {
			return
		}
	}
	t.Errorf("missing metric line %q", line)
}

func TestObserverCounters(t *testing.T) {
	m := metrics.New()
	ctx := context.Background()

	out := decimal.RequireFromString("2.5")
	m.Committed(ctx, core.OpMove, []core.HistoryEntry{
		{Kind: core.EntryMoveOut, OutKg: decimal.NewNullDecimal(out)},
		{Kind: core.EntryMoveIn, InKg: decimal.NewNullDecimal(out)},
	})
	m.Committed(ctx, core.OpUpdateMemo, nil)
	m.Rejected(ctx, core.OpShipOut, fmt.Errorf("ship out: %w", core.ErrInsufficientQuantity))
	m.Rejected(ctx, core.OpShipOut, errors.New("disk on fire"))

	body := scrape(t, m)
	expectLine(t, body, `inventory_operations_total{op="move",outcome="committed"} 1`)
	expectLine(t, body, `inventory_operations_total{op="update_memo",outcome="committed"} 1`)
	expectLine(t, body, `inventory_operations_total{op="ship_out",outcome="insufficient_quantity"} 1`)
	expectLine(t, body, `inventory_operations_total{op="ship_out",outcome="internal_error"} 1`)
	expectLine(t, body, `inventory_flow_kg_total{kind="move_out"} 2.5`)
	expectLine(t, body, `inventory_flow_kg_total{kind="move_in"} 2.5`)
}

func TestObserveAudit(t *testing.T) {
	m := metrics.New()

	m.ObserveAudit(&core.ReconciliationReport{
		CheckedItems:  3,
		Discrepancies: []core.ItemDiscrepancy{{ItemID: 1}, {ItemID: 2}},
	}, nil)
	body := scrape(t, m)
	expectLine(t, body, `inventory_audit_runs_total{result="unbalanced"} 1`)
	expectLine(t, body, `inventory_audit_discrepancies 2`)

	m.ObserveAudit(nil, errors.New("store down"))
	m.ObserveAudit(&core.ReconciliationReport{CheckedItems: 3}, nil)
	body = scrape(t, m)
	expectLine(t, body, `inventory_audit_runs_total{result="error"} 1`)
	expectLine(t, body, `inventory_audit_runs_total{result="balanced"} 1`)
	expectLine(t, body, `inventory_audit_discrepancies 0`)
}
