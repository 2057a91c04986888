// Package metrics exposes Prometheus instruments for the inventory engine and the
// conservation audit.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inventory-ledger/internal/core"
)

const namespace = "inventory"

// Metrics implements core.Observer. Each instance owns its registry.
type Metrics struct {
	registry      *prometheus.Registry
	operations    *prometheus.CounterVec
	flowKg        *prometheus.CounterVec
	auditRuns     *prometheus.CounterVec
	discrepancies prometheus.Gauge
}

var _ core.Observer = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Engine operations by operation and outcome code.",
		}, []string{"op", "outcome"}),
		flowKg: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_kg_total",
			Help:      "Kilograms recorded in the history ledger by entry kind.",
		}, []string{"kind"}),
		auditRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "runs_total",
			Help:      "Conservation audit runs by result (balanced, unbalanced, error).",
		}, []string{"result"}),
		discrepancies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "discrepancies",
			Help:      "Items whose stock differed from the ledger in the last completed audit.",
		}),
	}
	m.registry.MustRegister(
		m.operations, m.flowKg, m.auditRuns, m.discrepancies,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Committed(_ context.Context, op core.Operation, entries []core.HistoryEntry) {
	m.operations.WithLabelValues(string(op), "committed").Inc()
	for _, e := range entries {
		q := e.InKg
		if !q.Valid {
			q = e.OutKg
		}
		if q.Valid {
			m.flowKg.WithLabelValues(string(e.Kind)).Add(q.Decimal.InexactFloat64())
		}
	}
}

func (m *Metrics) Rejected(_ context.Context, op core.Operation, err error) {
	m.operations.WithLabelValues(string(op), core.ErrorCode(err)).Inc()
}

// ObserveAudit records the outcome of one conservation audit run.
func (m *Metrics) ObserveAudit(report *core.ReconciliationReport, err error) {
	switch {
	case err != nil:
		m.auditRuns.WithLabelValues("error").Inc()
	case report.Balanced():
		m.auditRuns.WithLabelValues("balanced").Inc()
		m.discrepancies.Set(0)
	default:
		m.auditRuns.WithLabelValues("unbalanced").Inc()
		m.discrepancies.Set(float64(len(report.Discrepancies)))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
