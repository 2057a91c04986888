// Package audit periodically checks the conservation law (stock == in - out per item)
// and reports discrepancies.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"inventory-ledger/internal/core"
)

// Reconciler is satisfied by core.ViewService.
type Reconciler interface {
	Reconcile(ctx context.Context) (*core.ReconciliationReport, error)
}

// Recorder receives the outcome of each run. *metrics.Metrics implements it.
type Recorder interface {
	ObserveAudit(report *core.ReconciliationReport, err error)
}

// Scheduler runs the audit on a standard five-field cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	views    Reconciler
	recorder Recorder
	logger   *zap.Logger
	timeout  time.Duration
}

func NewScheduler(schedule string, views Reconciler, recorder Recorder, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		schedule: schedule,
		views:    views,
		recorder: recorder,
		logger:   logger,
		timeout:  2 * time.Minute,
	}
}

// Start registers the audit job and starts the cron runner.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runScheduled); err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", s.schedule, err)
	}
	s.logger.Info("starting conservation audit", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop stops the runner and waits for a running audit to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping conservation audit")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.RunOnce(ctx)
}

// RunOnce performs one audit, logs every discrepancy and records the outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (*core.ReconciliationReport, error) {
	report, err := s.views.Reconcile(ctx)
	if s.recorder != nil {
		s.recorder.ObserveAudit(report, err)
	}
	if err != nil {
		s.logger.Error("conservation audit failed", zap.Error(err))
		return nil, err
	}

	if report.Balanced() {
		s.logger.Info("conservation audit balanced", zap.Int("items", report.CheckedItems))
		return report, nil
	}
	for _, d := range report.Discrepancies {
		s.logger.Warn("stock does not match ledger",
			zap.Int64("item_id", d.ItemID),
			zap.String("item", d.ItemName),
			zap.String("stock_kg", d.StockKg.String()),
			zap.String("ledger_kg", d.LedgerKg.String()),
			zap.String("diff_kg", d.DiffKg.String()),
		)
	}
	s.logger.Warn("conservation audit found discrepancies",
		zap.Int("items", report.CheckedItems), zap.Int("discrepancies", len(report.Discrepancies)))
	return report, nil
}
