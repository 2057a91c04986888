package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-ledger/internal/core"
)

// Ship-out reasons offered by the issue dialog. The core accepts any non-blank reason;
// these are suggestions only.
const (
	ReasonSampling             = "sampling"
	ReasonConsumedInProduction = "consumed in production"
)

const dateLayout = "2006-01-02"

type appService struct {
	inventory  core.InventoryService
	views      core.ViewService
	catalog    core.CatalogService
	warehouses core.WarehouseRegistry
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	inventory core.InventoryService,
	views core.ViewService,
	catalog core.CatalogService,
	warehouses core.WarehouseRegistry,
) ApplicationService {
	return &appService{
		inventory:  inventory,
		views:      views,
		catalog:    catalog,
		warehouses: warehouses,
	}
}

// ── Operations ────────────────────────────────────────────────────────────────

func (s *appService) Produce(ctx context.Context, req ProduceRequest) (*OperationResult, error) {
	entries, err := s.inventory.Produce(ctx, core.ProduceInput{
		WarehouseID: req.WarehouseID,
		ItemName:    req.ItemName,
		LotCode:     req.LotCode,
		QtyKg:       req.QtyKg,
		Memo:        req.Memo,
	})
	if err != nil {
		return nil, err
	}
	return &OperationResult{Operation: core.OpProduce, Entries: entries}, nil
}

func (s *appService) ShipOut(ctx context.Context, req ShipOutRequest) (*OperationResult, error) {
	entries, err := s.inventory.ShipOut(ctx, core.ShipOutInput{
		WarehouseID: req.WarehouseID,
		ItemID:      req.ItemID,
		LotCode:     req.LotCode,
		OutKg:       req.OutKg,
		Reason:      req.Reason,
		Memo:        req.Memo,
	})
	if err != nil {
		return nil, err
	}
	return &OperationResult{Operation: core.OpShipOut, Entries: entries}, nil
}

func (s *appService) Move(ctx context.Context, req MoveRequest) (*OperationResult, error) {
	to := req.ToWarehouseID
	if to == 0 {
		next, err := s.warehouses.NextOf(ctx, req.FromWarehouseID)
		if err != nil {
			return nil, fmt.Errorf("move: %w", err)
		}
		to = next.ID
	}
	entries, err := s.inventory.Move(ctx, core.MoveInput{
		FromWarehouseID: req.FromWarehouseID,
		ItemID:          req.ItemID,
		LotCode:         req.LotCode,
		MoveKg:          req.MoveKg,
		ToWarehouseID:   to,
		Memo:            req.Memo,
	})
	if err != nil {
		return nil, err
	}
	return &OperationResult{Operation: core.OpMove, Entries: entries}, nil
}

func (s *appService) Issue(ctx context.Context, req ShipOutRequest) (*OperationResult, error) {
	if strings.TrimSpace(req.Reason) != core.ReasonMove {
		return s.ShipOut(ctx, req)
	}
	return s.Move(ctx, MoveRequest{
		FromWarehouseID: req.WarehouseID,
		ItemID:          req.ItemID,
		LotCode:         req.LotCode,
		MoveKg:          req.OutKg,
		Memo:            req.Memo,
	})
}

func (s *appService) UpdateMemo(ctx context.Context, req UpdateMemoRequest) error {
	return s.inventory.UpdateMemo(ctx, core.LotKey{
		WarehouseID: req.WarehouseID,
		ItemID:      req.ItemID,
		LotCode:     req.LotCode,
	}, req.Memo)
}

// ── Views ─────────────────────────────────────────────────────────────────────

func (s *appService) WarehouseSnapshot(ctx context.Context, warehouseID int64) (*core.Snapshot, error) {
	return s.views.WarehouseSnapshot(ctx, warehouseID)
}

func (s *appService) Dashboard(ctx context.Context) (*DashboardResult, error) {
	snaps, err := s.views.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardResult{Warehouses: snaps}, nil
}

func (s *appService) ItemTotals(ctx context.Context) (*core.ItemTotalsReport, error) {
	return s.views.ItemTotals(ctx)
}

func (s *appService) History(ctx context.Context, req HistoryRequest) (*HistoryResult, error) {
	filter := core.HistoryFilter{WarehouseID: req.WarehouseID, Limit: req.Limit}
	var err error
	if filter.From, err = parseDate("from date", req.FromDate); err != nil {
		return nil, err
	}
	if filter.To, err = parseDate("to date", req.ToDate); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 || filter.Limit > core.MaxHistoryLimit {
		filter.Limit = core.DefaultHistoryLimit
	}

	rows, err := s.views.HistoryWithNames(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &HistoryResult{Rows: rows, Limit: filter.Limit}, nil
}

func (s *appService) Reconcile(ctx context.Context) (*core.ReconciliationReport, error) {
	return s.views.Reconcile(ctx)
}

// ── Warehouses ────────────────────────────────────────────────────────────────

func (s *appService) ListWarehouses(ctx context.Context) (*WarehouseListResult, error) {
	ws, err := s.warehouses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	return &WarehouseListResult{Warehouses: ws}, nil
}

func (s *appService) NextWarehouse(ctx context.Context, warehouseID int64) (*core.Warehouse, error) {
	return s.warehouses.NextOf(ctx, warehouseID)
}

// ShipOutReasons offers "move" everywhere except at the last warehouse, where stock can
// only leave the chain.
func (s *appService) ShipOutReasons(ctx context.Context, warehouseID int64) (*ReasonsResult, error) {
	res := &ReasonsResult{WarehouseID: warehouseID, Default: ReasonSampling}
	_, err := s.warehouses.NextOf(ctx, warehouseID)
	switch {
	case err == nil:
		res.Reasons = []string{ReasonSampling, core.ReasonMove}
	case errors.Is(err, core.ErrNoNextWarehouse):
		res.Reasons = []string{ReasonSampling, ReasonConsumedInProduction}
	default:
		return nil, err
	}
	return res, nil
}

func (s *appService) CreateWarehouse(ctx context.Context, req CreateWarehouseRequest) (*core.Warehouse, error) {
	return s.catalog.CreateWarehouse(ctx, req.Name, req.CapacityPL, req.OrderIndex)
}

func (s *appService) SetWarehouseCapacity(ctx context.Context, warehouseID, capacityPL int64) error {
	return s.catalog.SetWarehouseCapacity(ctx, warehouseID, capacityPL)
}

// ── Items ─────────────────────────────────────────────────────────────────────

func (s *appService) ListItems(ctx context.Context) (*ItemListResult, error) {
	items, err := s.catalog.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return &ItemListResult{Items: items}, nil
}

func (s *appService) CreateItem(ctx context.Context, name string) (*core.Item, error) {
	return s.catalog.CreateItem(ctx, name)
}

func (s *appService) DeleteItem(ctx context.Context, itemID int64) error {
	return s.catalog.DeleteItem(ctx, itemID)
}

func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", core.ErrValidation, field, s)
	}
	return &d, nil
}

// New wires the core services over store.
func New(store core.Store, opts ...core.Option) ApplicationService {
	return NewAppService(
		core.NewInventoryService(store, opts...),
		core.NewViewService(store),
		core.NewCatalogService(store),
		core.NewWarehouseRegistry(store),
	)
}
