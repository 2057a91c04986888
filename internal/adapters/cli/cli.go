package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"inventory-ledger/internal/app"
	"inventory-ledger/internal/core"
)

// ErrUsage is returned when a command is unknown or called with the wrong arguments.
var ErrUsage = errors.New("usage")

const commands = "warehouses, snapshot, dashboard, totals, history, reasons, produce, ship, move, " +
	"memo, items, item-add, item-rm, warehouse-add, capacity, reconcile"

// Run executes a one-shot CLI command and writes its output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: app <command> [args]\nAvailable: %s", ErrUsage, commands)
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "warehouses", "wh":
		result, err := svc.ListWarehouses(ctx)
		if err != nil {
			return err
		}
		printWarehouses(out, result)

	case "snapshot", "snap":
		if len(rest) != 1 {
			return usage("snapshot <warehouse-id>")
		}
		id, err := parseID("warehouse id", rest[0])
		if err != nil {
			return err
		}
		snap, err := svc.WarehouseSnapshot(ctx, id)
		if err != nil {
			return err
		}
		printSnapshot(out, snap)

	case "dashboard", "dash":
		result, err := svc.Dashboard(ctx)
		if err != nil {
			return err
		}
		for i := range result.Warehouses {
			printSnapshot(out, &result.Warehouses[i])
		}

	case "totals", "tot":
		report, err := svc.ItemTotals(ctx)
		if err != nil {
			return err
		}
		printTotals(out, report)

	case "history", "hist":
		req, err := parseHistoryFlags(rest)
		if err != nil {
			return err
		}
		result, err := svc.History(ctx, req)
		if err != nil {
			return err
		}
		printHistory(out, result)

	case "reasons":
		if len(rest) != 1 {
			return usage("reasons <warehouse-id>")
		}
		id, err := parseID("warehouse id", rest[0])
		if err != nil {
			return err
		}
		result, err := svc.ShipOutReasons(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Reasons: %s (default %q)\n", strings.Join(result.Reasons, ", "), result.Default)

	case "produce", "prod":
		if len(rest) < 4 || len(rest) > 5 {
			return usage("produce <warehouse-id> <item-name> <lot-code> <kg> [memo]")
		}
		id, err := parseID("warehouse id", rest[0])
		if err != nil {
			return err
		}
		qty, err := core.ParseQty("quantity", rest[3])
		if err != nil {
			return err
		}
		result, err := svc.Produce(ctx, app.ProduceRequest{
			WarehouseID: id, ItemName: rest[1], LotCode: rest[2], QtyKg: qty, Memo: optional(rest, 4),
		})
		if err != nil {
			return err
		}
		printOperation(out, result)

	case "ship":
		// The "move" reason moves the quantity to the next warehouse.
		if len(rest) < 5 || len(rest) > 6 {
			return usage("ship <warehouse-id> <item-id> <lot-code> <kg> <reason> [memo]")
		}
		key, err := parseLotKey(rest)
		if err != nil {
			return err
		}
		qty, err := core.ParseQty("quantity", rest[3])
		if err != nil {
			return err
		}
		result, err := svc.Issue(ctx, app.ShipOutRequest{
			WarehouseID: key.WarehouseID, ItemID: key.ItemID, LotCode: key.LotCode,
			OutKg: qty, Reason: rest[4], Memo: optional(rest, 5),
		})
		if err != nil {
			return err
		}
		printOperation(out, result)

	case "move", "mv":
		if len(rest) < 4 || len(rest) > 5 {
			return usage("move <warehouse-id> <item-id> <lot-code> <kg> [memo]")
		}
		key, err := parseLotKey(rest)
		if err != nil {
			return err
		}
		qty, err := core.ParseQty("quantity", rest[3])
		if err != nil {
			return err
		}
		result, err := svc.Move(ctx, app.MoveRequest{
			FromWarehouseID: key.WarehouseID, ItemID: key.ItemID, LotCode: key.LotCode,
			MoveKg: qty, Memo: optional(rest, 4),
		})
		if err != nil {
			return err
		}
		printOperation(out, result)

	case "memo":
		if len(rest) != 4 {
			return usage("memo <warehouse-id> <item-id> <lot-code> <memo>")
		}
		key, err := parseLotKey(rest)
		if err != nil {
			return err
		}
		if err := svc.UpdateMemo(ctx, app.UpdateMemoRequest{
			WarehouseID: key.WarehouseID, ItemID: key.ItemID, LotCode: key.LotCode, Memo: rest[3],
		}); err != nil {
			return err
		}
		fmt.Fprintln(out, "Memo updated.")

	case "items":
		result, err := svc.ListItems(ctx)
		if err != nil {
			return err
		}
		printItems(out, result)

	case "item-add":
		if len(rest) != 1 {
			return usage("item-add <name>")
		}
		item, err := svc.CreateItem(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Item %d %q created.\n", item.ID, item.Name)

	case "item-rm":
		if len(rest) != 1 {
			return usage("item-rm <item-id>")
		}
		id, err := parseID("item id", rest[0])
		if err != nil {
			return err
		}
		if err := svc.DeleteItem(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "Item %d deleted.\n", id)

	case "warehouse-add":
		if len(rest) != 3 {
			return usage("warehouse-add <name> <capacity-pl> <order-index>")
		}
		capacity, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: capacity must be an integer, got %q", core.ErrValidation, rest[1])
		}
		order, err := strconv.Atoi(rest[2])
		if err != nil {
			return fmt.Errorf("%w: order index must be an integer, got %q", core.ErrValidation, rest[2])
		}
		wh, err := svc.CreateWarehouse(ctx, app.CreateWarehouseRequest{Name: rest[0], CapacityPL: capacity, OrderIndex: order})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Warehouse %d %q created at order %d.\n", wh.ID, wh.Name, wh.OrderIndex)

	case "capacity", "cap":
		if len(rest) != 2 {
			return usage("capacity <warehouse-id> <pallets>")
		}
		id, err := parseID("warehouse id", rest[0])
		if err != nil {
			return err
		}
		capacity, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: capacity must be an integer, got %q", core.ErrValidation, rest[1])
		}
		if err := svc.SetWarehouseCapacity(ctx, id, capacity); err != nil {
			return err
		}
		fmt.Fprintf(out, "Warehouse %d capacity set to %d PL.\n", id, capacity)

	case "reconcile", "audit":
		report, err := svc.Reconcile(ctx)
		if err != nil {
			return err
		}
		printReconciliation(out, report)

	default:
		return fmt.Errorf("%w: unknown command %s\nAvailable: %s", ErrUsage, cmd, commands)
	}
	return nil
}

func usage(form string) error {
	return fmt.Errorf("%w: app %s", ErrUsage, form)
}

func parseID(field, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", core.ErrValidation, field, s)
	}
	return id, nil
}

// parseLotKey reads <warehouse-id> <item-id> <lot-code> from the head of args.
func parseLotKey(args []string) (core.LotKey, error) {
	wh, err := parseID("warehouse id", args[0])
	if err != nil {
		return core.LotKey{}, err
	}
	item, err := parseID("item id", args[1])
	if err != nil {
		return core.LotKey{}, err
	}
	return core.LotKey{WarehouseID: wh, ItemID: item, LotCode: args[2]}, nil
}

func optional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseHistoryFlags(args []string) (app.HistoryRequest, error) {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	warehouse := fs.Int64("warehouse", 0, "warehouse id (0 = all)")
	from := fs.String("from", "", "first date, YYYY-MM-DD")
	to := fs.String("to", "", "last date, YYYY-MM-DD")
	limit := fs.Int("limit", core.DefaultHistoryLimit, "maximum rows")
	if err := fs.Parse(args); err != nil {
		return app.HistoryRequest{}, usage("history [-warehouse id] [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-limit n]")
	}

	req := app.HistoryRequest{FromDate: *from, ToDate: *to, Limit: *limit}
	if *warehouse > 0 {
		req.WarehouseID = warehouse
	}
	return req, nil
}
