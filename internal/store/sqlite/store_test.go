package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"inventory-ledger/internal/core"
	"inventory-ledger/internal/store/sqlite"
	"inventory-ledger/internal/store/storetest"
)

func openMemory(t *testing.T) core.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, openMemory)
}

func TestOpenFileIsReopenable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "inventory.db")

	s, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = s.WithTx(ctx, func(tx core.Tx) error {
		_, err := tx.CreateWarehouse(ctx, "Raw", 3, 1)
		return err
	})
	if err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	var ws []core.Warehouse
	err = s.WithReadTx(ctx, func(tx core.Tx) error {
		ws, err = tx.ListWarehouses(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("list warehouses: %v", err)
	}
	if len(ws) != 1 || ws[0].Name != "Raw" {
		t.Errorf("warehouses after reopen = %+v, want [Raw]", ws)
	}
}
