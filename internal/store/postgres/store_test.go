package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"inventory-ledger/internal/core"
	"inventory-ledger/internal/store/postgres"
	"inventory-ledger/internal/store/storetest"
)

// openTestStore connects to TEST_DATABASE_URL and empties every table.
// Tests using it are skipped when the variable is not set.
func openTestStore(t *testing.T) core.Store {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	s := postgres.New(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE history, lots, items, warehouses RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, openTestStore)
}
