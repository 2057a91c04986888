package db

import (
	"context"
	"fmt"

	"inventory-ledger/internal/config"
	"inventory-ledger/internal/core"
	"inventory-ledger/internal/store/postgres"
	"inventory-ledger/internal/store/sqlite"
)

// Store is a core.Store that owns its connections and can apply the embedded schema.
type Store interface {
	core.Store
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects the store selected by cfg.Driver. SQLite databases are migrated on
// open; PostgreSQL schemas are applied by the migrate command or by calling Migrate.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool), nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
