package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"inventory-ledger/internal/config"
	"inventory-ledger/internal/db"
	"inventory-ledger/internal/logger"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}

	log := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := db.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	log.Info("schema is up to date", zap.String("driver", cfg.Store.Driver))
}
