package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	webAdapter "inventory-ledger/internal/adapters/web"
	"inventory-ledger/internal/app"
	"inventory-ledger/internal/audit"
	"inventory-ledger/internal/config"
	"inventory-ledger/internal/core"
	"inventory-ledger/internal/db"
	"inventory-ledger/internal/events"
	"inventory-ledger/internal/logger"
	"inventory-ledger/internal/metrics"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg.Store)
	if err != nil {
		baseLogger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(ctx); err != nil {
		baseLogger.Fatal("failed to apply schema", zap.Error(err))
	}

	m := metrics.New()
	observers := []core.Observer{m}

	if len(cfg.Events.Brokers) > 0 {
		publisher := events.NewPublisher(
			events.NewKafkaWriter(cfg.Events.Brokers, cfg.Events.Topic),
			logger.Named(baseLogger, "events"),
		)
		defer func() { _ = publisher.Close() }()
		observers = append(observers, publisher)
		baseLogger.Info("ledger event publishing enabled",
			zap.Strings("brokers", cfg.Events.Brokers), zap.String("topic", cfg.Events.Topic))
	} else {
		baseLogger.Warn("KAFKA_BROKERS not set, ledger events disabled")
	}

	svc := app.New(store, core.WithObservers(observers...))

	if cfg.Audit.CronSchedule != "" {
		sched := audit.NewScheduler(cfg.Audit.CronSchedule, svc, m, logger.Named(baseLogger, "audit"))
		if err := sched.Start(); err != nil {
			baseLogger.Fatal("failed to schedule audit", zap.Error(err))
		}
		defer sched.Stop()
	}

	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m.Handler(),
		Logger:         logger.Named(baseLogger, "http"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("driver", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
