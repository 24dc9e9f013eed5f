package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ecomOrderManagement/internal/config"
	"ecomOrderManagement/internal/db"
	"ecomOrderManagement/internal/events"
	"ecomOrderManagement/internal/httpserver"
	"ecomOrderManagement/internal/lifecycle"
	"ecomOrderManagement/internal/logging"
	"ecomOrderManagement/repository"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithDefaults()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	// Open DB
	d, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Error("close db", zap.Error(err))
		}
	}()

	orders := repository.NewOrderRepository(d)
	items := repository.NewOrderItemRepository(d)
	variants := repository.NewVariantRepository(d)
	products := repository.NewProductRepository(d)
	categories := repository.NewCategoryRepository(d)
	shipping := repository.NewShippingRepository(d)
	operators := repository.NewOperatorRepository(d)
	orderEvents := repository.NewOrderEventRepository(d)
	stats := repository.NewStatsRepository(d)

	// In-process event bus: the lifecycle publishes status changes, the
	// router fans them out to the audit trail and the sold counter.
	bus := events.NewBus(logger)
	router, err := events.NewRouter(bus,
		events.NewAuditRecorder(orderEvents, logger),
		events.NewSoldProjector(products, logger),
		logger)
	if err != nil {
		logger.Fatal("init event router", zap.Error(err))
	}

	svc, err := lifecycle.NewService(lifecycle.Deps{
		DB:        d,
		Orders:    orders,
		Items:     items,
		Variants:  variants,
		Products:  products,
		Shipping:  shipping,
		Publisher: bus,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("init lifecycle service", zap.Error(err))
	}

	srv := httpserver.New(
		httpserver.Config{Address: cfg.HTTP.Address, JWTSecret: cfg.Auth.JWTSecret},
		httpserver.Deps{
			Lifecycle:  svc,
			Orders:     orders,
			Items:      items,
			Events:     orderEvents,
			Products:   products,
			Variants:   variants,
			Categories: categories,
			Shipping:   shipping,
			Operators:  operators,
			Stats:      stats,
			Logger:     logger,
		})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := router.Run(ctx); err != nil {
			logger.Error("event router stopped", zap.Error(err))
		}
	}()

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for signal or server failure
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errc:
		logger.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := router.Close(); err != nil {
		logger.Error("close event router", zap.Error(err))
	}
	if err := bus.Close(); err != nil {
		logger.Error("close event bus", zap.Error(err))
	}
}
