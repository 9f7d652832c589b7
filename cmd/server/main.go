// Package main is the entry point for the stockroom server. It hosts the
// persistence core in-process and exposes health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"stockroom/internal/config"
	corecache "stockroom/internal/core/cache"
	"stockroom/internal/core/storage"
	"stockroom/internal/core/uow"
	"stockroom/internal/domain"
	"stockroom/internal/domain/model"
	infracache "stockroom/internal/infrastructure/cache"
	v1 "stockroom/internal/infrastructure/http/v1"
	"stockroom/internal/infrastructure/http/v1/handlers"
	"stockroom/internal/infrastructure/metrics"
	"stockroom/internal/infrastructure/storage/memory"
	"stockroom/internal/infrastructure/storage/postgres"
	"stockroom/pkg/logger"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Server.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting stockroom", "version", version, "storage", cfg.Storage.Driver)

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// --- Storage ---
	store, pool, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
	}
	defer store.Close()

	// --- Cache ---
	var cache corecache.Service = corecache.Noop{}
	var cacheSizer handlers.Sizer
	if cfg.Cache.Enabled {
		svc := infracache.New(infracache.Options{
			DefaultExpiration: cfg.Cache.DefaultExpiration,
			Capacity:          cfg.Cache.Capacity,
			Metrics:           m,
		})
		svc.Start(ctx)
		defer svc.Stop(context.Background())
		cache, cacheSizer = svc, svc
	}

	// --- Units of work ---
	factory := domain.NewFactory(store,
		uow.WithCache(cache, cfg.Cache.KeyPrefix),
		uow.WithMetrics(m),
		uow.WithCommandTimeout(cfg.Query.CommandTimeout),
	)
	if err := factory.Do(ctx, logInventory); err != nil {
		log.Warnw("inventory summary unavailable", "error", err)
	}

	// --- Router ---
	health := handlers.HealthConfig{
		App:     "stockroom",
		Version: version,
		Driver:  cfg.Storage.Driver,
		Store:   store,
		Cache:   cacheSizer,
	}
	if pool != nil {
		health.Pool = pool
		go logPoolStats(ctx, pool)
	}
	router := v1.NewRouter(v1.RouterConfig{
		Health:      health,
		Gatherer:    registry,
		Logger:      log,
		Development: cfg.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// --- Graceful shutdown ---
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, *postgres.Pool, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DSN)
		poolCfg.MaxConns = cfg.Storage.MaxConns
		poolCfg.MinConns = cfg.Storage.MinConns
		poolCfg.MaxConnLifetime = cfg.Storage.MaxConnLifetime
		poolCfg.MaxConnIdleTime = cfg.Storage.MaxConnIdleTime

		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, nil, err
		}
		txOpts := postgres.DefaultTxOptions()
		txOpts.StatementTimeout = cfg.Storage.StatementTimeout
		return postgres.NewStore(pool, txOpts), pool, nil
	default:
		return memory.New(model.Schema()...), nil, nil
	}
}

func logInventory(ctx context.Context, u *domain.UnitOfWork) error {
	products := u.Products().Count(ctx, nil)
	if !products.IsSuccess() {
		return products.Err()
	}
	unread := u.Notifications().Count(ctx, model.Unread())
	if !unread.IsSuccess() {
		return unread.Err()
	}
	logger.Info(ctx, "inventory loaded", "products", products.Value(), "unread_notifications", unread.Value())
	return nil
}

func logPoolStats(ctx context.Context, pool *postgres.Pool) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pool.LogStats(ctx)
		}
	}
}
