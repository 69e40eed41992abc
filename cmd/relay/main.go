package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/metrics"
	"github.com/maltedev/catalog-scraper/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	metricsAddr := flag.String("metrics-addr", ":9091", "Address for the Prometheus metrics endpoint")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: int32(cfg.Database.MaxConns),
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	metricsServer := &http.Server{
		Addr:    *metricsAddr,
		Handler: m.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	defer metricsServer.Close()

	relay := database.NewRelay(database.NewOutboxRepository(db), redisClient, logger, database.RelayConfig{
		PollInterval: cfg.Redis.RelayInterval,
		BatchSize:    cfg.Redis.RelayBatchSize,
		MaxStreamLen: cfg.Redis.StreamMaxLen,
		Observer:     m,
	})

	if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("relay stopped with error", "error", err)
		os.Exit(1)
	}
}
