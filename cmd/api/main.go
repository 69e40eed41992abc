package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/catalog-scraper/internal/api"
	"github.com/maltedev/catalog-scraper/internal/cleaner"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/metrics"
	"github.com/maltedev/catalog-scraper/internal/parser"
	"github.com/maltedev/catalog-scraper/internal/validator"
	"github.com/maltedev/catalog-scraper/pkg/logger"
)

func main() {
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

	m := metrics.New()
	handlers := api.NewHandlers(api.Options{
		Parser: parser.NewExtractor(),
		Cleaner: cleaner.New(cleaner.Options{
			MaxTitleLen:       cfg.Validation.MaxTitleLen,
			MaxDescriptionLen: cfg.Validation.MaxDescriptionLen,
		}),
		Validator: validator.New(validator.Limits{
			MinTitleLen:       cfg.Validation.MinTitleLen,
			MaxTitleLen:       cfg.Validation.MaxTitleLen,
			MaxPrice:          cfg.Validation.MaxPrice,
			MaxDescriptionLen: cfg.Validation.MaxDescriptionLen,
		}),
		Products:     database.NewProductStore(db, cfg.Scraper.Shop),
		Outbox:       database.NewOutboxRepository(db),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, logger)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers, m, logger, api.RouterOptions{}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
