package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/fetch"
	"github.com/maltedev/catalog-scraper/internal/imagestore"
	"github.com/maltedev/catalog-scraper/pkg/logger"
)

func main() {
	yes := flag.Bool("yes", false, "Skip the confirmation prompt")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	if !*yes && !confirm(fmt.Sprintf("Delete all products in %s and empty bucket %s? [y/N] ",
		cfg.Database.DBName, cfg.Storage.Bucket)) {
		fmt.Println("Aborted")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: 2,
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

	products := database.NewProductStore(db, cfg.Scraper.Shop)
	if err := products.Reset(ctx); err != nil {
		logger.Error("failed to reset database", "error", err)
		os.Exit(1)
	}
	logger.Info("database reset")

	if !cfg.Storage.Enabled {
		return
	}

	client, err := imagestore.NewClient(ctx, imagestore.ClientOptions{
		Endpoint:     cfg.Storage.Endpoint,
		Region:       cfg.Storage.Region,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})
	if err != nil {
		logger.Error("failed to create storage client", "error", err)
		os.Exit(1)
	}

	store := imagestore.New(client, cfg.Storage.Bucket, cfg.Scraper.Shop,
		fetch.NewHTTPFetcher(fetch.Options{}, logger), products, logger)
	n, err := store.EmptyBucket(ctx)
	if err != nil {
		logger.Error("failed to empty bucket", "error", err)
		os.Exit(1)
	}
	logger.Info("storage reset", "bucket", cfg.Storage.Bucket, "deleted", n)
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
