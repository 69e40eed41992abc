package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/quality"
	"github.com/maltedev/catalog-scraper/pkg/logger"
)

type report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Quality     quality.Report   `json:"quality"`
	Analytics   quality.Analysis `json:"analytics"`
}

func main() {
	var (
		output  = flag.String("output", "", "Write the report to this file instead of stdout")
		topKeys = flag.Int("top", 20, "Number of characteristic keys to list")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
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

	products, err := database.NewProductStore(db, cfg.Scraper.Shop).AllProducts(ctx)
	if err != nil {
		logger.Error("failed to load products", "error", err)
		os.Exit(1)
	}

	records := make([]*models.ProductRecord, len(products))
	items := make([]quality.Item, len(products))
	for i, p := range products {
		records[i] = p.Record()
		items[i] = quality.Item{Shop: p.Shop, Record: records[i]}
	}

	r := report{
		GeneratedAt: time.Now().UTC(),
		Quality:     quality.Assess(records),
		Analytics:   quality.Analyze(items, *topKeys),
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			logger.Error("failed to create output file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}

	logger.Info("report generated",
		"products", r.Quality.TotalRecords,
		"quality_score", r.Quality.OverallScore)
	if *output != "" {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *output)
	}
}
