package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/maltedev/catalog-scraper/internal/browser"
	"github.com/maltedev/catalog-scraper/internal/cleaner"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/fetch"
	"github.com/maltedev/catalog-scraper/internal/imagestore"
	"github.com/maltedev/catalog-scraper/internal/metrics"
	"github.com/maltedev/catalog-scraper/internal/parser"
	"github.com/maltedev/catalog-scraper/internal/pipeline"
	"github.com/maltedev/catalog-scraper/internal/ratelimit"
	"github.com/maltedev/catalog-scraper/internal/scraper"
	"github.com/maltedev/catalog-scraper/internal/storage"
	"github.com/maltedev/catalog-scraper/internal/validator"
	"github.com/maltedev/catalog-scraper/pkg/logger"
)

// pageFetcher loads product and catalog pages.
type pageFetcher interface {
	pipeline.Fetcher
	scraper.CatalogFetcher
}

func main() {
	var (
		urls        = flag.String("urls", "", "Comma-separated list of product URLs to scrape")
		inputFile   = flag.String("file", "", "File containing product URLs (one per line)")
		resume      = flag.Bool("resume", false, "Only process URLs the journal has not finished")
		fetcherName = flag.String("fetcher", "", "Override SCRAPER_FETCHER: browser or http")
		maxProducts = flag.Int("max", -1, "Override SCRAPER_MAX_PRODUCTS (0 = no limit)")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *fetcherName != "" {
		cfg.Scraper.Fetcher = *fetcherName
	}
	if *maxProducts >= 0 {
		cfg.Scraper.MaxProducts = *maxProducts
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	logger.Info("starting catalog scraper", "shop", cfg.Scraper.Shop, "fetcher", cfg.Scraper.Fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received, finishing current product")
		cancel()
	}()

	if err := run(ctx, cfg, logger, *urls, *inputFile, *resume, *metricsAddr); err != nil {
		logger.Error("scraper failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, urls, inputFile string, resume bool, metricsAddr string) error {
	userAgent := ""
	if len(cfg.Scraper.UserAgents) > 0 {
		userAgent = cfg.Scraper.UserAgents[0]
	}

	httpFetcher := fetch.NewHTTPFetcher(fetch.Options{
		Timeout:        cfg.Scraper.FetchTimeout,
		UserAgent:      userAgent,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
	}, logger)

	var pages pageFetcher = httpFetcher
	if cfg.Scraper.Fetcher == "browser" {
		opts := browser.DefaultOptions()
		opts.Headless = cfg.Browser.Headless
		opts.Timeout = cfg.Scraper.FetchTimeout
		opts.ViewportWidth = cfg.Browser.ViewportWidth
		opts.ViewportHeight = cfg.Browser.ViewportHeight
		opts.AcceptLanguage = cfg.Browser.AcceptLanguage
		opts.TimezoneID = cfg.Browser.TimezoneID
		opts.Locale = cfg.Browser.Locale
		if userAgent != "" {
			opts.UserAgent = userAgent
		}

		b, err := browser.New(opts, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize browser: %w", err)
		}
		defer b.Close()
		pages = b
	}

	db, err := database.New(ctx, database.Config{
		DSN:      cfg.Database.DSN(),
		MaxConns: int32(cfg.Database.MaxConns),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}
	products := database.NewProductStore(db, cfg.Scraper.Shop)

	var images pipeline.ImageSaver
	if cfg.Storage.Enabled {
		client, err := imagestore.NewClient(ctx, imagestore.ClientOptions{
			Endpoint:     cfg.Storage.Endpoint,
			Region:       cfg.Storage.Region,
			AccessKey:    cfg.Storage.AccessKey,
			SecretKey:    cfg.Storage.SecretKey,
			UsePathStyle: cfg.Storage.UsePathStyle,
		})
		if err != nil {
			return err
		}
		store := imagestore.New(client, cfg.Storage.Bucket, cfg.Scraper.Shop, httpFetcher, products, logger)
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}
		images = store
	}

	journal, err := storage.NewJournal(cfg.Scraper.JournalFile)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	targets, err := collectTargets(ctx, cfg, pages, journal, logger, urls, inputFile, resume)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		logger.Info("nothing to scrape")
		return nil
	}

	m := metrics.New()
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	c := cleaner.New(cleaner.Options{
		MaxTitleLen:       cfg.Validation.MaxTitleLen,
		MaxDescriptionLen: cfg.Validation.MaxDescriptionLen,
	})
	v := validator.New(validator.Limits{
		MinTitleLen:       cfg.Validation.MinTitleLen,
		MaxTitleLen:       cfg.Validation.MaxTitleLen,
		MaxPrice:          cfg.Validation.MaxPrice,
		MaxDescriptionLen: cfg.Validation.MaxDescriptionLen,
	})

	p := pipeline.New(pages, products, logger, pipeline.Config{
		Parser:    parser.NewExtractor(),
		Cleaner:   c,
		Validator: v,
		Images:    images,
		Pauser:    ratelimit.NewSimpleRateLimiter(cfg.Scraper.CardPauseMin, cfg.Scraper.CardPauseMax),
		Journal:   journal,
		Observer:  m,
	})

	summary := p.Run(ctx, targets)
	logger.Info("scraping completed",
		"total", summary.Total,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"failed", summary.Failed,
		"image_failures", summary.ImageFailures,
		"interrupted", summary.Interrupted,
		"took", summary.Duration,
		"journal", journal.Stats())

	return nil
}

// collectTargets returns the URLs to process: explicit URLs when given,
// otherwise the product cards of the configured catalogs.
func collectTargets(ctx context.Context, cfg *config.Config, pages scraper.CatalogFetcher, journal *storage.Journal,
	logger *slog.Logger, urls, inputFile string, resume bool) ([]string, error) {

	targets, err := explicitTargets(urls, inputFile)
	if err != nil {
		return nil, err
	}

	if len(targets) == 0 && !resume {
		crawler := scraper.NewCatalogCrawler(
			pages,
			ratelimit.NewSimpleRateLimiter(cfg.Scraper.CatalogPauseMin, cfg.Scraper.CatalogPauseMax),
			cfg.Scraper.BaseURL,
			logger,
		)
		targets, err = crawler.CollectLinks(ctx, cfg.Scraper.CatalogURLs)
		if err != nil {
			return nil, fmt.Errorf("failed to collect product links: %w", err)
		}
	}

	if err := journal.AddPending(targets); err != nil {
		return nil, fmt.Errorf("failed to update journal: %w", err)
	}
	if resume {
		targets = journal.Pending()
	}

	if cfg.Scraper.MaxProducts > 0 && len(targets) > cfg.Scraper.MaxProducts {
		targets = targets[:cfg.Scraper.MaxProducts]
	}
	return targets, nil
}

func explicitTargets(urls, inputFile string) ([]string, error) {
	var targets []string
	for _, u := range strings.Split(urls, ",") {
		if u = strings.TrimSpace(u); u != "" {
			targets = append(targets, u)
		}
	}

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				targets = append(targets, line)
			}
		}
	}
	return targets, nil
}
