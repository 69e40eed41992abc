package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/catalog-scraper/internal/cleaner"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
	"github.com/maltedev/catalog-scraper/internal/validator"
)

// State is the position of a single item in the pipeline.
type State int

const (
	StatePending State = iota
	StateFetched
	StateExtracted
	StateCleaned
	StateValidated
	StateAccepted
	StateRejected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetched:
		return "fetched"
	case StateExtracted:
		return "extracted"
	case StateCleaned:
		return "cleaned"
	case StateValidated:
		return "validated"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateRejected || s == StateFailed
}

// Fetcher returns the HTML of a product page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Store persists accepted records keyed by URL and returns the product ID.
type Store interface {
	Upsert(ctx context.Context, rec *models.ProductRecord) (int64, error)
}

type ImageSaver interface {
	SaveImage(ctx context.Context, productID int64, imageURL string) error
}

// Pauser blocks between items.
type Pauser interface {
	Wait(ctx context.Context) error
}

// Journal tracks the terminal state of every processed URL.
type Journal interface {
	UpdateStatus(url, status, message string) error
}

type Observer interface {
	ObserveOutcome(state string, sources map[string]string, took time.Duration)
}

// Outcome describes how a single URL left the pipeline. FailedAt is the last
// state reached before a collaborator error.
type Outcome struct {
	URL       string
	State     State
	FailedAt  State
	Record    *models.ProductRecord
	ProductID int64
	Reasons   []string
	Sources   map[string]string
	Err       error
	ImageErr  error
	Duration  time.Duration
}

// Summary counts outcomes of a batch.
type Summary struct {
	Total         int
	Accepted      int
	Rejected      int
	Failed        int
	ImageFailures int
	Interrupted   bool
	Duration      time.Duration
}

func (s *Summary) add(o Outcome) {
	s.Total++
	switch o.State {
	case StateAccepted:
		s.Accepted++
	case StateRejected:
		s.Rejected++
	case StateFailed:
		s.Failed++
	}
	if o.ImageErr != nil {
		s.ImageFailures++
	}
}

// Config holds the optional collaborators. Nil Parser, Cleaner and Validator
// fall back to the package defaults; the rest are skipped when nil.
type Config struct {
	Parser    parser.Parser
	Cleaner   *cleaner.Cleaner
	Validator *validator.Validator
	Images    ImageSaver
	Pauser    Pauser
	Journal   Journal
	Observer  Observer
}

type Pipeline struct {
	fetcher   Fetcher
	store     Store
	parser    parser.Parser
	cleaner   *cleaner.Cleaner
	validator *validator.Validator
	images    ImageSaver
	pauser    Pauser
	journal   Journal
	observer  Observer
	logger    *slog.Logger
}

func New(fetcher Fetcher, store Store, logger *slog.Logger, cfg Config) *Pipeline {
	if cfg.Parser == nil {
		cfg.Parser = parser.NewExtractor()
	}
	if cfg.Cleaner == nil {
		cfg.Cleaner = cleaner.New(cleaner.DefaultOptions())
	}
	if cfg.Validator == nil {
		cfg.Validator = validator.New(validator.DefaultLimits())
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		fetcher:   fetcher,
		store:     store,
		parser:    cfg.Parser,
		cleaner:   cfg.Cleaner,
		validator: cfg.Validator,
		images:    cfg.Images,
		pauser:    cfg.Pauser,
		journal:   cfg.Journal,
		observer:  cfg.Observer,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run processes urls one at a time. A failing item never stops the batch; a
// cancelled context does, between items.
func (p *Pipeline) Run(ctx context.Context, urls []string) Summary {
	start := time.Now()
	var summary Summary

	p.logger.Info("starting batch", "urls", len(urls))

	for i, url := range urls {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		if i > 0 && p.pauser != nil {
			if err := p.pauser.Wait(ctx); err != nil {
				summary.Interrupted = true
				break
			}
		}

		o := p.Process(ctx, url)
		summary.add(o)

		p.logger.Debug("progress", "done", i+1, "total", len(urls))
	}

	summary.Duration = time.Since(start)
	p.logger.Info("batch finished",
		"total", summary.Total,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"failed", summary.Failed,
		"image_failures", summary.ImageFailures,
		"interrupted", summary.Interrupted,
		"duration", summary.Duration)

	return summary
}

// Process takes one URL from fetch to a terminal state. Only accepted
// records reach the store.
func (p *Pipeline) Process(ctx context.Context, url string) Outcome {
	start := time.Now()
	o := Outcome{URL: url, State: StatePending}

	html, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return p.finish(o.fail(fmt.Errorf("failed to fetch page: %w", err)), start)
	}
	o.State = StateFetched

	ex, err := p.parser.ParseProductPage(html, url)
	if err != nil {
		return p.finish(o.fail(fmt.Errorf("failed to extract product: %w", err)), start)
	}
	o.State = StateExtracted
	o.Sources = ex.Sources

	rec := p.cleaner.Clean(ex.Record)
	o.State = StateCleaned
	o.Record = rec

	res := p.validator.Validate(rec)
	o.State = StateValidated
	if !res.Accepted {
		o.State = StateRejected
		o.Reasons = res.Reasons
		return p.finish(o, start)
	}

	id, err := p.store.Upsert(ctx, rec)
	if err != nil {
		return p.finish(o.fail(fmt.Errorf("failed to store product: %w", err)), start)
	}
	o.ProductID = id
	o.State = StateAccepted

	if p.images != nil && rec.ImageURL != nil {
		if err := p.images.SaveImage(ctx, id, *rec.ImageURL); err != nil {
			o.ImageErr = err
		}
	}

	return p.finish(o, start)
}

func (o Outcome) fail(err error) Outcome {
	o.FailedAt = o.State
	o.State = StateFailed
	o.Err = err
	return o
}

func (p *Pipeline) finish(o Outcome, start time.Time) Outcome {
	o.Duration = time.Since(start)

	var message string
	switch o.State {
	case StateAccepted:
		p.logger.Info("product accepted",
			"url", o.URL,
			"id", o.ProductID,
			"title", models.Deref(o.Record.Title),
			"duration", o.Duration)
		if o.ImageErr != nil {
			p.logger.Warn("failed to save image", "url", o.URL, "id", o.ProductID, "error", o.ImageErr)
			message = "image: " + o.ImageErr.Error()
		}
	case StateRejected:
		message = strings.Join(o.Reasons, "; ")
		p.logger.Warn("product rejected", "url", o.URL, "reasons", o.Reasons)
	case StateFailed:
		message = o.Err.Error()
		p.logger.Error("product failed", "url", o.URL, "stage", o.FailedAt.String(), "error", o.Err)
	}

	if p.journal != nil {
		if err := p.journal.UpdateStatus(o.URL, o.State.String(), message); err != nil {
			p.logger.Error("failed to update journal", "url", o.URL, "error", err)
		}
	}
	if p.observer != nil {
		p.observer.ObserveOutcome(o.State.String(), o.Sources, o.Duration)
	}

	return o
}
