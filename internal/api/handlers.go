package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/catalog-scraper/internal/cleaner"
	"github.com/maltedev/catalog-scraper/internal/database"
	"github.com/maltedev/catalog-scraper/internal/models"
	"github.com/maltedev/catalog-scraper/internal/parser"
	"github.com/maltedev/catalog-scraper/internal/quality"
	"github.com/maltedev/catalog-scraper/internal/validator"
)

const (
	defaultPageSize       = 50
	maxPageSize           = 500
	topCharacteristicKeys = 20
)

// ProductRepository is the read side of the product store.
type ProductRepository interface {
	ListProducts(ctx context.Context, limit, offset int) ([]*database.Product, error)
	GetProduct(ctx context.Context, id int64) (*database.Product, error)
	AllProducts(ctx context.Context) ([]*database.Product, error)
	Count(ctx context.Context) (int64, error)
}

// OutboxCounter reports outbox events per status.
type OutboxCounter interface {
	Counts(ctx context.Context) (map[string]int64, error)
}

type Handlers struct {
	parser    parser.Parser
	cleaner   *cleaner.Cleaner
	validator *validator.Validator
	products  ProductRepository
	outbox    OutboxCounter
	maxBody   int64
	logger    *slog.Logger
}

type Options struct {
	Parser       parser.Parser
	Cleaner      *cleaner.Cleaner
	Validator    *validator.Validator
	Products     ProductRepository
	Outbox       OutboxCounter
	MaxBodyBytes int64
}

func NewHandlers(opts Options, logger *slog.Logger) *Handlers {
	if opts.Parser == nil {
		opts.Parser = parser.NewExtractor()
	}
	if opts.Cleaner == nil {
		opts.Cleaner = cleaner.New(cleaner.DefaultOptions())
	}
	if opts.Validator == nil {
		opts.Validator = validator.New(validator.DefaultLimits())
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Handlers{
		parser:    opts.Parser,
		cleaner:   opts.Cleaner,
		validator: opts.Validator,
		products:  opts.Products,
		outbox:    opts.Outbox,
		maxBody:   opts.MaxBodyBytes,
		logger:    logger.With("component", "api"),
	}
}

type ExtractRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

type ExtractResponse struct {
	Record     *models.ProductRecord   `json:"record"`
	Raw        *models.ProductRecord   `json:"raw"`
	Sources    map[string]string       `json:"sources"`
	Validation models.ValidationResult `json:"validation"`
}

// Extract runs a posted page through extraction, cleaning and validation
// without storing anything.
func (h *Handlers) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.HTML == "" {
		h.respondError(w, http.StatusBadRequest, "html is required")
		return
	}

	ex, err := h.parser.ParseProductPage(req.HTML, req.URL)
	if err != nil {
		h.logger.Warn("failed to parse posted page", "url", req.URL, "error", err)
		h.respondError(w, http.StatusUnprocessableEntity, "failed to parse html")
		return
	}

	cleaned := h.cleaner.Clean(ex.Record)
	h.respondJSON(w, http.StatusOK, ExtractResponse{
		Record:     cleaned,
		Raw:        ex.Record,
		Sources:    ex.Sources,
		Validation: h.validator.Validate(cleaned),
	})
}

type ListProductsResponse struct {
	Products []*database.Product `json:"products"`
	Total    int64               `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	limit = min(limit, maxPageSize)

	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		h.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	products, err := h.products.ListProducts(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	total, err := h.products.Count(r.Context())
	if err != nil {
		h.logger.Error("failed to count products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to count products")
		return
	}

	if products == nil {
		products = []*database.Product{}
	}
	h.respondJSON(w, http.StatusOK, ListProductsResponse{
		Products: products,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.products.GetProduct(r.Context(), id)
	if errors.Is(err, database.ErrProductNotFound) {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get product", "product_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) Quality(w http.ResponseWriter, r *http.Request) {
	products, ok := h.allProducts(w, r)
	if !ok {
		return
	}
	records := make([]*models.ProductRecord, len(products))
	for i, p := range products {
		records[i] = p.Record()
	}
	h.respondJSON(w, http.StatusOK, quality.Assess(records))
}

func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	products, ok := h.allProducts(w, r)
	if !ok {
		return
	}
	items := make([]quality.Item, len(products))
	for i, p := range products {
		items[i] = quality.Item{Shop: p.Shop, Record: p.Record()}
	}
	h.respondJSON(w, http.StatusOK, quality.Analyze(items, topCharacteristicKeys))
}

func (h *Handlers) allProducts(w http.ResponseWriter, r *http.Request) ([]*database.Product, bool) {
	products, err := h.products.AllProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to load products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load products")
		return nil, false
	}
	return products, true
}

// Health reports ok unless the outbox has piled up dead letter events.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	status := http.StatusOK

	if h.outbox != nil {
		counts, err := h.outbox.Counts(r.Context())
		if err != nil {
			h.logger.Error("failed to read outbox counts", "error", err)
			h.respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "error",
				"message": "database unavailable",
			})
			return
		}

		pending := counts[database.OutboxStatusPending] + counts[database.OutboxStatusFailed]
		dead := counts[database.OutboxStatusDeadLetter]
		health["outbox"] = map[string]int64{"pending": pending, "dead_letter": dead}

		if pending > 1000 {
			health["status"] = "warning"
			health["message"] = "high number of pending outbox events"
		}
		if dead > 100 {
			health["status"] = "error"
			health["message"] = "high number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
