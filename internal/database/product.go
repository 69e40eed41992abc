package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/catalog-scraper/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// Product is a stored row of the products table together with its main image.
type Product struct {
	ID              int64                  `json:"id"`
	Shop            string                 `json:"shop"`
	URL             string                 `json:"url"`
	Title           *string                `json:"title"`
	Price           *int64                 `json:"price"`
	Description     *string                `json:"description"`
	Characteristics models.Characteristics `json:"characteristics"`
	ImageURL        *string                `json:"image_url"`
	StoragePath     *string                `json:"storage_path"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Record converts the row back into the record shape used by the pipeline.
func (p *Product) Record() *models.ProductRecord {
	return &models.ProductRecord{
		URL:             p.URL,
		Title:           p.Title,
		Price:           p.Price,
		Description:     p.Description,
		Characteristics: p.Characteristics,
		ImageURL:        p.ImageURL,
	}
}

// ProductStore persists accepted products and their images. Every upsert
// also queues a PRODUCT_UPSERTED event in the outbox.
type ProductStore struct {
	db     *DB
	outbox *OutboxRepository
	shop   string
	stream string
}

func NewProductStore(db *DB, shop string) *ProductStore {
	return &ProductStore{
		db:     db,
		outbox: NewOutboxRepository(db),
		shop:   shop,
		stream: DefaultProductStream,
	}
}

// WithStream overrides the Redis stream events are routed to.
func (s *ProductStore) WithStream(stream string) *ProductStore {
	s.stream = stream
	return s
}

// Upsert inserts rec keyed by its URL. An existing row gets the new price,
// description and characteristics; the title is left as first stored.
func (s *ProductStore) Upsert(ctx context.Context, rec *models.ProductRecord) (int64, error) {
	if rec == nil || rec.URL == "" {
		return 0, errors.New("product URL is required")
	}

	chars, err := rec.Characteristics.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("failed to marshal characteristics: %w", err)
	}

	var id int64
	err = s.db.Transaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO products (shop, product_url, title, price, description, characteristics)
			VALUES ($1, $2, $3, $4, $5, $6::jsonb)
			ON CONFLICT (product_url) DO UPDATE SET
				price = EXCLUDED.price,
				description = EXCLUDED.description,
				characteristics = EXCLUDED.characteristics,
				updated_at = NOW()
			RETURNING id, (xmax = 0)`

		var created bool
		err := tx.QueryRow(ctx, query,
			s.shop, rec.URL, rec.Title, rec.Price, rec.Description, string(chars),
		).Scan(&id, &created)
		if err != nil {
			return fmt.Errorf("failed to upsert product: %w", err)
		}

		event, err := NewProductUpsertedEvent(s.stream, ProductUpsertedPayload{
			ProductID:       id,
			Shop:            s.shop,
			URL:             rec.URL,
			Title:           rec.Title,
			Price:           rec.Price,
			Characteristics: rec.Characteristics,
			ImageURL:        rec.ImageURL,
			Created:         created,
		})
		if err != nil {
			return err
		}
		return s.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// SaveImageRecord links an uploaded image to a product as its main image.
// Saving the same path twice is a no-op.
func (s *ProductStore) SaveImageRecord(ctx context.Context, productID int64, imageURL, storagePath string) error {
	query := `
		INSERT INTO product_images (product_id, image_url, storage_path, is_main)
		VALUES ($1, $2, $3, true)
		ON CONFLICT DO NOTHING`

	if _, err := s.db.Exec(ctx, query, productID, imageURL, storagePath); err != nil {
		return fmt.Errorf("failed to save image record: %w", err)
	}
	return nil
}

const selectProducts = `
	SELECT p.id, p.shop, p.product_url, p.title, p.price, p.description,
		p.characteristics, i.image_url, i.storage_path, p.created_at, p.updated_at
	FROM products p
	LEFT JOIN LATERAL (
		SELECT image_url, storage_path FROM product_images
		WHERE product_id = p.id AND is_main
		ORDER BY id LIMIT 1
	) i ON true`

func scanProduct(row pgx.Row) (*Product, error) {
	p := &Product{}
	var chars []byte
	err := row.Scan(
		&p.ID, &p.Shop, &p.URL, &p.Title, &p.Price, &p.Description,
		&chars, &p.ImageURL, &p.StoragePath, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := p.Characteristics.UnmarshalJSON(chars); err != nil {
		return nil, fmt.Errorf("failed to decode characteristics of product %d: %w", p.ID, err)
	}
	return p, nil
}

func (s *ProductStore) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, selectProducts+" WHERE p.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ListProducts returns a page of products, newest first.
func (s *ProductStore) ListProducts(ctx context.Context, limit, offset int) ([]*Product, error) {
	rows, err := s.db.Query(ctx, selectProducts+" ORDER BY p.id DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AllProducts loads every stored product in insertion order, for quality and
// analytics reports.
func (s *ProductStore) AllProducts(ctx context.Context) ([]*Product, error) {
	rows, err := s.db.Query(ctx, selectProducts+" ORDER BY p.id")
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *ProductStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// Reset removes all products, images and queued events and restarts the ids.
func (s *ProductStore) Reset(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "TRUNCATE TABLE product_images, products, outbox_event RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("failed to reset tables: %w", err)
	}
	return nil
}
