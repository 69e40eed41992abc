package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/catalog-scraper/internal/models"
)

const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessed  = "processed"
	OutboxStatusFailed     = "failed"
	OutboxStatusDeadLetter = "dead_letter"

	// MaxRetryCount is the number of failed publishes after which an event
	// is parked in the dead letter state.
	MaxRetryCount = 5

	AggregateProduct       = "product"
	EventProductUpserted   = "PRODUCT_UPSERTED"
	DefaultProductStream   = "stream:catalog_products"
	maxRetryBackoffSeconds = 300
)

// OutboxEvent is a row of the transactional outbox.
type OutboxEvent struct {
	ID            uuid.UUID       `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	TargetStream  string          `db:"target_stream"`
	Status        string          `db:"status"`
	RetryCount    int             `db:"retry_count"`
	ErrorMessage  *string         `db:"error_message"`
	CreatedAt     time.Time       `db:"created_at"`
	ProcessedAt   *time.Time      `db:"processed_at"`
	NextRetryAt   *time.Time      `db:"next_retry_at"`
}

// ProductUpsertedPayload is the body of a PRODUCT_UPSERTED event.
type ProductUpsertedPayload struct {
	ProductID       int64                  `json:"product_id"`
	Shop            string                 `json:"shop"`
	URL             string                 `json:"url"`
	Title           *string                `json:"title"`
	Price           *int64                 `json:"price"`
	Characteristics models.Characteristics `json:"characteristics"`
	ImageURL        *string                `json:"image_url,omitempty"`
	Created         bool                   `json:"created"`
}

// NewProductUpsertedEvent builds the outbox event emitted for every stored
// product.
func NewProductUpsertedEvent(stream string, p ProductUpsertedPayload) (*OutboxEvent, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &OutboxEvent{
		AggregateType: AggregateProduct,
		AggregateID:   strconv.FormatInt(p.ProductID, 10),
		EventType:     EventProductUpserted,
		Payload:       payload,
		TargetStream:  stream,
	}, nil
}

type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// InsertWithTx adds event to the outbox inside tx so it commits or rolls
// back together with the change it describes.
func (r *OutboxRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error {
	if err := event.validate(); err != nil {
		return err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = OutboxStatusPending
	}
	if event.TargetStream == "" {
		event.TargetStream = DefaultProductStream
	}

	now := time.Now()
	event.CreatedAt = now
	if event.NextRetryAt == nil {
		event.NextRetryAt = &now
	}

	query := `
		INSERT INTO outbox_event (
			id, aggregate_type, aggregate_id, event_type,
			payload, target_stream, status, retry_count,
			created_at, next_retry_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := tx.Exec(ctx, query,
		event.ID, event.AggregateType, event.AggregateID, event.EventType,
		string(event.Payload), event.TargetStream, event.Status, event.RetryCount,
		event.CreatedAt, event.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return nil
}

func (e *OutboxEvent) validate() error {
	switch {
	case e.AggregateType == "":
		return errors.New("outbox event: aggregate type is required")
	case e.AggregateID == "":
		return errors.New("outbox event: aggregate id is required")
	case e.EventType == "":
		return errors.New("outbox event: event type is required")
	case !json.Valid(e.Payload):
		return errors.New("outbox event: payload must be valid JSON")
	}
	return nil
}

// GetPending returns pending and retryable events that are due, oldest first.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `
		SELECT
			id, aggregate_type, aggregate_id, event_type,
			payload, target_stream, status, retry_count,
			error_message, created_at, processed_at, next_retry_at
		FROM outbox_event
		WHERE status IN ($1, $2)
			AND next_retry_at <= $3
		ORDER BY created_at ASC
		LIMIT $4`

	rows, err := r.db.pool.Query(ctx, query,
		OutboxStatusPending, OutboxStatusFailed,
		time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		event := &OutboxEvent{}
		err := rows.Scan(
			&event.ID, &event.AggregateType, &event.AggregateID, &event.EventType,
			&event.Payload, &event.TargetStream, &event.Status, &event.RetryCount,
			&event.ErrorMessage, &event.CreatedAt, &event.ProcessedAt, &event.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_event
		SET status = $1, processed_at = $2
		WHERE id = $3`

	result, err := r.db.pool.Exec(ctx, query, OutboxStatusProcessed, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("event not found: %s", id)
	}

	return nil
}

// MarkFailed records a failed publish and schedules the next attempt with
// exponential backoff, or parks the event after MaxRetryCount failures.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, processErr error) error {
	return r.db.Transaction(ctx, func(tx pgx.Tx) error {
		var retryCount int
		err := tx.QueryRow(ctx,
			"SELECT retry_count FROM outbox_event WHERE id = $1 FOR UPDATE", id).Scan(&retryCount)
		if err != nil {
			return fmt.Errorf("failed to get retry count: %w", err)
		}

		retryCount++
		status, nextRetryAt := nextAttempt(retryCount, time.Now())

		query := `
			UPDATE outbox_event
			SET status = $1, retry_count = $2, error_message = $3, next_retry_at = $4
			WHERE id = $5`

		if _, err := tx.Exec(ctx, query, status, retryCount, processErr.Error(), nextRetryAt, id); err != nil {
			return fmt.Errorf("failed to mark event as failed: %w", err)
		}
		return nil
	})
}

// nextAttempt returns the status and retry time after the retryCount-th
// failure: 2s, 4s, 8s... capped at five minutes.
func nextAttempt(retryCount int, now time.Time) (string, time.Time) {
	status := OutboxStatusFailed
	if retryCount >= MaxRetryCount {
		status = OutboxStatusDeadLetter
	}

	backoff := maxRetryBackoffSeconds
	if retryCount < 9 {
		backoff = min(1<<retryCount, maxRetryBackoffSeconds)
	}
	return status, now.Add(time.Duration(backoff) * time.Second)
}

// Counts returns the number of outbox events per status.
func (r *OutboxRepository) Counts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.pool.Query(ctx, "SELECT status, COUNT(*) FROM outbox_event GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
