package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relaySource = "catalog-scraper"

// RedisClient is the subset of the Redis client used by the relay.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// OutboxRepo is the subset of the outbox repository used by the relay.
type OutboxRepo interface {
	GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error) error
}

// PublishObserver is told about every publish attempt.
type PublishObserver interface {
	ObservePublish(stream string, err error)
}

// Relay moves events from the outbox table to Redis streams.
type Relay struct {
	redis     RedisClient
	outbox    OutboxRepo
	observer  PublishObserver
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	maxLen    int64
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// Approximate cap on stream length, 0 for unbounded.
	MaxStreamLen int64
	Observer     PublishObserver
}

func NewRelay(outbox OutboxRepo, redisClient RedisClient, logger *slog.Logger, config RelayConfig) *Relay {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		redis:     redisClient,
		outbox:    outbox,
		observer:  config.Observer,
		logger:    logger.With("component", "relay"),
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		maxLen:    config.MaxStreamLen,
	}
}

// Start polls the outbox until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting relay",
		"interval", r.interval,
		"batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if _, err := r.ProcessBatch(ctx); err != nil {
		r.logger.Error("failed to process events on startup", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				r.logger.Error("failed to process events", "error", err)
			}
		}
	}
}

// ProcessBatch publishes one batch of due events and returns how many were
// published. A failing event does not stop the batch.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	events, err := r.outbox.GetPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	if len(events) == 0 {
		return 0, nil
	}

	r.logger.Debug("processing events", "count", len(events))

	published := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if err := r.processEvent(ctx, event); err != nil {
			r.logger.Error("failed to process event",
				"event_id", event.ID,
				"aggregate_id", event.AggregateID,
				"error", err)
			continue
		}
		published++
	}

	return published, nil
}

func (r *Relay) processEvent(ctx context.Context, event *OutboxEvent) error {
	err := r.publish(ctx, event)
	if r.observer != nil {
		r.observer.ObservePublish(event.TargetStream, err)
	}
	if err != nil {
		if markErr := r.outbox.MarkFailed(ctx, event.ID, err); markErr != nil {
			r.logger.Error("failed to mark event as failed",
				"event_id", event.ID,
				"error", markErr)
		}
		return err
	}

	if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}

	r.logger.Debug("event published",
		"event_id", event.ID,
		"event_type", event.EventType,
		"product_id", event.AggregateID,
		"stream", event.TargetStream)

	return nil
}

func (r *Relay) publish(ctx context.Context, event *OutboxEvent) error {
	args, err := r.streamArgs(event)
	if err != nil {
		return err
	}
	if _, err := r.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// streamArgs builds the stream entry for event. The data field carries the
// full envelope as JSON, the other fields allow filtering without decoding.
func (r *Relay) streamArgs(event *OutboxEvent) (*redis.XAddArgs, error) {
	var payload json.RawMessage = event.Payload
	if !json.Valid(payload) {
		return nil, fmt.Errorf("event %s has an invalid payload", event.ID)
	}

	envelope := map[string]any{
		"id":             event.ID.String(),
		"type":           event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"timestamp":      event.CreatedAt.UTC().Format(time.RFC3339),
		"payload":        payload,
		"metadata": map[string]any{
			"source":      relaySource,
			"outbox_id":   event.ID.String(),
			"retry_count": event.RetryCount,
		},
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: event.TargetStream,
		Values: map[string]any{
			"data":           string(data),
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
			"original_id":    event.ID.String(),
			"timestamp":      strconv.FormatInt(event.CreatedAt.UnixNano(), 10),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	return args, nil
}
