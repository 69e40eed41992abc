package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if err := mockArgs.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

type recordingPublishObserver struct {
	calls []error
}

func (o *recordingPublishObserver) ObservePublish(stream string, err error) {
	o.calls = append(o.calls, err)
}

func productEvent(id string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: AggregateProduct,
		AggregateID:   id,
		EventType:     EventProductUpserted,
		Payload:       json.RawMessage(`{"product_id":` + id + `,"url":"https://shop.example/p/` + id + `/"}`),
		TargetStream:  DefaultProductStream,
		CreatedAt:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRelay_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("publishes and marks every event", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		observer := &recordingPublishObserver{}
		relay := NewRelay(mockOutbox, mockRedis, logger, RelayConfig{BatchSize: 10, Observer: observer})

		events := []*OutboxEvent{productEvent("1"), productEvent("2")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		for _, event := range events {
			mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
				return args.Stream == DefaultProductStream &&
					args.Values.(map[string]any)["event_type"] == EventProductUpserted &&
					args.Values.(map[string]any)["aggregate_id"] == event.AggregateID
			})).Return(nil)
			mockOutbox.On("MarkProcessed", ctx, event.ID).Return(nil)
		}

		n, err := relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []error{nil, nil}, observer.calls)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("publish failure marks the event failed and continues", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := NewRelay(mockOutbox, mockRedis, logger, RelayConfig{BatchSize: 10})

		bad, good := productEvent("1"), productEvent("2")
		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{bad, good}, nil)

		redisErr := errors.New("connection refused")
		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values.(map[string]any)["aggregate_id"] == "1"
		})).Return(redisErr)
		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values.(map[string]any)["aggregate_id"] == "2"
		})).Return(nil)

		mockOutbox.On("MarkFailed", ctx, bad.ID, mock.MatchedBy(func(err error) bool {
			return errors.Is(err, redisErr)
		})).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, good.ID).Return(nil)

		n, err := relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("no pending events", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := NewRelay(mockOutbox, mockRedis, logger, RelayConfig{BatchSize: 10})

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		n, err := relay.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})

	t.Run("outbox error", func(t *testing.T) {
		mockOutbox := new(MockOutboxRepository)
		relay := NewRelay(mockOutbox, new(MockRedisClient), logger, RelayConfig{BatchSize: 10})

		mockOutbox.On("GetPending", ctx, 10).Return(nil, errors.New("db down"))

		_, err := relay.ProcessBatch(ctx)
		assert.ErrorContains(t, err, "db down")
	})
}

func TestRelay_StreamArgs(t *testing.T) {
	relay := NewRelay(new(MockOutboxRepository), new(MockRedisClient), nil, RelayConfig{MaxStreamLen: 1000})
	event := productEvent("7")

	args, err := relay.streamArgs(event)
	require.NoError(t, err)

	assert.Equal(t, DefaultProductStream, args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)
	assert.Equal(t, event.ID.String(), args.Values.(map[string]any)["original_id"])

	var envelope struct {
		Type      string          `json:"type"`
		Timestamp string          `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
		Metadata  struct {
			Source string `json:"source"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal([]byte(args.Values.(map[string]any)["data"].(string)), &envelope))
	assert.Equal(t, EventProductUpserted, envelope.Type)
	assert.Equal(t, "2024-05-01T10:00:00Z", envelope.Timestamp)
	assert.Equal(t, "catalog-scraper", envelope.Metadata.Source)
	assert.JSONEq(t, string(event.Payload), string(envelope.Payload))

	event.Payload = json.RawMessage(`{broken`)
	_, err = relay.streamArgs(event)
	assert.Error(t, err)
}

func TestNewRelayDefaults(t *testing.T) {
	relay := NewRelay(new(MockOutboxRepository), new(MockRedisClient), nil, RelayConfig{})
	assert.Equal(t, 5*time.Second, relay.interval)
	assert.Equal(t, 100, relay.batchSize)
	assert.Zero(t, relay.maxLen)
}
