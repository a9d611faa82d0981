//go:build integration

package outbox

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/events"
	"example.com/fitlog/internal/persistence/postgres"
)

func TestDispatcherPublishesRepositoryEvents(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	repo := postgres.NewRepository(pool, events.DefaultTopic)
	_, err := repo.Insert(ctx, "owner-a", domain.ActivityLog{Date: "2025-03-05", Time: "08:30", Workout: "Yoga", DurationMinutes: 20, Calories: 73.5, Timestamp: 1741163400000})
	require.NoError(t, err)
	_, err = repo.DeleteAll(ctx, "owner-a")
	require.NoError(t, err)

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5, WithLogger(log.New(io.Discard)))

	beforeLogged := testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeWorkoutLogged))
	beforeCleared := testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeWorkoutCleared))
	beforeHistogram := histogramSampleCount(t)

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, events.DefaultTopic, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.InDelta(t, beforeLogged+1, testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeWorkoutLogged)), 0.0001)
	require.InDelta(t, beforeCleared+1, testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeWorkoutCleared)), 0.0001)
	require.Zero(t, testutil.ToFloat64(pendingGauge))
	require.Greater(t, histogramSampleCount(t), beforeHistogram)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 2, published)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1, "published events are not redelivered")
}

func TestDispatcherRoutesFailedBatchToDLQ(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	eventID := seedOutbox(t, ctx, pool, "owner-b", events.TypeWorkoutLogged)

	producer := &stubProducer{err: errors.New("kafka write failed")}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5, WithLogger(log.New(io.Discard)))

	beforeFailed := testutil.ToFloat64(failedCounter.WithLabelValues(events.TypeWorkoutLogged))
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues(events.DefaultTopic))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(failedCounter.WithLabelValues(events.TypeWorkoutLogged)), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues(events.DefaultTopic)), 0.0001)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&reason))
	require.Contains(t, reason, "kafka write failed")

	var publishedAt *time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, eventID).Scan(&publishedAt))
	require.NotNil(t, publishedAt)
}

func TestDispatcherUnknownEventTypeMovesToDLQ(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	eventID := seedOutbox(t, ctx, pool, "owner-c", "workout.renamed")

	producer := &stubProducer{}
	dispatcher := NewDispatcher(pool, producer, 10*time.Millisecond, 5, WithLogger(log.New(io.Discard)))
	require.NoError(t, dispatcher.processBatch(ctx))

	require.Empty(t, producer.writes)
	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&reason))
	require.Contains(t, reason, "unknown event_type=workout.renamed")
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("fitlog"),
		postgrescontainer.WithUsername("fitlog"),
		postgrescontainer.WithPassword("fitlog"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		candidate, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return false
		}
		if err := candidate.Ping(ctx); err != nil {
			candidate.Close()
			return false
		}
		pool = candidate
		return true
	}, 30*time.Second, time.Second)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

func histogramSampleCount(t *testing.T) uint64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, batchDuration.Write(metric))
	hist := metric.GetHistogram()
	require.NotNil(t, hist)
	return hist.GetSampleCount()
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, ownerID, eventType string) int64 {
	t.Helper()

	var eventID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO outbox (event_uuid, owner_id, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING event_id`,
		uuid.NewString(), ownerID, uuid.NewString(), eventType, events.DefaultTopic, ownerID, []byte(`{"owner_id":"`+ownerID+`"}`),
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}
