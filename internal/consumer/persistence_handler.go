package consumer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitlog/internal/observability"
)

// PersistenceHandler appends consumed events to workout_event_log.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores msg once per event id; redelivered events are ignored.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	tag, err := h.pool.Exec(ctx,
		`INSERT INTO workout_event_log (event_uuid, event_type, owner_id, topic, partition, record_offset, payload, received_at)
        VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (event_uuid) DO NOTHING`,
		msg.EventID,
		msg.EventType,
		msg.OwnerID,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		receivedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		recordDuplicate(msg)
		return nil
	}
	observability.RecordEventRecorded(receivedAt)
	return nil
}
