// Package postgres persists workout logs, session photos and their outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/events"
	"example.com/fitlog/internal/observability"
)

// Repository provides Postgres-backed persistence for workout logs and outbox events.
type Repository struct {
	pool  *pgxpool.Pool
	topic string
	now   func() time.Time
}

// NewRepository constructs a Repository publishing events to topic.
func NewRepository(pool *pgxpool.Pool, topic string) *Repository {
	if topic == "" {
		topic = events.DefaultTopic
	}
	return &Repository{pool: pool, topic: topic, now: time.Now}
}

const logColumns = `id, owner_id, date, time, workout, duration_minutes, calories, timestamp, image_uri, created_at`

// List returns the owner's logs ordered by timestamp.
func (r *Repository) List(ctx context.Context, ownerID string, ascending bool) ([]domain.StoredLog, error) {
	query := `SELECT ` + logColumns + ` FROM workout_logs WHERE owner_id=$1 ORDER BY timestamp DESC, created_at DESC`
	if ascending {
		query = `SELECT ` + logColumns + ` FROM workout_logs WHERE owner_id=$1 ORDER BY timestamp ASC, created_at ASC`
	}

	var results []domain.StoredLog
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		results = make([]domain.StoredLog, 0)
		for rows.Next() {
			stored, err := scanLog(rows)
			if err != nil {
				return err
			}
			results = append(results, stored)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Insert persists entry for ownerID and records a workout.logged event in the same transaction.
func (r *Repository) Insert(ctx context.Context, ownerID string, entry domain.ActivityLog) (domain.StoredLog, error) {
	stored := domain.StoredLog{ID: uuid.NewString(), OwnerID: ownerID, Log: entry}

	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO workout_logs (id, owner_id, date, time, workout, duration_minutes, calories, timestamp, image_uri)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING created_at`,
			stored.ID, ownerID, entry.Date, entry.Time, entry.Workout,
			entry.DurationMinutes, entry.Calories, entry.Timestamp, nullIfEmpty(entry.ImageRef),
		)
		if err := row.Scan(&stored.CreatedAt); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, ownerID, stored.ID, events.TypeWorkoutLogged, events.WorkoutLogged{
			LogID:           stored.ID,
			OwnerID:         ownerID,
			Workout:         entry.Workout,
			Date:            entry.Date,
			Time:            entry.Time,
			DurationMinutes: entry.DurationMinutes,
			Calories:        entry.Calories,
			Timestamp:       entry.Timestamp,
			ImageURI:        entry.ImageRef,
			OccurredAt:      stored.CreatedAt,
		})
	})
	if err != nil {
		return domain.StoredLog{}, err
	}
	observability.RecordLogPersisted(stored.CreatedAt)
	return stored, nil
}

// DeleteByTimestamp removes every owner log carrying timestamp and reports how many went.
func (r *Repository) DeleteByTimestamp(ctx context.Context, ownerID string, timestamp int64) (int64, error) {
	var removed int64
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM workout_logs WHERE owner_id=$1 AND timestamp=$2`, ownerID, timestamp)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		if removed == 0 {
			return nil
		}
		return r.insertOutbox(ctx, tx, ownerID, strconv.FormatInt(timestamp, 10), events.TypeWorkoutDeleted, events.WorkoutDeleted{
			OwnerID:    ownerID,
			Timestamp:  timestamp,
			Removed:    removed,
			OccurredAt: r.now().UTC(),
		})
	})
	return removed, err
}

// DeleteAll removes the owner's whole collection.
func (r *Repository) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	var removed int64
	err := r.withOwner(ctx, ownerID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM workout_logs WHERE owner_id=$1`, ownerID)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		if removed == 0 {
			return nil
		}
		return r.insertOutbox(ctx, tx, ownerID, ownerID, events.TypeWorkoutCleared, events.WorkoutCleared{
			OwnerID:    ownerID,
			Removed:    removed,
			OccurredAt: r.now().UTC(),
		})
	})
	return removed, err
}

// PutImage stores a new object. Existing names are never overwritten.
func (r *Repository) PutImage(ctx context.Context, img domain.StoredImage) (domain.StoredImage, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO stored_images (bucket, name, owner_id, content_type, data)
        VALUES ($1,$2,$3,$4,$5) ON CONFLICT (bucket, name) DO NOTHING RETURNING created_at`,
		img.Bucket, img.Name, img.OwnerID, img.ContentType, img.Data,
	)
	if err := row.Scan(&img.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredImage{}, domain.ErrImageExists
		}
		return domain.StoredImage{}, err
	}
	return img, nil
}

// GetImage loads an object by bucket and name.
func (r *Repository) GetImage(ctx context.Context, bucket, name string) (domain.StoredImage, error) {
	img := domain.StoredImage{Bucket: bucket, Name: name}
	row := r.pool.QueryRow(ctx,
		`SELECT owner_id, content_type, data, created_at FROM stored_images WHERE bucket=$1 AND name=$2`,
		bucket, name,
	)
	if err := row.Scan(&img.OwnerID, &img.ContentType, &img.Data, &img.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredImage{}, domain.ErrImageNotFound
		}
		return domain.StoredImage{}, err
	}
	return img, nil
}

// withOwner runs fn in a transaction with the row-level-security owner set.
func (r *Repository) withOwner(ctx context.Context, ownerID string, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.owner_id', $1, true)", ownerID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, ownerID, aggregateID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	const stmt = `INSERT INTO outbox (event_uuid, owner_id, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err = tx.Exec(ctx, stmt, uuid.New(), ownerID, aggregateID, eventType, r.topic, ownerID, body)
	return err
}

func scanLog(row pgx.Row) (domain.StoredLog, error) {
	var (
		stored domain.StoredLog
		image  *string
	)
	err := row.Scan(&stored.ID, &stored.OwnerID, &stored.Log.Date, &stored.Log.Time, &stored.Log.Workout,
		&stored.Log.DurationMinutes, &stored.Log.Calories, &stored.Log.Timestamp, &image, &stored.CreatedAt)
	if err != nil {
		return domain.StoredLog{}, err
	}
	if image != nil {
		stored.Log.ImageRef = *image
	}
	return stored, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
