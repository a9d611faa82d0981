package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS workout_logs (
        id uuid PRIMARY KEY,
        owner_id text NOT NULL,
        date text NOT NULL,
        time text NOT NULL,
        workout text NOT NULL,
        duration_minutes double precision NOT NULL CHECK (duration_minutes >= 0),
        calories double precision NOT NULL CHECK (calories >= 0),
        timestamp bigint NOT NULL,
        image_uri text,
        created_at timestamptz NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS workout_logs_owner_timestamp_idx ON workout_logs (owner_id, timestamp)`,
	`ALTER TABLE workout_logs ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE workout_logs FORCE ROW LEVEL SECURITY`,
	`DO $$
    BEGIN
        IF NOT EXISTS (SELECT 1 FROM pg_policies WHERE tablename = 'workout_logs' AND policyname = 'workout_logs_owner') THEN
            CREATE POLICY workout_logs_owner ON workout_logs
                USING (owner_id = current_setting('app.owner_id', true))
                WITH CHECK (owner_id = current_setting('app.owner_id', true));
        END IF;
    END $$`,
	`CREATE TABLE IF NOT EXISTS stored_images (
        bucket text NOT NULL,
        name text NOT NULL,
        owner_id text NOT NULL,
        content_type text NOT NULL,
        data bytea NOT NULL,
        created_at timestamptz NOT NULL DEFAULT NOW(),
        PRIMARY KEY (bucket, name)
    )`,
	`CREATE TABLE IF NOT EXISTS outbox (
        event_id bigserial PRIMARY KEY,
        event_uuid uuid NOT NULL UNIQUE,
        owner_id text NOT NULL,
        aggregate_id text NOT NULL,
        event_type text NOT NULL,
        topic text NOT NULL,
        partition_key text NOT NULL,
        payload jsonb NOT NULL,
        created_at timestamptz NOT NULL DEFAULT NOW(),
        claimed_at timestamptz,
        published_at timestamptz
    )`,
	`CREATE INDEX IF NOT EXISTS outbox_unpublished_idx ON outbox (event_id) WHERE published_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
        id bigserial PRIMARY KEY,
        event_id bigint NOT NULL,
        event_uuid uuid NOT NULL,
        owner_id text NOT NULL,
        aggregate_id text NOT NULL,
        event_type text NOT NULL,
        topic text NOT NULL,
        partition_key text NOT NULL,
        payload jsonb NOT NULL,
        reason text NOT NULL,
        retry_count integer NOT NULL DEFAULT 0,
        next_retry_at timestamptz,
        last_attempt_at timestamptz,
        quarantined_at timestamptz,
        quarantine_reason text,
        created_at timestamptz NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS outbox_dlq_pending_idx ON outbox_dlq (created_at) WHERE quarantined_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS workout_event_log (
        id bigserial PRIMARY KEY,
        event_uuid uuid UNIQUE,
        event_type text NOT NULL,
        owner_id text NOT NULL,
        topic text NOT NULL,
        partition integer NOT NULL,
        record_offset bigint NOT NULL,
        payload jsonb NOT NULL,
        received_at timestamptz NOT NULL
    )`,
}

// Migrate creates the hosted schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	return nil
}
