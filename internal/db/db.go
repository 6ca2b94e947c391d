package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres, configures the pool and bootstraps the schema.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            UUID PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			full_name     TEXT NOT NULL,
			bio           TEXT NOT NULL DEFAULT '',
			profile_pic   TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq         BIGSERIAL PRIMARY KEY,
			id          UUID NOT NULL UNIQUE,
			sender_id   UUID NOT NULL REFERENCES users(id),
			receiver_id UUID NOT NULL REFERENCES users(id),
			body_text   TEXT,
			body_image  BYTEA,
			seen        BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL,
			CHECK ((body_text IS NULL) != (body_image IS NULL))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_pair
			ON messages (sender_id, receiver_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unseen
			ON messages (receiver_id) WHERE NOT seen`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
			id           UUID PRIMARY KEY,
			event_type   TEXT NOT NULL,
			payload      JSONB NOT NULL,
			status       TEXT NOT NULL DEFAULT 'PENDING',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending
			ON outbox_events (created_at) WHERE status = 'PENDING'`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return tx.Commit()
}
