package repository

import (
	"context"
	"database/sql"
	"fmt"

	"quickchat/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// OutboxRepository persists events in the same transaction as the state change
// that produced them. A relay worker drains pending events later.
type OutboxRepository interface {
	Save(ctx context.Context, tx *sql.Tx, event *domain.OutboxEvent) error
	FetchPending(ctx context.Context, tx *sql.Tx, limit int) ([]*domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error
}

type PostgresOutboxRepository struct {
	db *sql.DB
}

func NewPostgresOutboxRepository(db *sql.DB) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{db: db}
}

func (r *PostgresOutboxRepository) Save(ctx context.Context, tx *sql.Tx, event *domain.OutboxEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, event.EventType, []byte(event.Payload), domain.OutboxStatusPending, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}

func (r *PostgresOutboxRepository) FetchPending(ctx context.Context, tx *sql.Tx, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_type, payload, status, created_at
		FROM outbox_events
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.EventType, &payload, &ev.Status, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (r *PostgresOutboxRepository) MarkProcessed(ctx context.Context, tx *sql.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = 'PROCESSED', processed_at = NOW()
		WHERE id = ANY($1)
	`, pq.Array(strIDs))
	if err != nil {
		return fmt.Errorf("failed to mark events processed: %w", err)
	}
	return nil
}

func (r *PostgresOutboxRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}
