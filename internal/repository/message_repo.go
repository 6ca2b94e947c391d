package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"quickchat/internal/domain"

	"github.com/google/uuid"
)

// MessageStore owns durable messages between user pairs. Append is the commit
// point of a send: once it returns nil the message exists regardless of what
// happens to the live push.
type MessageStore interface {
	Append(ctx context.Context, msg *domain.Message) error
	History(ctx context.Context, a, b uuid.UUID, cursor int64, limit int) ([]*domain.Message, int64, error)
	MarkSeen(ctx context.Context, id uuid.UUID) error
	MarkConversationSeen(ctx context.Context, me, other uuid.UUID) error
	UnseenCounts(ctx context.Context, me uuid.UUID) (map[uuid.UUID]int, error)
}

type MessageRepository struct {
	db         *sql.DB
	outboxRepo OutboxRepository
}

func NewMessageRepository(db *sql.DB, outboxRepo OutboxRepository) *MessageRepository {
	return &MessageRepository{db: db, outboxRepo: outboxRepo}
}

// Append inserts the message row and its MESSAGE_CREATED outbox event in one
// transaction. The monotonic seq is assigned by the database at commit.
func (r *MessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var bodyText *string
	var bodyImage []byte
	if msg.Image != nil {
		bodyImage = msg.Image
	} else {
		bodyText = &msg.Text
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, body_text, body_image, seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`, msg.ID, msg.SenderID, msg.ReceiverID, bodyText, bodyImage, msg.Seen, msg.CreatedAt).Scan(&msg.Seq)
	if err != nil {
		return fmt.Errorf("%w: failed to insert message: %v", domain.ErrStoreUnavailable, err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}
	event := &domain.OutboxEvent{
		ID:        uuid.New(),
		EventType: domain.EventTypeMessageCreated,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := r.outboxRepo.Save(ctx, tx, event); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit message: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// History returns the conversation between a and b in creation order,
// symmetric in its arguments. Cursor is the seq of the last message of the
// previous page; pages are stable under concurrent appends.
func (r *MessageRepository) History(ctx context.Context, a, b uuid.UUID, cursor int64, limit int) ([]*domain.Message, int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, id, sender_id, receiver_id, body_text, body_image, seen, created_at
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND seq > $3
		ORDER BY seq ASC
		LIMIT $4
	`, a, b, cursor, limit)
	if err != nil {
		return nil, cursor, fmt.Errorf("%w: failed to fetch history: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var messages []*domain.Message
	next := cursor
	for rows.Next() {
		var msg domain.Message
		var bodyText sql.NullString
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.SenderID, &msg.ReceiverID,
			&bodyText, &msg.Image, &msg.Seen, &msg.CreatedAt); err != nil {
			return nil, cursor, err
		}
		msg.Text = bodyText.String
		next = msg.Seq
		messages = append(messages, &msg)
	}
	return messages, next, rows.Err()
}

// MarkSeen is idempotent and treats an unknown id as already seen.
func (r *MessageRepository) MarkSeen(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET seen = TRUE WHERE id = $1 AND NOT seen
	`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to mark seen: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// MarkConversationSeen flips every unseen message from other addressed to me
// and records a MESSAGE_SEEN event for the relay so the sender's other
// sessions can learn about it.
func (r *MessageRepository) MarkConversationSeen(ctx context.Context, me, other uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE messages SET seen = TRUE
		WHERE receiver_id = $1 AND sender_id = $2 AND NOT seen
	`, me, other)
	if err != nil {
		return fmt.Errorf("%w: failed to mark conversation seen: %v", domain.ErrStoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]uuid.UUID{
		"reader_id":   me,
		"receiver_id": other, // the sender is who the seen event is for
	})
	if err != nil {
		return fmt.Errorf("failed to marshal seen payload: %w", err)
	}
	event := &domain.OutboxEvent{
		ID:        uuid.New(),
		EventType: domain.EventTypeMessageSeen,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	if err := r.outboxRepo.Save(ctx, tx, event); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return tx.Commit()
}

// UnseenCounts returns, per sender, how many unseen messages await me.
func (r *MessageRepository) UnseenCounts(ctx context.Context, me uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND NOT seen
		GROUP BY sender_id
	`, me)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count unseen: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var senderID uuid.UUID
		var n int
		if err := rows.Scan(&senderID, &n); err != nil {
			return nil, err
		}
		counts[senderID] = n
	}
	return counts, rows.Err()
}
