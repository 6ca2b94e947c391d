package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"quickchat/internal/domain"
	"quickchat/internal/presence"
	"quickchat/internal/repository"

	"github.com/google/uuid"
)

// Worker drains pending outbox events and publishes them for downstream
// consumers (other nodes, notification services). Events whose receiver has
// no live connection are additionally routed to the push publisher. The
// in-process live push never depends on this worker.
type Worker struct {
	outbox        *repository.PostgresOutboxRepository
	publisher     Publisher
	pushPublisher Publisher // nil when the mode has no separate push path
	registry      *presence.Registry
	log           *slog.Logger

	interval time.Duration
	batch    int
}

func NewWorker(outbox *repository.PostgresOutboxRepository, publisher, pushPublisher Publisher,
	registry *presence.Registry, log *slog.Logger, interval time.Duration, batch int) *Worker {
	return &Worker{
		outbox:        outbox,
		publisher:     publisher,
		pushPublisher: pushPublisher,
		registry:      registry,
		log:           log,
		interval:      interval,
		batch:         batch,
	}
}

func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.log.Error("outbox drain failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	tx, err := w.outbox.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin outbox transaction: %w", err)
	}
	defer tx.Rollback()

	events, err := w.outbox.FetchPending(ctx, tx, w.batch)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	var processed []uuid.UUID
	for _, event := range events {
		if err := w.relay(ctx, event); err != nil {
			// Leave the event pending; it is retried on the next tick.
			w.log.Warn("failed to relay event", "event_id", event.ID, "error", err)
			continue
		}
		processed = append(processed, event.ID)
	}

	if err := w.outbox.MarkProcessed(ctx, tx, processed); err != nil {
		return err
	}
	return tx.Commit()
}

func (w *Worker) relay(ctx context.Context, event *domain.OutboxEvent) error {
	frame := domain.Frame{Type: event.EventType, Payload: json.RawMessage(event.Payload)}

	receiverID := w.receiverOf(event)
	routingKey := "user.broadcast"
	if receiverID != uuid.Nil {
		routingKey = fmt.Sprintf("user.%s", receiverID)
	}

	if err := w.publisher.Publish(ctx, routingKey, frame); err != nil {
		return err
	}

	if w.pushPublisher != nil && receiverID != uuid.Nil && !w.registry.IsOnline(receiverID) {
		if err := w.pushPublisher.Publish(ctx, routingKey, frame); err != nil {
			w.log.Warn("failed to publish push event", "event_id", event.ID, "error", err)
		}
	}
	return nil
}

func (w *Worker) receiverOf(event *domain.OutboxEvent) uuid.UUID {
	var payload struct {
		ReceiverID uuid.UUID `json:"receiver_id"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return uuid.Nil
	}
	return payload.ReceiverID
}
