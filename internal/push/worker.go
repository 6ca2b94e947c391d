package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"quickchat/internal/broker"
	"quickchat/internal/domain"
)

// Worker consumes events routed to the push exchange, i.e. messages whose
// receiver was offline when the relay saw them. It stands in for a mobile
// push gateway; today it records the notification.
type Worker struct {
	broker *broker.RabbitMQClient
	log    *slog.Logger
}

func NewWorker(b *broker.RabbitMQClient, log *slog.Logger) *Worker {
	return &Worker{broker: b, log: log}
}

func (w *Worker) Start(ctx context.Context) {
	msgs, err := w.broker.ConsumePushQueue()
	if err != nil {
		w.log.Error("failed to start push consumer", "error", err)
		return
	}

	go func() {
		for d := range msgs {
			var frame struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(d.Body, &frame); err != nil {
				w.log.Warn("failed to unmarshal push event", "error", err)
				d.Ack(false)
				continue
			}

			if frame.Type == domain.EventTypeMessageCreated {
				var msg domain.Message
				if err := json.Unmarshal(frame.Payload, &msg); err != nil {
					w.log.Warn("failed to unmarshal message payload", "error", err)
					d.Ack(false)
					continue
				}
				userID := strings.TrimPrefix(d.RoutingKey, "user.")
				w.log.Info("push notification",
					"user_id", userID,
					"message_id", msg.ID,
					"sender_id", msg.SenderID)
			}
			d.Ack(false)
		}
	}()

	<-ctx.Done()
}
