package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"quickchat/internal/domain"

	"github.com/google/uuid"
)

type presenceEvent struct {
	online []uuid.UUID
	target *Client // nil means every live connection
}

// Broadcaster consumes presence events in mutation order and fans the online
// set out to live connections. Delivery per connection is independent and
// best-effort; a dropped frame is corrected by the next announcement.
type Broadcaster struct {
	hub    *Hub
	log    *slog.Logger
	events chan presenceEvent
}

func NewBroadcaster(hub *Hub, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		log:    log,
		events: make(chan presenceEvent, 64),
	}
}

// Announce captures a snapshot taken at mutation time. Events are consumed
// sequentially, so each recipient observes snapshots in mutation order.
func (b *Broadcaster) Announce(online []uuid.UUID, target *Client) {
	b.events <- presenceEvent{online: online, target: target}
}

func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case ev := <-b.events:
			data, err := json.Marshal(domain.Frame{
				Type:    domain.EventTypeOnlineUsers,
				Payload: ev.online,
			})
			if err != nil {
				b.log.Error("failed to marshal presence frame", "error", err)
				continue
			}
			if ev.target != nil {
				ev.target.Enqueue(data)
				continue
			}
			for _, client := range b.hub.snapshotClients() {
				if !client.Enqueue(data) {
					b.log.Debug("presence frame dropped", "user_id", client.UserID)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
