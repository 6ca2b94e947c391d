package ws

import (
	"context"
	"log/slog"
	"sync"

	"quickchat/internal/presence"

	"github.com/google/uuid"
)

// Hub owns the connection lifecycle: it is the only component that mutates
// the presence registry, and every mutation emits exactly one presence event
// for the broadcaster.
type Hub struct {
	registry    *presence.Registry
	broadcaster *Broadcaster
	log         *slog.Logger

	Register   chan *Client
	Unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool // every live connection, registered or not
}

func NewHub(registry *presence.Registry, log *slog.Logger) *Hub {
	h := &Hub{
		registry:   registry,
		log:        log,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
	h.broadcaster = NewBroadcaster(h, log)
	return h
}

func (h *Hub) Broadcaster() *Broadcaster { return h.broadcaster }

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			client.state.Store(int32(stateOnline))

			if client.UserID != uuid.Nil {
				h.registry.Register(client.UserID, client)
				h.broadcaster.Announce(h.registry.Snapshot(), nil)
				h.log.Info("client registered", "user_id", client.UserID)
			} else {
				// Anonymous connections get the current online set directly;
				// they never enter the registry.
				h.broadcaster.Announce(h.registry.Snapshot(), client)
				h.log.Debug("anonymous client connected")
			}

		case client := <-h.Unregister:
			h.mu.Lock()
			known := h.clients[client]
			delete(h.clients, client)
			h.mu.Unlock()
			if !known {
				continue
			}
			client.shutdown()

			if client.UserID == uuid.Nil {
				continue
			}
			if h.registry.DeregisterConn(client.UserID, client) {
				h.broadcaster.Announce(h.registry.Snapshot(), nil)
				h.log.Info("client deregistered", "user_id", client.UserID)
			} else {
				// Stale close of an already-replaced connection.
				h.log.Debug("stale disconnect ignored", "user_id", client.UserID)
			}

		case <-ctx.Done():
			return
		}
	}
}

// snapshotClients copies the live connection set for fan-out outside the lock.
func (h *Hub) snapshotClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}
