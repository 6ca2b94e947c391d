package ws

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Socket is the subset of *websocket.Conn the client uses; tests substitute
// a fake.
type Socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type state int32

const (
	stateConnecting state = iota
	stateOnline
	stateClosed // terminal, connections are replaced, never revived
)

// Client wraps one live connection. UserID is uuid.Nil for connections whose
// handshake carried no resolvable user; those stay out of the presence
// registry but still receive broadcasts.
type Client struct {
	hub    *Hub
	socket Socket
	UserID uuid.UUID

	send  chan []byte
	state atomic.Int32

	mu sync.RWMutex // guards send against enqueue-after-close
}

func NewClient(hub *Hub, socket Socket, userID uuid.UUID, buffer int) *Client {
	return &Client{
		hub:    hub,
		socket: socket,
		UserID: userID,
		send:   make(chan []byte, buffer),
	}
}

// Enqueue hands a frame to the write pump without blocking. A full buffer or
// a closed connection drops the frame; presence is re-announced on the next
// mutation and missed messages are covered by history.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if state(c.state.Load()) == stateClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown is called exactly once, by the hub, on unregister.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state(c.state.Swap(int32(stateClosed))) == stateClosed {
		return
	}
	close(c.send)
}

// ReadPump drains inbound frames until the transport signals termination by
// any cause, then hands the client to the hub for deregistration. Clients
// talk to the server over REST; inbound socket data is ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		c.socket.Close()
	}()
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer c.socket.Close()
	for data := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}
