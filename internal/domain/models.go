package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Bio        string    `json:"bio,omitempty"`
	ProfilePic string    `json:"profile_pic,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is immutable after creation except for the seen flag.
// Exactly one of Text / Image is set.
type Message struct {
	Seq        int64     `json:"seq"`
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Text       string    `json:"text,omitempty"`
	Image      []byte    `json:"image,omitempty"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"created_at"`
}

type OutboxEvent struct {
	ID          uuid.UUID       `json:"id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

const (
	EventTypeMessageCreated = "MESSAGE_CREATED"
	EventTypeOnlineUsers    = "ONLINE_USERS"
	EventTypeMessageSeen    = "MESSAGE_SEEN"
)

const (
	OutboxStatusPending   = "PENDING"
	OutboxStatusProcessed = "PROCESSED"
)

// Frame is the envelope for every server-to-client websocket event.
type Frame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
