package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quickchat/internal/domain"
	"quickchat/internal/presence"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MessageAppender is the slice of the message store a send needs.
type MessageAppender interface {
	Append(ctx context.Context, msg *domain.Message) error
}

// UserChecker resolves whether a receiver exists.
type UserChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Body carries exactly one of a text or an inline image payload.
type Body struct {
	Text  string
	Image []byte
}

// Coordinator runs a send: validate, persist, then best-effort live push.
// Persistence is the commit point; the push outcome is never part of the
// synchronous contract.
type Coordinator struct {
	store    MessageAppender
	users    UserChecker
	registry *presence.Registry
	log      *slog.Logger

	maxPayload   int64
	storeTimeout time.Duration
}

func NewCoordinator(store MessageAppender, users UserChecker,
	registry *presence.Registry, log *slog.Logger,
	maxPayload int64, storeTimeout time.Duration) *Coordinator {
	return &Coordinator{
		store:        store,
		users:        users,
		registry:     registry,
		log:          log,
		maxPayload:   maxPayload,
		storeTimeout: storeTimeout,
	}
}

func (c *Coordinator) Send(ctx context.Context, senderID, receiverID uuid.UUID, body Body) (*domain.Message, error) {
	if err := c.validate(ctx, receiverID, body); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       body.Text,
		Image:      body.Image,
		Seen:       false,
		CreatedAt:  time.Now().UTC(),
	}

	// Detached from the request so a sender dropping mid-send does not abort
	// a commit already under way; bounded so a dead store fails the send
	// instead of hanging it.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.storeTimeout)
	defer cancel()
	if err := c.store.Append(storeCtx, msg); err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
		}
		return nil, err
	}

	c.push(msg)
	return msg, nil
}

// push delivers the persisted message to the receiver's live connection if it
// has one. Fire and forget: the connection closing between the presence check
// and the enqueue is a benign race, history covers it.
func (c *Coordinator) push(msg *domain.Message) {
	conn, ok := c.registry.Conn(msg.ReceiverID)
	if !ok {
		return
	}
	data, err := json.Marshal(domain.Frame{
		Type:    domain.EventTypeMessageCreated,
		Payload: msg,
	})
	if err != nil {
		c.log.Error("failed to marshal message frame", "error", err)
		return
	}
	if !conn.Enqueue(data) {
		c.log.Debug("live push dropped", "receiver_id", msg.ReceiverID, "message_id", msg.ID)
	}
}

func (c *Coordinator) validate(ctx context.Context, receiverID uuid.UUID, body Body) error {
	hasText := body.Text != ""
	hasImage := len(body.Image) > 0
	if hasText == hasImage {
		return domain.Invalid("body", "exactly one of text or image is required")
	}
	if hasText && int64(len(body.Text)) > c.maxPayload {
		return domain.Invalid("text", fmt.Sprintf("exceeds %d bytes", c.maxPayload))
	}
	if hasImage {
		if int64(len(body.Image)) > c.maxPayload {
			return domain.Invalid("image", fmt.Sprintf("exceeds %d bytes", c.maxPayload))
		}
		if mtype := mimetype.Detect(body.Image); !strings.HasPrefix(mtype.String(), "image/") {
			return domain.Invalid("image", "payload is not an image")
		}
	}

	if receiverID == uuid.Nil {
		return domain.Invalid("receiver_id", "missing")
	}
	exists, err := c.users.Exists(ctx, receiverID)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	if !exists {
		return domain.Invalid("receiver_id", "unknown user")
	}
	return nil
}
