package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"quickchat/internal/domain"
	"quickchat/internal/presence"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	appended []*domain.Message
	fail     bool
	nextSeq  int64
}

func (f *fakeStore) Append(_ context.Context, msg *domain.Message) error {
	if f.fail {
		return domain.ErrStoreUnavailable
	}
	f.nextSeq++
	msg.Seq = f.nextSeq
	f.appended = append(f.appended, msg)
	return nil
}

type fakeUsers struct {
	known map[uuid.UUID]bool
}

func (f *fakeUsers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], nil
}

type captureConn struct {
	frames [][]byte
	full   bool
}

func (c *captureConn) Enqueue(data []byte) bool {
	if c.full {
		return false
	}
	c.frames = append(c.frames, data)
	return true
}

func newTestCoordinator(store *fakeStore, users *fakeUsers, registry *presence.Registry) *Coordinator {
	return NewCoordinator(store, users, registry, slog.Default(), 4<<20, time.Second)
}

func Test_Send_To_Online_Receiver_Pushes_Live(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	sender, receiver := uuid.New(), uuid.New()
	users := &fakeUsers{known: map[uuid.UUID]bool{receiver: true}}
	registry := presence.NewRegistry()
	conn := &captureConn{}
	registry.Register(receiver, conn)

	msg, err := newTestCoordinator(store, users, registry).
		Send(context.Background(), sender, receiver, Body{Text: "hi"})
	req.NoError(err)
	req.Equal(sender, msg.SenderID)
	req.Equal(receiver, msg.ReceiverID)
	req.Equal("hi", msg.Text)
	req.False(msg.Seen)
	req.NotZero(msg.Seq)
	req.Len(store.appended, 1)

	req.Len(conn.frames, 1)
	var frame struct {
		Type    string         `json:"type"`
		Payload domain.Message `json:"payload"`
	}
	req.NoError(json.Unmarshal(conn.frames[0], &frame))
	req.Equal(domain.EventTypeMessageCreated, frame.Type)
	req.Equal(sender, frame.Payload.SenderID)
	req.Equal("hi", frame.Payload.Text)
	req.False(frame.Payload.Seen)
}

func Test_Send_To_Offline_Receiver_Still_Succeeds(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	receiver := uuid.New()
	users := &fakeUsers{known: map[uuid.UUID]bool{receiver: true}}

	msg, err := newTestCoordinator(store, users, presence.NewRegistry()).
		Send(context.Background(), uuid.New(), receiver, Body{Text: "hello"})
	req.NoError(err)
	req.NotNil(msg)
	req.Len(store.appended, 1)
}

func Test_Send_Persistence_Failure_Means_No_Push(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{fail: true}
	receiver := uuid.New()
	users := &fakeUsers{known: map[uuid.UUID]bool{receiver: true}}
	registry := presence.NewRegistry()
	conn := &captureConn{}
	registry.Register(receiver, conn)

	_, err := newTestCoordinator(store, users, registry).
		Send(context.Background(), uuid.New(), receiver, Body{Text: "hi"})
	req.ErrorIs(err, domain.ErrDeliveryFailed)
	req.Empty(store.appended)
	req.Empty(conn.frames)
}

func Test_Send_Push_Drop_Is_Silent(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	receiver := uuid.New()
	users := &fakeUsers{known: map[uuid.UUID]bool{receiver: true}}
	registry := presence.NewRegistry()
	registry.Register(receiver, &captureConn{full: true})

	msg, err := newTestCoordinator(store, users, registry).
		Send(context.Background(), uuid.New(), receiver, Body{Text: "hi"})
	req.NoError(err)
	req.NotNil(msg)
	req.Len(store.appended, 1)
}

func Test_Send_Rejects_Unknown_Receiver(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}

	_, err := newTestCoordinator(store, &fakeUsers{known: map[uuid.UUID]bool{}}, presence.NewRegistry()).
		Send(context.Background(), uuid.New(), uuid.New(), Body{Text: "hi"})

	var ve *domain.ValidationError
	req.True(errors.As(err, &ve))
	req.Empty(store.appended)
}

func Test_Send_Rejects_Text_And_Image_Together(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	receiver := uuid.New()
	users := &fakeUsers{known: map[uuid.UUID]bool{receiver: true}}
	coord := newTestCoordinator(store, users, presence.NewRegistry())

	_, err := coord.Send(context.Background(), uuid.New(), receiver,
		Body{Text: "hi", Image: pngPayload()})
	req.True(domain.IsValidation(err))

	_, err = coord.Send(context.Background(), uuid.New(), receiver, Body{})
	req.True(domain.IsValidation(err))
	req.Empty(store.appended)
}

func Test_Send_Rejects_Oversized_Image(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	receiver := uuid.New()
	users := &fakeUsers{known: map[uuid.UUID]bool{receiver: true}}
	coord := NewCoordinator(store, users, presence.NewRegistry(), slog.Default(), 16, time.Second)

	payload := append(pngPayload(), make([]byte, 64)...)
	_, err := coord.Send(context.Background(), uuid.New(), receiver, Body{Image: payload})

	var ve *domain.ValidationError
	req.True(errors.As(err, &ve))
	req.Equal("image", ve.Field)
	req.Empty(store.appended)
}

func Test_Send_Rejects_Non_Image_Payload(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{}
	receiver := uuid.New()
	users := &fakeUsers{known: map[uuid.UUID]bool{receiver: true}}

	_, err := newTestCoordinator(store, users, presence.NewRegistry()).
		Send(context.Background(), uuid.New(), receiver, Body{Image: []byte("%PDF-1.4 not an image")})

	var ve *domain.ValidationError
	req.True(errors.As(err, &ve))
	req.Equal("image", ve.Field)
	req.Empty(store.appended)
}

// pngPayload returns a minimal buffer carrying the PNG magic bytes.
func pngPayload() []byte {
	return []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
}
