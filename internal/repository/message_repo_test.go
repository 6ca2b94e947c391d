package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"quickchat/internal/db"
	"quickchat/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Tests in this file need a real Postgres; point TEST_DATABASE_URL at one to
// run them.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	conn, err := db.Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(`TRUNCATE messages, outbox_events, users CASCADE`)
	require.NoError(t, err)
	return conn
}

func seedUser(t *testing.T, users *UserRepository, name string) uuid.UUID {
	t.Helper()
	user := &domain.User{
		ID:        uuid.New(),
		Email:     name + "@example.com",
		FullName:  name,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, users.Create(context.Background(), user, "x"))
	return user.ID
}

func textMessage(sender, receiver uuid.UUID, text string) *domain.Message {
	return &domain.Message{
		ID:         uuid.New(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
}

func Test_Append_And_History_Round_Trip(t *testing.T) {
	req := require.New(t)
	conn := testDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(conn, NewPostgresOutboxRepository(conn))
	users := NewUserRepository(conn)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	msg := textMessage(alice, bob, "hello")
	req.NoError(repo.Append(ctx, msg))
	req.NotZero(msg.Seq)

	got, _, err := repo.History(ctx, alice, bob, 0, 10)
	req.NoError(err)
	req.Len(got, 1)
	req.Equal(msg.ID, got[0].ID)
	req.Equal(alice, got[0].SenderID)
	req.Equal(bob, got[0].ReceiverID)
	req.Equal("hello", got[0].Text)
	req.False(got[0].Seen)
}

func Test_History_Is_Symmetric(t *testing.T) {
	req := require.New(t)
	conn := testDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(conn, NewPostgresOutboxRepository(conn))
	users := NewUserRepository(conn)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	req.NoError(repo.Append(ctx, textMessage(alice, bob, "one")))
	req.NoError(repo.Append(ctx, textMessage(bob, alice, "two")))
	req.NoError(repo.Append(ctx, textMessage(alice, bob, "three")))

	ab, _, err := repo.History(ctx, alice, bob, 0, 10)
	req.NoError(err)
	ba, _, err := repo.History(ctx, bob, alice, 0, 10)
	req.NoError(err)
	req.Equal(ab, ba)
	req.Len(ab, 3)
	req.Equal("one", ab[0].Text)
	req.Equal("two", ab[1].Text)
	req.Equal("three", ab[2].Text)
}

func Test_History_Pages_Are_Stable(t *testing.T) {
	req := require.New(t)
	conn := testDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(conn, NewPostgresOutboxRepository(conn))
	users := NewUserRepository(conn)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	for _, text := range []string{"a", "b", "c"} {
		req.NoError(repo.Append(ctx, textMessage(alice, bob, text)))
	}

	page1, cursor, err := repo.History(ctx, alice, bob, 0, 2)
	req.NoError(err)
	req.Len(page1, 2)

	// A message appended after the first page must not show up in it.
	req.NoError(repo.Append(ctx, textMessage(bob, alice, "d")))
	again, _, err := repo.History(ctx, alice, bob, 0, 2)
	req.NoError(err)
	req.Equal(page1, again)

	page2, _, err := repo.History(ctx, alice, bob, cursor, 10)
	req.NoError(err)
	req.Len(page2, 2)
	req.Equal("c", page2[0].Text)
	req.Equal("d", page2[1].Text)
}

func Test_MarkSeen_Is_Idempotent_And_Tolerates_Missing(t *testing.T) {
	req := require.New(t)
	conn := testDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(conn, NewPostgresOutboxRepository(conn))
	users := NewUserRepository(conn)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	msg := textMessage(alice, bob, "hello")
	req.NoError(repo.Append(ctx, msg))

	req.NoError(repo.MarkSeen(ctx, msg.ID))
	req.NoError(repo.MarkSeen(ctx, msg.ID))
	req.NoError(repo.MarkSeen(ctx, uuid.New()))

	got, _, err := repo.History(ctx, alice, bob, 0, 10)
	req.NoError(err)
	req.True(got[0].Seen)
}

func Test_MarkConversationSeen_And_UnseenCounts(t *testing.T) {
	req := require.New(t)
	conn := testDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(conn, NewPostgresOutboxRepository(conn))
	users := NewUserRepository(conn)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	clara := seedUser(t, users, "clara")

	req.NoError(repo.Append(ctx, textMessage(alice, bob, "one")))
	req.NoError(repo.Append(ctx, textMessage(alice, bob, "two")))
	req.NoError(repo.Append(ctx, textMessage(clara, bob, "three")))

	counts, err := repo.UnseenCounts(ctx, bob)
	req.NoError(err)
	req.Equal(map[uuid.UUID]int{alice: 2, clara: 1}, counts)

	req.NoError(repo.MarkConversationSeen(ctx, bob, alice))
	counts, err = repo.UnseenCounts(ctx, bob)
	req.NoError(err)
	req.Equal(map[uuid.UUID]int{clara: 1}, counts)
}

func Test_Append_Writes_Outbox_Event(t *testing.T) {
	req := require.New(t)
	conn := testDB(t)
	ctx := context.Background()
	outbox := NewPostgresOutboxRepository(conn)
	repo := NewMessageRepository(conn, outbox)
	users := NewUserRepository(conn)
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	req.NoError(repo.Append(ctx, textMessage(alice, bob, "hello")))

	tx, err := outbox.BeginTx(ctx)
	req.NoError(err)
	defer tx.Rollback()

	events, err := outbox.FetchPending(ctx, tx, 10)
	req.NoError(err)
	req.Len(events, 1)
	req.Equal(domain.EventTypeMessageCreated, events[0].EventType)

	req.NoError(outbox.MarkProcessed(ctx, tx, []uuid.UUID{events[0].ID}))
	req.NoError(tx.Commit())

	tx2, err := outbox.BeginTx(ctx)
	req.NoError(err)
	defer tx2.Rollback()
	events, err = outbox.FetchPending(ctx, tx2, 10)
	req.NoError(err)
	req.Empty(events)
}
