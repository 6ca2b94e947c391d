package api

import (
	"context"
	"sort"
	"sync"

	"quickchat/internal/domain"

	"github.com/google/uuid"
)

type memUsers struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*domain.User
	hashes map[uuid.UUID]string
}

func newMemUsers() *memUsers {
	return &memUsers{
		users:  make(map[uuid.UUID]*domain.User),
		hashes: make(map[uuid.UUID]string),
	}
}

func (m *memUsers) Create(_ context.Context, user *domain.User, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	m.hashes[user.ID] = passwordHash
	return nil
}

func (m *memUsers) ByEmail(_ context.Context, email string) (*domain.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, m.hashes[id], nil
		}
	}
	return nil, "", domain.ErrNotFound
}

func (m *memUsers) ByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUsers) ListOthers(_ context.Context, me uuid.UUID) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for id, u := range m.users {
		if id == me {
			continue
		}
		copied := *u
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memUsers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[id]
	return ok, nil
}

type memMessages struct {
	mu       sync.Mutex
	messages []*domain.Message
	nextSeq  int64
	fail     bool
}

func newMemMessages() *memMessages { return &memMessages{} }

func (m *memMessages) Append(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return domain.ErrStoreUnavailable
	}
	m.nextSeq++
	msg.Seq = m.nextSeq
	copied := *msg
	m.messages = append(m.messages, &copied)
	return nil
}

func (m *memMessages) History(_ context.Context, a, b uuid.UUID, cursor int64, limit int) ([]*domain.Message, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Message
	next := cursor
	for _, msg := range m.messages {
		pair := (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a)
		if !pair || msg.Seq <= cursor || len(out) >= limit {
			continue
		}
		copied := *msg
		out = append(out, &copied)
		next = msg.Seq
	}
	return out, next, nil
}

func (m *memMessages) MarkSeen(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.Seen = true
		}
	}
	return nil
}

func (m *memMessages) MarkConversationSeen(_ context.Context, me, other uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ReceiverID == me && msg.SenderID == other {
			msg.Seen = true
		}
	}
	return nil
}

func (m *memMessages) UnseenCounts(_ context.Context, me uuid.UUID) (map[uuid.UUID]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, msg := range m.messages {
		if msg.ReceiverID == me && !msg.Seen {
			counts[msg.SenderID]++
		}
	}
	return counts, nil
}
