package presence

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Conn is a live, addressable channel to exactly one connected client.
// Enqueue is a non-blocking best-effort send; false means the frame was
// dropped (slow or closing connection).
type Conn interface {
	Enqueue(data []byte) bool
}

// Registry is the single source of truth for who is online. At most one
// connection per user: a second connection from the same user replaces the
// first (last-connect-wins), without closing it. Presence lives and dies with
// the process.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]Conn)}
}

// Register inserts or replaces the entry for userID.
func (r *Registry) Register(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = conn
}

// Deregister removes the entry if present. Absence is not an error: disconnect
// signals can race with a stale duplicate.
func (r *Registry) Deregister(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, userID)
}

// DeregisterConn removes the entry only if it still points at conn. A close
// event from a connection that was already replaced leaves the newer entry
// untouched. Reports whether the registry changed.
func (r *Registry) DeregisterConn(userID uuid.UUID, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[userID]; ok && cur == conn {
		delete(r.conns, userID)
		return true
	}
	return false
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// Conn returns the current live connection for userID, if any.
func (r *Registry) Conn(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// Snapshot returns the online set as a single consistent point-in-time view.
func (r *Registry) Snapshot() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns)
}
