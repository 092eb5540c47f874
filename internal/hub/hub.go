// Package hub tracks live sessions per user. A user may hold several
// concurrent sessions (multi-device); the registry owns that mapping
// and nothing else.
package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Writer pushes one named event to a client. Each transport frames the
// payload its own way. Implementations must bound writes with a
// deadline so a slow session cannot stall fan-out.
type Writer interface {
	WriteEvent(event string, data []byte) error
	Close() error
}

type Connection struct {
	ID     string
	UserID string
	Writer Writer
}

func NewConnection(userID string, w Writer) *Connection {
	return &Connection{ID: uuid.NewString(), UserID: userID, Writer: w}
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.UserID] == nil {
		h.connections[conn.UserID] = make(map[*Connection]struct{})
	}
	h.connections[conn.UserID][conn] = struct{}{}
}

// Unregister is idempotent; removing an already-removed connection is
// a no-op.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.UserID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.UserID)
	}
}

// Sessions returns a snapshot of the user's live connections. Empty
// means offline.
func (h *Hub) Sessions(userID string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.connections[userID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Broadcast pushes an event to every live session of the user and
// returns how many writes succeeded. Failed connections are closed and
// dropped from the registry.
func (h *Hub) Broadcast(userID, event string, data []byte) int {
	return h.BroadcastExcept(userID, nil, event, data)
}

// BroadcastExcept is Broadcast minus one connection, used for the
// multi-device echo so the originating session is not pushed its own
// message twice.
func (h *Hub) BroadcastExcept(userID string, except *Connection, event string, data []byte) int {
	conns := h.Sessions(userID)

	delivered := 0
	var failed []*Connection
	for _, c := range conns {
		if c == except {
			continue
		}
		if err := c.Writer.WriteEvent(event, data); err != nil {
			failed = append(failed, c)
			continue
		}
		delivered++
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
	return delivered
}
