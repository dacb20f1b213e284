package sse

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/qprofile/logger"
)

// ErrHubStopped is returned by Register once the hub has been stopped.
var ErrHubStopped = errors.New("sse: hub stopped")

// Conn is the hub's record of one open stream. The cursor is written only by
// the stream that owns the connection; the hub reads it for introspection.
type Conn struct {
	id          string
	remoteAddr  string
	connectedAt time.Time
	cursor      atomic.Uint64
	delivered   atomic.Uint64
}

// NewConn creates a connection record starting at cursor.
func NewConn(id, remoteAddr string, cursor uint64) *Conn {
	c := &Conn{
		id:          id,
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
	}
	c.cursor.Store(cursor)
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// Cursor returns the next buffer index this connection expects.
func (c *Conn) Cursor() uint64 { return c.cursor.Load() }

// Delivered returns the number of event frames written to this connection.
func (c *Conn) Delivered() uint64 { return c.delivered.Load() }

// advance moves the cursor past ev.
func (c *Conn) advance(ev Event) {
	c.cursor.Store(ev.Index + 1)
	c.delivered.Add(1)
}

// skipTo moves the cursor forward without counting a delivery.
func (c *Conn) skipTo(cursor uint64) {
	c.cursor.Store(cursor)
}

// ConnInfo is a point-in-time copy of a Conn.
type ConnInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Cursor      uint64    `json:"cursor"`
	Delivered   uint64    `json:"delivered"`
}

// Hub tracks open streams by connection id. Entries are added when a stream
// opens and removed when its transport closes. Stop ends every stream.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*Conn
	done    chan struct{}
	stopped bool
	log     *logger.Logger
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Conn),
		done:  make(chan struct{}),
		log:   logger.WithComponent("sse"),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return ErrHubStopped
	}
	h.conns[c.id] = c
	h.log.Debug("[SSE_HUB] Connection registered", map[string]interface{}{
		"connection_id": c.id,
		"cursor":        c.Cursor(),
		"total_streams": len(h.conns),
	})
	return nil
}

// Unregister removes a connection from the hub. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[id]; !ok {
		return
	}
	delete(h.conns, id)
	h.log.Debug("[SSE_HUB] Connection unregistered", map[string]interface{}{
		"connection_id": id,
		"total_streams": len(h.conns),
	})
}

// Done is closed when the hub is stopped.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Stop signals every stream to close and rejects new registrations.
// Safe to call multiple times.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	close(h.done)
	h.log.Debug("[SSE_HUB] Stopped", map[string]interface{}{
		"open_streams": len(h.conns),
	})
}

// Count returns the number of open streams.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Snapshot returns a copy of every open connection's state ordered by
// connect time.
func (h *Hub) Snapshot() []ConnInfo {
	h.mu.RLock()
	out := make([]ConnInfo, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, ConnInfo{
			ID:          c.id,
			RemoteAddr:  c.remoteAddr,
			ConnectedAt: c.connectedAt,
			Cursor:      c.Cursor(),
			Delivered:   c.Delivered(),
		})
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}
