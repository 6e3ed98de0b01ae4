// Package hub maps live session ids to their outbound writers. Hub
// methods only enqueue; the socket write happens on each connection's
// own goroutine, so no caller ever blocks on a slow peer while holding
// shared state.
package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

type Connection struct {
	SessionID string
	Writer    Writer
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func New() *Hub {
	return &Hub{connections: make(map[string]*Connection)}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.SessionID] = conn
}

// Unregister removes conn only if it is still the connection on file for
// its session id.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[conn.SessionID] == conn {
		delete(h.connections, conn.SessionID)
	}
}

// Send reports whether the message was queued for sessionID.
func (h *Hub) Send(sessionID string, message []byte) bool {
	h.mu.RLock()
	conn := h.connections[sessionID]
	h.mu.RUnlock()
	if conn == nil {
		return false
	}
	if err := conn.Writer.Write(message); err != nil {
		h.drop(conn)
		return false
	}
	return true
}

// Broadcast queues message for every connection and returns how many
// were dropped because their writer failed.
func (h *Hub) Broadcast(message []byte) int {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.drop(c)
	}
	return len(failed)
}

func (h *Hub) drop(c *Connection) {
	_ = c.Writer.Close()
	h.Unregister(c)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
