// Package hub fans record-change events out to live update subscribers.
package hub

import (
	"encoding/json"
	"sync"

	"bp-tracker/internal/model"
)

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one subscriber.
type Connection struct {
	Writer Writer
}

type Hub struct {
	mu          sync.RWMutex
	connections map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, conn)
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// BroadcastAll writes message to every connection. Records are shared, so
// every authenticated subscriber sees every change. Connections whose write
// fails are closed and dropped.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for c := range h.connections {
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
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

// Publish encodes ev and sends it to all subscribers.
func (h *Hub) Publish(ev model.Event) error {
	if ev.Type == "" {
		ev.Type = "update"
	}
	out, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.BroadcastAll(out)
	return nil
}
