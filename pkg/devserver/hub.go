package devserver

import (
	"sync"

	"github.com/gorilla/websocket"
)

// connWithMutex serializes writes to one websocket connection.
type connWithMutex struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// hub tracks the connected runtime clients.
type hub struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*connWithMutex
}

func newHub() *hub {
	return &hub{connections: make(map[*websocket.Conn]*connWithMutex)}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = &connWithMutex{conn: conn}
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, conn)
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// broadcast writes msg to every client, dropping those whose write fails.
func (h *hub) broadcast(msg any) {
	h.mu.RLock()
	conns := make([]*connWithMutex, 0, len(h.connections))
	for _, cwm := range h.connections {
		conns = append(conns, cwm)
	}
	h.mu.RUnlock()

	for _, cwm := range conns {
		cwm.mu.Lock()
		err := cwm.conn.WriteJSON(msg)
		cwm.mu.Unlock()

		if err != nil {
			h.remove(cwm.conn)
			_ = cwm.conn.Close()
		}
	}
}

// writeJSON writes to a single client under its lock.
func (h *hub) writeJSON(conn *websocket.Conn, msg any) error {
	h.mu.RLock()
	cwm, ok := h.connections[conn]
	h.mu.RUnlock()

	if !ok {
		return conn.WriteJSON(msg)
	}

	cwm.mu.Lock()
	defer cwm.mu.Unlock()
	return cwm.conn.WriteJSON(msg)
}
