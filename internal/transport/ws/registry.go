// Package ws serves the chat gateway over WebSocket with JSON frames.
package ws

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks open chat connections per user. A user may hold several
// connections at once, one per browser tab.
type Registry struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Get returns the connection registered for a user and connection ID.
func (m *Registry) Get(userID, connID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if conns, ok := m.active[userID]; ok {
		return conns[connID]
	}
	return nil
}

// Register adds a connection for a user.
func (m *Registry) Register(userID, connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}
	m.active[userID][connID] = conn
	slog.Debug("Chat connection registered", "user_id", userID, "conn_id", connID)
}

// Unregister removes a connection if it is still the one registered under connID.
func (m *Registry) Unregister(userID, connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conns, ok := m.active[userID]; ok {
		if current, exists := conns[connID]; exists && current == conn {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(m.active, userID)
			}
			slog.Debug("Chat connection unregistered", "user_id", userID, "conn_id", connID)
		}
	}
}

// Count returns the number of open connections.
func (m *Registry) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, conns := range m.active {
		n += len(conns)
	}
	return n
}

// CloseAll closes every registered connection. Used on shutdown since the
// HTTP server does not track hijacked connections.
func (m *Registry) CloseAll() {
	m.mu.Lock()
	var conns []*websocket.Conn
	for _, byID := range m.active {
		for _, conn := range byID {
			conns = append(conns, conn)
		}
	}
	m.active = make(map[string]map[string]*websocket.Conn)
	m.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	if len(conns) > 0 {
		slog.Info("Closed chat connections", "count", len(conns))
	}
}
