package gateway

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks the single live connection per session key. A second
// connection attempt on an occupied key is a protocol violation the caller
// must reject.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewRegistry creates a connection registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*websocket.Conn)}
}

// Register claims the session key for conn. Returns false if another
// connection already holds it.
func (r *Registry) Register(key string, conn *websocket.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[key]; exists {
		return false
	}
	r.active[key] = conn
	slog.Info("Dialogue connection registered", "session_key", key)
	return true
}

// Unregister releases the key if conn still holds it.
func (r *Registry) Unregister(key string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, exists := r.active[key]; exists && current == conn {
		delete(r.active, key)
		slog.Info("Dialogue connection unregistered", "session_key", key)
	}
}

// Active returns the connection holding the key, or nil.
func (r *Registry) Active(key string) *websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[key]
}
