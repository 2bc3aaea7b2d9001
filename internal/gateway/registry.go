// Package gateway owns the client-facing duplex connection: registry,
// event-to-protocol translation, and per-turn orchestration.
package gateway

import (
	"sync"

	"github.com/concierge-ai/concierge/internal/logging"
	"github.com/concierge-ai/concierge/pkg/types"
)

// Conn is the writable side of one client connection. *websocket.Conn
// satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// lockedConn serializes writes to one connection. gorilla/websocket allows
// at most one concurrent writer, and background title updates arrive on bus
// goroutines while the receive loop streams the current turn, so every write
// to a conn must go through this lock.
type lockedConn struct {
	mu   sync.Mutex
	conn Conn
}

func (l *lockedConn) writeJSON(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteJSON(v)
}

// Registry maps a user to at most one live connection. It is never the
// durability boundary: sends to an absent or dead connection are dropped.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*lockedConn
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*lockedConn)}
}

// Register binds a connection to a user. A newer connection for the same
// user silently replaces the old entry; the stale handle is not closed here,
// sends to it simply stop.
func (r *Registry) Register(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = &lockedConn{conn: c}
}

// Unregister removes the user's entry, but only if it still points at c, so
// a lingering old connection cannot evict its replacement.
func (r *Registry) Unregister(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lc := r.conns[userID]; lc != nil && lc.conn == c {
		delete(r.conns, userID)
	}
}

// Send delivers one protocol message to the user's connection. No
// connection means a silent drop. A write failure evicts the connection and
// is swallowed; callers are never interrupted by a gone client.
func (r *Registry) Send(userID string, msg any) {
	r.mu.RLock()
	lc, ok := r.conns[userID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	if err := lc.writeJSON(msg); err != nil {
		logging.Warn().Err(err).Str("user_id", userID).Msg("send failed, evicting connection")
		r.mu.Lock()
		if r.conns[userID] == lc {
			delete(r.conns, userID)
		}
		r.mu.Unlock()
		_ = lc.conn.Close()
	}
}

// SendChunk sends a streamed text fragment.
func (r *Registry) SendChunk(userID, content string, isFinal bool) {
	r.Send(userID, types.NewChunk(content, isFinal))
}

// SendStatus sends a turn lifecycle status.
func (r *Registry) SendStatus(userID string, status types.Status, data map[string]any) {
	r.Send(userID, types.NewStatus(status, data))
}

// SendError sends a terminal error for the current turn.
func (r *Registry) SendError(userID, content string) {
	r.Send(userID, types.NewError(content))
}

// SendSessionCreated announces an implicitly created session.
func (r *Registry) SendSessionCreated(userID string, sessionID int64, title string) {
	r.Send(userID, types.NewSessionCreated(sessionID, title))
}

// SendSessionUpdated announces a refined session title.
func (r *Registry) SendSessionUpdated(userID string, sessionID int64, title string) {
	r.Send(userID, types.NewSessionUpdated(sessionID, title))
}
