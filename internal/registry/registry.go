// Package registry tracks live socket connections for the notification hub.
// It keeps a bidirectional view: connection id to handle, and user id to the
// set of that user's connection ids (multi-device).
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transport is the live full-duplex handle behind a connection. Implemented
// by the websocket adapter in the handler package and by fakes in tests.
type Transport interface {
	WriteJSON(v any) error
	Close() error
	Alive() bool
}

// Conn is one registered live connection, owned by exactly one user.
type Conn struct {
	ID          string
	UserID      string
	Transport   Transport
	ConnectedAt time.Time
	LastActive  time.Time
	Agent       string
	Origin      string

	// subscribed holds the advisory type filter declared over the socket.
	// Empty means all types. It has its own lock: delivery reads the
	// filter after the registry lock is released.
	subMu      sync.RWMutex
	subscribed map[string]bool
}

// WantsType reports whether the connection's advisory filter admits the
// given notification type.
func (c *Conn) WantsType(notificationType string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if len(c.subscribed) == 0 {
		return true
	}
	return c.subscribed[notificationType]
}

func (c *Conn) setFilter(types []string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if len(types) == 0 {
		c.subscribed = nil
		return
	}
	filter := make(map[string]bool, len(types))
	for _, t := range types {
		filter[t] = true
	}
	c.subscribed = filter
}

// Registry is the in-memory connection table. All mutations happen under a
// single mutex; no method blocks on I/O while holding it.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	byUser map[string]map[string]struct{}
}

func New() *Registry {
	return &Registry{
		conns:  make(map[string]*Conn),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register adds a connection for userID and returns its connection id.
// Authentication happens upstream; the registry trusts its caller.
func (r *Registry) Register(userID string, transport Transport, agent, origin string, now time.Time) string {
	id := uuid.NewString()

	conn := &Conn{
		ID:          id,
		UserID:      userID,
		Transport:   transport,
		ConnectedAt: now,
		LastActive:  now,
		Agent:       agent,
		Origin:      origin,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[id] = conn
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[id] = struct{}{}

	return id
}

// Unregister removes a connection. It is idempotent: removing an unknown id
// is a no-op. An emptied per-user set is always deleted outright.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(connID)
}

func (r *Registry) removeLocked(connID string) *Conn {
	conn, ok := r.conns[connID]
	if !ok {
		return nil
	}
	delete(r.conns, connID)

	if set, ok := r.byUser[conn.UserID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byUser, conn.UserID)
		}
	}
	return conn
}

// Get returns the connection for connID, or nil.
func (r *Registry) Get(connID string) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connID]
}

// ConnectionsFor returns the live connections owned by userID.
func (r *Registry) ConnectionsFor(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]*Conn, 0, len(set))
	for id := range set {
		if conn, ok := r.conns[id]; ok {
			out = append(out, conn)
		}
	}
	return out
}

// IsOnline reports whether userID has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Touch refreshes the last-activity stamp for connID.
func (r *Registry) Touch(connID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.conns[connID]; ok {
		conn.LastActive = now
	}
}

// Subscribe records the advisory notification-type filter for connID.
func (r *Registry) Subscribe(connID string, types []string) {
	r.mu.RLock()
	conn, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	conn.setFilter(types)
}

// EvictIdle removes connections idle beyond threshold or whose transport has
// closed, and returns the removed connections so the caller can close them
// outside the lock.
func (r *Registry) EvictIdle(now time.Time, threshold time.Duration) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*Conn
	for id, conn := range r.conns {
		if now.Sub(conn.LastActive) > threshold || !conn.Transport.Alive() {
			if removed := r.removeLocked(id); removed != nil {
				evicted = append(evicted, removed)
			}
		}
	}
	return evicted
}

// Counts returns the connection count and the distinct connected-user count.
func (r *Registry) Counts() (connections int, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.byUser)
}
