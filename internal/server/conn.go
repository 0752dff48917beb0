package server

import (
	"net"
)

// conn is one tracked client connection. Entries live in the server's arena
// keyed by a stable id; the id, not the socket, identifies the connection
// everywhere else.
type conn struct {
	id      uint64
	netConn net.Conn
}

// Registry maps live connections to at most one authenticated username each.
// It is only touched from the event loop, so it needs no locking.
type Registry struct {
	sessions map[uint64]string
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uint64]string)}
}

// Attach records the authenticated username for a connection, overwriting
// any prior mapping for the same connection.
func (r *Registry) Attach(id uint64, username string) {
	r.sessions[id] = username
}

// Detach removes the mapping for a connection. Detaching an absent
// connection is a no-op.
func (r *Registry) Detach(id uint64) {
	delete(r.sessions, id)
}

// Username returns the authenticated username for a connection, or false
// when the connection is anonymous.
func (r *Registry) Username(id uint64) (string, bool) {
	username, ok := r.sessions[id]
	return username, ok
}

// Len returns the number of authenticated sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}
