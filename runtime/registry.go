// Package runtime owns the live state of the engine: identity bindings,
// room membership, typing sets and the coordinator that mutates them.
// All state in this package is confined to the coordinator goroutine,
// so the tables carry no locks of their own.
package runtime

import (
	"sort"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Registry is the source of truth for "who is online".
// It tracks every attached session and the username bound to it,
// with a reverse index so resolving a username never scans connections.
type Registry struct {
	sessions map[domain.ConnectionID]contract.EventSink
	byUser   map[string]domain.ConnectionID
	userOf   map[domain.ConnectionID]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnectionID]contract.EventSink),
		byUser:   make(map[string]domain.ConnectionID),
		userOf:   make(map[domain.ConnectionID]string),
	}
}

// Attach records a live session before any identity is bound.
func (r *Registry) Attach(conn domain.ConnectionID, sink contract.EventSink) {
	r.sessions[conn] = sink
}

// Detach forgets a session entirely. Release must have run first so that
// no username still resolves to the dead connection.
func (r *Registry) Detach(conn domain.ConnectionID) {
	delete(r.sessions, conn)
}

// Bind associates a username with a connection, last write wins.
// A previous binding for the same username is silently overwritten; the
// displaced connection stays attached but is no longer resolvable.
// A connection re-registering under a new name drops its old binding first.
func (r *Registry) Bind(conn domain.ConnectionID, username string) (displaced domain.ConnectionID, ok bool) {
	if prev, bound := r.userOf[conn]; bound && prev != username {
		delete(r.byUser, prev)
	}
	if old, exists := r.byUser[username]; exists && old != conn {
		delete(r.userOf, old)
		displaced, ok = old, true
	}
	r.byUser[username] = conn
	r.userOf[conn] = username
	return displaced, ok
}

// Release removes the binding owned by this connection, if any.
// Safe to call for connections that never registered, and idempotent.
func (r *Registry) Release(conn domain.ConnectionID) (string, bool) {
	username, bound := r.userOf[conn]
	if !bound {
		return "", false
	}
	delete(r.userOf, conn)
	if r.byUser[username] == conn {
		delete(r.byUser, username)
	}
	return username, true
}

func (r *Registry) Resolve(username string) (domain.ConnectionID, bool) {
	conn, ok := r.byUser[username]
	return conn, ok
}

func (r *Registry) UsernameOf(conn domain.ConnectionID) (string, bool) {
	username, ok := r.userOf[conn]
	return username, ok
}

func (r *Registry) SinkOf(conn domain.ConnectionID) (contract.EventSink, bool) {
	sink, ok := r.sessions[conn]
	return sink, ok
}

// AllSinks returns every attached session, registered or not.
// Public broadcasts address all of them.
func (r *Registry) AllSinks() []contract.EventSink {
	sinks := make([]contract.EventSink, 0, len(r.sessions))
	for _, sink := range r.sessions {
		sinks = append(sinks, sink)
	}
	return sinks
}

// Online returns the sorted set of currently bound usernames.
func (r *Registry) Online() []string {
	users := make([]string, 0, len(r.byUser))
	for username := range r.byUser {
		users = append(users, username)
	}
	sort.Strings(users)
	return users
}
