// Package registry tracks which identities currently have live connections.
//
// It is the single owner of the presence map: every read and write goes
// through the mutex here, never through handler goroutines touching shared
// state directly. An identity may hold several connections at once
// (multiple devices or tabs); presence transitions fire only when the first
// connection joins or the last one leaves.
package registry

import (
	"sync"

	"github.com/venturelink/messenger/internal/server/models"
)

// Conn is a live delivery handle for one connection. Deliver must not block:
// implementations buffer and report false when the event had to be dropped.
type Conn interface {
	ID() string
	Deliver(event string, payload any) bool
}

// PresenceListener observes online/offline transitions. It is invoked
// outside the registry lock, once per transition.
type PresenceListener func(identity models.Identity, online bool)

type session struct {
	identity models.Identity
	conns    map[string]Conn
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session // identity key -> live connections
	owners   map[string]string   // connection id -> identity key
	listener PresenceListener
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		owners:   make(map[string]string),
	}
}

// OnPresence registers the presence listener. Must be called before the
// first Join; there is exactly one listener.
func (r *Registry) OnPresence(fn PresenceListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = fn
}

// Join records the connection under the identity. Joining twice with the
// same connection is idempotent.
func (r *Registry) Join(identity models.Identity, conn Conn) {
	key := identity.Key()

	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = &session{identity: identity, conns: make(map[string]Conn)}
		r.sessions[key] = s
	}
	first := len(s.conns) == 0
	s.conns[conn.ID()] = conn
	r.owners[conn.ID()] = key
	listener := r.listener
	r.mu.Unlock()

	if first && listener != nil {
		listener(identity, true)
	}
}

// Leave removes the connection. Returns the identity it belonged to and
// whether it was that identity's last live connection. ok is false when the
// connection was never joined (disconnect before join).
func (r *Registry) Leave(conn Conn) (identity models.Identity, last bool, ok bool) {
	r.mu.Lock()
	key, found := r.owners[conn.ID()]
	if !found {
		r.mu.Unlock()
		return models.Identity{}, false, false
	}
	delete(r.owners, conn.ID())

	s := r.sessions[key]
	delete(s.conns, conn.ID())
	identity = s.identity
	last = len(s.conns) == 0
	if last {
		delete(r.sessions, key)
	}
	listener := r.listener
	r.mu.Unlock()

	if last && listener != nil {
		listener(identity, false)
	}
	return identity, last, true
}

// Lookup returns the live connections for the identity key, or nil when the
// peer is offline.
func (r *Registry) Lookup(key string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[key]
	if !ok {
		return nil
	}
	conns := make([]Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	return conns
}

// Online reports whether the identity key has at least one live connection.
func (r *Registry) Online(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[key]
	return ok
}

// Conns returns every live connection, for presence broadcasts.
func (r *Registry) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.owners))
	for _, s := range r.sessions {
		for _, c := range s.conns {
			conns = append(conns, c)
		}
	}
	return conns
}

// Snapshot returns the identities that are currently online.
func (r *Registry) Snapshot() []models.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identities := make([]models.Identity, 0, len(r.sessions))
	for _, s := range r.sessions {
		identities = append(identities, s.identity)
	}
	return identities
}
