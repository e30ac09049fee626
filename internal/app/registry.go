package app

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

var ErrDuplicateConnection = errors.New("connection already registered")

// Registry maps live connections to transports and declared identities.
// It owns its tables and nothing else; cascading effects (room cleanup,
// broadcasts) are the coordinator's job.
type Registry struct {
	mu     sync.RWMutex
	conns  map[core.SessionID]core.ClientConn
	idents map[core.SessionID]*domain.User
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[core.SessionID]core.ClientConn),
		idents: make(map[core.SessionID]*domain.User),
	}
}

// Bind attaches the transport endpoint for sid. Happens on upgrade,
// before the client declares an identity.
func (r *Registry) Bind(sid core.SessionID, conn core.ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sid] = conn
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("bound connection")
}

// Register declares the identity for sid. A connection declares exactly
// once; a second declaration is rejected.
func (r *Registry) Register(sid core.SessionID, username string) (*domain.User, error) {
	u, err := domain.NewUser(domain.UserID(sid), username)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.idents[sid]; ok {
		return nil, ErrDuplicateConnection
	}
	r.idents[sid] = u
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("username", username).Msg("registered identity")
	return u, nil
}

func (r *Registry) Lookup(sid core.SessionID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.idents[sid]
	return u, ok
}

func (r *Registry) Conn(sid core.SessionID) (core.ClientConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[sid]
	return c, ok
}

// Unregister drops both identity and transport binding. Idempotent; a
// disconnect can race a half-completed join and land here twice.
func (r *Registry) Unregister(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.idents, sid)
	delete(r.conns, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered")
}

// RegSnap pairs a session with its transport for fan-out.
type RegSnap struct {
	SID  core.SessionID
	Conn core.ClientConn
}

// Identified snapshots every connection that has declared an identity.
// Fan-out targets for lobby-wide broadcasts.
func (r *Registry) Identified() []RegSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegSnap, 0, len(r.idents))
	for sid := range r.idents {
		if c, ok := r.conns[sid]; ok {
			out = append(out, RegSnap{SID: sid, Conn: c})
		}
	}
	return out
}
