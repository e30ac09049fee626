// Package orch is the session coordinator: it validates client events,
// drives the registry and room directory through a single serialization
// point, and computes the fan-out for every state change.
package orch

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type Coordinator struct {
	// mu serializes every mutating event. Fan-out happens under it too:
	// TrySend never blocks, and holding the lock through delivery is what
	// guarantees a join confirmation is ordered against room messages.
	mu sync.Mutex

	Registry *app.Registry
	Rooms    *app.Directory
	Relay    *app.Relay
	Policy   app.Policy
}

func New(reg *app.Registry, rooms *app.Directory, relay *app.Relay, policy app.Policy) *Coordinator {
	return &Coordinator{
		Registry: reg,
		Rooms:    rooms,
		Relay:    relay,
		Policy:   policy,
	}
}

// Connect binds the transport for a fresh connection. The connection
// stays anonymous until it declares join-app.
func (c *Coordinator) Connect(sid core.SessionID, conn core.ClientConn) {
	c.Registry.Bind(sid, conn)
}

// JoinApp declares the connection's identity and answers with the lobby
// state. Declaring twice is rejected and mutates nothing.
func (c *Coordinator) JoinApp(sid core.SessionID, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, err := c.Registry.Register(sid, username)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("join-app rejected")
		if errors.Is(err, app.ErrDuplicateConnection) {
			c.sendError(sid, errAlreadyIdentified)
		} else {
			c.sendError(sid, errBadPayload)
		}
		return
	}
	c.sendTo(sid, userJoinedEvent{Type: "user-joined", ID: user.ID, Username: user.Username})
	c.sendTo(sid, roomsListEvent{Type: "rooms-list", Rooms: c.Rooms.ListRooms()})
}

// Disconnect releases room membership and identity. Always safe to call,
// any number of times, from any prior state.
func (c *Coordinator) Disconnect(sid core.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, identified := c.Registry.Lookup(sid)
	if left, ok := c.Rooms.Leave(sid); ok && identified {
		c.fanOut(left.Remaining, userLeftEvent{Type: "user-left", ID: user.ID, Username: user.Username})
		c.broadcastSummary(left.Room.ID)
	}
	c.Registry.Unregister(sid)
}

// sendTo delivers one event to one connection.
func (c *Coordinator) sendTo(sid core.SessionID, v any) {
	conn, ok := c.Registry.Conn(sid)
	if !ok {
		return
	}
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("marshal event")
		return
	}
	if err := conn.TrySend(core.Frame(frame)); err != nil {
		c.onBackpressure(sid, conn)
	}
}

// fanOut delivers one event to a computed set of connections, encoding
// once. Slow receivers go to the policy.
func (c *Coordinator) fanOut(sids []core.SessionID, v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("marshal event")
		return
	}
	for _, sid := range sids {
		conn, ok := c.Registry.Conn(sid)
		if !ok {
			continue
		}
		if err := conn.TrySend(core.Frame(frame)); err != nil {
			c.onBackpressure(sid, conn)
		}
	}
}

// broadcastIdentified delivers to every identified connection: room
// counts are global knowledge.
func (c *Coordinator) broadcastIdentified(v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("marshal event")
		return
	}
	for _, snap := range c.Registry.Identified() {
		if err := snap.Conn.TrySend(core.Frame(frame)); err != nil {
			c.onBackpressure(snap.SID, snap.Conn)
		}
	}
}

// broadcastSummary pushes a room's refreshed summary to the whole lobby.
func (c *Coordinator) broadcastSummary(roomID domain.RoomID) {
	summary, ok := c.Rooms.Summary(roomID)
	if !ok {
		return
	}
	c.broadcastIdentified(roomUpdatedEvent{Type: "room-updated", Room: summary})
}

func (c *Coordinator) onBackpressure(sid core.SessionID, conn core.ClientConn) {
	if c.Policy == nil {
		return
	}
	switch c.Policy.OnBackPressure(sid) {
	case app.KickMember:
		// Closing the transport makes the adapter's read pump fail, which
		// funnels the cleanup through the normal Disconnect path.
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicking slow receiver")
		conn.Close()
	case app.MarkSlow, app.DropFrame, app.NoAction:
	}
}

func (c *Coordinator) sendError(sid core.SessionID, code string) {
	c.sendTo(sid, errorEvent{Type: "error", Error: code})
}
