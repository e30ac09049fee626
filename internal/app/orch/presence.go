package orch

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/core"
)

// Signal relays one negotiation payload to target. No room or identity
// check: signaling may legally fire in the instant between a join and
// room-scoped setup, and loss is tolerated above this layer.
func (c *Coordinator) Signal(sid core.SessionID, kind string, payload json.RawMessage, target core.SessionID) {
	c.Relay.Send(kind, payload, sid, target)
}

// SetMuted records the sender's mute flag and tells its roommates.
func (c *Coordinator) SetMuted(sid core.SessionID, isMuted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.Registry.Lookup(sid)
	if !ok {
		return
	}
	others, ok := c.Rooms.SetMuted(sid, isMuted)
	if !ok {
		return
	}
	c.fanOut(others, userMutedUpdateEvent{Type: "user-muted-update", ID: user.ID, IsMuted: isMuted})
}

// SetVideo records the sender's video flag and tells its roommates.
func (c *Coordinator) SetVideo(sid core.SessionID, hasVideo bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.Registry.Lookup(sid)
	if !ok {
		return
	}
	others, ok := c.Rooms.SetVideo(sid, hasVideo)
	if !ok {
		return
	}
	c.fanOut(others, videoToggleUpdateEvent{Type: "video-toggle-update", ID: user.ID, HasVideo: hasVideo})
}
