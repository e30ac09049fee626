package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// CreateRoom allocates a room and announces it to the whole lobby.
// Room names are not unique; two "standup" rooms are two rooms.
func (c *Coordinator) CreateRoom(sid core.SessionID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.Registry.Lookup(sid)
	if !ok {
		c.sendError(sid, errNotIdentified)
		return
	}
	if len(name) > domain.MaxRoomNameLen {
		name = name[:domain.MaxRoomNameLen]
	}
	room := c.Rooms.CreateRoom(domain.RoomName(name), user.Username)
	summary, _ := c.Rooms.Summary(room.ID)

	c.broadcastIdentified(roomCreatedEvent{Type: "room-created", Room: summary})
	c.sendTo(sid, roomCreatedEvent{Type: "room-created-success", Room: summary})
}

// JoinRoom moves the connection into roomID. An implicit leave of the
// previous room and the join are one directory transition; every fan-out
// below is computed from that single transition's result.
func (c *Coordinator) JoinRoom(sid core.SessionID, roomID domain.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.Registry.Lookup(sid)
	if !ok {
		c.sendError(sid, errNotIdentified)
		return
	}
	res, err := c.Rooms.Join(roomID, user)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("join-room rejected")
		c.sendError(sid, errRoomNotFound)
		return
	}

	if res.Prev != nil {
		c.fanOut(res.Prev.Remaining, userLeftEvent{Type: "user-left", ID: user.ID, Username: user.Username})
		c.broadcastSummary(res.Prev.Room.ID)
	}

	c.sendTo(sid, joinedRoomEvent{
		Type:       "joined-room",
		Room:       res.Room,
		Members:    res.Members,
		Transcript: res.Transcript,
	})
	c.fanOut(res.Others, userJoinedRoomEvent{Type: "user-joined-room", ID: user.ID, Username: user.Username})
	c.broadcastSummary(roomID)
}

// LeaveRoom exits the current room without dropping the connection.
func (c *Coordinator) LeaveRoom(sid core.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.Registry.Lookup(sid)
	if !ok {
		c.sendError(sid, errNotIdentified)
		return
	}
	left, ok := c.Rooms.Leave(sid)
	if !ok {
		return
	}
	c.fanOut(left.Remaining, userLeftEvent{Type: "user-left", ID: user.ID, Username: user.Username})
	c.broadcastSummary(left.Room.ID)
}

// SendMessage appends text to the sender's room transcript and echoes the
// stored message to every member, sender included, so all clients render
// from one authoritative copy.
func (c *Coordinator) SendMessage(sid core.SessionID, roomID domain.RoomID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.Registry.Lookup(sid)
	if !ok {
		c.sendError(sid, errNotIdentified)
		return
	}
	if roomID == "" {
		cur, inRoom := c.Rooms.CurrentRoomOf(sid)
		if !inRoom {
			c.sendError(sid, errNotInRoom)
			return
		}
		roomID = cur
	}

	msg, members, err := c.Rooms.AppendMessage(roomID, user, text)
	switch {
	case errors.Is(err, app.ErrRoomNotFound):
		c.sendError(sid, errRoomNotFound)
		return
	case errors.Is(err, app.ErrRoomMismatch):
		c.sendError(sid, errRoomMismatch)
		return
	case err != nil:
		log.Error().Err(err).Str("module", "orch").Msg("append message")
		return
	}
	c.fanOut(members, newMessageEvent{Type: "new-message", Message: msg})
}
