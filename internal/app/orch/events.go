package orch

import (
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// Error codes surfaced to clients as {"type":"error","error":<code>}.
const (
	errAlreadyIdentified = "already_identified"
	errNotIdentified     = "not_identified"
	errBadPayload        = "bad_payload"
	errRoomNotFound      = "room_not_found"
	errRoomMismatch      = "room_mismatch"
	errNotInRoom         = "not_in_room"
)

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type userJoinedEvent struct {
	Type     string        `json:"type"`
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

type roomsListEvent struct {
	Type  string             `json:"type"`
	Rooms []core.RoomSummary `json:"rooms"`
}

type roomCreatedEvent struct {
	Type string           `json:"type"`
	Room core.RoomSummary `json:"room"`
}

type roomUpdatedEvent struct {
	Type string           `json:"type"`
	Room core.RoomSummary `json:"room"`
}

type joinedRoomEvent struct {
	Type       string           `json:"type"`
	Room       domain.Room      `json:"room"`
	Members    []core.MemberDTO `json:"members"`
	Transcript []domain.Message `json:"transcript"`
}

type userJoinedRoomEvent struct {
	Type     string        `json:"type"`
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

type userLeftEvent struct {
	Type     string        `json:"type"`
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// newMessageEvent nests the message: the envelope's type field is the
// event name, the message's own type field is its category.
type newMessageEvent struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

type userMutedUpdateEvent struct {
	Type    string        `json:"type"`
	ID      domain.UserID `json:"id"`
	IsMuted bool          `json:"isMuted"`
}

type videoToggleUpdateEvent struct {
	Type     string        `json:"type"`
	ID       domain.UserID `json:"id"`
	HasVideo bool          `json:"hasVideo"`
}
