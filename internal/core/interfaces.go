package core

import "github.com/dkeye/Huddle/internal/domain"

// Frame is one encoded event ready for the wire.
type Frame []byte

// SessionID identifies one live duplex connection. It doubles as the
// user id the client sees: one connection, one identity.
type SessionID string

// ClientConn abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type ClientConn interface {
	TrySend(Frame) error
	Close()
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// RoomSummary is the lobby-visible projection of a room; member detail
// stays room-local.
type RoomSummary struct {
	ID        domain.RoomID   `json:"id"`
	Name      domain.RoomName `json:"name"`
	CreatedBy string          `json:"createdBy"`
	UserCount int             `json:"userCount"`
}

// PublishResult reports delivery stats/backpressure to the coordinator.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}
