package domain

import "time"

const MaxRoomNameLen = 36

type (
	RoomName string
	RoomID   string
)

// Room is the immutable meta of a room. Membership and transcript live in
// the directory; rooms are never deleted, an empty room stays listed.
type Room struct {
	ID        RoomID    `json:"id"`
	Name      RoomName  `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"-"`
}

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User     *User
	Muted    bool
	HasVideo bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User) *Member {
	return &Member{User: user}
}
