package app

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Huddle/internal/classify"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomMismatch = errors.New("declared room does not match current room")
	ErrNotInRoom    = errors.New("not in a room")
)

// roomState is a room plus everything mutable about it.
type roomState struct {
	meta       domain.Room
	members    map[core.SessionID]*domain.Member
	transcript []domain.Message
	lastTS     time.Time
}

// Directory owns rooms, membership and transcripts behind one mutex, so a
// move between rooms is a single critical section and no observer can see
// a connection in two rooms or in none mid-move. Rooms are kept for the
// process lifetime, empty ones included.
type Directory struct {
	mu      sync.Mutex
	rooms   map[domain.RoomID]*roomState
	order   []domain.RoomID
	current map[core.SessionID]domain.RoomID
}

func NewDirectory() *Directory {
	return &Directory{
		rooms:   make(map[domain.RoomID]*roomState),
		current: make(map[core.SessionID]domain.RoomID),
	}
}

// LeaveResult is what the coordinator needs to notify a vacated room.
type LeaveResult struct {
	Room      domain.Room
	Remaining []core.SessionID
	UserCount int
}

// JoinResult carries the joiner's snapshot and the fan-out sets computed
// inside the same critical section as the membership change.
type JoinResult struct {
	Room       domain.Room
	Members    []core.MemberDTO
	Transcript []domain.Message
	Others     []core.SessionID
	UserCount  int
	Prev       *LeaveResult
}

func (d *Directory) CreateRoom(name domain.RoomName, createdBy string) domain.Room {
	room := domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Name:      name,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[room.ID] = &roomState{
		meta:    room,
		members: make(map[core.SessionID]*domain.Member),
	}
	d.order = append(d.order, room.ID)
	log.Info().Str("module", "app.directory").Str("room", string(room.ID)).Str("name", string(name)).Msg("room created")
	return room
}

// ListRooms returns summaries in creation order with live member counts.
func (d *Directory) ListRooms() []core.RoomSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return lo.Map(d.order, func(id domain.RoomID, _ int) core.RoomSummary {
		return d.summaryLocked(d.rooms[id])
	})
}

// Summary projects one room for lobby broadcasts.
func (d *Directory) Summary(roomID domain.RoomID) (core.RoomSummary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[roomID]
	if !ok {
		return core.RoomSummary{}, false
	}
	return d.summaryLocked(r), true
}

func (d *Directory) summaryLocked(r *roomState) core.RoomSummary {
	return core.RoomSummary{
		ID:        r.meta.ID,
		Name:      r.meta.Name,
		CreatedBy: r.meta.CreatedBy,
		UserCount: len(r.members),
	}
}

// Join moves sid into roomID, implicitly leaving its current room first.
// Both sides of the move happen under one lock acquisition.
func (d *Directory) Join(roomID domain.RoomID, user *domain.User) (JoinResult, error) {
	sid := core.SessionID(user.ID)
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return JoinResult{}, ErrRoomNotFound
	}

	var prev *LeaveResult
	if prevID, inRoom := d.current[sid]; inRoom && prevID != roomID {
		prev = d.leaveLocked(sid, prevID)
	}

	room.members[sid] = domain.NewMember(user)
	d.current[sid] = roomID
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Str("room", string(roomID)).Msg("member joined")

	return JoinResult{
		Room:       room.meta,
		Members:    d.memberSnapshotLocked(room),
		Transcript: append([]domain.Message(nil), room.transcript...),
		Others:     d.otherMembersLocked(room, sid),
		UserCount:  len(room.members),
		Prev:       prev,
	}, nil
}

// Leave removes sid from its current room, if any. No-op otherwise.
func (d *Directory) Leave(sid core.SessionID) (*LeaveResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	roomID, ok := d.current[sid]
	if !ok {
		return nil, false
	}
	return d.leaveLocked(sid, roomID), true
}

func (d *Directory) leaveLocked(sid core.SessionID, roomID domain.RoomID) *LeaveResult {
	room := d.rooms[roomID]
	delete(room.members, sid)
	delete(d.current, sid)
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Str("room", string(roomID)).Msg("member left")
	return &LeaveResult{
		Room:      room.meta,
		Remaining: d.otherMembersLocked(room, sid),
		UserCount: len(room.members),
	}
}

// AppendMessage classifies, stamps and stores text in roomID's transcript.
// The declared room must be the sender's actual room; a mismatch is
// rejected rather than silently rerouted.
func (d *Directory) AppendMessage(roomID domain.RoomID, user *domain.User, text string) (domain.Message, []core.SessionID, error) {
	sid := core.SessionID(user.ID)
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return domain.Message{}, nil, ErrRoomNotFound
	}
	if cur, inRoom := d.current[sid]; !inRoom || cur != roomID {
		return domain.Message{}, nil, ErrRoomMismatch
	}

	ts := time.Now()
	if ts.Before(room.lastTS) {
		ts = room.lastTS
	}
	room.lastTS = ts

	msg := domain.Message{
		ID:             uuid.NewString(),
		RoomID:         roomID,
		SenderID:       user.ID,
		SenderUsername: user.Username,
		Text:           text,
		Type:           classify.Classify(text),
		Timestamp:      ts,
	}
	room.transcript = append(room.transcript, msg)

	members := lo.Keys(room.members)
	log.Debug().Str("module", "app.directory").Str("room", string(roomID)).Str("type", string(msg.Type)).Int("fanout", len(members)).Msg("message appended")
	return msg, members, nil
}

func (d *Directory) CurrentRoomOf(sid core.SessionID) (domain.RoomID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.current[sid]
	return id, ok
}

// SetMuted flips the member's mute flag and returns the roommates to
// notify. False when sid is not in any room.
func (d *Directory) SetMuted(sid core.SessionID, muted bool) ([]core.SessionID, bool) {
	return d.setFlag(sid, func(m *domain.Member) { m.Muted = muted })
}

// SetVideo flips the member's video flag, same contract as SetMuted.
func (d *Directory) SetVideo(sid core.SessionID, hasVideo bool) ([]core.SessionID, bool) {
	return d.setFlag(sid, func(m *domain.Member) { m.HasVideo = hasVideo })
}

func (d *Directory) setFlag(sid core.SessionID, apply func(*domain.Member)) ([]core.SessionID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	roomID, ok := d.current[sid]
	if !ok {
		return nil, false
	}
	room := d.rooms[roomID]
	apply(room.members[sid])
	return d.otherMembersLocked(room, sid), true
}

func (d *Directory) memberSnapshotLocked(r *roomState) []core.MemberDTO {
	return lo.MapToSlice(r.members, func(_ core.SessionID, m *domain.Member) core.MemberDTO {
		return core.MemberDTO{ID: m.User.ID, Username: m.User.Username}
	})
}

func (d *Directory) otherMembersLocked(r *roomState, sid core.SessionID) []core.SessionID {
	return lo.Filter(lo.Keys(r.members), func(other core.SessionID, _ int) bool {
		return other != sid
	})
}
