package orch

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

func roomIDT(s string) domain.RoomID { return domain.RoomID(s) }

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errors.New("send buffer full")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// byType decodes captured frames and keeps those with the given type.
func (f *fakeConn) byType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func newTestCoordinator() *Coordinator {
	reg := app.NewRegistry()
	return New(reg, app.NewDirectory(), app.NewRelay(reg), app.SimplePolicy{})
}

// identify connects and declares in one go, the normal client handshake.
func identify(c *Coordinator, sid core.SessionID, username string) *fakeConn {
	conn := &fakeConn{}
	c.Connect(sid, conn)
	c.JoinApp(sid, username)
	return conn
}

func TestCoordinator_JoinApp(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()

	conn := identify(c, "a", "alice")

	// The connection gets its identity echo and the current room list
	joined := conn.byType(t, "user-joined")
	req.Len(joined, 1)
	req.Equal("a", joined[0]["id"])
	req.Equal("alice", joined[0]["username"])
	req.Len(conn.byType(t, "rooms-list"), 1)
}

func TestCoordinator_JoinApp_Twice(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	conn := identify(c, "a", "alice")

	// A second declaration is rejected and mutates nothing
	c.JoinApp("a", "mallory")

	errs := conn.byType(t, "error")
	req.Len(errs, 1)
	req.Equal("already_identified", errs[0]["error"])
	user, ok := c.Registry.Lookup("a")
	req.True(ok)
	req.Equal("alice", user.Username)
}

func TestCoordinator_SendMessage_BeforeJoinApp(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	conn := &fakeConn{}
	c.Connect("a", conn)

	// An out-of-order event is dropped without state mutation
	c.SendMessage("a", "", "hello")

	errs := conn.byType(t, "error")
	req.Len(errs, 1)
	req.Equal("not_identified", errs[0]["error"])
	req.Empty(c.Rooms.ListRooms())
}

func TestCoordinator_CreateRoom_BroadcastsToLobby(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	alice := identify(c, "a", "alice")
	bob := identify(c, "b", "bob")

	c.CreateRoom("a", "standup")

	// Every identified connection hears about the room, not just members
	req.Len(alice.byType(t, "room-created"), 1)
	req.Len(bob.byType(t, "room-created"), 1)
	// The creator additionally gets a confirmation
	req.Len(alice.byType(t, "room-created-success"), 1)
	req.Empty(bob.byType(t, "room-created-success"))
}

func TestCoordinator_Scenario_Standup(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	alice := identify(c, "a", "alice")
	bob := identify(c, "b", "bob")

	// Given alice creates "standup" and both join it
	c.CreateRoom("a", "standup")
	roomID := alice.byType(t, "room-created-success")[0]["room"].(map[string]any)["id"].(string)
	c.JoinRoom("a", roomIDT(roomID))
	c.JoinRoom("b", roomIDT(roomID))

	// Then alice was told about bob's arrival
	req.Len(alice.byType(t, "user-joined-room"), 1)
	// And the lobby-wide summary reached userCount 2
	updates := bob.byType(t, "room-updated")
	req.NotEmpty(updates)
	last := updates[len(updates)-1]["room"].(map[string]any)
	req.Equal(float64(2), last["userCount"])

	// When alice sends a message
	c.SendMessage("a", roomIDT(roomID), "hi team")

	// Then both members observe exactly one identical authoritative copy
	got := alice.byType(t, "new-message")
	req.Len(got, 1)
	echo := bob.byType(t, "new-message")
	req.Len(echo, 1)
	mine := got[0]["message"].(map[string]any)
	theirs := echo[0]["message"].(map[string]any)
	req.Equal(mine["id"], theirs["id"])
	req.Equal(mine["timestamp"], theirs["timestamp"])
	req.Equal("chat", mine["type"])
	req.Equal("hi team", mine["text"])
	req.Equal("alice", mine["senderUsername"])
}

func TestCoordinator_JoinRoom_MoveEmitsExactlyOnce(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	alice := identify(c, "a", "alice")
	bob := identify(c, "b", "bob")
	carol := identify(c, "c", "carol")

	c.CreateRoom("a", "x")
	c.CreateRoom("a", "y")
	succ := alice.byType(t, "room-created-success")
	x := succ[0]["room"].(map[string]any)["id"].(string)
	y := succ[1]["room"].(map[string]any)["id"].(string)

	// Given alice and bob in x, carol in y
	c.JoinRoom("a", roomIDT(x))
	c.JoinRoom("b", roomIDT(x))
	c.JoinRoom("c", roomIDT(y))

	// When alice moves to y
	c.JoinRoom("a", roomIDT(y))

	// Then x's remaining member hears exactly one user-left for alice
	lefts := bob.byType(t, "user-left")
	req.Len(lefts, 1)
	req.Equal("a", lefts[0]["id"])
	// And y's member hears exactly one user-joined-room for alice
	joins := carol.byType(t, "user-joined-room")
	req.Len(joins, 1)
	req.Equal("a", joins[0]["id"])
	// And alice occupies exactly one room
	cur, ok := c.Rooms.CurrentRoomOf("a")
	req.True(ok)
	req.Equal(roomIDT(y), cur)
}

func TestCoordinator_JoinRoom_NotFound(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	alice := identify(c, "a", "alice")
	c.CreateRoom("a", "x")
	x := alice.byType(t, "room-created-success")[0]["room"].(map[string]any)["id"].(string)
	c.JoinRoom("a", roomIDT(x))

	// When joining a room that does not exist
	c.JoinRoom("a", "nope")

	// Then the requester keeps its previous state
	errs := alice.byType(t, "error")
	req.Len(errs, 1)
	req.Equal("room_not_found", errs[0]["error"])
	cur, ok := c.Rooms.CurrentRoomOf("a")
	req.True(ok)
	req.Equal(roomIDT(x), cur)
}

func TestCoordinator_LeaveRoom(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	alice := identify(c, "a", "alice")
	bob := identify(c, "b", "bob")
	c.CreateRoom("a", "x")
	x := alice.byType(t, "room-created-success")[0]["room"].(map[string]any)["id"].(string)
	c.JoinRoom("a", roomIDT(x))
	c.JoinRoom("b", roomIDT(x))

	c.LeaveRoom("a")

	req.Len(bob.byType(t, "user-left"), 1)
	_, ok := c.Rooms.CurrentRoomOf("a")
	req.False(ok)
	// Leaving the lobby again is a quiet no-op
	c.LeaveRoom("a")
	req.Len(bob.byType(t, "user-left"), 1)
}

func TestCoordinator_Disconnect_Idempotent(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	alice := identify(c, "a", "alice")
	bob := identify(c, "b", "bob")
	c.CreateRoom("a", "x")
	x := alice.byType(t, "room-created-success")[0]["room"].(map[string]any)["id"].(string)
	c.JoinRoom("a", roomIDT(x))
	c.JoinRoom("b", roomIDT(x))

	// When alice disconnects twice (a disconnect can race cleanup)
	c.Disconnect("a")
	c.Disconnect("a")

	// Then bob heard exactly one user-left and state is fully released
	req.Len(bob.byType(t, "user-left"), 1)
	_, ok := c.Registry.Lookup("a")
	req.False(ok)
	_, ok = c.Rooms.CurrentRoomOf("a")
	req.False(ok)
	// Final room count broadcast shows the room back to one member
	updates := bob.byType(t, "room-updated")
	last := updates[len(updates)-1]["room"].(map[string]any)
	req.Equal(float64(1), last["userCount"])
}

func TestCoordinator_PresenceFlags(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	alice := identify(c, "a", "alice")
	bob := identify(c, "b", "bob")
	c.CreateRoom("a", "x")
	x := alice.byType(t, "room-created-success")[0]["room"].(map[string]any)["id"].(string)
	c.JoinRoom("a", roomIDT(x))
	c.JoinRoom("b", roomIDT(x))

	c.SetMuted("a", true)
	c.SetVideo("b", true)

	muted := bob.byType(t, "user-muted-update")
	req.Len(muted, 1)
	req.Equal("a", muted[0]["id"])
	req.Equal(true, muted[0]["isMuted"])

	video := alice.byType(t, "video-toggle-update")
	req.Len(video, 1)
	req.Equal("b", video[0]["id"])
	req.Equal(true, video[0]["hasVideo"])
}

func TestCoordinator_BackpressureKicksSlowReceiver(t *testing.T) {
	req := require.New(t)
	c := newTestCoordinator()
	identify(c, "a", "alice")

	slow := &fakeConn{}
	c.Connect("b", slow)
	c.JoinApp("b", "bob")
	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	// A lobby broadcast that cannot be buffered closes the transport;
	// cleanup then flows through the normal disconnect path
	c.CreateRoom("a", "x")

	req.True(slow.isClosed())
}
