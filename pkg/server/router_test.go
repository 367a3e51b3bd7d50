package server

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codepair-dev/codepair/pkg/identity"
	"github.com/codepair-dev/codepair/pkg/protocol"
	"github.com/codepair-dev/codepair/pkg/room"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	cfg := DefaultConfig().withDefaults()
	reg := room.NewRegistry(nil)
	m := newMetrics(prometheus.NewRegistry())
	return newRouter(cfg, reg, m, nil)
}

func newTestSession(id string) *Session {
	return &Session{
		ID:   id,
		send: make(chan []byte, 64),
	}
}

// connect registers the session with the router, synchronously.
func connect(rt *Router, s *Session) {
	rt.dispatch(routerEvent{kind: kindConnect, sess: s})
}

// frame dispatches an inbound event, synchronously.
func frame(t *testing.T, rt *Router, s *Session, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	rt.dispatch(routerEvent{
		kind: kindFrame,
		sess: s,
		env:  &protocol.Envelope{Event: event, Data: data},
	})
}

func disconnect(rt *Router, s *Session) {
	rt.dispatch(routerEvent{kind: kindDisconnect, sess: s})
}

// recv pops the next queued frame, failing when none is pending.
func recv(t *testing.T, s *Session) *protocol.Envelope {
	t.Helper()
	select {
	case raw := <-s.send:
		env, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("decode queued frame: %v", err)
		}
		return env
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

// expect pops the next frame and asserts its event name.
func expect(t *testing.T, s *Session, event string) *protocol.Envelope {
	t.Helper()
	env := recv(t, s)
	if env.Event != event {
		t.Fatalf("event = %q, want %q", env.Event, event)
	}
	return env
}

// expectNone asserts the session has no pending frames.
func expectNone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case raw := <-s.send:
		env, _ := protocol.Decode(raw)
		t.Fatalf("unexpected frame %q", env.Event)
	default:
	}
}

func drain(s *Session) {
	for {
		select {
		case <-s.send:
		default:
			return
		}
	}
}

// join is the happy-path join helper: dispatches joinRoom and drains
// the resulting confirmation and roster frames from every session.
func join(t *testing.T, rt *Router, s *Session, roomID, username string, peers ...*Session) {
	t.Helper()
	frame(t, rt, s, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: roomID, Username: username})
	expect(t, s, protocol.EventRoomJoined)
	drain(s)
	for _, p := range peers {
		drain(p)
	}
}

func TestJoinFirstParticipantIsHost(t *testing.T) {
	rt := newTestRouter(t)
	a := newTestSession("a")
	connect(rt, a)

	frame(t, rt, a, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r1", Username: "alice"})

	env := expect(t, a, protocol.EventRoomJoined)
	var joined protocol.RoomJoined
	if err := env.Bind(&joined); err != nil {
		t.Fatalf("bind roomJoined: %v", err)
	}
	if joined.RoomID != "r1" {
		t.Errorf("roomId = %q", joined.RoomID)
	}
	if !joined.Self.Host {
		t.Error("first joiner not host")
	}
	if joined.Self.Username != "alice" || joined.Self.ID != "a" {
		t.Errorf("self = %+v", joined.Self)
	}
	if want := identity.Color("alice"); joined.Self.Color != want {
		t.Errorf("color = %q, want %q", joined.Self.Color, want)
	}
	if len(joined.Users) != 1 {
		t.Errorf("users = %d, want 1", len(joined.Users))
	}

	// Whole-room roster broadcast includes the joiner.
	expect(t, a, protocol.EventUserList)
	// The host never receives a requestCode for itself.
	expectNone(t, a)
}

func TestLateJoinerTriggersHostStateRequest(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	frame(t, rt, b, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r1", Username: "bob"})

	expect(t, b, protocol.EventRoomJoined)
	expect(t, b, protocol.EventUserList)
	expectNone(t, b)

	expect(t, a, protocol.EventUserList)
	env := expect(t, a, protocol.EventRequestCode)
	var req protocol.RequestCode
	if err := env.Bind(&req); err != nil {
		t.Fatalf("bind requestCode: %v", err)
	}
	if req.RequesterID != "b" {
		t.Errorf("requesterId = %q, want %q", req.RequesterID, "b")
	}
}

func TestJoinAfterHostLeftRequestsNothing(t *testing.T) {
	rt := newTestRouter(t)
	a, b, c := newTestSession("a"), newTestSession("b"), newTestSession("c")
	connect(rt, a)
	connect(rt, b)
	connect(rt, c)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)

	// Host leaves; no re-election.
	frame(t, rt, a, protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: "r1"})
	drain(b)

	frame(t, rt, c, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r1", Username: "carol"})
	expect(t, c, protocol.EventRoomJoined)
	drain(c)

	// bob gets the roster update but no requestCode: there is no host
	// to source a snapshot from.
	expect(t, b, protocol.EventUserList)
	expectNone(t, b)
}

func TestDuplicateUsernameRejected(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	frame(t, rt, b, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r1", Username: "alice"})

	env := expect(t, b, protocol.EventError)
	var msg protocol.ErrorMessage
	if err := env.Bind(&msg); err != nil {
		t.Fatalf("bind error: %v", err)
	}
	if msg.Message != msgUsernameTaken {
		t.Errorf("message = %q", msg.Message)
	}
	expectNone(t, b)
	expectNone(t, a) // roster unchanged, no broadcast to the room

	r, _ := rt.registry.Get("r1")
	if r.Len() != 1 {
		t.Errorf("roster size = %d, want 1", r.Len())
	}
	if b.state != StateConnected {
		t.Errorf("rejected joiner state = %v", b.state)
	}

	// Same name in another room is accepted: uniqueness is per-room.
	frame(t, rt, b, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r2", Username: "alice"})
	expect(t, b, protocol.EventRoomJoined)
}

func TestJoinValidation(t *testing.T) {
	rt := newTestRouter(t)
	a := newTestSession("a")
	connect(rt, a)

	frame(t, rt, a, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "", Username: "alice"})
	env := expect(t, a, protocol.EventError)
	var msg protocol.ErrorMessage
	env.Bind(&msg)
	if msg.Message != msgFieldsRequired {
		t.Errorf("message = %q", msg.Message)
	}

	frame(t, rt, a, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r1", Username: ""})
	expect(t, a, protocol.EventError)
	if a.state != StateConnected {
		t.Errorf("state = %v after rejected joins", a.state)
	}
}

func TestCodeChangeFanout(t *testing.T) {
	rt := newTestRouter(t)
	a, b, c := newTestSession("a"), newTestSession("b"), newTestSession("c")
	connect(rt, a)
	connect(rt, b)
	connect(rt, c)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)
	join(t, rt, c, "r1", "carol", a, b)

	frame(t, rt, a, protocol.EventCodeChange, protocol.CodeChange{
		RoomID: "r1",
		UserID: "a",
		Data:   json.RawMessage(`{"full":"print(1)"}`),
	})

	// Sender gets no echo; every other participant exactly one copy.
	expectNone(t, a)
	for _, s := range []*Session{b, c} {
		env := expect(t, s, protocol.EventCodeChange)
		var cc protocol.CodeChange
		if err := env.Bind(&cc); err != nil {
			t.Fatalf("bind codeChange: %v", err)
		}
		if cc.UserID != "a" {
			t.Errorf("userId = %q, want %q", cc.UserID, "a")
		}
		if string(cc.Data) != `{"full":"print(1)"}` {
			t.Errorf("data = %s", cc.Data)
		}
		expectNone(t, s)
	}
}

func TestCodeChangeOriginNotSpoofable(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)

	// The payload claims to be from b; the relay stamps the real origin.
	frame(t, rt, a, protocol.EventCodeChange, protocol.CodeChange{
		RoomID: "r1",
		UserID: "b",
		Data:   json.RawMessage(`{"full":"x"}`),
	})

	env := expect(t, b, protocol.EventCodeChange)
	var cc protocol.CodeChange
	env.Bind(&cc)
	if cc.UserID != "a" {
		t.Errorf("userId = %q, want origin %q", cc.UserID, "a")
	}
}

func TestShareCodeTargeted(t *testing.T) {
	rt := newTestRouter(t)
	a, b, c := newTestSession("a"), newTestSession("b"), newTestSession("c")
	connect(rt, a)
	connect(rt, b)
	connect(rt, c)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)
	join(t, rt, c, "r1", "carol", a, b)

	frame(t, rt, a, protocol.EventShareCode, protocol.ShareCode{
		RoomID:      "r1",
		Code:        "print(1)",
		Language:    "python",
		Output:      "1\n",
		RequesterID: "b",
	})

	env := expect(t, b, protocol.EventInitialState)
	var st protocol.InitialState
	if err := env.Bind(&st); err != nil {
		t.Fatalf("bind initialState: %v", err)
	}
	if st.Code != "print(1)" || st.Language != "python" || st.Output != "1\n" {
		t.Errorf("initialState = %+v", st)
	}
	expectNone(t, a)
	expectNone(t, c) // targeted, not broadcast
}

func TestShareCodeBroadcastWithoutRequester(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)

	frame(t, rt, a, protocol.EventShareCode, protocol.ShareCode{
		RoomID: "r1",
		Code:   "print(2)",
	})

	env := expect(t, b, protocol.EventCodeChange)
	var cc protocol.CodeChange
	env.Bind(&cc)
	if string(cc.Data) != `{"full":"print(2)"}` {
		t.Errorf("data = %s", cc.Data)
	}
	expectNone(t, a)
}

func TestShareCodeUnknownRequesterDropped(t *testing.T) {
	rt := newTestRouter(t)
	a := newTestSession("a")
	connect(rt, a)
	join(t, rt, a, "r1", "alice")

	frame(t, rt, a, protocol.EventShareCode, protocol.ShareCode{
		RoomID:      "r1",
		Code:        "x",
		RequesterID: "ghost",
	})
	expectNone(t, a)
}

func TestCursorMoveFanout(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)

	frame(t, rt, a, protocol.EventCursorMove, protocol.CursorMove{
		RoomID:   "r1",
		Position: protocol.Position{LineNumber: 5, Column: 3},
		Visible:  true,
	})

	env := expect(t, b, protocol.EventCursorUpdate)
	var cu protocol.CursorUpdate
	if err := env.Bind(&cu); err != nil {
		t.Fatalf("bind cursorUpdate: %v", err)
	}
	if cu.UserID != "a" || cu.Username != "alice" || !cu.Visible {
		t.Errorf("cursorUpdate = %+v", cu)
	}
	if want := identity.Color("alice"); cu.Color != want {
		t.Errorf("color = %q, want %q", cu.Color, want)
	}
	if cu.Position.LineNumber != 5 || cu.Position.Column != 3 {
		t.Errorf("position = %+v", cu.Position)
	}
	expectNone(t, a)

	// The registry keeps the last known position.
	r, _ := rt.registry.Get("r1")
	p, _ := r.Participant("a")
	if p.Cursor == nil || p.Cursor.LineNumber != 5 {
		t.Errorf("registry cursor = %+v", p.Cursor)
	}
}

func TestMouseMoveFanout(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)

	frame(t, rt, b, protocol.EventMouseMove, protocol.MouseMove{
		RoomID:      "r1",
		Coordinates: protocol.Coordinates{X: 11, Y: 22},
		Visible:     true,
	})

	env := expect(t, a, protocol.EventMouseUpdate)
	var mu protocol.MouseUpdate
	if err := env.Bind(&mu); err != nil {
		t.Fatalf("bind mouse-update: %v", err)
	}
	if mu.UserID != "b" || mu.Username != "bob" || mu.Coordinates.X != 11 {
		t.Errorf("mouse-update = %+v", mu)
	}
	expectNone(t, b)
}

func TestLanguageChangeAndCodeOutput(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)

	frame(t, rt, a, protocol.EventLanguageChange, protocol.LanguageChange{
		RoomID: "r1", UserID: "a", Language: "python",
	})
	env := expect(t, b, protocol.EventLanguageChange)
	var lc protocol.LanguageChange
	env.Bind(&lc)
	if lc.UserID != "a" || lc.Language != "python" {
		t.Errorf("languageChange = %+v", lc)
	}

	frame(t, rt, a, protocol.EventCodeOutput, protocol.CodeOutput{
		RoomID: "r1", UserID: "a", Output: "42\n",
	})
	env = expect(t, b, protocol.EventCodeOutput)
	var co protocol.CodeOutput
	env.Bind(&co)
	if co.UserID != "a" || co.Output != "42\n" {
		t.Errorf("codeOutput = %+v", co)
	}
	// Username resolved server-side from the roster.
	if co.Username != "alice" {
		t.Errorf("username = %q, want %q", co.Username, "alice")
	}
	expectNone(t, a)
}

func TestPreJoinEventsDroppedSilently(t *testing.T) {
	rt := newTestRouter(t)
	a := newTestSession("a")
	connect(rt, a)

	frame(t, rt, a, protocol.EventCodeChange, protocol.CodeChange{
		RoomID: "r1", Data: json.RawMessage(`{"full":"x"}`),
	})
	frame(t, rt, a, protocol.EventCursorMove, protocol.CursorMove{RoomID: "r1"})
	frame(t, rt, a, protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: "r1"})
	frame(t, rt, a, "bogusEvent", struct{}{})

	expectNone(t, a)
	if a.state != StateConnected {
		t.Errorf("state = %v", a.state)
	}
}

func TestRelayToForeignRoomDropped(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r2", "bob")

	// a is enrolled in r1; events naming r2 must not reach r2.
	frame(t, rt, a, protocol.EventCodeChange, protocol.CodeChange{
		RoomID: "r2", Data: json.RawMessage(`{"full":"stolen"}`),
	})
	expectNone(t, b)
	expectNone(t, a)
}

func TestMalformedPayloadDropped(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)

	rt.dispatch(routerEvent{kind: kindFrame, sess: a, env: &protocol.Envelope{
		Event: protocol.EventCursorMove,
		Data:  json.RawMessage(`"not an object"`),
	}})
	expectNone(t, b)
	expectNone(t, a)
}

func TestExplicitLeave(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)

	frame(t, rt, b, protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: "r1"})

	env := expect(t, a, protocol.EventUserLeft)
	var left protocol.UserLeft
	env.Bind(&left)
	if left.UserID != "b" || left.Username != "bob" {
		t.Errorf("userLeft = %+v", left)
	}
	env = expect(t, a, protocol.EventUserList)
	var users []protocol.User
	env.Bind(&users)
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("roster = %+v", users)
	}

	if b.state != StateConnected || b.roomID != "" {
		t.Errorf("leaver session = %v %q", b.state, b.roomID)
	}
	// The leaver itself receives nothing.
	expectNone(t, b)
}

func TestDisconnectMiddleParticipant(t *testing.T) {
	rt := newTestRouter(t)
	a, b, c := newTestSession("a"), newTestSession("b"), newTestSession("c")
	connect(rt, a)
	connect(rt, b)
	connect(rt, c)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)
	join(t, rt, c, "r1", "carol", a, b)

	disconnect(rt, b)

	for _, s := range []*Session{a, c} {
		expect(t, s, protocol.EventUserLeft)
		env := expect(t, s, protocol.EventUserList)
		var users []protocol.User
		if err := env.Bind(&users); err != nil {
			t.Fatalf("bind userList: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("roster size = %d, want 2", len(users))
		}
		if users[0].Username != "alice" || users[1].Username != "carol" {
			t.Errorf("roster = %+v", users)
		}
		// Exactly one roster update: no further frames.
		expectNone(t, s)
	}

	if b.state != StateClosed {
		t.Errorf("state = %v, want closed", b.state)
	}
	if _, ok := rt.sessions["b"]; ok {
		t.Error("session not discarded")
	}
	// Room survives: it still has participants.
	if _, ok := rt.registry.Get("r1"); !ok {
		t.Error("room destroyed while non-empty")
	}
}

func TestLastLeaveDestroysRoomAndRejoinElectsNewHost(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	disconnect(rt, a)

	if _, ok := rt.registry.Get("r1"); ok {
		t.Fatal("room survived last leave")
	}

	frame(t, rt, b, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r1", Username: "bob"})
	env := expect(t, b, protocol.EventRoomJoined)
	var joined protocol.RoomJoined
	env.Bind(&joined)
	if !joined.Self.Host {
		t.Error("fresh room instance did not elect a new host")
	}
}

func TestSwitchingRoomsNotifiesOldRoom(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r1", "alice")
	join(t, rt, b, "r1", "bob", a)

	frame(t, rt, b, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r2", Username: "bob"})

	// Old room learns about the implicit leave.
	expect(t, a, protocol.EventUserLeft)
	env := expect(t, a, protocol.EventUserList)
	var users []protocol.User
	env.Bind(&users)
	if len(users) != 1 {
		t.Errorf("old room roster = %+v", users)
	}

	// New room join confirmed; b is host of the fresh room.
	env = expect(t, b, protocol.EventRoomJoined)
	var joined protocol.RoomJoined
	env.Bind(&joined)
	if joined.RoomID != "r2" || !joined.Self.Host {
		t.Errorf("roomJoined = %+v", joined)
	}
	if b.roomID != "r2" {
		t.Errorf("session room = %q", b.roomID)
	}
}

func TestDuplicateRejectionAfterImplicitLeave(t *testing.T) {
	rt := newTestRouter(t)
	a, b := newTestSession("a"), newTestSession("b")
	connect(rt, a)
	connect(rt, b)

	join(t, rt, a, "r2", "alice")
	join(t, rt, b, "r1", "bob")

	// b switches to r2 but the name is taken there: the implicit leave
	// of r1 has already happened, so b ends up roomless.
	frame(t, rt, b, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r2", Username: "alice"})
	expect(t, b, protocol.EventError)
	if b.state != StateConnected || b.roomID != "" {
		t.Errorf("session = %v %q, want roomless", b.state, b.roomID)
	}
	if _, ok := rt.registry.Get("r1"); ok {
		t.Error("emptied old room survived")
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	rt := newTestRouter(t)
	a := newTestSession("a")
	connect(rt, a)

	rt.handlers["explode"] = func(*Session, *protocol.Envelope) { panic("boom") }
	rt.dispatch(routerEvent{kind: kindFrame, sess: a, env: &protocol.Envelope{
		Event: "explode",
		Data:  json.RawMessage(`{}`),
	}})

	// The loop survives: a normal event still works.
	frame(t, rt, a, protocol.EventJoinRoom, protocol.JoinRoom{RoomID: "r1", Username: "alice"})
	expect(t, a, protocol.EventRoomJoined)
}
