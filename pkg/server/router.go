package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codepair-dev/codepair/pkg/protocol"
	"github.com/codepair-dev/codepair/pkg/room"
)

// Drop reasons, used for logs and metrics.
const (
	dropValidation   = "validation"
	dropNotEnrolled  = "not_enrolled"
	dropRoomNotFound = "room_not_found"
	dropUnknownEvent = "unknown_event"
	dropBadState     = "bad_state"
)

// User-visible error messages.
const (
	msgUsernameTaken  = protocol.MsgUsernameTaken
	msgFieldsRequired = "Username and Room ID are required"
)

type eventKind uint8

const (
	kindConnect eventKind = iota
	kindFrame
	kindDisconnect
)

type routerEvent struct {
	kind eventKind
	sess *Session
	env  *protocol.Envelope
}

// Router validates inbound events against session and registry
// invariants, mutates room state, and fans resulting events out.
//
// The registry and all Session connection state are owned by the Run
// goroutine; everything reaches it through the events channel.
type Router struct {
	registry *room.Registry
	sessions map[string]*Session // participant id -> session

	events   chan routerEvent
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	handlers map[string]func(*Session, *protocol.Envelope)

	metrics *metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// newRouter creates a router around the given registry.
func newRouter(cfg *Config, registry *room.Registry, m *metrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Router{
		registry: registry,
		sessions: make(map[string]*Session),
		events:   make(chan routerEvent, cfg.EventBuffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		metrics:  m,
		tracer:   otel.Tracer("github.com/codepair-dev/codepair/pkg/server"),
		logger:   logger.With("component", "router"),
	}
	rt.handlers = map[string]func(*Session, *protocol.Envelope){
		protocol.EventJoinRoom:       rt.handleJoinRoom,
		protocol.EventLeaveRoom:      rt.handleLeaveRoom,
		protocol.EventCodeChange:     rt.handleCodeChange,
		protocol.EventShareCode:      rt.handleShareCode,
		protocol.EventCursorMove:     rt.handleCursorMove,
		protocol.EventMouseMove:      rt.handleMouseMove,
		protocol.EventLanguageChange: rt.handleLanguageChange,
		protocol.EventCodeOutput:     rt.handleCodeOutput,
	}
	return rt
}

// Run dispatches events until Stop. Each handler runs to completion
// before the next event is taken, which is what makes the registry safe
// without locks. Blocks; run on its own goroutine.
func (rt *Router) Run() {
	defer close(rt.stopped)
	for {
		select {
		case ev := <-rt.events:
			rt.dispatch(ev)
		case <-rt.done:
			// Websocket connections are hijacked, so the HTTP server's
			// shutdown cannot reach them; close them here.
			for _, s := range rt.sessions {
				s.Close()
			}
			return
		}
	}
}

// Stop terminates the dispatch loop and waits for it to exit.
func (rt *Router) Stop() {
	rt.stopOnce.Do(func() { close(rt.done) })
	<-rt.stopped
}

// Connect registers a fresh session. Called before the session's pumps
// start so the registration dispatches ahead of any of its frames.
func (rt *Router) Connect(s *Session) {
	rt.enqueue(routerEvent{kind: kindConnect, sess: s})
}

// Disconnect reports a closed connection.
func (rt *Router) Disconnect(s *Session) {
	rt.enqueue(routerEvent{kind: kindDisconnect, sess: s})
}

// Enqueue hands a decoded frame to the dispatch loop.
func (rt *Router) Enqueue(s *Session, env *protocol.Envelope) {
	rt.enqueue(routerEvent{kind: kindFrame, sess: s, env: env})
}

func (rt *Router) enqueue(ev routerEvent) {
	select {
	case rt.events <- ev:
	case <-rt.done:
	}
}

func (rt *Router) dispatch(ev routerEvent) {
	start := time.Now()
	name := "disconnect"
	if ev.kind == kindConnect {
		name = "connect"
	} else if ev.env != nil {
		name = ev.env.Event
	}

	_, span := rt.tracer.Start(context.Background(), "relay.dispatch",
		trace.WithAttributes(
			attribute.String("event", name),
			attribute.String("session", ev.sess.ID),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			rt.metrics.handlerPanics.Inc()
			span.SetStatus(codes.Error, "handler panic")
			rt.logger.Error("handler panic",
				"event", name,
				"session", ev.sess.ID,
				"panic", r,
				"stack", string(debug.Stack()))
		}
		rt.metrics.dispatchDuration.Observe(time.Since(start).Seconds())
	}()

	switch ev.kind {
	case kindConnect:
		rt.sessions[ev.sess.ID] = ev.sess
		rt.metrics.connectionsActive.Set(float64(len(rt.sessions)))
		rt.logger.Debug("session connected", "session", ev.sess.ID)

	case kindDisconnect:
		rt.handleDisconnect(ev.sess)

	case kindFrame:
		rt.metrics.eventsTotal.WithLabelValues(name).Inc()
		handler, ok := rt.handlers[name]
		if !ok {
			rt.drop(ev.sess, name, dropUnknownEvent)
			return
		}
		if ev.sess.state == StateClosed {
			rt.drop(ev.sess, name, dropBadState)
			return
		}
		handler(ev.sess, ev.env)
	}
}

// drop records a rejected event. Fail closed and invisible: no error
// payload goes back mid-session, a buggy peer cannot disrupt the room.
func (rt *Router) drop(s *Session, event, reason string) {
	rt.metrics.eventsDropped.WithLabelValues(reason).Inc()
	rt.logger.Debug("event dropped",
		"event", event, "reason", reason,
		"session", s.ID, "state", s.state.String())
}

// sendTo queues an event for a single participant.
func (rt *Router) sendTo(participantID, event string, payload any) {
	s, ok := rt.sessions[participantID]
	if !ok {
		return
	}
	s.Send(protocol.MustEncode(event, payload))
	rt.metrics.fanoutTotal.Inc()
}

// broadcast queues an event for every participant of the room except
// exceptID. Empty exceptID reaches the whole room. The frame is
// encoded once.
func (rt *Router) broadcast(roomID, exceptID, event string, payload any) {
	r, ok := rt.registry.Get(roomID)
	if !ok {
		return
	}
	frame := protocol.MustEncode(event, payload)
	for _, p := range r.Participants() {
		if p.ID == exceptID {
			continue
		}
		if s, ok := rt.sessions[p.ID]; ok {
			s.Send(frame)
			rt.metrics.fanoutTotal.Inc()
		}
	}
}

// leaveCurrentRoom removes the session from its room, notifies the
// remaining members, and returns the session to the roomless state.
// No-op when the session is not enrolled anywhere.
func (rt *Router) leaveCurrentRoom(s *Session) {
	if s.state != StateInRoom {
		return
	}
	roomID := s.roomID

	removed, ok := rt.registry.RemoveParticipant(roomID, s.ID)
	s.state = StateConnected
	s.roomID = ""
	s.username = ""
	rt.metrics.roomsActive.Set(float64(rt.registry.Len()))
	if !ok {
		return
	}

	rt.logger.Info("participant left",
		"room", roomID, "participant", removed.ID,
		"username", removed.Username, "host", removed.Host)

	if r, exists := rt.registry.Get(roomID); exists && r.Len() > 0 {
		rt.broadcast(roomID, "", protocol.EventUserLeft, protocol.UserLeft{
			UserID:   removed.ID,
			Username: removed.Username,
		})
		rt.broadcast(roomID, "", protocol.EventUserList, r.Users())
	}
}

func (rt *Router) handleJoinRoom(s *Session, env *protocol.Envelope) {
	var req protocol.JoinRoom
	if err := env.Bind(&req); err != nil {
		rt.drop(s, env.Event, dropValidation)
		return
	}
	if req.RoomID == "" || req.Username == "" {
		// Join attempts are the one place validation is surfaced.
		rt.metrics.eventsDropped.WithLabelValues(dropValidation).Inc()
		rt.sendTo(s.ID, protocol.EventError, protocol.ErrorMessage{Message: msgFieldsRequired})
		return
	}

	// Moving between rooms (or re-joining the same one) is an implicit
	// leave first, so the old room's roster is correct even when the
	// new join is then rejected.
	rt.leaveCurrentRoom(s)

	p := room.NewParticipant(s.ID, req.Username)
	if err := rt.registry.AddParticipant(req.RoomID, p); err != nil {
		rt.sendTo(s.ID, protocol.EventError, protocol.ErrorMessage{Message: msgUsernameTaken})
		rt.logger.Debug("join rejected",
			"room", req.RoomID, "username", req.Username, "error", err)
		return
	}

	s.state = StateInRoom
	s.roomID = req.RoomID
	s.username = req.Username
	rt.metrics.roomsActive.Set(float64(rt.registry.Len()))

	r, _ := rt.registry.Get(req.RoomID)
	rt.logger.Info("participant joined",
		"room", req.RoomID, "participant", s.ID,
		"username", req.Username, "host", p.Host, "roster", r.Len())

	rt.sendTo(s.ID, protocol.EventRoomJoined, protocol.RoomJoined{
		RoomID: req.RoomID,
		Users:  r.Users(),
		Self:   p.User(),
	})
	rt.broadcast(req.RoomID, "", protocol.EventUserList, r.Users())

	// Late joiners get the current buffer from the host, host answering
	// the requester directly. No host (original host left) means no
	// snapshot source: the joiner starts from the default template.
	if !p.Host {
		if host, ok := r.Host(); ok {
			rt.sendTo(host.ID, protocol.EventRequestCode, protocol.RequestCode{
				RequesterID: s.ID,
			})
		}
	}
}

func (rt *Router) handleLeaveRoom(s *Session, env *protocol.Envelope) {
	var req protocol.LeaveRoom
	if err := env.Bind(&req); err != nil {
		rt.drop(s, env.Event, dropValidation)
		return
	}
	if s.state != StateInRoom || s.roomID != req.RoomID {
		rt.drop(s, env.Event, dropNotEnrolled)
		return
	}
	rt.leaveCurrentRoom(s)
}

func (rt *Router) handleCodeChange(s *Session, env *protocol.Envelope) {
	var req protocol.CodeChange
	if err := env.Bind(&req); err != nil {
		rt.drop(s, env.Event, dropValidation)
		return
	}
	if !rt.enrolled(s, req.RoomID, env.Event) {
		return
	}
	// The origin id comes from the connection, not the payload, so a
	// peer cannot spoof another participant's edits.
	rt.broadcast(req.RoomID, s.ID, protocol.EventCodeChange, protocol.CodeChange{
		UserID: s.ID,
		Data:   req.Data,
	})
}

func (rt *Router) handleShareCode(s *Session, env *protocol.Envelope) {
	var req protocol.ShareCode
	if err := env.Bind(&req); err != nil {
		rt.drop(s, env.Event, dropValidation)
		return
	}
	if !rt.enrolled(s, req.RoomID, env.Event) {
		return
	}

	if req.RequesterID != "" {
		// Targeted initial snapshot: the requester applies it as a
		// full replace, not a diff.
		r, _ := rt.registry.Get(req.RoomID)
		if _, ok := r.Participant(req.RequesterID); !ok {
			rt.drop(s, env.Event, dropRoomNotFound)
			return
		}
		rt.sendTo(req.RequesterID, protocol.EventInitialState, protocol.InitialState{
			Code:     req.Code,
			Language: req.Language,
			Output:   req.Output,
		})
		return
	}

	// Without a requester this is an ordinary full-buffer update.
	rt.broadcast(req.RoomID, s.ID, protocol.EventCodeChange, protocol.CodeChange{
		UserID: s.ID,
		Data:   protocol.FullBufferData(req.Code),
	})
}

func (rt *Router) handleCursorMove(s *Session, env *protocol.Envelope) {
	var req protocol.CursorMove
	if err := env.Bind(&req); err != nil {
		rt.drop(s, env.Event, dropValidation)
		return
	}
	if !rt.enrolled(s, req.RoomID, env.Event) {
		return
	}
	rt.registry.UpdateCursor(req.RoomID, s.ID, req.Position)

	p := rt.participant(s)
	rt.broadcast(req.RoomID, s.ID, protocol.EventCursorUpdate, protocol.CursorUpdate{
		UserID:   s.ID,
		Username: p.Username,
		Position: req.Position,
		Visible:  req.Visible,
		Color:    p.Color,
	})
}

func (rt *Router) handleMouseMove(s *Session, env *protocol.Envelope) {
	var req protocol.MouseMove
	if err := env.Bind(&req); err != nil {
		rt.drop(s, env.Event, dropValidation)
		return
	}
	if !rt.enrolled(s, req.RoomID, env.Event) {
		return
	}
	rt.registry.UpdateCoordinates(req.RoomID, s.ID, req.Coordinates)

	p := rt.participant(s)
	rt.broadcast(req.RoomID, s.ID, protocol.EventMouseUpdate, protocol.MouseUpdate{
		UserID:      s.ID,
		Username:    p.Username,
		Coordinates: req.Coordinates,
		Visible:     req.Visible,
		Color:       p.Color,
	})
}

func (rt *Router) handleLanguageChange(s *Session, env *protocol.Envelope) {
	var req protocol.LanguageChange
	if err := env.Bind(&req); err != nil {
		rt.drop(s, env.Event, dropValidation)
		return
	}
	if !rt.enrolled(s, req.RoomID, env.Event) {
		return
	}
	rt.broadcast(req.RoomID, s.ID, protocol.EventLanguageChange, protocol.LanguageChange{
		UserID:   s.ID,
		Language: req.Language,
	})
}

func (rt *Router) handleCodeOutput(s *Session, env *protocol.Envelope) {
	var req protocol.CodeOutput
	if err := env.Bind(&req); err != nil {
		rt.drop(s, env.Event, dropValidation)
		return
	}
	if !rt.enrolled(s, req.RoomID, env.Event) {
		return
	}
	// Resolve the sender's display name so receivers get display-ready
	// data without a roster lookup.
	p := rt.participant(s)
	rt.broadcast(req.RoomID, s.ID, protocol.EventCodeOutput, protocol.CodeOutput{
		UserID:   s.ID,
		Username: p.Username,
		Output:   req.Output,
	})
}

// handleDisconnect is the implicit leaveRoom for a closing connection,
// after which the connection session is discarded.
func (rt *Router) handleDisconnect(s *Session) {
	rt.leaveCurrentRoom(s)
	s.state = StateClosed
	delete(rt.sessions, s.ID)
	rt.metrics.connectionsActive.Set(float64(len(rt.sessions)))
	rt.logger.Debug("session closed", "session", s.ID)
}

// enrolled checks that the event names the room the session actually
// occupies. Failures are dropped, never surfaced.
func (rt *Router) enrolled(s *Session, roomID, event string) bool {
	if s.state != StateInRoom {
		rt.drop(s, event, dropNotEnrolled)
		return false
	}
	if roomID == "" || s.roomID != roomID {
		rt.drop(s, event, dropNotEnrolled)
		return false
	}
	if _, ok := rt.registry.Get(roomID); !ok {
		rt.drop(s, event, dropRoomNotFound)
		return false
	}
	return true
}

// participant returns the session's registry record. Callers run after
// an enrolled check, so the record exists.
func (rt *Router) participant(s *Session) *room.Participant {
	r, _ := rt.registry.Get(s.roomID)
	p, _ := r.Participant(s.ID)
	return p
}
