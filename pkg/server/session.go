package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codepair-dev/codepair/pkg/protocol"
)

// State is the per-connection protocol state.
type State uint8

const (
	// StateConnected is a fresh connection with no room. Only joinRoom
	// and disconnect are accepted here.
	StateConnected State = iota

	// StateInRoom is an enrolled connection.
	StateInRoom

	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one websocket connection and its connection-scoped state.
//
// state, roomID and username are owned by the router's dispatch
// goroutine; the pumps never touch them.
type Session struct {
	// ID is the connection-scoped identifier assigned at upgrade time.
	// It doubles as the participant id while enrolled.
	ID string

	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once

	router *Router
	config *Config
	logger *slog.Logger

	// Dispatch-owned connection session.
	state    State
	roomID   string
	username string
}

func newSession(id string, conn *websocket.Conn, router *Router, config *Config, logger *slog.Logger) *Session {
	return &Session{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, config.SendBuffer),
		done:   make(chan struct{}),
		router: router,
		config: config,
		logger: logger.With("session", id),
	}
}

// Close tears the connection down. Idempotent. The read pump notices
// the closed connection and reports the disconnect to the router.
func (s *Session) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// Send queues an encoded frame for delivery. Never blocks: a session
// whose queue is full is dropped so one slow reader cannot stall the
// dispatch loop.
func (s *Session) Send(frame []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.send <- frame:
	default:
		s.logger.Warn("send buffer full, dropping session")
		s.Close()
	}
}

// ReadPump reads frames until the connection closes, decoding each and
// handing it to the router. Blocks; run on its own goroutine.
func (s *Session) ReadPump() {
	defer func() {
		s.Close()
		s.router.Disconnect(s)
	}()

	s.conn.SetReadLimit(protocol.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		env, err := protocol.Decode(msg)
		if err != nil {
			// A buggy peer must not disrupt the room: bad frames are
			// dropped, the connection stays up.
			s.logger.Debug("frame decode error", "error", err)
			continue
		}
		s.router.Enqueue(s, env)
	}
}

// WritePump drains the send queue and keeps the connection alive with
// pings. Blocks; run on its own goroutine.
func (s *Session) WritePump() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
