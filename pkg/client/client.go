package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/codepair-dev/codepair/pkg/protocol"
)

// Client errors.
var (
	ErrNotConnected  = errors.New("client: not connected to server")
	ErrMissingFields = errors.New("client: username and room id are required")
	ErrClosed        = errors.New("client: closed")

	// ErrUsernameTaken is returned by Join when the display name is
	// already in use in the room, so callers can prompt specifically
	// for a new name.
	ErrUsernameTaken = errors.New("client: username is already taken")
)

// Reconnection defaults, matching the original client policy.
const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
)

type joinResult struct {
	joined protocol.RoomJoined
	err    error
}

// Client is a collaboration client connection.
type Client struct {
	url    string
	dialer *websocket.Dialer
	bus    *Bus
	logger *slog.Logger

	reconnectAttempts uint64
	reconnectDelay    time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	joined    bool
	closed    bool
	roomID    string
	self      *protocol.User
	roster    []protocol.User
	cursors   map[string]protocol.CursorUpdate
	pointers  map[string]protocol.MouseUpdate
	joinWait  chan joinResult
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithReconnect sets the reconnection policy: fixed delay between
// attempts, bounded attempt count. Zero attempts disables reconnection.
func WithReconnect(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.reconnectAttempts = uint64(attempts)
		c.reconnectDelay = delay
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New creates a client for the given websocket URL. The client is
// inert until Connect.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:               url,
		dialer:            websocket.DefaultDialer,
		bus:               NewBus(),
		reconnectAttempts: DefaultReconnectAttempts,
		reconnectDelay:    DefaultReconnectDelay,
		cursors:           make(map[string]protocol.CursorUpdate),
		pointers:          make(map[string]protocol.MouseUpdate),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "client")
	return c
}

// Subscribe registers for local notifications on a topic.
func (c *Client) Subscribe(topic Topic) (<-chan Message, func()) {
	return c.bus.Subscribe(topic)
}

// Connect dials the server and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.url)
	c.bus.Publish(TopicConnection, ConnectionChange{Connected: true})
	go c.readLoop(conn)
	return nil
}

// Close tears the connection down and stops reconnection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Connected reports whether the transport is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Joined reports whether the client currently occupies a room.
func (c *Client) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// RoomID returns the occupied room, empty when not joined.
func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// Self returns the client's own participant record.
func (c *Client) Self() (protocol.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.self == nil {
		return protocol.User{}, false
	}
	return *c.self, true
}

// Users returns a snapshot of the room roster.
func (c *Client) Users() []protocol.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.User, len(c.roster))
	copy(out, c.roster)
	return out
}

// Cursors returns a snapshot of remote cursor state by participant id.
func (c *Client) Cursors() map[string]protocol.CursorUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]protocol.CursorUpdate, len(c.cursors))
	for k, v := range c.cursors {
		out[k] = v
	}
	return out
}

// Pointers returns a snapshot of remote pointer state by participant id.
func (c *Client) Pointers() map[string]protocol.MouseUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]protocol.MouseUpdate, len(c.pointers))
	for k, v := range c.pointers {
		out[k] = v
	}
	return out
}

// Join enrolls in a room and waits for the server's verdict: the join
// confirmation or an error event. Duplicate usernames surface as
// ErrUsernameTaken. Fails fast without touching the network when the
// client is not connected or a field is empty.
func (c *Client) Join(ctx context.Context, username, roomID string) (protocol.RoomJoined, error) {
	if username == "" || roomID == "" {
		return protocol.RoomJoined{}, ErrMissingFields
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return protocol.RoomJoined{}, ErrNotConnected
	}
	wait := make(chan joinResult, 1)
	c.joinWait = wait
	c.mu.Unlock()

	if err := c.send(protocol.EventJoinRoom, protocol.JoinRoom{
		RoomID:   roomID,
		Username: username,
	}); err != nil {
		c.clearJoinWait(wait)
		return protocol.RoomJoined{}, err
	}

	select {
	case res := <-wait:
		return res.joined, res.err
	case <-ctx.Done():
		c.clearJoinWait(wait)
		return protocol.RoomJoined{}, ctx.Err()
	}
}

// Leave departs the current room. The local mirrors reset immediately;
// the server confirms nothing for a leave.
func (c *Client) Leave() {
	c.mu.Lock()
	if !c.connected || !c.joined {
		c.mu.Unlock()
		return
	}
	roomID := c.roomID
	c.resetRoomLocked()
	c.mu.Unlock()

	c.send(protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: roomID})
}

func (c *Client) clearJoinWait(wait chan joinResult) {
	c.mu.Lock()
	if c.joinWait == wait {
		c.joinWait = nil
	}
	c.mu.Unlock()
}

// send encodes and writes one frame. Serialized by mu: gorilla allows
// only one concurrent writer.
func (c *Client) send(event string, payload any) error {
	raw, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(err)
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			c.logger.Debug("frame decode error", "error", err)
			continue
		}
		c.handleEvent(env)
	}
}

// handleDisconnect resets every mirror and, unless Close was called,
// attempts to reconnect with a fixed backoff and bounded attempts.
// Rooms are never rejoined automatically: membership is the server's
// call, so the application must Join again after a reconnect.
func (c *Client) handleDisconnect(cause error) {
	c.mu.Lock()
	c.connected = false
	c.conn = nil
	c.resetRoomLocked()
	if wait := c.joinWait; wait != nil {
		c.joinWait = nil
		wait <- joinResult{err: ErrNotConnected}
	}
	closed := c.closed
	attempts := c.reconnectAttempts
	c.mu.Unlock()

	c.bus.Publish(TopicConnection, ConnectionChange{Connected: false})
	if closed {
		return
	}
	c.logger.Warn("connection lost", "error", cause)

	if attempts == 0 {
		return
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.reconnectDelay), attempts)
	err := backoff.Retry(func() error {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return backoff.Permanent(ErrClosed)
		}
		c.mu.Unlock()

		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			c.logger.Debug("reconnect attempt failed", "error", err)
			return err
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		return nil
	}, policy)
	if err != nil {
		c.logger.Error("reconnect failed", "error", err)
		return
	}

	c.logger.Info("reconnected", "url", c.url)
	c.bus.Publish(TopicConnection, ConnectionChange{Connected: true})

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	go c.readLoop(conn)
}

// resetRoomLocked clears all room-scoped mirrors. Callers hold mu.
func (c *Client) resetRoomLocked() {
	c.joined = false
	c.roomID = ""
	c.self = nil
	c.roster = nil
	c.cursors = make(map[string]protocol.CursorUpdate)
	c.pointers = make(map[string]protocol.MouseUpdate)
}

// handleEvent updates exactly one mirror for the event, then
// republishes it on the bus. Self-originated fanout is filtered here
// by participant id so downstream code never sees its own echo.
func (c *Client) handleEvent(env *protocol.Envelope) {
	switch env.Event {
	case protocol.EventRoomJoined:
		var joined protocol.RoomJoined
		if err := env.Bind(&joined); err != nil {
			c.logger.Debug("bad roomJoined", "error", err)
			return
		}
		c.mu.Lock()
		c.joined = true
		c.roomID = joined.RoomID
		self := joined.Self
		c.self = &self
		c.roster = joined.Users
		wait := c.joinWait
		c.joinWait = nil
		c.mu.Unlock()

		if wait != nil {
			wait <- joinResult{joined: joined}
		}
		c.bus.Publish(TopicRoster, joined.Users)

	case protocol.EventUserList:
		var users []protocol.User
		if err := env.Bind(&users); err != nil {
			c.logger.Debug("bad userList", "error", err)
			return
		}
		c.mu.Lock()
		c.roster = users
		c.mu.Unlock()
		c.bus.Publish(TopicRoster, users)

	case protocol.EventError:
		var msg protocol.ErrorMessage
		if err := env.Bind(&msg); err != nil {
			return
		}
		c.mu.Lock()
		wait := c.joinWait
		c.joinWait = nil
		c.mu.Unlock()

		if wait != nil {
			err := errors.New("client: " + msg.Message)
			if msg.Message == protocol.MsgUsernameTaken {
				err = ErrUsernameTaken
			}
			wait <- joinResult{err: err}
			return
		}
		c.bus.Publish(TopicError, msg)

	case protocol.EventUserLeft:
		var left protocol.UserLeft
		if err := env.Bind(&left); err != nil {
			return
		}
		c.mu.Lock()
		delete(c.cursors, left.UserID)
		delete(c.pointers, left.UserID)
		c.mu.Unlock()
		c.bus.Publish(TopicUserLeft, left)

	case protocol.EventCodeChange:
		var cc protocol.CodeChange
		if err := env.Bind(&cc); err != nil {
			return
		}
		if c.isSelf(cc.UserID) {
			return
		}
		c.bus.Publish(TopicCode, cc)

	case protocol.EventInitialState:
		var st protocol.InitialState
		if err := env.Bind(&st); err != nil {
			return
		}
		c.bus.Publish(TopicInitialState, st)

	case protocol.EventRequestCode:
		var req protocol.RequestCode
		if err := env.Bind(&req); err != nil {
			return
		}
		c.bus.Publish(TopicShareRequest, req)

	case protocol.EventCursorUpdate:
		var cu protocol.CursorUpdate
		if err := env.Bind(&cu); err != nil {
			return
		}
		if c.isSelf(cu.UserID) {
			return
		}
		c.mu.Lock()
		c.cursors[cu.UserID] = cu
		c.mu.Unlock()
		c.bus.Publish(TopicCursor, cu)

	case protocol.EventMouseUpdate:
		var mu protocol.MouseUpdate
		if err := env.Bind(&mu); err != nil {
			return
		}
		if c.isSelf(mu.UserID) {
			return
		}
		c.mu.Lock()
		c.pointers[mu.UserID] = mu
		c.mu.Unlock()
		c.bus.Publish(TopicPointer, mu)

	case protocol.EventLanguageChange:
		var lc protocol.LanguageChange
		if err := env.Bind(&lc); err != nil {
			return
		}
		if c.isSelf(lc.UserID) {
			return
		}
		c.bus.Publish(TopicLanguage, lc)

	case protocol.EventCodeOutput:
		var co protocol.CodeOutput
		if err := env.Bind(&co); err != nil {
			return
		}
		if c.isSelf(co.UserID) {
			return
		}
		c.bus.Publish(TopicOutput, co)

	default:
		c.logger.Debug("unknown event", "event", env.Event)
	}
}

func (c *Client) isSelf(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self != nil && c.self.ID == userID
}
