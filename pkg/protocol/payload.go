package protocol

import "encoding/json"

// Position is a cursor position in the editor.
// Field names match the editor widget's coordinates (1-based).
type Position struct {
	LineNumber int `json:"lineNumber"`
	Column     int `json:"column"`
}

// Coordinates is a mouse pointer position in client pixels.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// User is a participant as seen on the wire.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Color    string `json:"color"`
	Host     bool   `json:"host"`

	// Last known positions, null until first reported.
	Cursor      *Position    `json:"cursor"`
	Coordinates *Coordinates `json:"coordinates"`
}

// JoinRoom asks the server to enroll the connection in a room.
type JoinRoom struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// RoomJoined confirms a successful join to the caller only.
type RoomJoined struct {
	RoomID string `json:"roomId"`
	Users  []User `json:"users"`
	Self   User   `json:"self"`
}

// ErrorMessage is sent to the caller when a request is rejected.
// Only join-time failures are surfaced; mid-session malformed events
// are dropped server-side.
type ErrorMessage struct {
	Message string `json:"message"`
}

// LeaveRoom asks the server to remove the connection from a room.
type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

// UserLeft notifies remaining room members of a departure.
type UserLeft struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// CodeChange carries an edit payload. Data is opaque to the server: a
// full buffer or a list of deltas, relayed untouched to the rest of the
// room. Receivers drop payloads whose UserID matches their own id.
type CodeChange struct {
	RoomID string          `json:"roomId,omitempty"`
	UserID string          `json:"userId"`
	Data   json.RawMessage `json:"data"`
}

// RequestCode asks the room host to share the current buffer with a
// late joiner. Sent by the server to the host only.
type RequestCode struct {
	RequesterID string `json:"requesterId"`
}

// ShareCode is the host's answer to a RequestCode. When RequesterID is
// set the state goes only to that participant as an InitialState; when
// empty it is broadcast to the room as an ordinary CodeChange.
type ShareCode struct {
	RoomID      string `json:"roomId"`
	Code        string `json:"code"`
	Language    string `json:"language,omitempty"`
	Output      string `json:"output,omitempty"`
	RequesterID string `json:"requesterId,omitempty"`
}

// InitialState delivers the host's snapshot to a late joiner. Applied
// as a full replace, never as a delta.
type InitialState struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
	Output   string `json:"output,omitempty"`
}

// CursorMove reports the sender's cursor. Visible false hides the
// cursor on every peer (editor blurred).
type CursorMove struct {
	RoomID   string   `json:"roomId"`
	Position Position `json:"position"`
	Visible  bool     `json:"visible"`
}

// CursorUpdate fans a cursor report out to the rest of the room, with
// username and color resolved server-side so receivers need no lookup.
type CursorUpdate struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Position Position `json:"position"`
	Visible  bool     `json:"visible"`
	Color    string   `json:"color"`
}

// MouseMove reports the sender's pointer in client coordinates.
type MouseMove struct {
	RoomID      string      `json:"roomId"`
	Coordinates Coordinates `json:"coordinates"`
	Visible     bool        `json:"visible"`
}

// MouseUpdate fans a pointer report out to the rest of the room.
type MouseUpdate struct {
	UserID      string      `json:"userId"`
	Username    string      `json:"username"`
	Coordinates Coordinates `json:"coordinates"`
	Visible     bool        `json:"visible"`
	Color       string      `json:"color"`
}

// LanguageChange relays a language selection to the rest of the room.
type LanguageChange struct {
	RoomID   string `json:"roomId,omitempty"`
	UserID   string `json:"userId"`
	Language string `json:"language"`
}

// CodeOutput relays execution output to the rest of the room. The
// server resolves Username from the roster before fanning out.
type CodeOutput struct {
	RoomID   string `json:"roomId,omitempty"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Output   string `json:"output"`
}
