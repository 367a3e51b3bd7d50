package protocol

// Event names accepted by the server.
const (
	EventJoinRoom       = "joinRoom"
	EventLeaveRoom      = "leaveRoom"
	EventCodeChange     = "codeChange"
	EventShareCode      = "shareCode"
	EventCursorMove     = "cursorMove"
	EventMouseMove      = "mouse-move"
	EventLanguageChange = "languageChange"
	EventCodeOutput     = "codeOutput"
)

// Event names emitted by the server.
const (
	EventRoomJoined   = "roomJoined"
	EventUserList     = "userList"
	EventError        = "error"
	EventUserLeft     = "userLeft"
	EventRequestCode  = "requestCode"
	EventInitialState = "initialState"
	EventCursorUpdate = "cursorUpdate"
	EventMouseUpdate  = "mouse-update"
)

// MsgUsernameTaken is the error message for a duplicate display name.
// Clients match on it to prompt specifically for a new name, which
// makes the text part of the protocol.
const MsgUsernameTaken = "Username is already taken"

// Inbound reports whether name is an event the server accepts.
func Inbound(name string) bool {
	switch name {
	case EventJoinRoom, EventLeaveRoom, EventCodeChange, EventShareCode,
		EventCursorMove, EventMouseMove, EventLanguageChange, EventCodeOutput:
		return true
	}
	return false
}
