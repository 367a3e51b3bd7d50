package room

import (
	"github.com/codepair-dev/codepair/pkg/identity"
	"github.com/codepair-dev/codepair/pkg/protocol"
)

// Participant is one connected user within a room.
type Participant struct {
	// ID is the connection-scoped identifier assigned by the transport
	// at connect time. Unique per active connection.
	ID string

	// Username is the display name, unique within a room
	// (case-sensitive exact match).
	Username string

	// Color is derived deterministically from Username.
	Color string

	// Host is true for exactly the first participant to join an empty
	// room instance. Never reassigned for the lifetime of that room.
	Host bool

	// Last reported positions; nil until first reported.
	Cursor      *protocol.Position
	Coordinates *protocol.Coordinates
}

// NewParticipant builds a participant with its derived color.
func NewParticipant(id, username string) *Participant {
	return &Participant{
		ID:       id,
		Username: username,
		Color:    identity.Color(username),
	}
}

// User converts the participant to its wire representation.
func (p *Participant) User() protocol.User {
	return protocol.User{
		ID:          p.ID,
		Username:    p.Username,
		Color:       p.Color,
		Host:        p.Host,
		Cursor:      p.Cursor,
		Coordinates: p.Coordinates,
	}
}
