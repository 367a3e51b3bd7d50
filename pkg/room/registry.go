package room

import (
	"errors"
	"log/slog"

	"github.com/codepair-dev/codepair/pkg/protocol"
)

// Registry operation errors.
var (
	// ErrDuplicateUsername is returned when a join would reuse a
	// display name already present in the room. Surfaced to the caller.
	ErrDuplicateUsername = errors.New("room: username is already taken")
)

// Room is a named, transient collaboration session. It exists in the
// registry iff it has at least one participant.
type Room struct {
	ID string

	participants map[string]*Participant
	order        []string // insertion order; first inserted is host
}

// Len returns the number of participants.
func (r *Room) Len() int {
	return len(r.participants)
}

// Participant returns the participant with the given id.
func (r *Room) Participant(id string) (*Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

// Host returns the room's host, if one is still present.
// Hosts are never re-elected: after the host leaves, the room has none.
func (r *Room) Host() (*Participant, bool) {
	for _, id := range r.order {
		if p, ok := r.participants[id]; ok && p.Host {
			return p, true
		}
	}
	return nil, false
}

// Participants returns a snapshot of participants in insertion order.
func (r *Room) Participants() []*Participant {
	out := make([]*Participant, 0, len(r.participants))
	for _, id := range r.order {
		if p, ok := r.participants[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Users returns the roster in wire form, insertion order.
func (r *Room) Users() []protocol.User {
	ps := r.Participants()
	users := make([]protocol.User, len(ps))
	for i, p := range ps {
		users[i] = p.User()
	}
	return users
}

// Registry is the process-wide table of active rooms.
type Registry struct {
	rooms  map[string]*Room
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		logger: logger.With("component", "registry"),
	}
}

// Get returns the room with the given id.
func (g *Registry) Get(roomID string) (*Room, bool) {
	r, ok := g.rooms[roomID]
	return r, ok
}

// Len returns the number of active rooms.
func (g *Registry) Len() int {
	return len(g.rooms)
}

// createOrGet returns the room, creating an empty one if needed.
// Idempotent. Empty rooms are only ever transient within a single
// operation: AddParticipant fills them, and failed joins remove them.
func (g *Registry) createOrGet(roomID string) *Room {
	if r, ok := g.rooms[roomID]; ok {
		return r
	}
	r := &Room{
		ID:           roomID,
		participants: make(map[string]*Participant),
	}
	g.rooms[roomID] = r
	return r
}

// AddParticipant enrolls p in the room, creating the room if needed.
// Fails with ErrDuplicateUsername when the display name is already in
// use (case-sensitive); the room is left exactly as it was. The first
// participant of an empty room instance becomes its host.
func (g *Registry) AddParticipant(roomID string, p *Participant) error {
	r := g.createOrGet(roomID)

	for _, existing := range r.participants {
		if existing.Username == p.Username {
			if r.Len() == 0 {
				delete(g.rooms, roomID)
			}
			return ErrDuplicateUsername
		}
	}

	p.Host = r.Len() == 0
	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// RemoveParticipant removes the participant, deleting the room when it
// empties. Returns the removed participant so callers can notify peers;
// the second result is false when room or participant was not found.
func (g *Registry) RemoveParticipant(roomID, participantID string) (*Participant, bool) {
	r, ok := g.rooms[roomID]
	if !ok {
		return nil, false
	}
	p, ok := r.participants[participantID]
	if !ok {
		return nil, false
	}

	delete(r.participants, participantID)
	for i, id := range r.order {
		if id == participantID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if r.Len() == 0 {
		delete(g.rooms, roomID)
		g.logger.Debug("room destroyed", "room", roomID)
	}
	return p, true
}

// UpdateCursor records the participant's last known cursor position.
// Missing room or participant is a logged no-op.
func (g *Registry) UpdateCursor(roomID, participantID string, pos protocol.Position) {
	p, ok := g.participant(roomID, participantID)
	if !ok {
		g.logger.Debug("cursor update for unknown participant",
			"room", roomID, "participant", participantID)
		return
	}
	p.Cursor = &pos
}

// UpdateCoordinates records the participant's last known pointer
// position. Missing room or participant is a logged no-op.
func (g *Registry) UpdateCoordinates(roomID, participantID string, coords protocol.Coordinates) {
	p, ok := g.participant(roomID, participantID)
	if !ok {
		g.logger.Debug("pointer update for unknown participant",
			"room", roomID, "participant", participantID)
		return
	}
	p.Coordinates = &coords
}

func (g *Registry) participant(roomID, participantID string) (*Participant, bool) {
	r, ok := g.rooms[roomID]
	if !ok {
		return nil, false
	}
	p, ok := r.participants[participantID]
	return p, ok
}
