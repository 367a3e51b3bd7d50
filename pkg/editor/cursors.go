package editor

import (
	"sync"

	"github.com/codepair-dev/codepair/pkg/protocol"
)

// Marker is one remote participant's rendered cursor.
type Marker struct {
	UserID   string
	Username string
	Color    string
	Position protocol.Position
	Visible  bool
}

// MarkerSink receives marker changes for rendering. Implementations
// belong to the widget binding.
type MarkerSink interface {
	SetMarker(Marker)
	ClearMarker(userID string)
}

// Markers tracks remote cursors by participant id and forwards every
// change to the sink.
type Markers struct {
	sink MarkerSink

	mu     sync.Mutex
	byUser map[string]Marker
}

// NewMarkers creates an empty marker store around a sink.
func NewMarkers(sink MarkerSink) *Markers {
	return &Markers{
		sink:   sink,
		byUser: make(map[string]Marker),
	}
}

// Update records a cursor update and forwards it. A report with
// Visible false removes the marker outright: a blurred editor leaves
// no ghost cursor behind.
func (m *Markers) Update(cu protocol.CursorUpdate) {
	if !cu.Visible {
		m.Remove(cu.UserID)
		return
	}

	marker := Marker{
		UserID:   cu.UserID,
		Username: cu.Username,
		Color:    cu.Color,
		Position: cu.Position,
		Visible:  cu.Visible,
	}

	m.mu.Lock()
	m.byUser[cu.UserID] = marker
	m.mu.Unlock()

	m.sink.SetMarker(marker)
}

// Remove drops a participant's marker, typically on userLeft.
func (m *Markers) Remove(userID string) {
	m.mu.Lock()
	_, ok := m.byUser[userID]
	delete(m.byUser, userID)
	m.mu.Unlock()

	if ok {
		m.sink.ClearMarker(userID)
	}
}

// Reset drops every marker, for disconnects and room changes.
func (m *Markers) Reset() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.byUser))
	for id := range m.byUser {
		ids = append(ids, id)
	}
	m.byUser = make(map[string]Marker)
	m.mu.Unlock()

	for _, id := range ids {
		m.sink.ClearMarker(id)
	}
}

// Snapshot returns a copy of the current marker set.
func (m *Markers) Snapshot() map[string]Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Marker, len(m.byUser))
	for k, v := range m.byUser {
		out[k] = v
	}
	return out
}
