package editor

import (
	"testing"

	"github.com/codepair-dev/codepair/pkg/protocol"
)

type fakeSink struct {
	set     []Marker
	cleared []string
}

func (s *fakeSink) SetMarker(m Marker)        { s.set = append(s.set, m) }
func (s *fakeSink) ClearMarker(userID string) { s.cleared = append(s.cleared, userID) }

func cursorUpdate(userID string, line int, visible bool) protocol.CursorUpdate {
	return protocol.CursorUpdate{
		UserID:   userID,
		Username: "u-" + userID,
		Position: protocol.Position{LineNumber: line, Column: 1},
		Visible:  visible,
		Color:    "#FF5252",
	}
}

func TestMarkersUpdateForwardsToSink(t *testing.T) {
	sink := &fakeSink{}
	m := NewMarkers(sink)

	m.Update(cursorUpdate("a", 3, true))

	if len(sink.set) != 1 {
		t.Fatalf("sink set calls = %d, want 1", len(sink.set))
	}
	got := sink.set[0]
	if got.UserID != "a" || got.Username != "u-a" || got.Position.LineNumber != 3 || !got.Visible {
		t.Errorf("marker = %+v", got)
	}
	if snap := m.Snapshot(); len(snap) != 1 || snap["a"].Color != "#FF5252" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestMarkersInvisibleRemoves(t *testing.T) {
	sink := &fakeSink{}
	m := NewMarkers(sink)

	m.Update(cursorUpdate("a", 3, true))
	m.Update(cursorUpdate("a", 3, false))

	if len(sink.cleared) != 1 || sink.cleared[0] != "a" {
		t.Errorf("cleared = %v, want the hidden cursor removed", sink.cleared)
	}
	if len(m.Snapshot()) != 0 {
		t.Error("marker survived a visible=false report")
	}

	// A later visible report recreates it.
	m.Update(cursorUpdate("a", 4, true))
	if snap := m.Snapshot(); snap["a"].Position.LineNumber != 4 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestMarkersRemove(t *testing.T) {
	sink := &fakeSink{}
	m := NewMarkers(sink)

	m.Update(cursorUpdate("a", 1, true))
	m.Remove("a")

	if len(sink.cleared) != 1 || sink.cleared[0] != "a" {
		t.Errorf("cleared = %v", sink.cleared)
	}
	if len(m.Snapshot()) != 0 {
		t.Error("marker survived removal")
	}

	// Removing an unknown participant must not reach the sink.
	m.Remove("ghost")
	if len(sink.cleared) != 1 {
		t.Errorf("cleared = %v after removing unknown id", sink.cleared)
	}
}

func TestMarkersReset(t *testing.T) {
	sink := &fakeSink{}
	m := NewMarkers(sink)

	m.Update(cursorUpdate("a", 1, true))
	m.Update(cursorUpdate("b", 2, true))
	m.Reset()

	if len(sink.cleared) != 2 {
		t.Errorf("cleared = %v, want both markers", sink.cleared)
	}
	if len(m.Snapshot()) != 0 {
		t.Error("markers survived reset")
	}
}
