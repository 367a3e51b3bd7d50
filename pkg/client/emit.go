package client

import (
	"encoding/json"

	"github.com/codepair-dev/codepair/pkg/protocol"
)

// Emitters funnel local user actions into outbound events. All of them
// are guarded: attempts made while disconnected or before a join are
// silently ignored, never queued.

// room returns the occupied room plus whether emitting is allowed.
func (c *Client) room() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || !c.joined {
		return "", false
	}
	return c.roomID, true
}

// SendCodeChange broadcasts an opaque edit payload (deltas or a full
// buffer) to the rest of the room.
func (c *Client) SendCodeChange(data json.RawMessage) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	self, _ := c.Self()
	c.send(protocol.EventCodeChange, protocol.CodeChange{
		RoomID: roomID,
		UserID: self.ID,
		Data:   data,
	})
}

// SendFullBuffer broadcasts the complete buffer value.
func (c *Client) SendFullBuffer(code string) {
	c.SendCodeChange(protocol.FullBufferData(code))
}

// SendCursorMove reports the local cursor position. Visible false
// hides the cursor on every peer (editor blurred).
func (c *Client) SendCursorMove(pos protocol.Position, visible bool) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	c.send(protocol.EventCursorMove, protocol.CursorMove{
		RoomID:   roomID,
		Position: pos,
		Visible:  visible,
	})
}

// SendMouseMove reports the local pointer position.
func (c *Client) SendMouseMove(coords protocol.Coordinates, visible bool) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	c.send(protocol.EventMouseMove, protocol.MouseMove{
		RoomID:      roomID,
		Coordinates: coords,
		Visible:     visible,
	})
}

// SendLanguageChange broadcasts a language selection.
func (c *Client) SendLanguageChange(language string) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	self, _ := c.Self()
	c.send(protocol.EventLanguageChange, protocol.LanguageChange{
		RoomID:   roomID,
		UserID:   self.ID,
		Language: language,
	})
}

// SendCodeOutput broadcasts execution output.
func (c *Client) SendCodeOutput(output string) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	self, _ := c.Self()
	c.send(protocol.EventCodeOutput, protocol.CodeOutput{
		RoomID: roomID,
		UserID: self.ID,
		Output: output,
	})
}

// ShareCode answers a share request with the current state. With a
// requester id the snapshot goes only to that participant; without one
// it is broadcast to the room as an ordinary update.
func (c *Client) ShareCode(code, language, output, requesterID string) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	c.send(protocol.EventShareCode, protocol.ShareCode{
		RoomID:      roomID,
		Code:        code,
		Language:    language,
		Output:      output,
		RequesterID: requesterID,
	})
}
