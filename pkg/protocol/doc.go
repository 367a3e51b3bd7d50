// Package protocol defines the wire protocol between the collaboration
// server and its clients.
//
// Every message is a JSON envelope carried in a single websocket text
// frame:
//
//	{"event": "cursorMove", "data": {...}}
//
// The event name selects the payload type. Inbound events (client to
// server) carry the room id so the server can validate enrollment before
// relaying; outbound events (server to client) carry the originating
// participant id so receivers can filter their own echoes by id rather
// than by socket identity.
//
// The transport is ordered and reliable per connection, so no sequence
// numbers or acknowledgments are needed: events from one sender reach
// every receiver in emission order. No ordering holds across senders.
package protocol
