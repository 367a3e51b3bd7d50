// Package client implements the collaboration client.
//
// The client keeps local mirrors of the room it occupies — roster,
// self record, remote cursors, remote pointers — driven entirely by
// inbound server events. Each event updates exactly one mirror and is
// then republished on a typed topic bus, so UI-adjacent code reacts to
// state changes without ever touching the transport.
//
// Mirrors are instructed, never negotiated: the server is the single
// source of truth for membership, and a reconnect resets every mirror
// rather than assuming the old room still holds.
//
// Outbound emitters are guarded, not queued: attempts made while
// disconnected or before a join are silently ignored.
package client
