// Package server implements the collaboration relay: websocket
// sessions, the per-connection state machine, and room event fanout.
//
// One dispatch goroutine owns all room state. Read pumps decode frames
// and enqueue them; the dispatcher runs each handler to completion
// before the next, so registry mutations are atomic with respect to
// each other and no locking is needed around room state. Handlers never
// block: outbound delivery goes through per-session buffered send
// channels drained by write pumps, and a session that cannot keep up is
// dropped rather than allowed to stall the loop.
//
// Validation precedes mutation everywhere. Malformed or out-of-order
// events are dropped with a diagnostic log; the only client-visible
// failures are join-time errors.
package server
