// Package room holds the server-side room and participant model.
//
// The Registry is plain data with no internal locking: it is owned and
// mutated exclusively by the event router's dispatch goroutine, which
// runs every handler to completion before the next. Operations are
// total — they return error values or zero results, never panic — so
// the router can always decide the client-visible outcome itself.
package room
