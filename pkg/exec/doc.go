// Package exec runs a participant's code through an external execution
// service. It sits entirely outside the sync core: callers run code
// here and relay the output themselves as an ordinary room event.
//
// The Runner interface models the asynchronous submit-then-poll shape
// of Judge0-style APIs; Poller drives a Runner to a terminal result
// with bounded attempts.
package exec
