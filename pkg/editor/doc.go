// Package editor reconciles remote collaboration events with a local
// editor widget. The widget itself stays outside: it is reached through
// the Buffer and MarkerSink interfaces, so the package works the same
// against a real editor binding or a test fake.
//
// The central problem here is the echo loop. Applying a remote edit
// mutates the buffer, the widget reports that mutation as a local
// change, and a naive client would broadcast it right back. The
// Reconciler breaks the loop by flagging the buffer mutation while it
// is in flight; OnLocalChange answers false for change notifications
// raised during that window.
package editor
