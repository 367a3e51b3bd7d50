// Package errors provides the coded, operator-facing errors the
// codepair binary prints on startup failures. Each code maps to a
// registered template with a message, detail, and a fix hint, so a
// misconfigured deployment fails with something actionable instead of
// a bare string.
//
// These errors are for the CLI surface only. Library packages return
// ordinary sentinel errors and wrap with fmt.Errorf.
package errors
