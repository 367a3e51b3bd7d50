package editor

// Range is a span in the buffer. Lines and columns are 1-based, the
// same convention the cursor positions on the wire use.
type Range struct {
	StartLineNumber int `json:"startLineNumber"`
	StartColumn     int `json:"startColumn"`
	EndLineNumber   int `json:"endLineNumber"`
	EndColumn       int `json:"endColumn"`
}

// Delta is a single edit: the replaced span and its new text.
type Delta struct {
	Range Range  `json:"range"`
	Text  string `json:"text"`
}

// Change is the decoded form of a codeChange data payload. Exactly one
// of the two fields is set: a full buffer replacement, or an ordered
// list of deltas.
type Change struct {
	Full   *string `json:"full,omitempty"`
	Deltas []Delta `json:"deltas,omitempty"`
}

// Buffer abstracts the editor widget's text model.
type Buffer interface {
	// Value returns the current buffer contents.
	Value() string

	// SetValue replaces the whole buffer.
	SetValue(string)

	// ApplyEdit replaces one span with new text.
	ApplyEdit(Range, string)
}
