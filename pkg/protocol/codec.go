package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxMessageSize is the largest accepted frame. Code payloads dominate;
// a full buffer plus envelope overhead fits comfortably under this.
const MaxMessageSize = 1 << 20

// Codec errors.
var (
	ErrTooLarge     = errors.New("protocol: message exceeds size limit")
	ErrEmptyMessage = errors.New("protocol: empty message")
	ErrMissingEvent = errors.New("protocol: missing event name")
)

// Envelope is the outer wrapper of every message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload in an envelope and marshals it.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// MustEncode is Encode for payloads that cannot fail to marshal.
// It panics on error and is intended for server-constructed payloads.
func MustEncode(event string, payload any) []byte {
	buf, err := Encode(event, payload)
	if err != nil {
		panic(err)
	}
	return buf
}

// Decode parses a raw frame into an envelope. The payload stays raw
// until bound to a concrete type with Bind.
func Decode(raw []byte) (*Envelope, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyMessage
	}
	if len(raw) > MaxMessageSize {
		return nil, ErrTooLarge
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode: %w", err)
	}
	if env.Event == "" {
		return nil, ErrMissingEvent
	}
	return &env, nil
}

// FullBufferData wraps a complete buffer value as an opaque codeChange
// data payload. Receivers apply it as a wholesale replace.
func FullBufferData(code string) json.RawMessage {
	data, err := json.Marshal(struct {
		Full string `json:"full"`
	}{code})
	if err != nil {
		panic(err) // marshaling a string cannot fail
	}
	return data
}

// Bind unmarshals the envelope payload into v.
func (e *Envelope) Bind(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("protocol: %s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("protocol: %s: %w", e.Event, err)
	}
	return nil
}
