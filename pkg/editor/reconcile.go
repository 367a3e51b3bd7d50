package editor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrEmptyChange is returned for a payload that carries neither a full
// buffer nor any deltas.
var ErrEmptyChange = errors.New("editor: change has no content")

// Reconciler applies remote buffer updates to the local widget while
// suppressing the resulting local-change echo.
type Reconciler struct {
	buf    Buffer
	logger *slog.Logger

	mu         sync.Mutex
	suppressed bool
}

// NewReconciler wraps a buffer. A nil logger falls back to the default.
func NewReconciler(buf Buffer, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		buf:    buf,
		logger: logger.With("component", "reconciler"),
	}
}

// ApplyRemote applies a remote codeChange data payload. Full payloads
// replace the buffer wholesale, and only when the contents actually
// differ; delta payloads apply in arrival order. The relay preserves
// per-sender order and concurrent edits are last-writer-wins, so no
// transformation happens here.
func (r *Reconciler) ApplyRemote(data json.RawMessage) error {
	var change Change
	if err := json.Unmarshal(data, &change); err != nil {
		return fmt.Errorf("editor: decode change: %w", err)
	}

	switch {
	case change.Full != nil:
		r.replace(*change.Full)
	case len(change.Deltas) > 0:
		r.applyDeltas(change.Deltas)
	default:
		return ErrEmptyChange
	}
	return nil
}

// ApplyInitialState installs the host's snapshot. Always a full
// replace, even when the local buffer happens to match.
func (r *Reconciler) ApplyInitialState(code string) {
	r.suppressDuring(func() {
		r.buf.SetValue(code)
	})
}

// OnLocalChange is the widget's change-notification gate. It reports
// whether the change is a genuine local edit that should be broadcast;
// changes raised while a remote mutation is in flight answer false and
// must not be sent.
func (r *Reconciler) OnLocalChange() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.suppressed
}

func (r *Reconciler) replace(code string) {
	if r.buf.Value() == code {
		r.logger.Debug("full update identical, skipping")
		return
	}
	r.suppressDuring(func() {
		r.buf.SetValue(code)
	})
}

func (r *Reconciler) applyDeltas(deltas []Delta) {
	r.suppressDuring(func() {
		for _, d := range deltas {
			r.buf.ApplyEdit(d.Range, d.Text)
		}
	})
}

// suppressDuring runs the mutation with the echo gate closed. Widgets
// deliver change notifications synchronously from the mutation call,
// which is what makes the flag sufficient.
func (r *Reconciler) suppressDuring(mutate func()) {
	r.mu.Lock()
	r.suppressed = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.suppressed = false
		r.mu.Unlock()
	}()
	mutate()
}
