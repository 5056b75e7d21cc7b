package socket

import (
	"encoding/json"
	"errors"
)

// ErrNotConnected is returned by Emit when the channel has no live
// connection. Callers fall back to the HTTP path instead of retrying.
var ErrNotConnected = errors.New("socket: not connected")

// Handler processes the payload of one inbound event.
type Handler func(data json.RawMessage)

// Channel is the persistent bidirectional connection the delivery pipeline
// emits over. It is injected rather than reached for globally so tests can
// substitute a fake per case.
type Channel interface {
	// Emit sends a named event. Returns ErrNotConnected when offline.
	Emit(event string, payload any) error
	// On registers a handler for an inbound event and returns its
	// unsubscribe function. Handlers run on the read loop; they must not block.
	On(event string, fn Handler) (off func())
	// Connected reports whether an emit would currently go out.
	Connected() bool
}
