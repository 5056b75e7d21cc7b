package wire

import (
	"encoding/json"
	"fmt"

	"github.com/minouverse/minouchat/internal/model"
)

// Envelope is the framing for every socket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload in an envelope and marshals it.
func Encode(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		data = b
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode unmarshals a raw socket frame into an envelope.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("decode envelope: missing event name")
	}
	return &env, nil
}

// ParseNewMessage normalizes an inbound new-message payload. The status is
// always confirmed: anything the server pushes has already been persisted.
func ParseNewMessage(data json.RawMessage) (*model.Message, error) {
	var m model.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse new-message: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("parse new-message: missing id")
	}
	m.Status = model.StatusConfirmed
	return &m, nil
}

// ParseMessageSent parses an inbound message-sent confirmation.
func ParseMessageSent(data json.RawMessage) (*MessageSent, error) {
	var ack MessageSent
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil, fmt.Errorf("parse message-sent: %w", err)
	}
	if ack.TempID == "" {
		return nil, fmt.Errorf("parse message-sent: missing tempId")
	}
	if ack.Success && ack.Message != nil {
		ack.Message.Status = model.StatusConfirmed
	}
	return &ack, nil
}

// ParseUserTyping parses an inbound user-typing push.
func ParseUserTyping(data json.RawMessage) (*Typing, error) {
	var t Typing
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse user-typing: %w", err)
	}
	return &t, nil
}
