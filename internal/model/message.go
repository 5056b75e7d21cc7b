package model

import "time"

// Status is the delivery state of a client-originated message. Exactly one
// status holds at any time; Pending may move to Confirmed or Failed once,
// both of which are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Message is a chat message within one conversation.
//
// ID is assigned by the server and is empty while the message is pending.
// TempID is the client-generated correlation id carried by outgoing messages
// until the server confirmation arrives; it stays on the entry afterwards so
// late signals can still be matched. Messages received from the other
// participant carry only ID.
type Message struct {
	ID             string    `json:"id,omitempty"`
	TempID         string    `json:"tempId,omitempty"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	RecipientID    string    `json:"recipientId"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sentAt"`
	Status         Status    `json:"-"`
}

// Draft is the user-authored input to a send: everything a Message needs
// except the identifiers and timestamp the pipeline fills in.
type Draft struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content"`
}

// Key returns the identifier the entry is currently addressable by: the
// permanent server id once assigned, the temp id before that.
func (m *Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}
