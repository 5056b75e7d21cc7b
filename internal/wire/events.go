package wire

import "github.com/minouverse/minouchat/internal/model"

// Socket event names. Outbound events are emitted by the client, inbound
// events are pushed by the backend. The names are part of the backend
// contract and must not change independently.
const (
	// Outbound.
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventJoinUser          = "join-user"
	EventTyping            = "typing"
	EventSendMessage       = "send-message"

	// Inbound.
	EventNewMessage  = "new-message"
	EventMessageSent = "message-sent"
	EventUserTyping  = "user-typing"
)

// SendMessage is the outbound send-message payload. TempID correlates the
// eventual message-sent confirmation with the optimistic entry.
type SendMessage struct {
	TempID         string `json:"tempId"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content"`
}

// MessageSent is the inbound confirmation for a send-message emit. On
// success Message carries the canonical server-assigned fields.
type MessageSent struct {
	Success bool           `json:"success"`
	TempID  string         `json:"tempId"`
	Error   string         `json:"error,omitempty"`
	Message *model.Message `json:"message,omitempty"`
}

// Typing is both the outbound typing notification and the inbound
// user-typing push.
type Typing struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Typing         bool   `json:"typing"`
}

// JoinConversation scopes the socket session to one conversation's events.
type JoinConversation struct {
	ConversationID string `json:"conversationId"`
}

// JoinUser registers the socket for user-level pushes (new-message for
// conversations that are not currently open).
type JoinUser struct {
	UserID string `json:"userId"`
}
