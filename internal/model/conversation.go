package model

import "time"

// Participant is the display summary of one side of a conversation.
type Participant struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Conversation is a two-party message thread. The delivery core only splices
// in the latest message summary; everything else is owned by the backend.
type Conversation struct {
	ID            string        `json:"id"`
	Participants  []Participant `json:"participants"`
	LastMessage   string        `json:"lastMessage,omitempty"`
	LastMessageAt time.Time     `json:"lastMessageAt"`
	UnreadCount   int           `json:"unreadCount"`
}

// Other returns the participant that is not selfID, or a zero Participant
// if the conversation does not include anyone else.
func (c *Conversation) Other(selfID string) Participant {
	for _, p := range c.Participants {
		if p.ID != selfID {
			return p
		}
	}
	return Participant{}
}
