package store

import (
	"fmt"
	"time"
)

// ConversationSummary is the cached list-view row for a conversation.
type ConversationSummary struct {
	ID            string
	PeerID        string
	PeerName      string
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
}

// UpsertSummary refreshes the cached summary row for a conversation. The
// last message preview only moves forward: a replayed older message never
// overwrites a newer preview.
func (db *DB) UpsertSummary(s ConversationSummary) error {
	if s.ID == "" {
		return fmt.Errorf("upsert summary: missing conversation id")
	}
	_, err := db.Exec(`
		INSERT INTO conversations (id, peer_id, peer_name, last_message, last_message_at, unread_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			peer_id = CASE WHEN excluded.peer_id != '' THEN excluded.peer_id ELSE conversations.peer_id END,
			peer_name = CASE WHEN excluded.peer_name != '' THEN excluded.peer_name ELSE conversations.peer_name END,
			last_message = CASE WHEN excluded.last_message_at >= conversations.last_message_at THEN excluded.last_message ELSE conversations.last_message END,
			last_message_at = MAX(excluded.last_message_at, conversations.last_message_at),
			unread_count = excluded.unread_count,
			updated_at = excluded.updated_at
	`, s.ID, s.PeerID, s.PeerName, s.LastMessage, s.LastMessageAt.UnixMilli(), s.UnreadCount, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// Conversations returns all cached conversation summaries, most recently
// active first.
func (db *DB) Conversations() ([]ConversationSummary, error) {
	rows, err := db.Query(`
		SELECT id, peer_id, peer_name, last_message, last_message_at, unread_count
		FROM conversations
		ORDER BY last_message_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		var lastAt int64
		if err := rows.Scan(&s.ID, &s.PeerID, &s.PeerName, &s.LastMessage, &lastAt, &s.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		s.LastMessageAt = time.UnixMilli(lastAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
