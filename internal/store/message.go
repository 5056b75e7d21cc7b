package store

import (
	"fmt"
	"time"

	"github.com/minouverse/minouchat/internal/model"
)

// UpsertMessage inserts a confirmed message into the cache. Re-upserting the
// same (conversation, msg_id) pair refreshes the content and timestamp, so
// replaying backend history is safe.
func (db *DB) UpsertMessage(m *model.Message) error {
	if m.ID == "" {
		return fmt.Errorf("upsert message: missing id")
	}
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, msg_id, sender_id, recipient_id, content, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			sender_id = excluded.sender_id,
			recipient_id = excluded.recipient_id,
			content = excluded.content,
			sent_at = excluded.sent_at
	`, m.ConversationID, m.ID, m.SenderID, m.RecipientID, m.Content, m.SentAt.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// Messages returns up to limit cached messages for a conversation,
// oldest first.
func (db *DB) Messages(conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT msg_id, conversation_id, sender_id, recipient_id, content, sent_at
		FROM (
			SELECT msg_id, conversation_id, sender_id, recipient_id, content, sent_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY sent_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY sent_at ASC
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var sentAt int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Content, &sentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.SentAt = time.UnixMilli(sentAt)
		m.Status = model.StatusConfirmed
		out = append(out, m)
	}
	return out, rows.Err()
}
