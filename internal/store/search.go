package store

import (
	"fmt"
	"time"
)

// SearchResult is one full-text match over the cached message history.
type SearchResult struct {
	ConversationID string
	MessageID      string
	SenderID       string
	Snippet        string
	SentAt         time.Time
}

// Search runs an FTS5 query over cached message content. The query uses
// SQLite FTS5 match syntax; plain words work as expected.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT m.conversation_id, m.msg_id, m.sender_id,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32),
		       m.sent_at
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sentAt int64
		if err := rows.Scan(&r.ConversationID, &r.MessageID, &r.SenderID, &r.Snippet, &sentAt); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		r.SentAt = time.UnixMilli(sentAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
