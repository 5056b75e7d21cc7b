// Package history keeps the session-local SQLite cache in step with live
// chat traffic, so conversations stay readable when the backend is
// unreachable.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/minouverse/minouchat/internal/bus"
	"github.com/minouverse/minouchat/internal/model"
	"github.com/minouverse/minouchat/internal/store"
	"go.uber.org/zap"
)

const previewLen = 100

// Engine subscribes to "chat." events on the bus and writes confirmed
// traffic through to the cache. Every write is idempotent, so replays and
// duplicate events are harmless.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	selfID string
	cancel context.CancelFunc
}

// NewEngine creates a cache write-through engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger, selfID string) *Engine {
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
		selfID: selfID,
	}
}

// Start subscribes to chat events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("chat.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case "chat.message_confirmed", "chat.message_received":
		msg, ok := evt.Payload.(*model.Message)
		if !ok {
			return
		}
		if err := e.CacheMessage(msg); err != nil {
			e.logger.Error("failed to cache message", zap.Error(err), zap.String("msg_id", msg.ID))
		}
	case "chat.conversation_updated":
		msg, ok := evt.Payload.(*model.Message)
		if !ok {
			return
		}
		if err := e.refreshSummary(msg); err != nil {
			e.logger.Error("failed to refresh conversation summary", zap.Error(err),
				zap.String("conversation_id", msg.ConversationID))
		}
	case "chat.history_loaded":
		msgs, ok := evt.Payload.([]model.Message)
		if !ok {
			return
		}
		if err := e.CacheHistory(msgs); err != nil {
			e.logger.Error("failed to cache history batch", zap.Error(err), zap.Int("count", len(msgs)))
		} else {
			e.logger.Info("history batch cached", zap.Int("messages", len(msgs)))
		}
	}
}

// CacheMessage writes a single confirmed message through to the cache
// (idempotent).
func (e *Engine) CacheMessage(msg *model.Message) error {
	if err := e.db.UpsertMessage(msg); err != nil {
		return err
	}
	return e.refreshSummary(msg)
}

func (e *Engine) refreshSummary(msg *model.Message) error {
	return e.db.UpsertSummary(store.ConversationSummary{
		ID:            msg.ConversationID,
		PeerID:        e.peerOf(msg),
		LastMessage:   truncate(msg.Content, previewLen),
		LastMessageAt: msg.SentAt,
	})
}

func (e *Engine) peerOf(msg *model.Message) string {
	if msg.SenderID != e.selfID {
		return msg.SenderID
	}
	return msg.RecipientID
}

// CacheHistory writes a batch of fetched history messages in one
// transaction.
func (e *Engine) CacheHistory(msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range msgs {
		m := &msgs[i]
		if m.ID == "" {
			continue
		}
		if _, err := tx.Exec(`
			INSERT INTO messages (conversation_id, msg_id, sender_id, recipient_id, content, sent_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
				sender_id = excluded.sender_id,
				recipient_id = excluded.recipient_id,
				content = excluded.content,
				sent_at = excluded.sent_at`,
			m.ConversationID, m.ID, m.SenderID, m.RecipientID, m.Content, m.SentAt.UnixMilli(), time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	last := msgs[len(msgs)-1]
	return e.refreshSummary(&last)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
