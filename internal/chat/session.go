package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/minouverse/minouchat/internal/bus"
	"github.com/minouverse/minouchat/internal/model"
	"github.com/minouverse/minouchat/internal/socket"
	"github.com/minouverse/minouchat/internal/wire"
	"go.uber.org/zap"
)

// Backend is the REST collaborator a session needs: the fallback send and
// the history fetch.
type Backend interface {
	RestSender
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

// HistoryCache is an optional local read fallback used when the backend
// history fetch fails. May be nil.
type HistoryCache interface {
	Messages(conversationID string, limit int) ([]model.Message, error)
}

// Config carries the collaborators shared by every conversation session.
type Config struct {
	Channel        socket.Channel
	Backend        Backend
	Cache          HistoryCache
	Bus            *bus.Bus
	Logger         *zap.Logger
	SelfID         string
	AckWait        time.Duration
	TypingDebounce time.Duration
	TypingExpiry   time.Duration
}

// Session owns the delivery pipeline for one open conversation: the
// optimistic store, the in-flight registry, the inbound socket
// subscriptions, and the typing state. Opening a new session for another
// conversation starts from an empty store; closing tears every subscription
// down regardless of exit path.
type Session struct {
	conv     model.Conversation
	cfg      Config
	store    *Store
	registry *PendingRegistry
	rec      *Reconciler
	sender   *Sender
	typing   *Typing

	ctx    context.Context
	cancel context.CancelFunc
	offs   []func()
}

// Open joins a conversation: emits join-conversation, registers the inbound
// handlers, and loads history (backend first, cache fallback, empty last —
// a failed fetch degrades, it never blocks the conversation from opening).
func Open(ctx context.Context, cfg Config, conv model.Conversation) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		conv:     conv,
		cfg:      cfg,
		store:    NewStore(),
		registry: NewPendingRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.rec = NewReconciler(s.store, s.registry, cfg.Bus, cfg.Logger)
	s.sender = NewSender(cfg.Channel, cfg.Backend, s.store, s.registry, s.rec, cfg.Bus, cfg.Logger, cfg.AckWait)
	s.typing = NewTyping(cfg.Channel, conv.ID, cfg.SelfID, cfg.TypingDebounce, cfg.TypingExpiry,
		func(active bool) {
			cfg.Bus.Publish("chat.typing", TypingChange{ConversationID: conv.ID, Active: active})
		}, cfg.Logger)

	s.store.Reset(conv.ID)
	s.join()
	s.subscribe()
	s.loadHistory(ctx)
	return s
}

// TypingChange is the payload for chat.typing events.
type TypingChange struct {
	ConversationID string
	Active         bool
}

func (s *Session) join() {
	err := s.cfg.Channel.Emit(wire.EventJoinConversation, wire.JoinConversation{ConversationID: s.conv.ID})
	if err != nil && !errors.Is(err, socket.ErrNotConnected) {
		s.cfg.Logger.Warn("join-conversation emit failed", zap.Error(err))
	}
}

func (s *Session) subscribe() {
	s.offs = append(s.offs,
		s.cfg.Channel.On(wire.EventNewMessage, s.onNewMessage),
		s.cfg.Channel.On(wire.EventMessageSent, s.onMessageSent),
		s.cfg.Channel.On(wire.EventUserTyping, s.onUserTyping),
	)

	// Re-join after every reconnect; the server forgets room membership on
	// drop.
	ch, unsub := s.cfg.Bus.Subscribe("socket.connected", 4)
	s.offs = append(s.offs, unsub)
	go func() {
		for {
			select {
			case <-ch:
				s.join()
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *Session) loadHistory(ctx context.Context) {
	history, err := s.cfg.Backend.ListMessages(ctx, s.conv.ID)
	if err == nil {
		s.store.ReplaceAll(s.conv.ID, history)
		s.cfg.Bus.Publish("chat.history_loaded", history)
		return
	}
	s.cfg.Logger.Warn("history fetch failed, degrading to cache",
		zap.String("conversation_id", s.conv.ID),
		zap.Error(err))

	if s.cfg.Cache != nil {
		if cached, cacheErr := s.cfg.Cache.Messages(s.conv.ID, 200); cacheErr == nil && len(cached) > 0 {
			s.store.ReplaceAll(s.conv.ID, cached)
			return
		}
	}
	// Last resort: an empty log, not an error surface.
	s.store.Reset(s.conv.ID)
}

func (s *Session) onNewMessage(data json.RawMessage) {
	msg, err := wire.ParseNewMessage(data)
	if err != nil {
		s.cfg.Logger.Warn("dropping malformed new-message push", zap.Error(err))
		return
	}
	if msg.ConversationID != s.conv.ID {
		// Another conversation's push: refresh its list summary only.
		s.cfg.Bus.Publish("chat.conversation_updated", msg)
		return
	}
	if s.store.Ingest(msg) {
		s.cfg.Bus.Publish("chat.message_received", msg)
		s.cfg.Bus.Publish("chat.conversation_updated", msg)
	}
}

func (s *Session) onMessageSent(data json.RawMessage) {
	ack, err := wire.ParseMessageSent(data)
	if err != nil {
		s.cfg.Logger.Warn("dropping malformed message-sent ack", zap.Error(err))
		return
	}
	if ack.Success && ack.Message != nil {
		s.rec.HandleConfirm(ack.TempID, ack.Message)
		return
	}
	reason := ack.Error
	if reason == "" {
		reason = "server rejected message"
	}
	s.rec.HandleFailure(ack.TempID, errors.New(reason))
}

func (s *Session) onUserTyping(data json.RawMessage) {
	sig, err := wire.ParseUserTyping(data)
	if err != nil {
		s.cfg.Logger.Warn("dropping malformed user-typing push", zap.Error(err))
		return
	}
	s.typing.HandleRemote(sig)
}

// Send dispatches one text message to the other participant and returns its
// tempID.
func (s *Session) Send(ctx context.Context, content string) string {
	return s.sender.Send(ctx, model.Draft{
		ConversationID: s.conv.ID,
		SenderID:       s.cfg.SelfID,
		RecipientID:    s.conv.Other(s.cfg.SelfID).ID,
		Content:        content,
	})
}

// InputActivity forwards a composer keystroke to the typing sub-protocol.
func (s *Session) InputActivity() {
	s.typing.InputActivity()
}

// RemoteTyping reports whether the other participant's indicator is active.
func (s *Session) RemoteTyping() bool {
	return s.typing.RemoteActive()
}

// Messages returns the display-ordered snapshot of the conversation log.
func (s *Session) Messages() []model.Message {
	return s.store.Messages()
}

// Conversation returns the conversation this session is bound to.
func (s *Session) Conversation() model.Conversation {
	return s.conv
}

// Close leaves the conversation and releases every subscription. In-flight
// sends become unknown to the reconciler; their late confirmations are
// discarded rather than misapplied to the next conversation.
func (s *Session) Close() {
	s.cancel()
	for _, off := range s.offs {
		off()
	}
	s.offs = nil
	s.typing.Stop()
	err := s.cfg.Channel.Emit(wire.EventLeaveConversation, wire.JoinConversation{ConversationID: s.conv.ID})
	if err != nil && !errors.Is(err, socket.ErrNotConnected) {
		s.cfg.Logger.Warn("leave-conversation emit failed", zap.Error(err))
	}
	s.registry.Clear()
}
