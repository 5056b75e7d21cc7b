package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minouverse/minouchat/internal/bus"
	"github.com/minouverse/minouchat/internal/model"
	"github.com/minouverse/minouchat/internal/socket"
	"github.com/minouverse/minouchat/internal/wire"
	"go.uber.org/zap"
)

// RestSender is the HTTP fallback for one message send.
type RestSender interface {
	SendMessage(ctx context.Context, draft model.Draft) (*model.Message, error)
}

// Sender picks the transport for each outgoing message. The optimistic entry
// is appended before any network attempt so the UI shows it immediately;
// exactly one terminal outcome per send reaches the reconciler.
type Sender struct {
	channel  socket.Channel
	rest     RestSender
	store    *Store
	registry *PendingRegistry
	rec      *Reconciler
	bus      *bus.Bus
	logger   *zap.Logger
	ackWait  time.Duration
	now      func() time.Time
}

// NewSender creates a sender. ackWait bounds how long a socket send waits
// for its ack before the overdue warning fires.
func NewSender(channel socket.Channel, rest RestSender, store *Store, registry *PendingRegistry,
	rec *Reconciler, b *bus.Bus, logger *zap.Logger, ackWait time.Duration) *Sender {
	return &Sender{
		channel:  channel,
		rest:     rest,
		store:    store,
		registry: registry,
		rec:      rec,
		bus:      b,
		logger:   logger,
		ackWait:  ackWait,
		now:      time.Now,
	}
}

// Send dispatches one draft and returns its tempID. Socket-first when the
// channel is connected at send time; a single synchronous HTTP call
// otherwise. Failures surface on the entry itself, not as a return value.
func (s *Sender) Send(ctx context.Context, draft model.Draft) string {
	tempID := newTempID(draft.SenderID, s.now())
	msg := &model.Message{
		TempID:         tempID,
		ConversationID: draft.ConversationID,
		SenderID:       draft.SenderID,
		RecipientID:    draft.RecipientID,
		Content:        draft.Content,
		SentAt:         s.now(),
		Status:         model.StatusPending,
	}
	s.store.Append(msg)
	s.registry.Add(tempID, msg)
	s.bus.Publish("chat.message_upserted", msg)

	if s.channel.Connected() {
		err := s.channel.Emit(wire.EventSendMessage, wire.SendMessage{
			TempID:         tempID,
			ConversationID: draft.ConversationID,
			SenderID:       draft.SenderID,
			RecipientID:    draft.RecipientID,
			Content:        draft.Content,
		})
		if err != nil {
			// The channel dropped between the connectivity check and the
			// write. Transport failure, no retry.
			s.rec.HandleFailure(tempID, err)
			return tempID
		}
		s.armAckWindow(tempID)
		return tempID
	}

	created, err := s.rest.SendMessage(ctx, draft)
	if err != nil {
		s.rec.HandleFailure(tempID, err)
		return tempID
	}
	s.rec.HandleConfirm(tempID, created)
	return tempID
}

// armAckWindow starts the advisory wait for a socket ack. Expiry does NOT
// fail the message: a send whose ack was dropped stays pending and is only
// logged.
func (s *Sender) armAckWindow(tempID string) {
	time.AfterFunc(s.ackWait, func() {
		if s.registry.Has(tempID) {
			s.logger.Warn("no ack within window, message still pending",
				zap.String("temp_id", tempID),
				zap.Duration("window", s.ackWait))
			s.bus.Publish("chat.ack_overdue", tempID)
		}
	})
}

// newTempID builds the client correlation id from the sender, the send
// timestamp, and a random component, unique per attempt.
func newTempID(senderID string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", senderID, now.UnixMilli(), uuid.NewString()[:8])
}
