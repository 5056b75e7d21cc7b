package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minouverse/minouchat/internal/bus"
	"github.com/minouverse/minouchat/internal/model"
	"github.com/minouverse/minouchat/internal/wire"
	"go.uber.org/zap"
)

func newSenderFixture(channel *fakeChannel, backend *fakeBackend, ackWait time.Duration) (*Sender, *Store, *bus.Bus) {
	s := NewStore()
	s.Reset("c1")
	reg := NewPendingRegistry()
	b := bus.New()
	logger := zap.NewNop()
	rec := NewReconciler(s, reg, b, logger)
	sender := NewSender(channel, backend, s, reg, rec, b, logger, ackWait)
	return sender, s, b
}

func draft(content string) model.Draft {
	return model.Draft{ConversationID: "c1", SenderID: "u1", RecipientID: "u2", Content: content}
}

func TestSendOverConnectedChannel(t *testing.T) {
	channel := newFakeChannel(true)
	backend := &fakeBackend{}
	sender, store, _ := newSenderFixture(channel, backend, time.Second)

	tempID := sender.Send(context.Background(), draft("hello"))

	// The optimistic entry is visible before any confirmation.
	msgs := store.Messages()
	if len(msgs) != 1 || msgs[0].Status != model.StatusPending {
		t.Fatalf("msgs = %+v, want one pending entry", msgs)
	}
	if msgs[0].TempID != tempID {
		t.Errorf("TempID = %q, want %q", msgs[0].TempID, tempID)
	}

	// Channel path only: the draft went out as a send-message emit and no
	// HTTP call was made.
	sent := channel.lastSend(t)
	if sent.TempID != tempID || sent.Content != "hello" {
		t.Errorf("emit = %+v", sent)
	}
	if backend.sendCount() != 0 {
		t.Errorf("HTTP sends = %d, want 0 while channel connected", backend.sendCount())
	}
}

func TestChannelAckConfirmsInPlace(t *testing.T) {
	channel := newFakeChannel(true)
	sender, store, _ := newSenderFixture(channel, &fakeBackend{}, time.Second)

	sender.Send(context.Background(), draft("first"))
	tempID := channel.lastSend(t).TempID
	sender.Send(context.Background(), draft("second"))

	// Ack for the first message arrives after the second was appended.
	sender.rec.HandleConfirm(tempID, &model.Message{ID: "42", SentAt: time.Now()})

	msgs := store.Messages()
	if msgs[0].ID != "42" || msgs[0].Status != model.StatusConfirmed {
		t.Errorf("msgs[0] = %+v, want confirmed id 42", msgs[0])
	}
	if msgs[0].Content != "first" {
		t.Errorf("confirmation moved the entry: msgs[0].Content = %q", msgs[0].Content)
	}
}

func TestSendFallsBackToHTTPWhenDisconnected(t *testing.T) {
	channel := newFakeChannel(false)
	backend := &fakeBackend{}
	sender, store, _ := newSenderFixture(channel, backend, time.Second)

	sender.Send(context.Background(), draft("hello"))

	if got := len(channel.emitted(wire.EventSendMessage)); got != 0 {
		t.Errorf("channel emits = %d, want 0 while disconnected", got)
	}
	if backend.sendCount() != 1 {
		t.Fatalf("HTTP sends = %d, want exactly 1", backend.sendCount())
	}

	m := store.Messages()[0]
	if m.Status != model.StatusConfirmed || m.ID != "srv-1" {
		t.Errorf("entry = %+v, want confirmed srv-1", m)
	}
}

func TestHTTPFailureMarksFailed(t *testing.T) {
	channel := newFakeChannel(false)
	backend := &fakeBackend{sendErr: errors.New("backend returned 500")}
	sender, store, b := newSenderFixture(channel, backend, time.Second)

	ch, unsub := b.Subscribe("chat.send_failed", 10)
	defer unsub()

	sender.Send(context.Background(), draft("hello"))

	m := store.Messages()[0]
	if m.Status != model.StatusFailed {
		t.Errorf("status = %q, want failed", m.Status)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no chat.send_failed event")
	}

	// No silent retry.
	if backend.sendCount() != 1 {
		t.Errorf("HTTP sends = %d, want 1", backend.sendCount())
	}
}

func TestEmitErrorMarksFailed(t *testing.T) {
	channel := newFakeChannel(true)
	channel.emitErr = errors.New("write queue full")
	backend := &fakeBackend{}
	sender, store, _ := newSenderFixture(channel, backend, time.Second)

	sender.Send(context.Background(), draft("hello"))

	if got := store.Messages()[0].Status; got != model.StatusFailed {
		t.Errorf("status = %q, want failed", got)
	}
	// A failed emit does not fall through to HTTP.
	if backend.sendCount() != 0 {
		t.Errorf("HTTP sends = %d, want 0", backend.sendCount())
	}
}

// An expired ack window must not fail the message: it is advisory only, and
// the entry stays pending.
func TestAckWindowExpiryLeavesPending(t *testing.T) {
	channel := newFakeChannel(true)
	sender, store, b := newSenderFixture(channel, &fakeBackend{}, 30*time.Millisecond)

	overdue, unsub := b.Subscribe("chat.ack_overdue", 10)
	defer unsub()

	sender.Send(context.Background(), draft("hello"))

	select {
	case <-overdue:
	case <-time.After(time.Second):
		t.Fatal("no chat.ack_overdue event after window expiry")
	}

	if got := store.Messages()[0].Status; got != model.StatusPending {
		t.Errorf("status = %q, want still pending after window expiry", got)
	}
}

func TestTempIDsAreUniquePerAttempt(t *testing.T) {
	channel := newFakeChannel(true)
	sender, _, _ := newSenderFixture(channel, &fakeBackend{}, time.Second)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := sender.Send(context.Background(), draft("x"))
		if seen[id] {
			t.Fatalf("duplicate tempID %q", id)
		}
		seen[id] = true
	}
}
