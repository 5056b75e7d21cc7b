package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/minouverse/minouchat/internal/model"
	"github.com/minouverse/minouchat/internal/socket"
	"github.com/minouverse/minouchat/internal/wire"
)

// fakeChannel is an in-memory socket.Channel for tests: connectivity is a
// switch, emits are recorded, and inbound events are injected with push.
type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	emitErr   error
	emits     []fakeEmit
	handlers  map[string][]handlerEntry
	nextID    int
}

type fakeEmit struct {
	event   string
	payload any
}

type handlerEntry struct {
	id int
	fn socket.Handler
}

func newFakeChannel(connected bool) *fakeChannel {
	return &fakeChannel{connected: connected, handlers: make(map[string][]handlerEntry)}
}

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeChannel) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return socket.ErrNotConnected
	}
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emits = append(f.emits, fakeEmit{event: event, payload: payload})
	return nil
}

func (f *fakeChannel) On(event string, fn socket.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[event] = append(f.handlers[event], handlerEntry{id: id, fn: fn})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		entries := f.handlers[event]
		for i, e := range entries {
			if e.id == id {
				f.handlers[event] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// push delivers an inbound event to every registered handler, the way the
// read pump would.
func (f *fakeChannel) push(t *testing.T, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	entries := append([]handlerEntry(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, e := range entries {
		e.fn(raw)
	}
}

// emitted returns recorded emits of one event.
func (f *fakeChannel) emitted(event string) []fakeEmit {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeEmit
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// lastSend returns the payload of the most recent send-message emit.
func (f *fakeChannel) lastSend(t *testing.T) wire.SendMessage {
	t.Helper()
	sends := f.emitted(wire.EventSendMessage)
	if len(sends) == 0 {
		t.Fatal("no send-message emitted")
	}
	return sends[len(sends)-1].payload.(wire.SendMessage)
}

// fakeBackend is an in-memory chat.Backend.
type fakeBackend struct {
	mu         sync.Mutex
	sendCalls  []model.Draft
	sendResult *model.Message
	sendErr    error
	history    []model.Message
	historyErr error
}

func (f *fakeBackend) SendMessage(_ context.Context, draft model.Draft) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls = append(f.sendCalls, draft)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.sendResult != nil {
		return f.sendResult, nil
	}
	return &model.Message{
		ID:             "srv-1",
		ConversationID: draft.ConversationID,
		SenderID:       draft.SenderID,
		RecipientID:    draft.RecipientID,
		Content:        draft.Content,
		Status:         model.StatusConfirmed,
	}, nil
}

func (f *fakeBackend) ListMessages(_ context.Context, _ string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeBackend) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sendCalls)
}

// fakeCache is an in-memory chat.HistoryCache.
type fakeCache struct {
	msgs map[string][]model.Message
}

func (f *fakeCache) Messages(conversationID string, _ int) ([]model.Message, error) {
	return f.msgs[conversationID], nil
}
