package tui

import (
	"context"
	"sync"
	"time"

	"github.com/minouverse/minouchat/internal/chat"
	"github.com/minouverse/minouchat/internal/model"
	"github.com/minouverse/minouchat/internal/rest"
	"github.com/minouverse/minouchat/internal/store"
)

// Flash holds transient notification messages.
type Flash struct {
	mu      sync.RWMutex
	message string
	expires time.Time
}

// Set stores a flash message that expires after the given duration.
func (f *Flash) Set(msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.expires = time.Now().Add(d)
}

// Get returns the current flash message, or empty if expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return ""
	}
	return f.message
}

// ViewModel holds the UI-facing state: the conversation list and the one
// open chat session. All delivery mechanics live in the session; the view
// model only snapshots them for rendering.
type ViewModel struct {
	mu sync.RWMutex

	rest    *rest.Client
	cache   *store.DB
	chatCfg chat.Config

	conversations []model.Conversation
	active        *chat.Session
	Flash         Flash
}

// NewViewModel creates a view model over the backend client, the local
// cache, and the session collaborators.
func NewViewModel(rc *rest.Client, cache *store.DB, chatCfg chat.Config) *ViewModel {
	return &ViewModel{
		rest:    rc,
		cache:   cache,
		chatCfg: chatCfg,
	}
}

// LoadConversations fetches the conversation list from the backend, falling
// back to cached summaries when offline.
func (vm *ViewModel) LoadConversations(ctx context.Context) error {
	convs, err := vm.rest.ListConversations(ctx, vm.chatCfg.SelfID)
	if err != nil {
		if cached := vm.cachedConversations(); cached != nil {
			vm.mu.Lock()
			vm.conversations = cached
			vm.mu.Unlock()
			return nil
		}
		return err
	}
	vm.mu.Lock()
	vm.conversations = convs
	vm.mu.Unlock()
	return nil
}

func (vm *ViewModel) cachedConversations() []model.Conversation {
	if vm.cache == nil {
		return nil
	}
	summaries, err := vm.cache.Conversations()
	if err != nil || len(summaries) == 0 {
		return nil
	}
	convs := make([]model.Conversation, 0, len(summaries))
	for _, s := range summaries {
		name := s.PeerName
		if name == "" {
			name = s.PeerID
		}
		convs = append(convs, model.Conversation{
			ID:            s.ID,
			Participants:  []model.Participant{{ID: s.PeerID, Username: name}},
			LastMessage:   s.LastMessage,
			LastMessageAt: s.LastMessageAt,
			UnreadCount:   s.UnreadCount,
		})
	}
	return convs
}

// ApplySummary splices a message into the in-memory conversation list so the
// list stays current without a backend round trip.
func (vm *ViewModel) ApplySummary(msg *model.Message) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for i := range vm.conversations {
		c := &vm.conversations[i]
		if c.ID != msg.ConversationID {
			continue
		}
		if !msg.SentAt.Before(c.LastMessageAt) {
			c.LastMessage = msg.Content
			c.LastMessageAt = msg.SentAt
		}
		return
	}
}

// OpenConversation closes any current session and opens a new one bound to
// conv.
func (vm *ViewModel) OpenConversation(ctx context.Context, conv model.Conversation) {
	vm.mu.Lock()
	old := vm.active
	vm.active = nil
	vm.mu.Unlock()
	if old != nil {
		old.Close()
	}

	s := chat.Open(ctx, vm.chatCfg, conv)
	vm.mu.Lock()
	vm.active = s
	vm.mu.Unlock()
}

// CloseConversation leaves the open conversation, if any.
func (vm *ViewModel) CloseConversation() {
	vm.mu.Lock()
	old := vm.active
	vm.active = nil
	vm.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Send dispatches a message in the open conversation.
func (vm *ViewModel) Send(ctx context.Context, content string) {
	if s := vm.session(); s != nil {
		s.Send(ctx, content)
	}
}

// InputActivity forwards a composer keystroke to the open session.
func (vm *ViewModel) InputActivity() {
	if s := vm.session(); s != nil {
		s.InputActivity()
	}
}

// Messages snapshots the open conversation's ordered log.
func (vm *ViewModel) Messages() []model.Message {
	if s := vm.session(); s != nil {
		return s.Messages()
	}
	return nil
}

// RemoteTyping reports whether the peer's typing indicator is active.
func (vm *ViewModel) RemoteTyping() bool {
	if s := vm.session(); s != nil {
		return s.RemoteTyping()
	}
	return false
}

// ActiveConversation returns the open conversation and whether one is open.
func (vm *ViewModel) ActiveConversation() (model.Conversation, bool) {
	if s := vm.session(); s != nil {
		return s.Conversation(), true
	}
	return model.Conversation{}, false
}

// ActiveID returns the open conversation's id, or empty.
func (vm *ViewModel) ActiveID() string {
	if conv, ok := vm.ActiveConversation(); ok {
		return conv.ID
	}
	return ""
}

// Conversations returns a snapshot of the conversation list.
func (vm *ViewModel) Conversations() []model.Conversation {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make([]model.Conversation, len(vm.conversations))
	copy(out, vm.conversations)
	return out
}

// Search runs a full-text query over the local cache.
func (vm *ViewModel) Search(query string) ([]store.SearchResult, error) {
	if vm.cache == nil {
		return nil, nil
	}
	return vm.cache.Search(query, 50)
}

// SelfID returns the authenticated user's id.
func (vm *ViewModel) SelfID() string {
	return vm.chatCfg.SelfID
}

func (vm *ViewModel) session() *chat.Session {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}
