package chat

import (
	"sync"

	"github.com/minouverse/minouchat/internal/model"
)

// Store is the ordered in-memory message log for the active conversation.
// Display order is append order, oldest first; a late confirmation patches
// its entry in place and never moves it. Entries are indexed by tempID for
// reconciliation and by permanent id for duplicate-push detection.
type Store struct {
	mu             sync.Mutex
	conversationID string
	messages       []*model.Message
	byTemp         map[string]*model.Message
	byID           map[string]*model.Message
}

// NewStore creates an empty store bound to no conversation.
func NewStore() *Store {
	s := &Store{}
	s.reset("")
	return s
}

func (s *Store) reset(conversationID string) {
	s.conversationID = conversationID
	s.messages = nil
	s.byTemp = make(map[string]*model.Message)
	s.byID = make(map[string]*model.Message)
}

// Reset drops every entry and rebinds the store to a new conversation.
// Pending entries from the previous conversation never leak into the next.
func (s *Store) Reset(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(conversationID)
}

// ConversationID returns the conversation the store is currently bound to.
func (s *Store) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// ReplaceAll rebinds the store and loads a fetched history in the given
// order.
func (s *Store) ReplaceAll(conversationID string, history []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset(conversationID)
	for i := range history {
		m := history[i]
		s.index(&m)
	}
}

// Append inserts a message at the end of the log.
func (s *Store) Append(m *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.index(&cp)
}

// index appends and registers an entry. Caller holds s.mu.
func (s *Store) index(m *model.Message) {
	s.messages = append(s.messages, m)
	if m.TempID != "" {
		s.byTemp[m.TempID] = m
	}
	if m.ID != "" {
		s.byID[m.ID] = m
	}
}

// Patch applies a server confirmation to the pending entry with the given
// tempID: permanent id, server timestamp, canonical content if echoed, and
// the confirmed status. Returns false (a no-op) if no pending entry matches.
func (s *Store) Patch(tempID string, srv *model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byTemp[tempID]
	if !ok || m.Status != model.StatusPending {
		return false
	}
	m.ID = srv.ID
	if !srv.SentAt.IsZero() {
		m.SentAt = srv.SentAt
	}
	if srv.Content != "" {
		m.Content = srv.Content
	}
	m.Status = model.StatusConfirmed
	if m.ID != "" {
		s.byID[m.ID] = m
	}
	return true
}

// MarkFailed flips the matching pending entry to failed. The entry stays in
// the log so the user can see the message did not go through. Returns false
// if no pending entry matches.
func (s *Store) MarkFailed(tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byTemp[tempID]
	if !ok || m.Status != model.StatusPending {
		return false
	}
	m.Status = model.StatusFailed
	return true
}

// Ingest appends a message pushed by the other participant. Idempotent on
// the permanent id: a duplicate push leaves exactly one entry. Returns true
// if the message was added.
func (s *Store) Ingest(m *model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		return false
	}
	if _, exists := s.byID[m.ID]; exists {
		return false
	}
	cp := *m
	cp.Status = model.StatusConfirmed
	s.index(&cp)
	return true
}

// Messages returns a snapshot of the log in display order.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
