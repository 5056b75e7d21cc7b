package chat

import (
	"testing"
	"time"

	"github.com/minouverse/minouchat/internal/model"
)

func pendingMsg(tempID, content string) *model.Message {
	return &model.Message{
		TempID:         tempID,
		ConversationID: "c1",
		SenderID:       "u1",
		RecipientID:    "u2",
		Content:        content,
		SentAt:         time.Now(),
		Status:         model.StatusPending,
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := NewStore()
	s.Reset("c1")

	s.Append(pendingMsg("t1", "first"))
	s.Append(pendingMsg("t2", "second"))
	s.Append(pendingMsg("t3", "third"))

	// Confirm out of order: t3 then t1. Display order must not move.
	s.Patch("t3", &model.Message{ID: "103"})
	s.Patch("t1", &model.Message{ID: "101"})

	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	wantOrder := []string{"first", "second", "third"}
	for i, want := range wantOrder {
		if msgs[i].Content != want {
			t.Errorf("msgs[%d].Content = %q, want %q", i, msgs[i].Content, want)
		}
	}
	if msgs[0].ID != "101" || msgs[0].Status != model.StatusConfirmed {
		t.Errorf("msgs[0] = %+v, want confirmed id 101", msgs[0])
	}
	if msgs[1].Status != model.StatusPending {
		t.Errorf("msgs[1].Status = %q, want pending", msgs[1].Status)
	}
}

func TestPatchAppliesServerFields(t *testing.T) {
	s := NewStore()
	s.Reset("c1")
	s.Append(pendingMsg("t1", "hello"))

	serverAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	if !s.Patch("t1", &model.Message{ID: "42", SentAt: serverAt, Content: "hello"}) {
		t.Fatal("Patch() = false, want true")
	}

	m := s.Messages()[0]
	if m.ID != "42" {
		t.Errorf("ID = %q, want 42", m.ID)
	}
	if !m.SentAt.Equal(serverAt) {
		t.Errorf("SentAt = %v, want %v", m.SentAt, serverAt)
	}
	if m.Status != model.StatusConfirmed {
		t.Errorf("Status = %q, want confirmed", m.Status)
	}
	if m.TempID != "t1" {
		t.Errorf("TempID = %q, must stay resolvable", m.TempID)
	}
}

func TestPatchUnknownTempIDIsNoop(t *testing.T) {
	s := NewStore()
	s.Reset("c1")
	if s.Patch("ghost", &model.Message{ID: "42"}) {
		t.Error("Patch() on unknown tempID = true, want false")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, patch must never create entries", s.Len())
	}
}

func TestPatchAfterTerminalIsNoop(t *testing.T) {
	s := NewStore()
	s.Reset("c1")
	s.Append(pendingMsg("t1", "hi"))

	if !s.Patch("t1", &model.Message{ID: "42"}) {
		t.Fatal("first Patch() failed")
	}
	if s.Patch("t1", &model.Message{ID: "43"}) {
		t.Error("second Patch() = true, want no-op")
	}
	if got := s.Messages()[0].ID; got != "42" {
		t.Errorf("ID = %q, first confirmation must stick", got)
	}
}

func TestMarkFailedKeepsEntryVisible(t *testing.T) {
	s := NewStore()
	s.Reset("c1")
	s.Append(pendingMsg("t1", "hi"))

	if !s.MarkFailed("t1") {
		t.Fatal("MarkFailed() = false, want true")
	}
	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("failed entry was removed; len = %d", len(msgs))
	}
	if msgs[0].Status != model.StatusFailed {
		t.Errorf("Status = %q, want failed", msgs[0].Status)
	}

	// Failed is terminal.
	if s.Patch("t1", &model.Message{ID: "42"}) {
		t.Error("Patch() after MarkFailed = true, want no-op")
	}
}

func TestIngestIdempotent(t *testing.T) {
	s := NewStore()
	s.Reset("c1")

	remote := &model.Message{ID: "9", ConversationID: "c1", SenderID: "u2", RecipientID: "u1", Content: "yo"}
	if !s.Ingest(remote) {
		t.Fatal("first Ingest() = false")
	}
	if s.Ingest(remote) {
		t.Error("duplicate Ingest() = true, want false")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want exactly 1", s.Len())
	}
}

func TestIngestRejectsMissingID(t *testing.T) {
	s := NewStore()
	s.Reset("c1")
	if s.Ingest(&model.Message{Content: "no id"}) {
		t.Error("Ingest() without permanent id = true, want false")
	}
}

func TestResetIsolatesConversations(t *testing.T) {
	s := NewStore()
	s.Reset("c1")
	s.Append(pendingMsg("t1", "pending in A"))

	s.Reset("c2")
	if s.Len() != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", s.Len())
	}
	if s.ConversationID() != "c2" {
		t.Errorf("ConversationID() = %q, want c2", s.ConversationID())
	}

	// The old pending entry must not be patchable into the new conversation.
	if s.Patch("t1", &model.Message{ID: "42"}) {
		t.Error("Patch() crossed a conversation switch")
	}
}

func TestReplaceAll(t *testing.T) {
	s := NewStore()
	s.Reset("c1")
	s.Append(pendingMsg("t1", "stale"))

	history := []model.Message{
		{ID: "1", ConversationID: "c2", Content: "old", Status: model.StatusConfirmed},
		{ID: "2", ConversationID: "c2", Content: "new", Status: model.StatusConfirmed},
	}
	s.ReplaceAll("c2", history)

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "1" || msgs[1].ID != "2" {
		t.Errorf("order = %s, %s", msgs[0].ID, msgs[1].ID)
	}

	// Loaded ids are indexed for ingest dedupe.
	if s.Ingest(&model.Message{ID: "2", ConversationID: "c2"}) {
		t.Error("Ingest() duplicated a history entry")
	}
}
