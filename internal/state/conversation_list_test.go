package state

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"SkillXChange/internal/event"
	"SkillXChange/internal/hydrate"
	"SkillXChange/internal/model"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newListUnderTest(t *testing.T, backend *fakeBackend, pageSize int) *ConversationList {
	t.Helper()
	logger := zap.NewNop()
	list := NewConversationList(backend, backend, hydrate.NewHydrator(backend, logger), pageSize, logger)
	if err := list.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return list
}

func pairConversation(id model.ID, other model.ID, last time.Time) model.Conversation {
	c := model.Conversation{
		ID: id,
		Participants: []model.Participant{
			{UserID: "1"},
			{UserID: other},
		},
	}
	if !last.IsZero() {
		c.LastMessage = &model.LastMessage{Content: "old", SenderID: other, CreatedAt: last}
	}
	return c
}

func TestBootstrapHydratesParticipants(t *testing.T) {
	backend := newFakeBackend()
	backend.profiles["2"] = model.UserDetails{ID: "2", Name: "Bob", Username: "bob"}
	backend.addConversation(pairConversation("c1", "2", baseTime))

	list := newListUnderTest(t, backend, 20)

	snapshot := list.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(snapshot))
	}
	if other := snapshot[0].OtherParticipant("1"); other.Name != "Bob" {
		t.Fatalf("participant not hydrated: %+v", other)
	}
	if user := list.CurrentUser(); user == nil || user.ID != "1" {
		t.Fatalf("current user not installed: %+v", user)
	}
}

func TestIncomingMessageUpdatesPreviewAndReorders(t *testing.T) {
	backend := newFakeBackend()
	backend.addConversation(pairConversation("c1", "2", baseTime.Add(time.Hour)))
	backend.addConversation(pairConversation("c2", "3", baseTime))

	list := newListUnderTest(t, backend, 20)

	list.HandleIncomingMessage(context.Background(), model.Message{
		ID:             "m1",
		ConversationID: "c2",
		SenderID:       "3",
		Content:        "hello",
		CreatedAt:      baseTime.Add(2 * time.Hour),
	})

	snapshot := list.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("entry count changed: %d", len(snapshot))
	}
	if snapshot[0].ID != "c2" {
		t.Fatalf("conversation with new activity should be first, got %s", snapshot[0].ID)
	}
	if snapshot[0].LastMessage == nil || snapshot[0].LastMessage.Content != "hello" {
		t.Fatalf("preview not updated: %+v", snapshot[0].LastMessage)
	}
	if snapshot[0].UnreadCount != 1 {
		t.Fatalf("inactive conversation should gain unread, got %d", snapshot[0].UnreadCount)
	}
}

func TestIncomingMessageForActiveConversationKeepsUnreadZero(t *testing.T) {
	backend := newFakeBackend()
	backend.addConversation(pairConversation("c1", "2", baseTime))

	list := newListUnderTest(t, backend, 20)
	list.Select("c1")

	list.HandleIncomingMessage(context.Background(), model.Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "2",
		Content:        "hey",
		CreatedAt:      baseTime.Add(time.Hour),
	})

	snapshot := list.Snapshot()
	if snapshot[0].UnreadCount != 0 {
		t.Fatalf("active conversation must not gain unread, got %d", snapshot[0].UnreadCount)
	}
	if snapshot[0].LastMessage.Content != "hey" {
		t.Fatalf("preview should still update: %+v", snapshot[0].LastMessage)
	}
}

func TestIncomingMessageNeverDuplicates(t *testing.T) {
	backend := newFakeBackend()
	backend.addConversation(pairConversation("c1", "2", baseTime))

	list := newListUnderTest(t, backend, 20)

	for i := 0; i < 5; i++ {
		list.HandleIncomingMessage(context.Background(), model.Message{
			ID:             model.ID(fmt.Sprintf("m%d", i)),
			ConversationID: "c1",
			SenderID:       "2",
			Content:        "ping",
			CreatedAt:      baseTime.Add(time.Duration(i) * time.Minute),
		})
	}

	if got := len(list.Snapshot()); got != 1 {
		t.Fatalf("repeated pushes duplicated the entry: %d", got)
	}
}

func TestIncomingMessageForUnknownConversationPrepends(t *testing.T) {
	backend := newFakeBackend()
	backend.addConversation(pairConversation("c1", "2", baseTime))

	list := newListUnderTest(t, backend, 20)

	// a brand-new conversation the loaded page does not contain
	backend.addConversation(pairConversation("c9", "4", baseTime.Add(3*time.Hour)))

	list.HandleIncomingMessage(context.Background(), model.Message{
		ID:             "m1",
		ConversationID: "c9",
		SenderID:       "4",
		Content:        "new",
		CreatedAt:      baseTime.Add(3 * time.Hour),
	})

	waitFor(t, "unknown conversation to arrive", func() bool {
		snapshot := list.Snapshot()
		return len(snapshot) == 2 && snapshot[0].ID == "c9"
	})
}

func TestUnknownConversationRaceGuard(t *testing.T) {
	backend := newFakeBackend()
	backend.addConversation(pairConversation("c1", "2", baseTime))

	list := newListUnderTest(t, backend, 20)

	backend.addConversation(pairConversation("c9", "4", baseTime.Add(3*time.Hour)))

	// hold the most-recent-conversation fetch in flight
	gate := make(chan struct{})
	backend.mu.Lock()
	backend.listConversationsGate = gate
	backend.mu.Unlock()

	list.HandleIncomingMessage(context.Background(), model.Message{
		ID:             "m1",
		ConversationID: "c9",
		SenderID:       "4",
		CreatedAt:      baseTime.Add(3 * time.Hour),
	})

	// the list gains c9 through another path while the fetch is pending
	backend.mu.Lock()
	backend.listConversationsGate = nil
	backend.mu.Unlock()
	if err := list.EnsurePresent(context.Background(), "c9"); err != nil {
		t.Fatalf("ensure present: %v", err)
	}
	close(gate)

	waitFor(t, "pending fetch to resolve", func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.listConversationCalls >= 2
	})

	count := 0
	for _, c := range list.Snapshot() {
		if c.ID == "c9" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("race guard failed: conversation appears %d times", count)
	}
}

func TestMessagesReadByCurrentUserClearsUnread(t *testing.T) {
	backend := newFakeBackend()
	backend.addConversation(pairConversation("c1", "2", baseTime))

	list := newListUnderTest(t, backend, 20)

	list.HandleIncomingMessage(context.Background(), model.Message{
		ID: "m1", ConversationID: "c1", SenderID: "2", CreatedAt: baseTime.Add(time.Hour),
	})
	if list.Snapshot()[0].UnreadCount != 1 {
		t.Fatal("setup: expected unread 1")
	}

	// receipt from another user produces no visible change
	list.HandleMessagesRead(event.MessagesRead{ConversationID: "c1", ReadBy: "2"})
	if list.Snapshot()[0].UnreadCount != 1 {
		t.Fatal("receipt from another user must not clear unread")
	}

	// receipt from this account (another tab) clears it
	list.HandleMessagesRead(event.MessagesRead{ConversationID: "c1", ReadBy: "1"})
	if list.Snapshot()[0].UnreadCount != 0 {
		t.Fatal("receipt from current user should clear unread")
	}
}

func TestSelectZeroesUnreadOptimistically(t *testing.T) {
	backend := newFakeBackend()
	backend.addConversation(pairConversation("c1", "2", baseTime))

	list := newListUnderTest(t, backend, 20)
	list.HandleIncomingMessage(context.Background(), model.Message{
		ID: "m1", ConversationID: "c1", SenderID: "2", CreatedAt: baseTime.Add(time.Hour),
	})

	list.Select("c1")

	if list.ActiveID() != "c1" {
		t.Fatalf("active id not set: %s", list.ActiveID())
	}
	if list.Snapshot()[0].UnreadCount != 0 {
		t.Fatal("selection should zero unread locally")
	}
}

func TestLoadMoreAppendsNextPage(t *testing.T) {
	backend := newFakeBackend()
	for i := 0; i < 25; i++ {
		backend.addConversation(pairConversation(
			model.ID(fmt.Sprintf("conv-%d", i)),
			"2",
			baseTime.Add(-time.Duration(i)*time.Minute),
		))
	}

	list := newListUnderTest(t, backend, 20)
	if got := len(list.Snapshot()); got != 20 {
		t.Fatalf("expected first page of 20, got %d", got)
	}
	if !list.HasMore() {
		t.Fatal("expected more pages")
	}

	if err := list.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more: %v", err)
	}

	snapshot := list.Snapshot()
	if len(snapshot) != 25 {
		t.Fatalf("expected 25 after load more, got %d", len(snapshot))
	}
	if list.HasMore() {
		t.Fatal("no further pages expected")
	}

	// second call is a guarded no-op
	if err := list.LoadMore(context.Background()); err != nil {
		t.Fatalf("guarded load more: %v", err)
	}
	if got := len(list.Snapshot()); got != 25 {
		t.Fatalf("guarded load more changed the list: %d", got)
	}
}

func TestStartConversationIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	backend.addConversation(pairConversation("c1", "2", baseTime))

	list := newListUnderTest(t, backend, 20)

	first, err := list.StartConversation(context.Background(), "42")
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	second, err := list.StartConversation(context.Background(), "42")
	if err != nil {
		t.Fatalf("start conversation again: %v", err)
	}

	if first != second {
		t.Fatalf("expected the same conversation id, got %s and %s", first, second)
	}

	count := 0
	for _, c := range list.Snapshot() {
		if c.ID == first {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("conversation inserted %d times", count)
	}
}

func TestListStaysSortedAfterPushes(t *testing.T) {
	backend := newFakeBackend()
	for i := 0; i < 4; i++ {
		backend.addConversation(pairConversation(
			model.ID(fmt.Sprintf("conv-%d", i)),
			"2",
			baseTime.Add(-time.Duration(i)*time.Hour),
		))
	}

	list := newListUnderTest(t, backend, 20)

	list.HandleIncomingMessage(context.Background(), model.Message{
		ID: "m1", ConversationID: "conv-2", SenderID: "2", CreatedAt: baseTime.Add(time.Hour),
	})
	list.HandleIncomingMessage(context.Background(), model.Message{
		ID: "m2", ConversationID: "conv-3", SenderID: "2", CreatedAt: baseTime.Add(2 * time.Hour),
	})

	snapshot := list.Snapshot()
	for i := 1; i < len(snapshot); i++ {
		if snapshot[i].LastActivity().After(snapshot[i-1].LastActivity()) {
			t.Fatalf("list not sorted descending at %d", i)
		}
	}
}
