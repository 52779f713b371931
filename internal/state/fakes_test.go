package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"SkillXChange/internal/model"
)

// fakeBackend implements the repository interfaces over in-memory data with
// the same pagination shape the communication service serves: message page 1
// holds the newest entries, conversation pages follow insertion order.
type fakeBackend struct {
	mu sync.Mutex

	me            model.UserDetails
	profiles      map[model.ID]model.UserDetails
	conversations []model.Conversation
	messages      map[model.ID][]model.Message // ascending by createdAt

	// gates block a call until released, to stage interleavings
	listConversationsGate chan struct{}
	listMessagesGate      map[model.ID]chan struct{}

	listConversationCalls int
	listMessageCalls      int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		me:               model.UserDetails{ID: "1", Name: "Alice", Username: "alice"},
		profiles:         make(map[model.ID]model.UserDetails),
		messages:         make(map[model.ID][]model.Message),
		listMessagesGate: make(map[model.ID]chan struct{}),
	}
}

func (f *fakeBackend) Me(context.Context) (*model.UserDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	me := f.me
	return &me, nil
}

func (f *fakeBackend) ProfileByID(_ context.Context, id model.ID) (*model.UserDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[id]
	if !ok {
		return nil, context.Canceled
	}
	return &profile, nil
}

func (f *fakeBackend) ListConversations(_ context.Context, page, limit int) (*model.ConversationPage, error) {
	f.mu.Lock()
	gate := f.listConversationsGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listConversationCalls++

	views := make([]model.Conversation, len(f.conversations))
	copy(views, f.conversations)
	model.SortConversationsByActivity(views)

	start := (page - 1) * limit
	if start > len(views) {
		start = len(views)
	}
	end := start + limit
	if end > len(views) {
		end = len(views)
	}
	return &model.ConversationPage{
		Conversations: views[start:end],
		HasMore:       end < len(views),
		Total:         int64(len(views)),
	}, nil
}

func (f *fakeBackend) ListMessages(_ context.Context, conversationID model.ID, page, limit int) (*model.MessagePage, error) {
	f.mu.Lock()
	gate := f.listMessagesGate[conversationID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listMessageCalls++

	history := f.messages[conversationID]
	end := len(history) - (page-1)*limit
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	window := make([]model.Message, end-start)
	copy(window, history[start:end])
	return &model.MessagePage{
		Messages: window,
		HasMore:  start > 0,
		Total:    int64(len(history)),
	}, nil
}

func (f *fakeBackend) GetConversation(_ context.Context, id model.ID) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.ID == id {
			copied := c
			return &copied, nil
		}
	}
	return nil, context.Canceled
}

func (f *fakeBackend) CreateConversation(_ context.Context, otherUserID model.ID) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conversations {
		if c.HasParticipant(otherUserID) && c.HasParticipant(f.me.ID) {
			copied := c
			return &copied, nil
		}
	}
	conversation := model.Conversation{
		ID: model.ID("pair-" + otherUserID.String()),
		Participants: []model.Participant{
			{UserID: f.me.ID},
			{UserID: otherUserID},
		},
	}
	f.conversations = append(f.conversations, conversation)
	return &conversation, nil
}

func (f *fakeBackend) addConversation(c model.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations = append(f.conversations, c)
}

func (f *fakeBackend) seedMessages(conversationID model.ID, count int, start time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < count; i++ {
		f.messages[conversationID] = append(f.messages[conversationID], model.Message{
			ID:             model.ID(fmt.Sprintf("%s-%d", conversationID, i)),
			ConversationID: conversationID,
			SenderID:       "2",
			Content:        "message",
			CreatedAt:      start.Add(time.Duration(i) * time.Minute),
		})
	}
}

func (f *fakeBackend) allMessages(conversationID model.ID) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages[conversationID]...)
}

// fakeEmitter records fire-and-forget emissions.
type fakeEmitter struct {
	mu     sync.Mutex
	joins  []model.ID
	sends  []string
	starts int
	stops  int
}

func (e *fakeEmitter) JoinConversation(id model.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joins = append(e.joins, id)
}

func (e *fakeEmitter) SendMessage(_ model.ID, content string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sends = append(e.sends, content)
}

func (e *fakeEmitter) StartTyping(model.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
}

func (e *fakeEmitter) StopTyping(model.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
}

func (e *fakeEmitter) counts() (starts, stops int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts, e.stops
}

// fakeViewport reports an extent derived from the thread and records the
// offset the state machine restores after a history load.
type fakeViewport struct {
	extent  func() int
	offsets []int
}

func (v *fakeViewport) Extent() int {
	return v.extent()
}

func (v *fakeViewport) SetOffset(offset int) {
	v.offsets = append(v.offsets, offset)
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
