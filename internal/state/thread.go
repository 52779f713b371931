package state

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"SkillXChange/internal/event"
	"SkillXChange/internal/model"
	"SkillXChange/internal/repo"
)

// ThreadStatus is the lifecycle of the open conversation's message list.
type ThreadStatus int

const (
	ThreadIdle ThreadStatus = iota
	ThreadLoading
	ThreadReady
	ThreadLoadingMore
)

// Viewport abstracts the scrollable message area. Extent is the total
// scrollable height; SetOffset positions the top of the visible window.
// History loads prepend content, so the thread restores the offset by the
// extent delta to keep the viewport visually anchored.
type Viewport interface {
	Extent() int
	SetOffset(offset int)
}

const defaultTypingQuiet = time.Second

// Thread owns the message list of the currently open conversation: paginated
// history merges (prepend), live pushed messages (append), scroll anchoring
// across history loads, and debounced typing signaling. A generation token
// bumped on every activation gates all in-flight continuations, so switching
// conversations rapidly discards stale page loads structurally.
type Thread struct {
	conversations repo.ConversationRepository
	emitter       Emitter
	logger        *zap.Logger
	pageSize      int
	typingQuiet   time.Duration

	mu             sync.Mutex
	conversationID model.ID
	currentUserID  model.ID
	status         ThreadStatus
	messages       []model.Message
	page           int
	hasMore        bool
	gen            uint64
	otherTyping    bool
	stopTimer      *time.Timer
}

func NewThread(conversations repo.ConversationRepository, emitter Emitter, pageSize int, logger *zap.Logger) *Thread {
	if pageSize < 1 {
		pageSize = 20
	}
	return &Thread{
		conversations: conversations,
		emitter:       emitter,
		logger:        logger,
		pageSize:      pageSize,
		typingQuiet:   defaultTypingQuiet,
	}
}

// SetTypingQuiet overrides the trailing-edge debounce interval for the
// typing_stop emission.
func (t *Thread) SetTypingQuiet(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d > 0 {
		t.typingQuiet = d
	}
}

// SetCurrentUser records the signed-in user id used to tell remote typing
// events apart from the echo of our own.
func (t *Thread) SetCurrentUser(id model.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentUserID = id
}

// Activate opens a conversation: joins its transport room, resets the
// pagination cursor and replaces the message list with page 1 sorted oldest
// first. A stale completion from a previous activation is discarded.
func (t *Thread) Activate(ctx context.Context, conversationID model.ID) error {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.conversationID = conversationID
	t.status = ThreadLoading
	t.messages = nil
	t.page = 1
	t.hasMore = false
	t.otherTyping = false
	t.cancelStopTimerLocked()
	t.mu.Unlock()

	t.emitter.JoinConversation(conversationID)

	page, err := t.conversations.ListMessages(ctx, conversationID, 1, t.pageSize)
	if err != nil {
		t.mu.Lock()
		if t.gen == gen {
			t.status = ThreadReady
		}
		t.mu.Unlock()
		return fmt.Errorf("load thread %s: %w", conversationID, err)
	}

	messages := append([]model.Message(nil), page.Messages...)
	model.SortMessagesAscending(messages)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		// another conversation was opened while this load was in flight
		return nil
	}
	t.messages = messages
	t.hasMore = page.HasMore
	t.status = ThreadReady
	return nil
}

// Deactivate returns the thread to Idle, dropping its state.
func (t *Thread) Deactivate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.conversationID = ""
	t.status = ThreadIdle
	t.messages = nil
	t.page = 1
	t.hasMore = false
	t.otherTyping = false
	t.cancelStopTimerLocked()
}

// LoadMore prepends the next history page and restores the viewport offset by
// the scroll extent delta, so the content on screen does not jump. Guarded:
// a no-op unless the thread is Ready with more pages available.
func (t *Thread) LoadMore(ctx context.Context, viewport Viewport) error {
	t.mu.Lock()
	if t.status != ThreadReady || !t.hasMore {
		t.mu.Unlock()
		return nil
	}
	gen := t.gen
	conversationID := t.conversationID
	nextPage := t.page + 1
	t.status = ThreadLoadingMore
	t.mu.Unlock()

	before := viewport.Extent()

	page, err := t.conversations.ListMessages(ctx, conversationID, nextPage, t.pageSize)
	if err != nil {
		t.mu.Lock()
		if t.gen == gen {
			t.status = ThreadReady
		}
		t.mu.Unlock()
		t.logger.Error("failed to load message history", zap.Error(err))
		return err
	}

	older := append([]model.Message(nil), page.Messages...)
	model.SortMessagesAscending(older)

	t.mu.Lock()
	if t.gen != gen {
		t.mu.Unlock()
		return nil
	}
	t.messages = append(older, t.messages...)
	t.page = nextPage
	t.hasMore = page.HasMore
	t.status = ThreadReady
	t.mu.Unlock()

	after := viewport.Extent()
	viewport.SetOffset(after - before)
	return nil
}

// HandleIncomingMessage appends a pushed message when it belongs to the open
// conversation. This is the only path by which a locally sent message becomes
// visible: the displayed list always reflects confirmed server state.
func (t *Thread) HandleIncomingMessage(message model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conversationID.IsZero() || message.ConversationID != t.conversationID {
		return
	}
	t.messages = append(t.messages, message)
	if n := len(t.messages); n > 1 && message.CreatedAt.Before(t.messages[n-2].CreatedAt) {
		model.SortMessagesAscending(t.messages)
	}
}

// HandleParticipantTyping turns the typing indicator on for the counterpart
// of the open conversation.
func (t *Thread) HandleParticipantTyping(ev event.ParticipantTyping) {
	t.setTyping(ev, true)
}

// HandleParticipantStoppedTyping turns the typing indicator off. Stop events
// are explicit, so no receive-side debounce is needed.
func (t *Thread) HandleParticipantStoppedTyping(ev event.ParticipantTyping) {
	t.setTyping(ev, false)
}

func (t *Thread) setTyping(ev event.ParticipantTyping, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.ConversationID != t.conversationID || ev.UserID == t.currentUserID {
		return
	}
	t.otherTyping = typing
}

// InputChanged signals typing activity: typing_start goes out immediately and
// a trailing-edge typing_stop is scheduled after the quiet interval. Every
// call resets the timer, so rapid keystrokes emit no intermediate stops.
func (t *Thread) InputChanged() {
	t.mu.Lock()
	conversationID := t.conversationID
	if conversationID.IsZero() {
		t.mu.Unlock()
		return
	}
	t.cancelStopTimerLocked()
	t.stopTimer = time.AfterFunc(t.typingQuiet, func() {
		t.emitter.StopTyping(conversationID)
	})
	t.mu.Unlock()

	t.emitter.StartTyping(conversationID)
}

// Send emits a message after trimming. The input's pending typing_stop fires
// immediately. The message itself appears only via the server echo; there is
// no optimistic local append to reconcile or dedupe. Returns false for empty
// content or when no conversation is open.
func (t *Thread) Send(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}

	t.mu.Lock()
	conversationID := t.conversationID
	if conversationID.IsZero() {
		t.mu.Unlock()
		return false
	}
	t.cancelStopTimerLocked()
	t.mu.Unlock()

	t.emitter.SendMessage(conversationID, trimmed)
	t.emitter.StopTyping(conversationID)
	return true
}

// ConversationID returns the open conversation id, empty when Idle.
func (t *Thread) ConversationID() model.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversationID
}

// Status returns the thread lifecycle state.
func (t *Thread) Status() ThreadStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Messages returns a copy of the thread in ascending createdAt order.
func (t *Thread) Messages() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	messages := make([]model.Message, len(t.messages))
	copy(messages, t.messages)
	return messages
}

// OtherTyping reports whether the counterpart is currently typing.
func (t *Thread) OtherTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.otherTyping
}

// HasMore reports whether older history pages remain.
func (t *Thread) HasMore() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasMore
}

func (t *Thread) cancelStopTimerLocked() {
	if t.stopTimer != nil {
		t.stopTimer.Stop()
		t.stopTimer = nil
	}
}
