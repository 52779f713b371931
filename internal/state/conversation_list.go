package state

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"SkillXChange/internal/event"
	"SkillXChange/internal/hydrate"
	"SkillXChange/internal/model"
	"SkillXChange/internal/repo"
)

// ConversationList owns the ordered set of conversations for the signed-in
// user. It is the single owner of that collection: paginated loads, pushed
// messages and read receipts all merge through its transitions, and every
// asynchronous continuation re-checks a generation token so stale completions
// are discarded instead of clobbering newer state.
type ConversationList struct {
	conversations repo.ConversationRepository
	users         repo.UserRepository
	hydrator      *hydrate.Hydrator
	logger        *zap.Logger
	pageSize      int

	mu          sync.Mutex
	currentUser *model.UserDetails
	items       []model.Conversation
	activeID    model.ID
	page        int
	hasMore     bool
	loading     bool
	gen         uint64
}

func NewConversationList(
	conversations repo.ConversationRepository,
	users repo.UserRepository,
	hydrator *hydrate.Hydrator,
	pageSize int,
	logger *zap.Logger,
) *ConversationList {
	if pageSize < 1 {
		pageSize = 20
	}
	return &ConversationList{
		conversations: conversations,
		users:         users,
		hydrator:      hydrator,
		logger:        logger,
		pageSize:      pageSize,
	}
}

// Bootstrap resolves the signed-in user, loads page 1 of the conversation
// list and installs the hydrated result. Safe to call again to reinitialize.
func (l *ConversationList) Bootstrap(ctx context.Context) error {
	user, err := l.users.Me(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap conversations: %w", err)
	}

	page, err := l.conversations.ListConversations(ctx, 1, l.pageSize)
	if err != nil {
		return fmt.Errorf("bootstrap conversations: %w", err)
	}

	hydrated := l.hydrator.Hydrate(ctx, page.Conversations, user.ID)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.currentUser = user
	l.items = hydrated
	l.page = 1
	l.hasMore = page.HasMore
	l.loading = false
	return nil
}

// LoadMore appends the next page to the list. Guarded: a no-op while a load
// is in flight or when the server reported no further pages. Only the new
// page is hydrated; existing entries keep server page ordering continuity.
func (l *ConversationList) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.loading || !l.hasMore || l.currentUser == nil {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	nextPage := l.page + 1
	gen := l.gen
	userID := l.currentUser.ID
	l.mu.Unlock()

	page, err := l.conversations.ListConversations(ctx, nextPage, l.pageSize)
	if err != nil {
		l.mu.Lock()
		l.loading = false
		l.mu.Unlock()
		l.logger.Error("failed to load more conversations", zap.Error(err))
		return err
	}

	hydrated := l.hydrator.Hydrate(ctx, page.Conversations, userID)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if l.gen != gen {
		// the list was rebuilt while this page was in flight
		return nil
	}
	for _, conversation := range hydrated {
		if l.indexOfLocked(conversation.ID) == -1 {
			l.items = append(l.items, conversation)
		}
	}
	l.page = nextPage
	l.hasMore = page.HasMore
	return nil
}

// HandleIncomingMessage merges a pushed message into the list: the matching
// conversation's preview updates, its unread count bumps unless it is the
// active conversation, and the list re-sorts by latest activity. A message
// for a conversation not yet loaded triggers an asynchronous fetch of the
// most recent conversation, re-checking membership when it resolves.
func (l *ConversationList) HandleIncomingMessage(ctx context.Context, message model.Message) {
	l.mu.Lock()
	index := l.indexOfLocked(message.ConversationID)
	if index == -1 {
		var userID model.ID
		if l.currentUser != nil {
			userID = l.currentUser.ID
		}
		l.mu.Unlock()
		go l.fetchUnknownConversation(ctx, message.ConversationID, userID)
		return
	}

	l.items[index].LastMessage = &model.LastMessage{
		Content:   message.Content,
		SenderID:  message.SenderID,
		CreatedAt: message.CreatedAt,
	}
	if message.ConversationID != l.activeID {
		l.items[index].UnreadCount++
	}
	model.SortConversationsByActivity(l.items)
	l.mu.Unlock()
}

// fetchUnknownConversation pulls the single most recent conversation from the
// server and prepends it if the list still lacks it. The re-check at
// resolution time guards the race where the list gained the entry while the
// fetch was in flight.
func (l *ConversationList) fetchUnknownConversation(ctx context.Context, conversationID, userID model.ID) {
	page, err := l.conversations.ListConversations(ctx, 1, 1)
	if err != nil {
		l.logger.Error("failed to fetch new conversation",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err))
		return
	}
	if len(page.Conversations) == 0 {
		return
	}

	hydrated := l.hydrator.Hydrate(ctx, page.Conversations, userID)
	conversation := hydrated[0]

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexOfLocked(conversation.ID) != -1 {
		return
	}
	l.items = append([]model.Conversation{conversation}, l.items...)
}

// HandleMessagesRead applies a read receipt. Only receipts attributed to the
// current user (another tab or device reading) change visible state: that
// conversation's unread count resets. Receipts from other users are accepted
// without effect.
func (l *ConversationList) HandleMessagesRead(receipt event.MessagesRead) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentUser == nil || receipt.ReadBy != l.currentUser.ID {
		return
	}
	if index := l.indexOfLocked(receipt.ConversationID); index != -1 {
		l.items[index].UnreadCount = 0
	}
}

// Select marks a conversation active and optimistically zeroes its unread
// count. The thread state machine performs the actual reload.
func (l *ConversationList) Select(id model.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeID = id
	if index := l.indexOfLocked(id); index != -1 {
		l.items[index].UnreadCount = 0
	}
}

// EnsurePresent inserts a conversation fetched by id when a deep link opens a
// conversation that the loaded pages do not contain. Duplicate inserts are
// guarded by a membership re-check after the fetch resolves.
func (l *ConversationList) EnsurePresent(ctx context.Context, id model.ID) error {
	l.mu.Lock()
	if l.indexOfLocked(id) != -1 {
		l.mu.Unlock()
		return nil
	}
	var userID model.ID
	if l.currentUser != nil {
		userID = l.currentUser.ID
	}
	l.mu.Unlock()

	conversation, err := l.conversations.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve deep-linked conversation: %w", err)
	}

	hydrated := l.hydrator.Hydrate(ctx, []model.Conversation{*conversation}, userID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexOfLocked(id) != -1 {
		return nil
	}
	l.items = append([]model.Conversation{hydrated[0]}, l.items...)
	return nil
}

// StartConversation opens (or reopens) a 1:1 conversation with another user
// and makes sure it is present in the list. The server enforces pair
// uniqueness, so calling this twice yields the same conversation id.
func (l *ConversationList) StartConversation(ctx context.Context, otherUserID model.ID) (model.ID, error) {
	conversation, err := l.conversations.CreateConversation(ctx, otherUserID)
	if err != nil {
		return "", err
	}
	if err := l.EnsurePresent(ctx, conversation.ID); err != nil {
		return "", err
	}
	return conversation.ID, nil
}

// ActiveID returns the currently selected conversation id, if any.
func (l *ConversationList) ActiveID() model.ID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeID
}

// CurrentUser returns the signed-in identity resolved during bootstrap.
func (l *ConversationList) CurrentUser() *model.UserDetails {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentUser
}

// Snapshot returns a copy of the list in display order.
func (l *ConversationList) Snapshot() []model.Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := make([]model.Conversation, len(l.items))
	copy(items, l.items)
	return items
}

// HasMore reports whether the server has further pages.
func (l *ConversationList) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

func (l *ConversationList) indexOfLocked(id model.ID) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}
