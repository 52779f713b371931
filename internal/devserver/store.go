package devserver

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"SkillXChange/internal/model"
)

var (
	ErrUnknownUser         = errors.New("unknown user")
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrUnknownNotification = errors.New("unknown notification")
	ErrNotParticipant      = errors.New("user is not a participant")
)

// Store is the in-memory backing state of the development stub. It mirrors
// the shapes the production communication service serves, enough to exercise
// the client end to end: pair-unique conversations, per-user unread counts,
// ascending message history with newest-first pagination, and a notification
// feed.
type Store struct {
	mu            sync.Mutex
	users         map[model.ID]model.UserDetails
	conversations map[model.ID]*conversationRecord
	order         []model.ID // creation order, for stable ties
	messages      map[model.ID][]model.Message
	notifications map[model.ID][]model.Notification
	now           func() time.Time
}

type conversationRecord struct {
	id           model.ID
	participants []model.ID
	lastMessage  *model.LastMessage
	unread       map[model.ID]int
}

func NewStore() *Store {
	return &Store{
		users:         make(map[model.ID]model.UserDetails),
		conversations: make(map[model.ID]*conversationRecord),
		messages:      make(map[model.ID][]model.Message),
		notifications: make(map[model.ID][]model.Notification),
		now:           time.Now,
	}
}

// AddUser registers a user the stub will serve from /users endpoints.
func (s *Store) AddUser(user model.UserDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *Store) User(id model.ID) (model.UserDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return model.UserDetails{}, ErrUnknownUser
	}
	return user, nil
}

// CreateConversation opens a 1:1 conversation, enforcing pair uniqueness:
// creating the same pair again returns the existing conversation.
func (s *Store) CreateConversation(userA, userB model.ID) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userA]; !ok {
		return model.Conversation{}, ErrUnknownUser
	}
	if _, ok := s.users[userB]; !ok {
		return model.Conversation{}, ErrUnknownUser
	}

	for _, record := range s.conversations {
		if record.hasPair(userA, userB) {
			return s.viewLocked(record, userA), nil
		}
	}

	record := &conversationRecord{
		id:           model.ID(uuid.New().String()),
		participants: []model.ID{userA, userB},
		unread:       make(map[model.ID]int),
	}
	s.conversations[record.id] = record
	s.order = append(s.order, record.id)
	return s.viewLocked(record, userA), nil
}

// ListConversations returns viewer's conversations most-recent-first.
func (s *Store) ListConversations(viewer model.ID, page, limit int) (model.ConversationPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var views []model.Conversation
	for _, id := range s.order {
		record := s.conversations[id]
		if record.hasParticipant(viewer) {
			views = append(views, s.viewLocked(record, viewer))
		}
	}
	model.SortConversationsByActivity(views)

	total := int64(len(views))
	start := (page - 1) * limit
	if start > len(views) {
		start = len(views)
	}
	end := start + limit
	if end > len(views) {
		end = len(views)
	}

	return model.ConversationPage{
		Conversations: views[start:end],
		HasMore:       end < len(views),
		Total:         total,
	}, nil
}

func (s *Store) GetConversation(id, viewer model.ID) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.conversations[id]
	if !ok {
		return model.Conversation{}, ErrUnknownConversation
	}
	return s.viewLocked(record, viewer), nil
}

// AppendMessage persists a message, updates the conversation preview and
// bumps unread counts for every participant except the sender.
func (s *Store) AppendMessage(conversationID, senderID model.ID, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.conversations[conversationID]
	if !ok {
		return model.Message{}, ErrUnknownConversation
	}
	if !record.hasParticipant(senderID) {
		return model.Message{}, ErrNotParticipant
	}

	message := model.Message{
		ID:             model.ID(uuid.New().String()),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], message)

	record.lastMessage = &model.LastMessage{
		Content:   message.Content,
		SenderID:  message.SenderID,
		CreatedAt: message.CreatedAt,
	}
	for _, participant := range record.participants {
		if participant != senderID {
			record.unread[participant]++
		}
	}
	return message, nil
}

// ListMessages pages history newest-page-first: page 1 holds the most recent
// messages. Within a page the slice stays in ascending order.
func (s *Store) ListMessages(conversationID model.ID, page, limit int) (model.MessagePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return model.MessagePage{}, ErrUnknownConversation
	}

	history := s.messages[conversationID]
	total := int64(len(history))

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

	return model.MessagePage{
		Messages: window,
		HasMore:  start > 0,
		Total:    total,
	}, nil
}

// MarkConversationRead zeroes the viewer's unread count.
func (s *Store) MarkConversationRead(conversationID, viewer model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.conversations[conversationID]
	if !ok {
		return ErrUnknownConversation
	}
	record.unread[viewer] = 0
	return nil
}

// AddNotification appends to a user's feed.
func (s *Store) AddNotification(notification model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.ID.IsZero() {
		notification.ID = model.ID(uuid.New().String())
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now().UTC()
	}
	s.notifications[notification.UserID] = append(s.notifications[notification.UserID], notification)
}

// ListNotifications returns the viewer's feed newest-first with the unread
// total the server is authoritative for.
func (s *Store) ListNotifications(viewer model.ID, page, limit int) (model.NotificationPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := s.notifications[viewer]
	unread := 0
	newestFirst := make([]model.Notification, 0, len(feed))
	for i := len(feed) - 1; i >= 0; i-- {
		newestFirst = append(newestFirst, feed[i])
		if !feed[i].IsRead {
			unread++
		}
	}

	start := (page - 1) * limit
	if start > len(newestFirst) {
		start = len(newestFirst)
	}
	end := start + limit
	if end > len(newestFirst) {
		end = len(newestFirst)
	}

	return model.NotificationPage{
		Notifications: newestFirst[start:end],
		HasMore:       end < len(newestFirst),
		Total:         int64(len(newestFirst)),
		UnreadCount:   unread,
	}, nil
}

// MarkNotificationRead flags a single notification as read.
func (s *Store) MarkNotificationRead(viewer, id model.ID) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feed := s.notifications[viewer]
	for i := range feed {
		if feed[i].ID == id {
			feed[i].IsRead = true
			return feed[i], nil
		}
	}
	return model.Notification{}, ErrUnknownNotification
}

// Participants returns a conversation's member ids.
func (s *Store) Participants(conversationID model.ID) ([]model.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrUnknownConversation
	}
	return append([]model.ID(nil), record.participants...), nil
}

func (s *Store) viewLocked(record *conversationRecord, viewer model.ID) model.Conversation {
	participants := make([]model.Participant, 0, len(record.participants))
	for _, id := range record.participants {
		participant := model.Participant{UserID: id}
		if user, ok := s.users[id]; ok {
			participant.Name = user.Name
			participant.Username = user.Username
			participant.Avatar = user.ProfileImage
		}
		participants = append(participants, participant)
	}

	var last *model.LastMessage
	if record.lastMessage != nil {
		copied := *record.lastMessage
		last = &copied
	}

	return model.Conversation{
		ID:           record.id,
		Participants: participants,
		LastMessage:  last,
		UnreadCount:  record.unread[viewer],
	}
}

func (r *conversationRecord) hasParticipant(id model.ID) bool {
	for _, participant := range r.participants {
		if participant == id {
			return true
		}
	}
	return false
}

func (r *conversationRecord) hasPair(a, b model.ID) bool {
	return (r.participants[0] == a && r.participants[1] == b) ||
		(r.participants[0] == b && r.participants[1] == a)
}
