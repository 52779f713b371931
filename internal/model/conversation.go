package model

import (
	"sort"
	"time"
)

// Conversation is a 1:1 chat between the signed-in user and one other
// participant. Identity is the id: two values with the same id represent the
// same entity and later state wins on merge.
type Conversation struct {
	ID           ID            `json:"id"`
	Participants []Participant `json:"participants"`
	LastMessage  *LastMessage  `json:"lastMessage,omitempty"`
	UnreadCount  int           `json:"unreadCount,omitempty"`
}

// Participant is a member of a conversation. Display fields stay empty until
// profile hydration fills them in; a bare UserID is always valid.
type Participant struct {
	UserID   ID     `json:"userId"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"profilePicture,omitempty"`
}

// LastMessage is the preview summary carried on a conversation.
type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  ID        `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationPage is one page of the signed-in user's conversation list.
type ConversationPage struct {
	Conversations []Conversation `json:"conversations"`
	HasMore       bool           `json:"hasMore"`
	Total         int64          `json:"total"`
}

// OtherParticipant returns the participant that is not the current user, or a
// zero Participant when the conversation has no counterpart yet.
func (c *Conversation) OtherParticipant(currentUserID ID) Participant {
	for _, p := range c.Participants {
		if p.UserID != currentUserID {
			return p
		}
	}
	return Participant{}
}

// HasParticipant reports whether userID is a member of the conversation.
func (c *Conversation) HasParticipant(userID ID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// LastActivity returns the timestamp used for list ordering. Conversations
// without any message sort as oldest.
func (c *Conversation) LastActivity() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.CreatedAt
}

// SortConversationsByActivity orders conversations most-recent-first by
// lastMessage.createdAt. The sort is stable: ties and conversations without a
// last message keep their original relative order.
func SortConversationsByActivity(conversations []Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastActivity().After(conversations[j].LastActivity())
	})
}
