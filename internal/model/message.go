package model

import (
	"sort"
	"time"
)

// Message is a single chat message. Messages are immutable once created and
// arrive either from paginated history or as a server push. The id may be
// absent on payloads that have not completed the round trip yet.
type Message struct {
	ID             ID        `json:"id,omitempty"`
	ConversationID ID        `json:"conversationId"`
	SenderID       ID        `json:"senderId"`
	ReceiverID     ID        `json:"receiverId,omitempty"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"isRead,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MessagePage is one page of a conversation's history. Page 1 holds the most
// recent messages; callers sort each page ascending before use.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
	Total    int64     `json:"total"`
}

// SortMessagesAscending orders messages oldest-first by createdAt, stable on
// equal timestamps.
func SortMessagesAscending(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
}
