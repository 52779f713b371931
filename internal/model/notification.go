package model

import "time"

// Notification is an entry in the signed-in user's notification feed. The
// in-memory list is a display cache; the server stays authoritative for
// counts.
type Notification struct {
	ID        ID        `json:"id"`
	UserID    ID        `json:"userId"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
	RelatedID ID        `json:"relatedId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationPage is one page of the notification feed plus the server's
// authoritative unread total.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	HasMore       bool           `json:"hasMore"`
	Total         int64          `json:"total"`
	UnreadCount   int            `json:"unreadCount"`
}
