package state

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"SkillXChange/internal/event"
	"SkillXChange/internal/model"
	"SkillXChange/internal/repo"
)

// Notifications holds the notification feed and its unread total. The
// in-memory list is a display cache: when the server mutates the feed out of
// band, counts are reconciled by re-fetching rather than computing a local
// delta, because approximate bookkeeping against a partially loaded list
// drifts.
type Notifications struct {
	notifications repo.NotificationRepository
	logger        *zap.Logger
	pageSize      int

	mu      sync.Mutex
	items   []model.Notification
	unread  int
	hasMore bool
}

func NewNotifications(notifications repo.NotificationRepository, pageSize int, logger *zap.Logger) *Notifications {
	if pageSize < 1 {
		pageSize = 20
	}
	return &Notifications{
		notifications: notifications,
		logger:        logger,
		pageSize:      pageSize,
	}
}

// Refresh replaces the cache with page 1 and the server's unread total.
func (n *Notifications) Refresh(ctx context.Context) error {
	page, err := n.notifications.ListNotifications(ctx, 1, n.pageSize)
	if err != nil {
		return fmt.Errorf("refresh notifications: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = page.Notifications
	n.unread = page.UnreadCount
	n.hasMore = page.HasMore
	return nil
}

// HandleNew prepends a pushed notification and bumps the unread total.
func (n *Notifications) HandleNew(notification model.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append([]model.Notification{notification}, n.items...)
	n.unread++
}

// HandleUpdated applies a server-side feed mutation. clear_related removes
// entries matching (relatedId, type) from the cache, then re-fetches so the
// unread total comes from the source of truth instead of a local guess.
func (n *Notifications) HandleUpdated(ctx context.Context, ev event.NotificationsUpdated) {
	if ev.Action != event.ActionClearRelated {
		return
	}

	n.mu.Lock()
	filtered := n.items[:0:0]
	for _, item := range n.items {
		if item.RelatedID == ev.RelatedID && item.Type == ev.Type {
			continue
		}
		filtered = append(filtered, item)
	}
	n.items = filtered
	n.mu.Unlock()

	if err := n.Refresh(ctx); err != nil {
		n.logger.Error("failed to reconcile notifications", zap.Error(err))
	}
}

// MarkRead removes a notification optimistically and confirms with the
// server, restoring the previous state when the call fails.
func (n *Notifications) MarkRead(ctx context.Context, id model.ID) error {
	n.mu.Lock()
	previousItems := append([]model.Notification(nil), n.items...)
	previousUnread := n.unread

	kept := n.items[:0:0]
	removed := false
	for _, item := range n.items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if removed {
		n.items = kept
		if n.unread > 0 {
			n.unread--
		}
	}
	n.mu.Unlock()

	if _, err := n.notifications.MarkRead(ctx, id); err != nil {
		n.mu.Lock()
		n.items = previousItems
		n.unread = previousUnread
		n.mu.Unlock()
		return err
	}
	return nil
}

// Items returns a copy of the cached feed, newest first.
func (n *Notifications) Items() []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	items := make([]model.Notification, len(n.items))
	copy(items, n.items)
	return items
}

// UnreadCount returns the last known unread total.
func (n *Notifications) UnreadCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unread
}
