package repo

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"SkillXChange/internal/model"
)

// NotificationRepository is the REST client for the notification feed. The
// server stays authoritative for unread totals; the in-memory list is only a
// display cache.
type NotificationRepository interface {
	ListNotifications(ctx context.Context, page, limit int) (*model.NotificationPage, error)
	MarkRead(ctx context.Context, id model.ID) (*model.Notification, error)
}

type notificationRepository struct {
	client *Client
	logger *zap.Logger
}

func NewNotificationRepository(client *Client, logger *zap.Logger) NotificationRepository {
	return &notificationRepository{client: client, logger: logger}
}

func (r *notificationRepository) ListNotifications(ctx context.Context, page, limit int) (*model.NotificationPage, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}

	var result model.NotificationPage
	if err := r.client.get(ctx, "/api/notification", pageQuery(page, limit), &result); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	r.logger.Debug("notifications fetched",
		zap.Int("page", page),
		zap.Int("count", len(result.Notifications)),
		zap.Int("unread", result.UnreadCount))
	return &result, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id model.ID) (*model.Notification, error) {
	if id.IsZero() {
		return nil, ErrInvalidID
	}

	var notification model.Notification
	path := "/api/notification/" + url.PathEscape(id.String()) + "/read"
	if err := r.client.do(ctx, "PATCH", path, nil, nil, &notification); err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return &notification, nil
}
