package repo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"SkillXChange/internal/model"
)

// ConversationRepository is the REST client for the communication service's
// conversation endpoints. The server is authoritative for list order
// (most recent activity first); pages are returned as-is and callers merge
// them into in-memory state.
type ConversationRepository interface {
	ListConversations(ctx context.Context, page, limit int) (*model.ConversationPage, error)
	ListMessages(ctx context.Context, conversationID model.ID, page, limit int) (*model.MessagePage, error)
	GetConversation(ctx context.Context, id model.ID) (*model.Conversation, error)
	CreateConversation(ctx context.Context, otherUserID model.ID) (*model.Conversation, error)
}

type conversationRepository struct {
	client *Client
	logger *zap.Logger
}

func NewConversationRepository(client *Client, logger *zap.Logger) ConversationRepository {
	return &conversationRepository{client: client, logger: logger}
}

func (r *conversationRepository) ListConversations(ctx context.Context, page, limit int) (*model.ConversationPage, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}

	var result model.ConversationPage
	err := r.client.get(ctx, "/api/conversation", pageQuery(page, limit), &result)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	r.logger.Debug("conversations fetched",
		zap.Int("page", page),
		zap.Int("count", len(result.Conversations)),
		zap.Bool("has_more", result.HasMore))
	return &result, nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID model.ID, page, limit int) (*model.MessagePage, error) {
	if conversationID.IsZero() {
		return nil, ErrInvalidID
	}
	if page < 1 {
		return nil, ErrInvalidPage
	}

	var result model.MessagePage
	path := "/api/conversation/" + url.PathEscape(conversationID.String()) + "/messages"
	if err := r.client.get(ctx, path, pageQuery(page, limit), &result); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	r.logger.Debug("messages fetched",
		zap.String("conversation_id", conversationID.String()),
		zap.Int("page", page),
		zap.Int("count", len(result.Messages)))
	return &result, nil
}

func (r *conversationRepository) GetConversation(ctx context.Context, id model.ID) (*model.Conversation, error) {
	if id.IsZero() {
		return nil, ErrInvalidID
	}

	var conversation model.Conversation
	path := "/api/conversation/" + url.PathEscape(id.String())
	if err := r.client.get(ctx, path, nil, &conversation); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &conversation, nil
}

// CreateConversation opens a 1:1 conversation with another user. The server
// enforces pair uniqueness: creating an existing pair returns the existing
// conversation.
func (r *conversationRepository) CreateConversation(ctx context.Context, otherUserID model.ID) (*model.Conversation, error) {
	if otherUserID.IsZero() {
		return nil, ErrInvalidID
	}

	body := map[string]string{"userB": otherUserID.String()}
	var conversation model.Conversation
	if err := r.client.do(ctx, "POST", "/api/conversation", nil, body, &conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	r.logger.Debug("conversation created",
		zap.String("conversation_id", conversation.ID.String()),
		zap.String("other_user_id", otherUserID.String()))
	return &conversation, nil
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}
