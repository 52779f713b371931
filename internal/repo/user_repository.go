package repo

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"SkillXChange/internal/model"
)

// UserRepository resolves user identity and profiles from the auth service.
type UserRepository interface {
	Me(ctx context.Context) (*model.UserDetails, error)
	ProfileByID(ctx context.Context, id model.ID) (*model.UserDetails, error)
}

type userRepository struct {
	client *Client
	logger *zap.Logger
}

func NewUserRepository(client *Client, logger *zap.Logger) UserRepository {
	return &userRepository{client: client, logger: logger}
}

func (r *userRepository) Me(ctx context.Context) (*model.UserDetails, error) {
	var user model.UserDetails
	if err := r.client.get(ctx, "/api/users/me", nil, &user); err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) ProfileByID(ctx context.Context, id model.ID) (*model.UserDetails, error) {
	if id.IsZero() {
		return nil, ErrInvalidID
	}

	var user model.UserDetails
	path := "/api/users/profile/" + url.PathEscape(id.String())
	if err := r.client.get(ctx, path, nil, &user); err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", id, err)
	}
	return &user, nil
}
