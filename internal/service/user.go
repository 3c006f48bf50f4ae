package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/postkeeper/postkeeper/internal/model"
	"github.com/postkeeper/postkeeper/internal/repository"
)

// UserStore is the persistence surface UserService needs.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListPostsByOwner(ctx context.Context, username string) ([]*model.Post, error)
}

// UserService resolves users together with their posts.
type UserService struct {
	store UserStore
}

// NewUserService creates a new UserService.
func NewUserService(store UserStore) *UserService {
	return &UserService{store: store}
}

// FindByName returns the user and their posts ordered by creation time.
func (s *UserService) FindByName(ctx context.Context, username string) (*model.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	posts, err := s.store.ListPostsByOwner(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	user.Posts = posts

	return user, nil
}
