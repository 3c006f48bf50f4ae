package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/postkeeper/postkeeper/internal/cache"
	"github.com/postkeeper/postkeeper/internal/metrics"
	"github.com/postkeeper/postkeeper/internal/model"
	"github.com/postkeeper/postkeeper/internal/repository"
)

const (
	maxTitleLength   = 200
	maxContentLength = 50000
	maxTagLength     = 50
	maxTags          = 20
)

// PostStore is the persistence surface PostService needs.
type PostStore interface {
	GetOrCreateUser(ctx context.Context, username string) (*model.User, error)
	GetPostsModifiedAt(ctx context.Context, username string) (time.Time, error)
	// Mutations return the collection timestamp they committed.
	CreatePost(ctx context.Context, post *model.Post) (time.Time, error)
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	UpdatePost(ctx context.Context, post *model.Post) (time.Time, error)
	DeletePost(ctx context.Context, id, username string, at time.Time) (time.Time, error)
}

// LastModifiedCache stores each user's collection timestamp.
// SetPostsModifiedAt must never replace a newer cached value with an older one.
type LastModifiedCache interface {
	GetPostsModifiedAt(ctx context.Context, username string) (time.Time, error)
	SetPostsModifiedAt(ctx context.Context, username string, at time.Time, ttl time.Duration) error
}

// PostService handles post business logic.
type PostService struct {
	store    PostStore
	cache    LastModifiedCache
	cacheTTL time.Duration
	metrics  metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewPostService creates a new PostService. lmCache may be nil.
func NewPostService(store PostStore, lmCache LastModifiedCache, cacheTTL time.Duration, recorder metrics.Recorder, logger *slog.Logger) *PostService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostService{
		store:    store,
		cache:    lmCache,
		cacheTTL: cacheTTL,
		metrics:  recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// LastModifiedForUser returns when username's post collection last changed.
func (s *PostService) LastModifiedForUser(ctx context.Context, username string) (time.Time, error) {
	if s.cache != nil {
		at, err := s.cache.GetPostsModifiedAt(ctx, username)
		switch {
		case err == nil:
			s.metrics.IncLastModifiedCacheHit()
			return at, nil
		case errors.Is(err, cache.ErrCacheMiss):
			s.metrics.IncLastModifiedCacheMiss()
		default:
			s.logger.Warn("last-modified cache read failed", "username", username, "error", err)
		}
	}

	at, err := s.store.GetPostsModifiedAt(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, err
	}

	s.cacheModifiedAt(ctx, username, at)

	return at, nil
}

// GetPost retrieves a post by ID.
func (s *PostService) GetPost(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

// CreatePost validates input and stores it as a new post owned by username.
// The caller's value is not modified.
func (s *PostService) CreatePost(ctx context.Context, input *model.Post, username string) (*model.Post, error) {
	if input == nil {
		return nil, invalid("body", "is required")
	}
	fields, err := validatePost(input)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetOrCreateUser(ctx, username); err != nil {
		return nil, fmt.Errorf("failed to resolve owner: %w", err)
	}

	now := s.now()
	post := &model.Post{
		ID:        newPostID(now),
		Owner:     username,
		Title:     fields.Title,
		Content:   fields.Content,
		Tags:      fields.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}

	modifiedAt, err := s.store.CreatePost(ctx, post)
	if err != nil {
		if errors.Is(err, repository.ErrPostExists) {
			return nil, ErrPostExists
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.metrics.IncPostCreated()
	s.cacheModifiedAt(ctx, username, modifiedAt)

	return post, nil
}

// UpdatePost replaces the title, content and tags of a post owned by username.
func (s *PostService) UpdatePost(ctx context.Context, id string, input *model.Post, username string) (*model.Post, error) {
	if input == nil {
		return nil, invalid("body", "is required")
	}

	post, err := s.ownedPost(ctx, id, username)
	if err != nil {
		return nil, err
	}

	fields, err := validatePost(input)
	if err != nil {
		return nil, err
	}

	post.Title = fields.Title
	post.Content = fields.Content
	post.Tags = fields.Tags
	post.UpdatedAt = s.now()

	modifiedAt, err := s.store.UpdatePost(ctx, post)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	s.metrics.IncPostUpdated()
	s.cacheModifiedAt(ctx, username, modifiedAt)

	return post, nil
}

// DeletePost removes a post owned by username.
func (s *PostService) DeletePost(ctx context.Context, id, username string) error {
	if _, err := s.ownedPost(ctx, id, username); err != nil {
		return err
	}

	modifiedAt, err := s.store.DeletePost(ctx, id, username, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to delete post: %w", err)
	}

	s.metrics.IncPostDeleted()
	s.cacheModifiedAt(ctx, username, modifiedAt)

	return nil
}

func (s *PostService) ownedPost(ctx context.Context, id, username string) (*model.Post, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.OwnedBy(username) {
		return nil, ErrNotOwner
	}
	return post, nil
}

// cacheModifiedAt pushes a stamp read from or committed to the store into the
// cache, detached from ctx's cancellation.
func (s *PostService) cacheModifiedAt(ctx context.Context, username string, at time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetPostsModifiedAt(context.WithoutCancel(ctx), username, at, s.cacheTTL); err != nil {
		s.logger.Warn("last-modified cache write failed", "username", username, "error", err)
	}
}

// validatePost checks and normalizes the client-settable fields.
func validatePost(input *model.Post) (*model.Post, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, invalid("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	if utf8.RuneCountInString(input.Content) > maxContentLength {
		return nil, invalid("content", fmt.Sprintf("must be at most %d characters", maxContentLength))
	}

	trimmed := make([]string, 0, len(input.Tags))
	for _, tag := range input.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, invalid("tags", "must not contain empty values")
		}
		if utf8.RuneCountInString(tag) > maxTagLength {
			return nil, invalid("tags", fmt.Sprintf("each tag must be at most %d characters", maxTagLength))
		}
		trimmed = append(trimmed, tag)
	}
	tags := model.NormalizeTags(trimmed)
	if len(tags) > maxTags {
		return nil, invalid("tags", fmt.Sprintf("at most %d tags allowed", maxTags))
	}
	if len(tags) == 0 {
		tags = nil
	}

	return &model.Post{Title: title, Content: input.Content, Tags: tags}, nil
}

func newPostID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), rand.Reader).String()
}
