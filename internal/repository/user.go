package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/postkeeper/postkeeper/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already exists")
)

// CreateUser inserts a new user.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (username, created_at, posts_modified_at)
		VALUES ($1, $2, $3)
	`

	if user.PostsModifiedAt.IsZero() {
		user.PostsModifiedAt = user.CreatedAt
	}
	user.PostsModifiedAt = user.PostsModifiedAt.Truncate(time.Second)

	_, err := r.pool.Exec(ctx, query, user.Username, user.CreatedAt, user.PostsModifiedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByUsername retrieves a user without their posts.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT username, created_at, posts_modified_at
		FROM users
		WHERE username = $1
	`

	var user model.User
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&user.Username,
		&user.CreatedAt,
		&user.PostsModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return &user, nil
}

// GetOrCreateUser returns the named user, creating it when missing.
func (r *Repository) GetOrCreateUser(ctx context.Context, username string) (*model.User, error) {
	existing, err := r.GetUserByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	user := &model.User{Username: username, CreatedAt: time.Now().UTC()}
	if err := r.CreateUser(ctx, user); err != nil {
		// Another request may have created it concurrently.
		if errors.Is(err, ErrUserExists) {
			return r.GetUserByUsername(ctx, username)
		}
		return nil, err
	}

	return user, nil
}

// GetPostsModifiedAt returns when the user's post collection last changed.
func (r *Repository) GetPostsModifiedAt(ctx context.Context, username string) (time.Time, error) {
	var modifiedAt time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT posts_modified_at FROM users WHERE username = $1`, username,
	).Scan(&modifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get posts modified time: %w", err)
	}
	return modifiedAt, nil
}

// touchPostsModifiedAt moves the user's collection timestamp forward within tx
// and returns the stored value. Stamps are kept at whole seconds, the
// resolution of Last-Modified and If-Modified-Since.
func touchPostsModifiedAt(ctx context.Context, tx pgx.Tx, username string, at time.Time) (time.Time, error) {
	var modifiedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE users
		SET posts_modified_at = GREATEST(posts_modified_at, date_trunc('second', $2::timestamptz))
		WHERE username = $1
		RETURNING posts_modified_at
	`, username, at).Scan(&modifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("failed to touch posts modified time: %w", err)
	}
	return modifiedAt.UTC(), nil
}
