package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/postkeeper/postkeeper/internal/model"
)

// Common errors for post repository operations.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrPostExists   = errors.New("post id already exists")
)

const postColumns = `id, owner, title, content, tags, created_at, updated_at`

// CreatePost inserts a post and bumps the owner's collection timestamp,
// returning the committed timestamp.
func (r *Repository) CreatePost(ctx context.Context, post *model.Post) (time.Time, error) {
	var modifiedAt time.Time
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO posts (`+postColumns+`)
			VALUES ($1, $2, $3, $4, COALESCE($5::text[], '{}'), $6, $7)
		`,
			post.ID,
			post.Owner,
			post.Title,
			post.Content,
			pq.Array(post.Tags),
			post.CreatedAt,
			post.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrPostExists
			}
			return fmt.Errorf("failed to create post: %w", err)
		}

		modifiedAt, err = touchPostsModifiedAt(ctx, tx, post.Owner, post.UpdatedAt)
		return err
	})
	return modifiedAt, err
}

// GetPostByID retrieves a post by its ID regardless of owner.
func (r *Repository) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post by ID: %w", err)
	}

	return post, nil
}

// ListPostsByOwner returns all posts owned by username, oldest first.
func (r *Repository) ListPostsByOwner(ctx context.Context, username string) ([]*model.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE owner = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, nil
}

// UpdatePost overwrites a post's mutable fields. The owner must match.
func (r *Repository) UpdatePost(ctx context.Context, post *model.Post) (time.Time, error) {
	var modifiedAt time.Time
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE posts
			SET title = $3, content = $4, tags = COALESCE($5::text[], '{}'), updated_at = $6
			WHERE id = $1 AND owner = $2
		`,
			post.ID,
			post.Owner,
			post.Title,
			post.Content,
			pq.Array(post.Tags),
			post.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrPostNotFound
		}

		modifiedAt, err = touchPostsModifiedAt(ctx, tx, post.Owner, post.UpdatedAt)
		return err
	})
	return modifiedAt, err
}

// DeletePost removes a post owned by username, recording at as the
// collection's modification time.
func (r *Repository) DeletePost(ctx context.Context, id, username string, at time.Time) (time.Time, error) {
	var modifiedAt time.Time
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND owner = $2`, id, username)
		if err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrPostNotFound
		}

		modifiedAt, err = touchPostsModifiedAt(ctx, tx, username, at)
		return err
	})
	return modifiedAt, err
}

// scanPost scans a single post row from pgx.Row or pgx.Rows.
func scanPost(row pgx.Row) (*model.Post, error) {
	var post model.Post
	var tags []string

	err := row.Scan(
		&post.ID,
		&post.Owner,
		&post.Title,
		&post.Content,
		pq.Array(&tags),
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(tags) > 0 {
		post.Tags = tags
	}
	return &post, nil
}
