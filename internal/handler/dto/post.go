// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/postkeeper/postkeeper/internal/model"
)

// PostRequest is the JSON body accepted by create and update.
// Server-managed fields are accepted so create can echo them back unchanged.
type PostRequest struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title,omitempty"`
	Content   string     `json:"content,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ToModel converts the request into a post for the service layer.
func (r *PostRequest) ToModel() *model.Post {
	return &model.Post{
		ID:      r.ID,
		Title:   r.Title,
		Content: r.Content,
		Tags:    r.Tags,
	}
}

// PostResponse represents a post in API responses.
type PostResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToPostResponse converts a Post model to PostResponse DTO.
func ToPostResponse(post *model.Post) PostResponse {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	return PostResponse{
		ID:        post.ID,
		Owner:     post.Owner,
		Title:     post.Title,
		Content:   post.Content,
		Tags:      tags,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
}

// ToPostListResponse converts posts to their response form, preserving order.
func ToPostListResponse(posts []*model.Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, ToPostResponse(p))
	}
	return out
}
