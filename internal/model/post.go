// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Post is a user-owned content item.
type Post struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagSet returns the post's tags as a set. A post without tags yields an empty set.
func (p *Post) TagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Tags))
	for _, tag := range p.Tags {
		set[tag] = struct{}{}
	}
	return set
}

// HasAllTags reports whether the post carries every tag in required.
// An empty required set matches every post.
func (p *Post) HasAllTags(required map[string]struct{}) bool {
	if len(required) == 0 {
		return true
	}
	own := p.TagSet()
	for tag := range required {
		if _, ok := own[tag]; !ok {
			return false
		}
	}
	return true
}

// OwnedBy reports whether username owns the post.
func (p *Post) OwnedBy(username string) bool {
	return p.Owner == username
}

// NormalizeTags returns the distinct tags in first-seen order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}
