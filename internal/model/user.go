package model

import "time"

// User owns an ordered collection of posts.
type User struct {
	Username        string    `json:"username"`
	CreatedAt       time.Time `json:"created_at"`
	PostsModifiedAt time.Time `json:"posts_modified_at"`
	Posts           []*Post   `json:"posts,omitempty"`
}

// HasPosts reports whether the user owns at least one post.
func (u *User) HasPosts() bool {
	return u != nil && len(u.Posts) > 0
}

// FindPost returns the user's post with the given ID, or nil.
func (u *User) FindPost(id string) *Post {
	if u == nil {
		return nil
	}
	for _, p := range u.Posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}
