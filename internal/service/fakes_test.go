package service

import (
	"context"
	"sync"
	"time"

	"github.com/postkeeper/postkeeper/internal/cache"
	"github.com/postkeeper/postkeeper/internal/model"
	"github.com/postkeeper/postkeeper/internal/repository"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]*model.User
	posts map[string]*model.Post
	order []string

	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]*model.User),
		posts: make(map[string]*model.Post),
	}
}

func (m *memStore) addUser(username string, modifiedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username] = &model.User{Username: username, CreatedAt: modifiedAt, PostsModifiedAt: modifiedAt}
}

func (m *memStore) addPost(p *model.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.posts[p.ID] = &cp
	m.order = append(m.order, p.ID)
}

func (m *memStore) GetOrCreateUser(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	u := &model.User{Username: username}
	m.users[username] = u
	return u, nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) ListPostsByOwner(_ context.Context, username string) ([]*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Post
	for _, id := range m.order {
		if p, ok := m.posts[id]; ok && p.Owner == username {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) GetPostsModifiedAt(_ context.Context, username string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return time.Time{}, repository.ErrUserNotFound
	}
	return u.PostsModifiedAt, nil
}

func (m *memStore) CreatePost(_ context.Context, post *model.Post) (time.Time, error) {
	if m.createErr != nil {
		return time.Time{}, m.createErr
	}
	m.addPost(post)
	return m.touch(post.Owner, post.UpdatedAt), nil
}

func (m *memStore) GetPostByID(_ context.Context, id string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) UpdatePost(_ context.Context, post *model.Post) (time.Time, error) {
	m.mu.Lock()
	existing, ok := m.posts[post.ID]
	if !ok || existing.Owner != post.Owner {
		m.mu.Unlock()
		return time.Time{}, repository.ErrPostNotFound
	}
	cp := *post
	m.posts[post.ID] = &cp
	m.mu.Unlock()
	return m.touch(post.Owner, post.UpdatedAt), nil
}

func (m *memStore) DeletePost(_ context.Context, id, username string, at time.Time) (time.Time, error) {
	m.mu.Lock()
	existing, ok := m.posts[id]
	if !ok || existing.Owner != username {
		m.mu.Unlock()
		return time.Time{}, repository.ErrPostNotFound
	}
	delete(m.posts, id)
	m.mu.Unlock()
	return m.touch(username, at), nil
}

// touch mirrors the repository: whole seconds, never moving backwards.
func (m *memStore) touch(username string, at time.Time) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return time.Time{}
	}
	if at = at.Truncate(time.Second); at.After(u.PostsModifiedAt) {
		u.PostsModifiedAt = at
	}
	return u.PostsModifiedAt
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	writes  int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]time.Time)}
}

func (c *memCache) GetPostsModifiedAt(_ context.Context, username string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.entries[username]
	if !ok {
		return time.Time{}, cache.ErrCacheMiss
	}
	return at, nil
}

func (c *memCache) SetPostsModifiedAt(_ context.Context, username string, at time.Time, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	if current, ok := c.entries[username]; ok && !at.After(current) {
		return nil
	}
	c.entries[username] = at
	return nil
}

// racingStore runs interleave once, right after the stamp has been read and
// before the caller gets it back.
type racingStore struct {
	*memStore
	interleave func()
}

func (r *racingStore) GetPostsModifiedAt(ctx context.Context, username string) (time.Time, error) {
	at, err := r.memStore.GetPostsModifiedAt(ctx, username)
	if r.interleave != nil {
		fn := r.interleave
		r.interleave = nil
		fn()
	}
	return at, err
}
