//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/postkeeper/postkeeper/internal/model"
	"github.com/postkeeper/postkeeper/internal/testutil"
)

func newTestRepository(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	dbURL := testutil.RequireEnv(t, "DATABASE_URL")
	repo, err := New(ctx, dbURL, PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return repo
}

func mustUser(t *testing.T, ctx context.Context, repo *Repository, username string) *model.User {
	t.Helper()
	user, err := repo.GetOrCreateUser(ctx, username)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestIntegrationUser_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)

	created := mustUser(t, ctx, repo, "alice")

	got, err := repo.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Username != created.Username {
		t.Errorf("username = %q, want %q", got.Username, created.Username)
	}

	if err := repo.CreateUser(ctx, &model.User{Username: "alice", CreatedAt: time.Now()}); !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate create err = %v, want ErrUserExists", err)
	}

	if _, err := repo.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user err = %v, want ErrUserNotFound", err)
	}
}

func TestIntegrationPost_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)
	mustUser(t, ctx, repo, "alice")

	post := testutil.NewTestPost(t, "alice", "go", "web")
	created, err := repo.CreatePost(ctx, post)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if created.Nanosecond() != 0 {
		t.Errorf("create stamp %v is not whole seconds", created)
	}

	got, err := repo.GetPostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Owner != "alice" || len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Errorf("unexpected post: %+v", got)
	}

	modified, err := repo.GetPostsModifiedAt(ctx, "alice")
	if err != nil {
		t.Fatalf("get modified: %v", err)
	}
	if !modified.Equal(created) || modified.Before(post.UpdatedAt.Truncate(time.Second)) {
		t.Errorf("posts_modified_at = %v, want %v", modified, created)
	}

	post.Title = "renamed"
	post.Tags = nil
	post.UpdatedAt = post.UpdatedAt.Add(time.Second)
	updated, err := repo.UpdatePost(ctx, post)
	if err != nil {
		t.Fatalf("update post: %v", err)
	}
	if !updated.Equal(post.UpdatedAt.Truncate(time.Second)) {
		t.Errorf("update stamp = %v, want %v", updated, post.UpdatedAt.Truncate(time.Second))
	}

	got, err = repo.GetPostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("get updated post: %v", err)
	}
	if got.Title != "renamed" || got.Tags != nil {
		t.Errorf("unexpected updated post: %+v", got)
	}

	deletedAt := post.UpdatedAt.Add(time.Second).Truncate(time.Second)
	if _, err := repo.DeletePost(ctx, post.ID, "alice", deletedAt.Add(300*time.Millisecond)); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	if _, err := repo.GetPostByID(ctx, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("get deleted post err = %v, want ErrPostNotFound", err)
	}

	modified, err = repo.GetPostsModifiedAt(ctx, "alice")
	if err != nil {
		t.Fatalf("get modified: %v", err)
	}
	if !modified.Equal(deletedAt) {
		t.Errorf("posts_modified_at = %v, want %v", modified, deletedAt)
	}
}

func TestIntegrationPost_OwnerScopedMutations(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)
	mustUser(t, ctx, repo, "alice")
	mustUser(t, ctx, repo, "mallory")

	post := testutil.NewTestPost(t, "alice")
	if _, err := repo.CreatePost(ctx, post); err != nil {
		t.Fatalf("create post: %v", err)
	}

	if _, err := repo.DeletePost(ctx, post.ID, "mallory", time.Now()); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("foreign delete err = %v, want ErrPostNotFound", err)
	}

	stolen := *post
	stolen.Owner = "mallory"
	if _, err := repo.UpdatePost(ctx, &stolen); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("foreign update err = %v, want ErrPostNotFound", err)
	}
}

func TestIntegrationPost_ListByOwnerOrdered(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)
	mustUser(t, ctx, repo, "alice")
	mustUser(t, ctx, repo, "bob")

	first := testutil.NewTestPost(t, "alice", "a")
	second := testutil.NewTestPost(t, "alice", "b")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	foreign := testutil.NewTestPost(t, "bob", "a")

	for _, p := range []*model.Post{second, first, foreign} {
		if _, err := repo.CreatePost(ctx, p); err != nil {
			t.Fatalf("create post: %v", err)
		}
	}

	posts, err := repo.ListPostsByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != first.ID || posts[1].ID != second.ID {
		t.Errorf("unexpected order: %v", posts)
	}
}

func TestIntegrationAPIKey_PrefixLookupAndRevoke(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t, ctx)
	mustUser(t, ctx, repo, "alice")

	key := testutil.NewTestAPIKey(t, "alice")
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("create key: %v", err)
	}

	keys, err := repo.GetAPIKeysByPrefix(ctx, key.KeyPrefix)
	if err != nil {
		t.Fatalf("lookup by prefix: %v", err)
	}
	if len(keys) != 1 || keys[0].Username != "alice" || len(keys[0].Scopes) != 2 {
		t.Fatalf("unexpected keys: %+v", keys)
	}

	if err := repo.RevokeAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	keys, err = repo.GetAPIKeysByPrefix(ctx, key.KeyPrefix)
	if err != nil {
		t.Fatalf("lookup after revoke: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("revoked key should not be returned, got %d", len(keys))
	}

	if err := repo.RevokeAPIKey(ctx, key.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Errorf("double revoke err = %v, want ErrAPIKeyNotFound", err)
	}
}
