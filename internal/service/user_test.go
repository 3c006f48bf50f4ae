package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postkeeper/postkeeper/internal/model"
)

func TestFindByName(t *testing.T) {
	store := newMemStore()
	store.addUser("alice", fixedNow)
	store.addUser("bob", fixedNow)
	store.addPost(&model.Post{ID: "p1", Owner: "alice", Title: "first"})
	store.addPost(&model.Post{ID: "p2", Owner: "bob", Title: "other"})
	store.addPost(&model.Post{ID: "p3", Owner: "alice", Title: "second"})
	svc := NewUserService(store)

	user, err := svc.FindByName(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, user.Posts, 2)
	assert.Equal(t, "p1", user.Posts[0].ID)
	assert.Equal(t, "p3", user.Posts[1].ID)

	_, err = svc.FindByName(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
