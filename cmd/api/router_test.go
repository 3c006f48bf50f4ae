package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postkeeper/postkeeper/internal/auth"
	"github.com/postkeeper/postkeeper/internal/cache"
	"github.com/postkeeper/postkeeper/internal/config"
	"github.com/postkeeper/postkeeper/internal/handler"
	"github.com/postkeeper/postkeeper/internal/metrics"
	"github.com/postkeeper/postkeeper/internal/middleware"
	"github.com/postkeeper/postkeeper/internal/model"
	"github.com/postkeeper/postkeeper/internal/service"
)

var stamp = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type stubBackend struct{}

func (stubBackend) FindByName(_ context.Context, username string) (*model.User, error) {
	if username != "alice" {
		return nil, service.ErrUserNotFound
	}
	return &model.User{Username: "alice", Posts: []*model.Post{{ID: "p1", Owner: "alice", Title: "t", Tags: []string{"go"}}}}, nil
}

func (stubBackend) LastModifiedForUser(context.Context, string) (time.Time, error) {
	return stamp, nil
}

func (stubBackend) GetPost(_ context.Context, id string) (*model.Post, error) {
	return &model.Post{ID: id, Owner: "alice", Title: "t"}, nil
}

func (stubBackend) CreatePost(_ context.Context, p *model.Post, username string) (*model.Post, error) {
	cp := *p
	cp.ID, cp.Owner = "new", username
	return &cp, nil
}

func (stubBackend) DeletePost(context.Context, string, string) error { return nil }

func (stubBackend) UpdatePost(_ context.Context, id string, p *model.Post, username string) (*model.Post, error) {
	cp := *p
	cp.ID, cp.Owner = id, username
	return &cp, nil
}

type noKeys struct{}

func (noKeys) GetAPIKeysByPrefix(context.Context, string) ([]*model.APIKey, error) { return nil, nil }
func (noKeys) UpdateAPIKeyLastUsed(context.Context, string) error                 { return nil }

type openLimiter struct{}

func (openLimiter) CheckRateLimit(context.Context, string, int, int) (*cache.RateLimitResult, error) {
	return &cache.RateLimitResult{Allowed: true, Remaining: 9, ResetAt: stamp}, nil
}

func testRouter(t *testing.T) (http.Handler, *auth.TokenVerifier) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenVerifier("router-secret", "postkeeper")
	rec := metrics.NewInMemory()

	cfg := &config.Config{
		AppEnv:             "test",
		RateLimitEnabled:   true,
		RateLimitRPM:       60,
		RateLimitBurst:     10,
		CORSAllowedOrigins: "http://localhost:5173",
		MaxRequestBodySize: 1 << 10,
	}

	return newRouter(routerDeps{
		cfg:     cfg,
		logger:  logger,
		metrics: rec,
		health:  handler.NewHealthHandler(),
		posts:   handler.NewPostHandler(stubBackend{}, stubBackend{}, logger, rec),
		auth:    middleware.AuthConfig{Logger: logger, Keys: noKeys{}, Tokens: tokens},
		limiter: openLimiter{},
	}), tokens
}

func bearer(t *testing.T, tokens *auth.TokenVerifier, scopes ...string) string {
	t.Helper()
	token, err := tokens.Issue("alice", scopes, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_PublicEndpoints(t *testing.T) {
	router, _ := testRouter(t)

	for path, want := range map[string]int{
		"/":        http.StatusOK,
		"/healthz": http.StatusOK,
		"/readyz":  http.StatusOK,
		"/metrics": http.StatusOK,
		"/missing": http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader), path)
	}
}

func TestRouter_PostsRequireAuth(t *testing.T) {
	router, _ := testRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/Posts", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_ListWithToken(t *testing.T) {
	router, tokens := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/Posts", nil)
	req.Header.Set("Authorization", bearer(t, tokens, model.ScopeRead))
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stamp.Format(http.TimeFormat), w.Header().Get("Last-Modified"))
	assert.Equal(t, "private, no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))

	req = httptest.NewRequest(http.MethodGet, "/Posts/filter?tags=go&exactMatch=true", nil)
	req.Header.Set("Authorization", bearer(t, tokens, model.ScopeRead))
	req.Header.Set("If-Modified-Since", stamp.Format(time.RFC1123))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestRouter_WriteNeedsWriteScope(t *testing.T) {
	router, tokens := testRouter(t)

	body := `{"title":"hello"}`

	req := httptest.NewRequest(http.MethodPost, "/Posts", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, tokens, model.ScopeRead))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/Posts", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, tokens, model.ScopeWrite))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, body, w.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/Posts/id/p1", nil)
	req.Header.Set("Authorization", bearer(t, tokens, model.ScopeWrite))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router, tokens := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/Posts", strings.NewReader(`{"title":"`+strings.Repeat("x", 2048)+`"}`))
	req.Header.Set("Authorization", bearer(t, tokens, model.ScopeWrite))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
